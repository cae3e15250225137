package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/mediacat/internal/scan"
)

func startWatcher(t *testing.T, root string) (<-chan struct{}, func()) {
	t.Helper()
	fired := make(chan struct{}, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	w := Watcher{Root: root, Debounce: 50 * time.Millisecond, Logger: zerolog.Nop()}
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			fired <- struct{}{}
			return nil
		})
	}()
	// 给 watcher 一点时间完成 Add
	time.Sleep(100 * time.Millisecond)

	return fired, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("watcher 未在 ctx 取消后退出")
		}
	}
}

func waitFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("期望触发增量运行，但超时")
	}
}

func TestWatcher_TriggersOnNewVideo(t *testing.T) {
	root := t.TempDir()
	fired, stop := startWatcher(t, root)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.mp4"), []byte("x"), 0o644))
	waitFired(t, fired)
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	root := t.TempDir()
	fired, stop := startWatcher(t, root)
	defer stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, string(rune('a'+i))+".mkv"), []byte("x"), 0o644))
	}
	waitFired(t, fired)

	select {
	case <-fired:
		t.Fatalf("一批连续事件只应触发一次")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	fired, stop := startWatcher(t, root)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	select {
	case <-fired:
		t.Fatalf("非媒体文件不应触发")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	fired, stop := startWatcher(t, root)
	defer stop()

	sub := filepath.Join(root, "season1")
	require.NoError(t, os.Mkdir(sub, 0o755))
	waitFired(t, fired)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "ep1.avi"), []byte("x"), 0o644))
	waitFired(t, fired)
}

func TestWatcher_MissingRoot(t *testing.T) {
	w := Watcher{Root: filepath.Join(t.TempDir(), "nope"), Logger: zerolog.Nop()}
	err := w.Run(context.Background(), func(context.Context) error { return nil })

	var pnf *scan.PathNotFoundError
	assert.ErrorAs(t, err, &pnf)
}

func TestWatcher_SingleFileRootIgnoresExtension(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.ts")
	require.NoError(t, os.WriteFile(clip, []byte("x"), 0o644))

	fired, stop := startWatcher(t, clip)
	defer stop()

	// 同目录的其他媒体文件不相关
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.mp4"), []byte("x"), 0o644))
	select {
	case <-fired:
		t.Fatalf("单文件模式下其他文件不应触发")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(clip, []byte("xy"), 0o644))
	waitFired(t, fired)
}
