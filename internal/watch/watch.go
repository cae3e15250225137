// Package watch 监视输入目录，在出现新的媒体文件时（去抖后）触发一次增量运行。
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/mediacat/internal/scan"
)

// DefaultDebounce 是默认的去抖窗口：拷贝大文件时会连续产生大量事件。
const DefaultDebounce = 2 * time.Second

// Trigger 执行一次增量运行。返回的错误只会被记录，不会终止监视。
type Trigger func(ctx context.Context) error

// Watcher 监视 Root（目录则递归，文件则监视其所在目录）。
type Watcher struct {
	Root     string
	Debounce time.Duration
	Logger   zerolog.Logger
}

// Run 使用默认去抖窗口监视 root，直到 ctx 取消。
func Run(ctx context.Context, root string, logger zerolog.Logger, trigger Trigger) error {
	return Watcher{Root: root, Debounce: DefaultDebounce, Logger: logger}.Run(ctx, trigger)
}

// Run 阻塞直到 ctx 取消；ctx 取消时返回 nil。
//
// 约束：
// - trigger 在本 goroutine 上串行执行，不会并发触发
// - 只有媒体扩展名文件的 create/write/rename 事件、以及新建目录会触发
func (w Watcher) Run(ctx context.Context, trigger Trigger) error {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	root, err := filepath.Abs(filepath.Clean(w.Root))
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 watcher 失败：%w", err)
	}
	defer fw.Close()

	fi, err := os.Stat(root)
	if err != nil {
		return &scan.PathNotFoundError{Path: root, Err: err}
	}
	single := ""
	if fi.IsDir() {
		if err := addTree(fw, root); err != nil {
			return err
		}
	} else {
		single = root
		if err := fw.Add(filepath.Dir(root)); err != nil {
			return fmt.Errorf("监视目录失败：%w", err)
		}
	}
	w.Logger.Info().Str("root", root).Dur("debounce", debounce).Msg("开始监视")

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info().Msg("监视已停止")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if single != "" {
				// 单文件：只看该文件本身，不检查扩展名（与扫描一致）。
				if filepath.Clean(ev.Name) != single || !changed(ev) {
					continue
				}
			} else if !w.relevant(fw, ev) {
				continue
			}
			w.Logger.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("检测到变化")
			// 去抖：每个事件都重置计时器
			timer.Reset(debounce)

		case <-timer.C:
			if err := trigger(ctx); err != nil {
				w.Logger.Error().Err(err).Msg("增量运行失败")
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error().Err(err).Msg("watcher 错误")
		}
	}
}

func (w Watcher) relevant(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if !changed(ev) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := addTree(fw, ev.Name); err != nil {
				w.Logger.Warn().Err(err).Str("path", ev.Name).Msg("监视新目录失败")
			}
			return true
		}
	}
	return scan.IsVideo(ev.Name)
}

func changed(ev fsnotify.Event) bool {
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)
}

// addTree 把 root 及其所有子目录加入 watcher（fsnotify 不支持递归监视）。
func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// 目录在遍历过程中被删除：忽略
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("监视目录 %q 失败：%w", path, err)
		}
		return nil
	})
}
