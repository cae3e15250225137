package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/mediacat/internal/catalog"
	"github.com/John-Robertt/mediacat/internal/config"
	"github.com/John-Robertt/mediacat/internal/domain"
	"github.com/John-Robertt/mediacat/internal/probe"
)

// stubProber 按文件 stem 返回预设结果；fail 中的 stem 返回 probe.Error，panics 中的 stem 直接 panic。
type stubProber struct {
	mu     sync.Mutex
	fail   map[string]bool
	panics map[string]bool
	calls  []string

	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (p *stubProber) Probe(ctx context.Context, path string) (domain.ProbeResult, error) {
	name := domain.NameOf(path)

	p.mu.Lock()
	p.calls = append(p.calls, name)
	fail := p.fail[name]
	boom := p.panics[name]
	p.mu.Unlock()

	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	if boom {
		panic("boom")
	}
	if fail {
		return domain.ProbeResult{}, &probe.Error{Path: path, Stage: probe.StageExec, Err: errors.New("exit status 1")}
	}
	return domain.ProbeResult{
		Duration:        61,
		Bitrate:         2000,
		Width:           1280,
		Height:          720,
		FPS:             25,
		AudioBitrate:    128,
		AudioChannels:   2,
		AudioSampleRate: 44100,
	}, nil
}

func (p *stubProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fixture struct {
	root    string
	catalog string
}

func newFixture(t *testing.T, rels ...string) fixture {
	t.Helper()
	root := t.TempDir()
	for _, rel := range rels {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	return fixture{root: root, catalog: filepath.Join(t.TempDir(), "catalog.csv")}
}

func (f fixture) eff(mode domain.Mode) config.EffectiveConfig {
	return config.EffectiveConfig{
		Input:       f.root,
		Catalog:     f.catalog,
		Tag:         "Lib",
		Mode:        mode,
		Concurrency: 4,
	}
}

func loadNames(t *testing.T, path string) []string {
	t.Helper()
	records := catalog.Load(path, zerolog.Nop()).Records()
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

func loadRecord(t *testing.T, path, name string) domain.MediaRecord {
	t.Helper()
	for _, r := range catalog.Load(path, zerolog.Nop()).Records() {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("目录表中没有 %q", name)
	return domain.MediaRecord{}
}

func TestExecute_AppendThenIdempotent(t *testing.T) {
	fx := newFixture(t, "a.mp4", "b.MKV", filepath.Join("sub", "c.avi"), "notes.txt")
	p := &stubProber{}

	rr := Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: p})
	require.True(t, rr.OK(), "report=%+v", rr)
	assert.Equal(t, domain.ReportSummary{Discovered: 3, Queued: 3, Succeeded: 3, Written: 3}, rr.Summary)
	assert.Equal(t, []string{"a", "b", "c"}, loadNames(t, fx.catalog))
	assert.NotEmpty(t, rr.RunID)

	before, err := os.ReadFile(fx.catalog)
	require.NoError(t, err)

	rr = Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: p})
	require.True(t, rr.OK())
	assert.Equal(t, domain.ReportSummary{Discovered: 3, Skipped: 3}, rr.Summary)
	assert.Equal(t, 3, p.callCount(), "第二次运行不应再 probe")

	after, err := os.ReadFile(fx.catalog)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestExecute_RecordContent(t *testing.T) {
	fx := newFixture(t, "Sunset.Valley.25.06.01.Alice.Bob.XXX.1080p.mp4")

	rr := Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: &stubProber{}})
	require.True(t, rr.OK())

	r := loadRecord(t, fx.catalog, "Sunset.Valley.25.06.01.Alice.Bob.XXX.1080p")
	assert.Equal(t, "Sunset Valley", r.Collection)
	assert.Equal(t, "Alice Bob", r.Cast)
	assert.Equal(t, "Lib, 720p, XC", r.Tags)
	assert.Equal(t, "1280x720", r.Resolution)
	assert.Equal(t, "00:01:01", r.Duration)
	assert.Equal(t, "2000kbps", r.Bitrate)
	assert.Equal(t, "25.00 fps", r.FPS)
	assert.Equal(t, "44.1 kHz", r.AudioSamplingRate)
	assert.Equal(t, filepath.Join(fx.root, "Sunset.Valley.25.06.01.Alice.Bob.XXX.1080p.mp4"), r.Path)
}

func TestExecute_FailedProbeIsRetriedNextRun(t *testing.T) {
	fx := newFixture(t, "good.mp4", "bad.mp4")

	rr := Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{
		Logger: zerolog.Nop(),
		Prober: &stubProber{fail: map[string]bool{"bad": true}},
	})
	assert.False(t, rr.OK())
	assert.Equal(t, 1, rr.Summary.Succeeded)
	assert.Equal(t, 1, rr.Summary.Failed)
	require.Len(t, rr.Failures, 1)
	assert.Equal(t, domain.ErrCodeProbeFailed, rr.Failures[0].ErrorCode)
	assert.Equal(t, "bad", rr.Failures[0].Name)
	assert.Equal(t, []string{"good"}, loadNames(t, fx.catalog))

	fixed := &stubProber{}
	rr = Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: fixed})
	require.True(t, rr.OK())
	assert.Equal(t, 1, rr.Summary.Skipped)
	assert.Equal(t, 1, fixed.callCount())
	assert.Equal(t, []string{"bad", "good"}, loadNames(t, fx.catalog))
}

func TestExecute_PanicIsIsolated(t *testing.T) {
	fx := newFixture(t, "a.mp4", "b.mp4", "c.mp4")

	rr := Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{
		Logger: zerolog.Nop(),
		Prober: &stubProber{panics: map[string]bool{"b": true}},
	})
	require.Len(t, rr.Failures, 1)
	assert.Equal(t, domain.ErrCodeUnitPanic, rr.Failures[0].ErrorCode)
	assert.Equal(t, 2, rr.Summary.Succeeded)
	assert.Equal(t, []string{"a", "c"}, loadNames(t, fx.catalog))
}

func TestExecute_OverwriteOneRowPerName(t *testing.T) {
	fx := newFixture(t, "a.mp4", filepath.Join("z", "a.mkv"), "b.mp4")
	require.NoError(t, catalog.Persist([]domain.MediaRecord{{Name: "old"}, {Name: "a"}}, fx.catalog, domain.ModeAppend))

	rr := Execute(context.Background(), fx.eff(domain.ModeOverwrite), Deps{Logger: zerolog.Nop(), Prober: &stubProber{}})
	require.True(t, rr.OK(), "report=%+v", rr)
	assert.Equal(t, 1, rr.Summary.Duplicates)
	assert.Equal(t, 2, rr.Summary.Written)

	assert.Equal(t, []string{"a", "b"}, loadNames(t, fx.catalog))
	r := loadRecord(t, fx.catalog, "a")
	assert.Equal(t, filepath.Join(fx.root, "a.mp4"), r.Path)
}

func TestExecute_NameWithSurroundingSpacesIsIdempotent(t *testing.T) {
	fx := newFixture(t, "Show 2024 Alice .mp4", " lead.mkv")
	p := &stubProber{}

	rr := Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: p})
	require.True(t, rr.OK(), "report=%+v", rr)
	assert.Equal(t, 2, rr.Summary.Written)

	rr = Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: p})
	require.True(t, rr.OK(), "report=%+v", rr)
	assert.Equal(t, domain.ReportSummary{Discovered: 2, Skipped: 2}, rr.Summary)
	assert.Equal(t, 2, p.callCount())

	assert.Equal(t, []string{" lead", "Show 2024 Alice "}, loadNames(t, fx.catalog))
	b, err := os.ReadFile(fx.catalog)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(b), "\n"), "表头 + 两行")
}

func TestExecute_AppendDedupWithinBatch(t *testing.T) {
	fx := newFixture(t, "a.mp4", filepath.Join("z", "a.mkv"))

	rr := Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: &stubProber{}})
	require.True(t, rr.OK())
	assert.Equal(t, []string{"a"}, loadNames(t, fx.catalog))
}

func TestExecute_PathNotFoundIsFatal(t *testing.T) {
	fx := fixture{root: filepath.Join(t.TempDir(), "missing"), catalog: filepath.Join(t.TempDir(), "c.csv")}

	rr := Execute(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: &stubProber{}})
	require.NotNil(t, rr.Fatal)
	assert.Equal(t, domain.ErrCodePathNotFound, rr.Fatal.ErrorCode)
	assert.False(t, rr.OK())
	assert.NoFileExists(t, fx.catalog)
}

func TestExecute_PersistErrorStillReportsCounts(t *testing.T) {
	fx := newFixture(t, "a.mp4")
	require.NoError(t, os.Mkdir(fx.catalog, 0o755))

	rr := Execute(context.Background(), fx.eff(domain.ModeOverwrite), Deps{Logger: zerolog.Nop(), Prober: &stubProber{}})
	assert.NotEmpty(t, rr.PersistError)
	assert.Equal(t, 1, rr.Summary.Succeeded)
	assert.Zero(t, rr.Summary.Written)
	assert.False(t, rr.OK())
}

func TestExecute_EmptyInputWritesNothing(t *testing.T) {
	fx := newFixture(t, "readme.txt")

	rr := Execute(context.Background(), fx.eff(domain.ModeOverwrite), Deps{Logger: zerolog.Nop(), Prober: &stubProber{}})
	require.True(t, rr.OK())
	assert.Zero(t, rr.Summary.Discovered)
	assert.NoFileExists(t, fx.catalog)
}

func TestExecute_RespectsConcurrencyLimit(t *testing.T) {
	rels := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		rels = append(rels, string(rune('a'+i))+".mp4")
	}
	fx := newFixture(t, rels...)
	p := &stubProber{delay: 10 * time.Millisecond}

	eff := fx.eff(domain.ModeAppend)
	eff.Concurrency = 3
	rr := Execute(context.Background(), eff, Deps{Logger: zerolog.Nop(), Prober: p})
	require.True(t, rr.OK())
	assert.Equal(t, 12, rr.Summary.Written)
	assert.LessOrEqual(t, p.peak.Load(), int32(3))
}

type recordObserver struct {
	startCalls  int
	phases      []string
	items       int
	failed      int
	lastTotal   int
	finishCalls int
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) { o.startCalls++ }

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnItemDone(done, total int, file domain.VideoFile, err error, dur time.Duration) {
	o.items++
	o.lastTotal = total
	if err != nil {
		o.failed++
	}
}

func (o *recordObserver) OnFinish(rr domain.RunReport) { o.finishCalls++ }

func TestExecuteWithObserver_EmitsPhaseAndItemEvents(t *testing.T) {
	fx := newFixture(t, "a.mp4", "b.mp4")
	obs := &recordObserver{}

	_ = ExecuteWithObserver(context.Background(), fx.eff(domain.ModeAppend), Deps{
		Logger: zerolog.Nop(),
		Prober: &stubProber{fail: map[string]bool{"b": true}},
	}, obs)

	assert.Equal(t, 1, obs.startCalls)
	assert.Equal(t, []string{"scan", "plan", "exec"}, obs.phases)
	assert.Equal(t, 2, obs.items)
	assert.Equal(t, 2, obs.lastTotal)
	assert.Equal(t, 1, obs.failed)
	assert.Equal(t, 1, obs.finishCalls)
}

func TestExecuteWithObserver_NoExecPhaseWhenNothingToDo(t *testing.T) {
	fx := newFixture(t)
	obs := &recordObserver{}

	_ = ExecuteWithObserver(context.Background(), fx.eff(domain.ModeAppend), Deps{Logger: zerolog.Nop(), Prober: &stubProber{}}, obs)
	assert.Equal(t, []string{"scan", "plan"}, obs.phases)
	assert.Equal(t, 1, obs.finishCalls)
}
