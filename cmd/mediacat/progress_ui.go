package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/mediacat/internal/app/run"
	"github.com/John-Robertt/mediacat/internal/config"
	"github.com/John-Robertt/mediacat/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// descWidth 是进度条描述里文件名的最大字符数。
const descWidth = 20

// progressUI 在交互终端（stderr）上展示阶段信息与进度条。
// 所有输出都写到 w，不污染 stdout 的 JSON 输出。
type progressUI struct {
	w io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] mediacat run (%s)\n", time.Now().Format("15:04:05"), eff.Mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  input: %s\n", eff.Input)
	fmt.Fprintf(p.w, "  catalog: %s\n", eff.Catalog)
	if eff.Tag != "" {
		fmt.Fprintf(p.w, "  tag: %s\n", eff.Tag)
	}
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  ffprobe: %s\n", eff.FFprobe)
	if eff.ProbeTimeout > 0 {
		fmt.Fprintf(p.w, "  probe_timeout: %s\n", eff.ProbeTimeout)
	}
	if len(eff.ExcludeDirs) > 0 {
		fmt.Fprintf(p.w, "  exclude_dirs: %s\n", formatStringListJSON(eff.ExcludeDirs))
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "plan":
		fmt.Fprintf(p.w, "规划: queued=%d skipped=%d duplicates=%d (%s)\n",
			intField(fields, "queued"),
			intField(fields, "skipped"),
			intField(fields, "duplicates"),
			formatShortDuration(dur),
		)
	case "exec":
		total := intField(fields, "total")
		fmt.Fprintf(p.w, "执行: workers=%d total=%d\n\n", intField(fields, "workers"), total)
		if total > 0 {
			p.bar = newBar(p.w, total)
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func newBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Parsed"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("file"),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

func (p *progressUI) OnItemDone(done, total int, file domain.VideoFile, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	if err != nil {
		// 失败行打印在进度条上方，下一次 Add 会重新绘制进度条。
		_ = p.bar.Clear()
		fmt.Fprintf(p.w, "[%d/%d] FAIL %s: %s (%s)\n", done, total, file.Name, truncate(err.Error(), 160), formatShortDuration(dur))
	}
	p.bar.Describe("Parsed " + truncate(file.Name, descWidth))
	_ = p.bar.Add(1)
}

func (p *progressUI) OnFinish(rr domain.RunReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil && !p.bar.IsFinished() {
		_ = p.bar.Finish()
	}
	p.bar = nil
	if !rr.StartedAt.IsZero() && !rr.FinishedAt.IsZero() {
		fmt.Fprintf(p.w, "耗时: %s\n", formatShortDuration(rr.FinishedAt.Sub(rr.StartedAt)))
	}
}

func formatStringListJSON(xs []string) string {
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// truncate 按字符（rune）截断，超出部分用 "..." 表示。
func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
