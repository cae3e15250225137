// Package probe 通过外部 ffprobe 进程提取媒体文件的技术元数据。
package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/John-Robertt/mediacat/internal/domain"
)

// DefaultBin 是未配置时使用的 ffprobe 可执行文件（走 PATH 查找）。
const DefaultBin = "ffprobe"

// Prober 把“外部工具差异”限制在 probe 包内部；核心流程只依赖统一接口与稳定的 ProbeResult。
//
// 约束：
// - Probe 不做重试（失败的文件由下一次 append 运行自然重试）
// - 返回的错误必须是 *Error，方便上层归类
type Prober interface {
	Probe(ctx context.Context, path string) (domain.ProbeResult, error)
}

// Runner 执行外部命令并返回其 stdout。
// 单独抽出来是为了让测试不依赖真实的 ffprobe。
type Runner interface {
	Run(ctx context.Context, bin string, args ...string) ([]byte, error)
}

// ExecRunner 是基于 os/exec 的 Runner。
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return out, err
		}
		return out, fmt.Errorf("%w: %s", err, truncate(msg, 300))
	}
	return out, nil
}

// FFprobe 是 Prober 的 ffprobe 实现。
type FFprobe struct {
	Bin string
	// Timeout 只约束单次外部进程；0 表示不设超时。
	Timeout time.Duration
	Runner  Runner
}

// New 返回一个使用 os/exec 的 FFprobe。bin 为空时使用 DefaultBin。
func New(bin string, timeout time.Duration) *FFprobe {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = DefaultBin
	}
	return &FFprobe{Bin: bin, Timeout: timeout, Runner: ExecRunner{}}
}

// Args 返回探测 path 时传给 ffprobe 的参数（静默 + JSON + format/streams）。
func Args(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
}

func (p *FFprobe) Probe(ctx context.Context, path string) (domain.ProbeResult, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	out, err := runner.Run(ctx, p.Bin, Args(path)...)
	if err != nil {
		return domain.ProbeResult{}, &Error{Path: path, Stage: StageExec, Err: err}
	}

	res, err := Decode(out)
	if err != nil {
		return domain.ProbeResult{}, withPath(err, path)
	}
	return res, nil
}

// Available 报告 bin 是否能在 PATH（或给定路径）上找到。
func Available(bin string) error {
	_, err := exec.LookPath(bin)
	return err
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
