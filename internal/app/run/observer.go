package run

import (
	"time"

	"github.com/John-Robertt/mediacat/internal/config"
	"github.com/John-Robertt/mediacat/internal/domain"
)

// Observer 用于把“运行进度/阶段/单文件结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 所有事件都在调用 ExecuteWithObserver 的 goroutine 上发出（单一汇聚点），实现无需加锁。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（scan、plan、exec）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在每个工作单元完成时调用（无论成败）；err 为 nil 表示成功。
	OnItemDone(done, total int, file domain.VideoFile, err error, dur time.Duration)
	// OnFinish 在 report 定稿后调用。
	OnFinish(rr domain.RunReport)
}

// NopObserver 忽略所有事件。
type NopObserver struct{}

func (NopObserver) OnStart(config.EffectiveConfig) {}
func (NopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (NopObserver) OnItemDone(int, int, domain.VideoFile, error, time.Duration) {}
func (NopObserver) OnFinish(domain.RunReport) {}
