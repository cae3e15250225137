// Package run 串起一次完整运行：扫描 -> 增量规划 -> 并发加工 -> 落盘 -> 报告。
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/mediacat/internal/app"
	"github.com/John-Robertt/mediacat/internal/app/planner"
	"github.com/John-Robertt/mediacat/internal/catalog"
	"github.com/John-Robertt/mediacat/internal/config"
	"github.com/John-Robertt/mediacat/internal/domain"
	"github.com/John-Robertt/mediacat/internal/probe"
	"github.com/John-Robertt/mediacat/internal/scan"
)

// Deps 是运行时的外部协作者。
type Deps struct {
	Logger zerolog.Logger
	// Prober 为 nil 时按 eff.FFprobe/eff.ProbeTimeout 构造 ffprobe 实现。
	Prober probe.Prober
	// RunID 为空时自动生成。
	RunID string
}

// UnitPanicError 表示工作单元内部发生了 panic（已在单元边界恢复）。
type UnitPanicError struct {
	Path  string
	Value any
}

func (e *UnitPanicError) Error() string {
	return fmt.Sprintf("处理 %q 时发生 panic：%v", e.Path, e.Value)
}

// Execute 执行一次 run，并返回对外稳定的 RunReport。
// 单个文件失败只会进入 report.failures，不影响其他文件。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	if obs == nil {
		obs = NopObserver{}
	}
	runID := deps.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := deps.Logger.With().Str("run_id", runID).Logger()

	prober := deps.Prober
	if prober == nil {
		if err := probe.Available(eff.FFprobe); err != nil {
			logger.Warn().Err(err).Str("ffprobe", eff.FFprobe).Msg("找不到 ffprobe，所有文件都会探测失败")
		}
		prober = probe.New(eff.FFprobe, eff.ProbeTimeout)
	}

	mode := eff.Mode
	if mode == "" {
		mode = domain.ModeAppend
	}

	rr := domain.RunReport{
		RunID:     runID,
		Input:     eff.Input,
		Catalog:   eff.Catalog,
		Mode:      mode,
		StartedAt: time.Now(),
		Failures:  make([]domain.FileFailure, 0, 16),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now()
		rr.Finalize()
		obs.OnFinish(rr)
		return rr
	}

	obs.OnStart(eff)
	logger.Info().Str("input", eff.Input).Str("mode", string(mode)).Msg("开始处理")

	scanStarted := time.Now()
	files, err := scan.ScanVideos(eff.Input, eff.ExcludeDirs, logger)
	if err != nil {
		code := domain.ErrCodeScanFailed
		var pnf *scan.PathNotFoundError
		if errors.As(err, &pnf) {
			code = domain.ErrCodePathNotFound
		}
		logger.Error().Err(err).Str("input", eff.Input).Msg("扫描失败")
		rr.Fatal = &domain.FileFailure{Path: eff.Input, ErrorCode: code, ErrorMsg: err.Error()}
		return finish()
	}
	rr.Summary.Discovered = len(files)
	obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, time.Since(scanStarted))
	logger.Info().Int("files", len(files)).Msg("扫描完成")

	planStarted := time.Now()
	var existing planner.Index
	if mode == domain.ModeAppend {
		existing = catalog.Load(eff.Catalog, logger)
	}
	plan := planner.Plan(files, existing, mode)
	rr.Summary.Skipped = plan.Skipped
	rr.Summary.Duplicates = len(plan.Duplicates)
	rr.Summary.Queued = len(plan.Work)
	for _, d := range plan.Duplicates {
		logger.Warn().Str("path", d.AbsPath).Str("name", d.Name).Msg("同名文件已在本批次中出现，跳过")
	}
	obs.OnPhaseDone("plan", map[string]any{
		"queued":     len(plan.Work),
		"skipped":    plan.Skipped,
		"duplicates": len(plan.Duplicates),
	}, time.Since(planStarted))

	if len(plan.Work) == 0 {
		if mode == domain.ModeAppend && len(files) > 0 {
			logger.Info().Msg("所有文件都已在目录表中，无需处理")
		} else {
			logger.Info().Msg("没有需要处理的媒体文件")
		}
		return finish()
	}
	if plan.Skipped > 0 {
		logger.Info().Int("skipped", plan.Skipped).Msg("跳过已收录的文件")
	}

	workers := max(1, min(eff.Concurrency, len(plan.Work)))
	obs.OnPhaseDone("exec", map[string]any{"workers": workers, "total": len(plan.Work)}, 0)
	logger.Info().Int("files", len(plan.Work)).Int("workers", workers).Msg("开始并发处理")

	builder := app.RecordBuilder{Tag: eff.Tag, Prober: prober}
	execStarted := time.Now()
	// 本批次新记录；同名只保留第一条，保证目录表 name 唯一。
	batch := catalog.New()
	succeeded := 0

	done := 0
	for o := range dispatch(ctx, plan.Work, workers, builder) {
		done++
		if o.err != nil {
			f := failureOf(o.file, o.err)
			rr.Failures = append(rr.Failures, f)
			logger.Error().Err(o.err).Str("path", o.file.AbsPath).Str("error_code", f.ErrorCode).Msg("处理失败")
		} else {
			succeeded++
			if !batch.Add(o.rec) {
				logger.Warn().Str("path", o.file.AbsPath).Str("name", o.rec.Name).Msg("同名记录已存在，跳过")
			}
			logger.Debug().Str("path", o.file.AbsPath).Dur("dur", o.dur).Msg("处理完成")
		}
		obs.OnItemDone(done, len(plan.Work), o.file, o.err, o.dur)
	}
	rr.Summary.Succeeded = succeeded
	records := batch.Records()
	logger.Info().
		Str("elapsed", fmt.Sprintf("%.1fs", time.Since(execStarted).Seconds())).
		Str("success", fmt.Sprintf("%d/%d", succeeded, len(plan.Work))).
		Msg("处理结束")

	if err := catalog.Persist(records, eff.Catalog, mode); err != nil {
		rr.PersistError = err.Error()
		logger.Error().Err(err).Str("catalog", eff.Catalog).Msg("写入目录表失败")
		return finish()
	}
	rr.Summary.Written = len(records)
	if len(records) > 0 {
		logger.Info().Int("records", len(records)).Str("catalog", eff.Catalog).Msg("目录表已更新")
	}
	return finish()
}

type outcome struct {
	file domain.VideoFile
	rec  domain.MediaRecord
	err  error
	dur  time.Duration
}

// dispatch 启动固定大小的 worker pool，返回单一的结果 channel（全部单元完成后关闭）。
//
// worker 从不向 errgroup 返回错误：单元失败以 outcome.err 的形式送达汇聚点。
func dispatch(ctx context.Context, work []domain.VideoFile, workers int, b app.RecordBuilder) <-chan outcome {
	jobs := make(chan domain.VideoFile)
	results := make(chan outcome, workers)

	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for _, f := range work {
			jobs <- f
		}
		return nil
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for f := range jobs {
				results <- runUnit(ctx, b, f)
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()
	return results
}

// runUnit 执行一个工作单元，并把 panic 转为 UnitPanicError。
func runUnit(ctx context.Context, b app.RecordBuilder, f domain.VideoFile) (o outcome) {
	started := time.Now()
	o.file = f
	defer func() {
		if v := recover(); v != nil {
			o.rec = domain.MediaRecord{}
			o.err = &UnitPanicError{Path: f.AbsPath, Value: v}
		}
		o.dur = time.Since(started)
	}()
	o.rec, o.err = b.Build(ctx, f)
	return o
}

func failureOf(f domain.VideoFile, err error) domain.FileFailure {
	code := domain.ErrCodeProbeFailed
	var (
		se *app.StatError
		pe *UnitPanicError
	)
	switch {
	case errors.As(err, &se):
		code = domain.ErrCodeStatFailed
	case errors.As(err, &pe):
		code = domain.ErrCodeUnitPanic
	}
	return domain.FileFailure{
		Path:      f.AbsPath,
		Name:      f.Name,
		ErrorCode: code,
		ErrorMsg:  err.Error(),
	}
}
