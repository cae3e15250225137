package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ErrCodePathNotFound  = "path_not_found"
	ErrCodeScanFailed    = "scan_failed"
	ErrCodeStatFailed    = "stat_failed"
	ErrCodeProbeFailed   = "probe_failed"
	ErrCodeUnitPanic     = "unit_panic"
	ErrCodePersistFailed = "persist_failed"
	ErrCodeConfigInvalid = "config_invalid"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	RunID   string `json:"run_id"`
	Input   string `json:"input"`
	Catalog string `json:"catalog"`
	Mode    Mode   `json:"mode"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary  ReportSummary `json:"summary"`
	Failures []FileFailure `json:"failures"`

	// Fatal 非空表示运行在派发前就终止了（例如输入路径不存在）。
	Fatal *FileFailure `json:"fatal,omitempty"`
	// PersistError 非空表示记录已生成但目录表没有落盘成功。
	PersistError string `json:"persist_error,omitempty"`
}

type ReportSummary struct {
	Discovered int `json:"discovered"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	Queued     int `json:"queued"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Written    int `json:"written"`
}

// FileFailure 记录单个文件失败的原因（失败文件不会进入目录表）。
type FileFailure struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) failures 稳定排序：按 path 字典序
// 3) summary.failed 由 failures 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Failures == nil {
		r.Failures = []FileFailure{}
	}
	sort.SliceStable(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
	r.Summary.Failed = len(r.Failures)
}

// OK 表示没有任何文件失败、没有致命错误且目录表（如需）已落盘。
func (r RunReport) OK() bool {
	return r.Fatal == nil && r.PersistError == "" && r.Summary.Failed == 0
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
