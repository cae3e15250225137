package probe

import (
	"errors"
	"fmt"
)

const (
	// StageExec：进程无法启动、被取消或以非零状态退出。
	StageExec = "exec"
	// StageDecode：stdout 不是合法 JSON。
	StageDecode = "decode"
	// StageStructure：JSON 中缺少 format 对象或 streams 数组。
	StageStructure = "structure"
)

// Error 是 probe 阶段的可追溯错误。
// 上层据此把失败归类为 probe_failed，并写入 report。
type Error struct {
	Path  string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ffprobe stage=%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("ffprobe stage=%s path=%q: %v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func withPath(err error, path string) error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Path = path
		return &cp
	}
	return &Error{Path: path, Stage: StageDecode, Err: err}
}
