package domain

import (
	"fmt"
	"strings"
)

// Mode 决定本次运行如何对待已有目录表。
type Mode string

const (
	// ModeAppend 跳过已收录的 name，只追加新记录（默认）。
	ModeAppend Mode = "append"
	// ModeOverwrite 重新处理全部文件并整体替换目录表。
	ModeOverwrite Mode = "overwrite"
)

// ParseMode 接受 append/overwrite 以及历史上的短写 a/w。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a", "append":
		return ModeAppend, nil
	case "w", "overwrite":
		return ModeOverwrite, nil
	default:
		return "", fmt.Errorf("mode 只能是 a|append 或 w|overwrite，实际是 %q", s)
	}
}

func (m Mode) String() string { return string(m) }
