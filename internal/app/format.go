package app

import (
	"fmt"
	"time"
)

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatSize 以 1024 为进制输出 "%.1f <unit>"（例如 "1.5 MB"）。
// 超过 TB 的值仍以 TB 表示。
func FormatSize(n int64) string {
	v := float64(n)
	for i, u := range sizeUnits {
		if v < 1024 || i == len(sizeUnits)-1 {
			return fmt.Sprintf("%.1f %s", v, u)
		}
		v /= 1024
	}
	return "" // unreachable
}

// FormatDuration 输出 HH:MM:SS（小时可以超过 99）；非正数输出 00:00:00。
// 秒数向下取整。
func FormatDuration(seconds float64) string {
	if !(seconds > 0) {
		return "00:00:00"
	}
	s := int64(seconds)
	h, s := s/3600, s%3600
	m, s := s/60, s%60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// CreateTimeLayout 是 create_time 列的格式（本地时区，精确到分钟）。
const CreateTimeLayout = "2006/01/02 15:04"

func formatCreateTime(t time.Time) string {
	return t.Local().Format(CreateTimeLayout)
}
