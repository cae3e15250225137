//go:build !darwin && !windows

package fsx

import (
	"os"
	"time"
)

// CreateTime 在没有可靠 birth time 的平台上使用修改时间。
func CreateTime(fi os.FileInfo) time.Time {
	return fi.ModTime()
}
