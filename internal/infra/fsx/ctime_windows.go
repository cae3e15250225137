//go:build windows

package fsx

import (
	"os"
	"syscall"
	"time"
)

// CreateTime 返回文件的创建时间；拿不到时退回修改时间。
func CreateTime(fi os.FileInfo) time.Time {
	if d, ok := fi.Sys().(*syscall.Win32FileAttributeData); ok {
		return time.Unix(0, d.CreationTime.Nanoseconds())
	}
	return fi.ModTime()
}
