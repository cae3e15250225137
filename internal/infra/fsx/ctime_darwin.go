//go:build darwin

package fsx

import (
	"os"
	"syscall"
	"time"
)

// CreateTime 返回文件的创建（birth）时间；拿不到时退回修改时间。
func CreateTime(fi os.FileInfo) time.Time {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Birthtimespec.Unix())
	}
	return fi.ModTime()
}
