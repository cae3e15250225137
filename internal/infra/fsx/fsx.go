// Package fsx 封装目录表文件的落盘细节：原子覆盖、追加写、文件创建时间。
package fsx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

// checkTarget 确认 path 不存在或是普通文件；返回 path 当前的大小（不存在为 0）。
func checkTarget(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if fi.IsDir() {
		return 0, &PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return 0, &PathTypeConflictError{Path: path, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	return fi.Size(), nil
}

// ReplaceFile 以“同目录临时文件 + fsync + rename”的方式整体覆盖 path。
//
// write 失败时目标文件保持原样，临时文件被清理。
// Windows 上 rename 覆盖为 best-effort。
func ReplaceFile(path string, write func(w io.Writer) error) error {
	path = filepath.Clean(path)
	if _, err := checkTarget(path); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := replaceFile(path, 0o644, write); err != nil {
		return err
	}
	// 目录 fsync：best-effort（不同平台/文件系统的语义差异很大）。
	_ = syncDirBestEffort(dir)
	return nil
}

// AppendFile 以追加方式打开 path（不存在则创建）并调用 write。
// empty 表示打开前文件不存在或长度为 0，调用方据此决定是否写表头。
func AppendFile(path string, write func(w io.Writer, empty bool) error) (err error) {
	path = filepath.Clean(path)
	size, err := checkTarget(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw, size == 0); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
