//go:build windows

package fsx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

func replaceFile(path string, perm os.FileMode, write func(w io.Writer) error) error {
	dir, name := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败：%w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
		}
		_ = os.Remove(tmpName)
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	// Windows 要求 rename 前先关闭
	if err := tmp.Close(); err != nil {
		return err
	}
	tmp = nil

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("原子替换失败：%w", err)
	}
	_ = os.Chmod(path, perm)
	return nil
}
