//go:build !windows

package fsx

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/renameio/v2"
)

func replaceFile(path string, perm os.FileMode, write func(w io.Writer) error) error {
	// renameio 负责：同目录临时文件、fsync、原子 rename、失败时清理
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm), renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("创建临时文件失败：%w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	bw := bufio.NewWriter(pending)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("原子替换失败：%w", err)
	}
	return nil
}
