package catalog

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/John-Robertt/mediacat/internal/domain"
	"github.com/John-Robertt/mediacat/internal/infra/fsx"
)

// PersistError 表示目录表写入失败。
type PersistError struct {
	Path string
	Mode domain.Mode
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("写入目录表失败（mode=%s）：%q：%v", e.Mode, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Persist 把 records 写入 path。
//
// - records 为空：什么都不做（overwrite 也不会清空已有文件）
// - append：仅当文件不存在或长度为 0 时写表头，随后追加各行
// - overwrite：表头 + 全部行，临时文件 + rename 整体替换
func Persist(records []domain.MediaRecord, path string, mode domain.Mode) error {
	if len(records) == 0 {
		return nil
	}

	var err error
	switch mode {
	case domain.ModeOverwrite:
		err = fsx.ReplaceFile(path, func(w io.Writer) error {
			return writeRows(w, records, true)
		})
	case domain.ModeAppend, "":
		mode = domain.ModeAppend
		err = fsx.AppendFile(path, func(w io.Writer, empty bool) error {
			return writeRows(w, records, empty)
		})
	default:
		err = fmt.Errorf("未知 mode：%q", mode)
	}
	if err != nil {
		return &PersistError{Path: path, Mode: mode, Err: err}
	}
	return nil
}

func writeRows(w io.Writer, records []domain.MediaRecord, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(domain.Headers); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
