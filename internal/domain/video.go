package domain

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// VideoFile 描述一次扫描得到的媒体文件（扫描阶段只拿路径，stat 留给工作单元）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - Name 是目录表主键：去掉扩展名的文件名，统一为 NFC
type VideoFile struct {
	AbsPath string
	RelPath string
	Name    string // filename without ext (NFC)
}

// NameOf 返回路径对应的目录表主键。
//
// macOS 的文件系统会把文件名存成 NFD，而 CSV 中通常是 NFC；
// 不统一的话同一个文件会被当成“新文件”反复处理。
func NameOf(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return norm.NFC.String(stem)
}

// NormalizeName 对已经是 stem 的字符串做同样的规范化（用于读取 CSV 中的 name 列）。
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}
