// Package scan 发现输入路径下的媒体文件。
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/mediacat/internal/domain"
)

// Extensions 是会被收录的扩展名（小写，带点）。匹配时忽略大小写。
var Extensions = []string{".mp4", ".mkv", ".avi", ".mov", ".wmv"}

// PathNotFoundError 表示输入路径不存在；属于运行前的致命错误。
type PathNotFoundError struct {
	Path string
	Err  error
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("输入路径不存在：%q", e.Path)
}

func (e *PathNotFoundError) Unwrap() error { return e.Err }

// walkDir 是 filepath.WalkDir 的测试替身挂点。
var walkDir = filepath.WalkDir

// ScanVideos 扫描 root 下的媒体文件，并应用目录排除规则。
//
// 规则：
// - root 是文件：直接返回该文件（不检查扩展名，由用户显式指定）
// - root 是目录：递归遍历，跳过 excludeDirs（相对 root；绝对路径按绝对路径处理）
// - root 不存在：返回 *PathNotFoundError
// - 子目录/文件读取失败：记录 warn 并跳过，不影响其余文件；只有 root 本身失败才返回错误
// - 输出按 RelPath 排序，Name 为 NFC 规范化的 stem
//
// 注意：扫描阶段不做 stat 之外的任何 IO，也不读文件内容。
func ScanVideos(root string, excludeDirs []string, logger zerolog.Logger) ([]domain.VideoFile, error) {
	root = filepath.Clean(root)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	fi, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &PathNotFoundError{Path: root, Err: err}
		}
		return nil, err
	}

	if !fi.IsDir() {
		return []domain.VideoFile{newVideoFile(root, filepath.Base(root))}, nil
	}

	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.VideoFile, 0, 128)
	err = walkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn().Err(walkErr).Str("path", path).Msg("无法读取，已跳过")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
		if path != root && isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !IsVideo(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, newVideoFile(path, rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// IsVideo 判断 name 的扩展名是否在 Extensions 中（忽略大小写）。
func IsVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, x := range Extensions {
		if ext == x {
			return true
		}
	}
	return false
}

func newVideoFile(abs, rel string) domain.VideoFile {
	return domain.VideoFile{
		AbsPath: abs,
		RelPath: rel,
		Name:    domain.NameOf(abs),
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
