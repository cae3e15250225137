// Package planner 根据已有目录表计算本次运行的增量工作集。
package planner

import (
	"sort"

	"github.com/John-Robertt/mediacat/internal/domain"
)

// Index 是 planner 需要的目录表视图（*catalog.Catalog 满足该接口）。
type Index interface {
	Has(name string) bool
}

// Plan 计算增量工作集（纯函数：不读文件、不修改入参）。
//
// 规则：
// - append：跳过 existing 中已有 name 的文件
// - overwrite：所有文件都进入工作集（existing 忽略，可为 nil）
// - 两种模式都按 name 去重：按 AbsPath 排序后第一个文件胜出，其余记入 Duplicates
func Plan(files []domain.VideoFile, existing Index, mode domain.Mode) domain.Plan {
	if mode == "" {
		mode = domain.ModeAppend
	}

	sorted := make([]domain.VideoFile, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AbsPath < sorted[j].AbsPath })

	p := domain.Plan{Mode: mode, Work: make([]domain.VideoFile, 0, len(sorted))}
	seen := make(map[string]struct{}, len(sorted))
	for _, f := range sorted {
		if mode == domain.ModeAppend && existing != nil && existing.Has(f.Name) {
			p.Skipped++
			continue
		}
		if _, dup := seen[f.Name]; dup {
			p.Duplicates = append(p.Duplicates, f)
			continue
		}
		seen[f.Name] = struct{}{}
		p.Work = append(p.Work, f)
	}
	return p
}
