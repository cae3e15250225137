package domain

// Plan 是一次运行的增量工作集（由 planner 根据已有目录表计算）。
type Plan struct {
	Mode Mode

	// Work 是需要派发给 worker pool 的文件（已按 name 去重）。
	Work []VideoFile

	// Skipped 是 append 模式下因已收录而跳过的文件数。
	Skipped int

	// Duplicates 是同一批次内与更早文件重名而被丢弃的文件。
	Duplicates []VideoFile
}
