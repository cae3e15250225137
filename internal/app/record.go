package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/mediacat/internal/domain"
	"github.com/John-Robertt/mediacat/internal/infra/fsx"
	"github.com/John-Robertt/mediacat/internal/nameparse"
	"github.com/John-Robertt/mediacat/internal/probe"
)

// StatError 表示无法读取文件元数据（大小/创建时间）。单文件失败，不影响其他文件。
type StatError struct {
	Path string
	Err  error
}

func (e *StatError) Error() string {
	return fmt.Sprintf("读取文件信息失败：%q：%v", e.Path, e.Err)
}

func (e *StatError) Unwrap() error { return e.Err }

// RecordBuilder 把单个文件加工成一条 MediaRecord（即一个工作单元）。
//
// 约束：
// - 可被多个 worker 并发调用（只读字段，不持有可变状态）
// - 失败返回 *StatError 或 *probe.Error，不 panic
type RecordBuilder struct {
	Tag    string
	Prober probe.Prober

	// Stat/CreateTime 可替换，便于测试；为空时使用 os.Stat / fsx.CreateTime。
	Stat       func(path string) (os.FileInfo, error)
	CreateTime func(fi os.FileInfo) time.Time
}

// SourceTag 按文件名判断来源标签：包含 PRT（忽略大小写）为 PRT，否则为 XC。
func SourceTag(name string) string {
	if strings.Contains(strings.ToUpper(name), "PRT") {
		return "PRT"
	}
	return "XC"
}

func (b RecordBuilder) Build(ctx context.Context, f domain.VideoFile) (domain.MediaRecord, error) {
	stat := b.Stat
	if stat == nil {
		stat = os.Stat
	}
	ctime := b.CreateTime
	if ctime == nil {
		ctime = fsx.CreateTime
	}

	fi, err := stat(f.AbsPath)
	if err != nil {
		return domain.MediaRecord{}, &StatError{Path: f.AbsPath, Err: err}
	}

	name := f.Name
	if name == "" {
		name = domain.NameOf(f.AbsPath)
	}
	parsed := nameparse.Parse(nameparse.Normalize(name))

	res, err := b.Prober.Probe(ctx, f.AbsPath)
	if err != nil {
		return domain.MediaRecord{}, err
	}

	rec := domain.MediaRecord{
		Name:          name,
		Size:          FormatSize(fi.Size()),
		Duration:      FormatDuration(res.Duration),
		Collection:    parsed.Collection,
		Cast:          parsed.Cast,
		Tags:          fmt.Sprintf("%s, %s, %s", b.Tag, domain.ResolutionLabel(res.Width, res.Height), SourceTag(name)),
		Path:          f.AbsPath,
		Bitrate:       fmt.Sprintf("%dkbps", res.Bitrate),
		CreateTime:    formatCreateTime(ctime(fi)),
		FPS:           fmt.Sprintf("%.2f fps", res.FPS),
		Resolution:    fmt.Sprintf("%dx%d", res.Width, res.Height),
		AudioChannels: strconv.Itoa(res.AudioChannels),
		Comment:       res.Comment,
	}
	if res.AudioBitrate != 0 {
		rec.AudioBitrate = fmt.Sprintf("%dkbps", res.AudioBitrate)
	}
	if res.AudioSampleRate != 0 {
		rec.AudioSamplingRate = fmt.Sprintf("%.1f kHz", float64(res.AudioSampleRate)/1000)
	}
	return rec, nil
}
