package domain

// Headers 是目录表的固定列顺序（也是 CSV 表头）。
// 顺序即契约：调整顺序等于修改了落盘格式。
var Headers = []string{
	"name",
	"size",
	"duration",
	"collection",
	"cast",
	"tags",
	"path",
	"bitrate",
	"create_time",
	"fps",
	"resolution",
	"audio_bitrate",
	"audio_channels",
	"audio_sampling_rate",
	"comment",
}

// MediaRecord 是目录表中的一行，所有字段都已格式化为落盘字符串。
//
// 约束：
// - Name 在目录表内唯一，是唯一的合并键
// - 创建后不再修改（值类型传递）
type MediaRecord struct {
	Name              string
	Size              string
	Duration          string
	Collection        string
	Cast              string
	Tags              string
	Path              string
	Bitrate           string
	CreateTime        string
	FPS               string
	Resolution        string
	AudioBitrate      string
	AudioChannels     string
	AudioSamplingRate string
	Comment           string
}

// Row 按 Headers 顺序输出一行。
func (r MediaRecord) Row() []string {
	return []string{
		r.Name,
		r.Size,
		r.Duration,
		r.Collection,
		r.Cast,
		r.Tags,
		r.Path,
		r.Bitrate,
		r.CreateTime,
		r.FPS,
		r.Resolution,
		r.AudioBitrate,
		r.AudioChannels,
		r.AudioSamplingRate,
		r.Comment,
	}
}

// RecordFromFields 按列名还原记录；缺失的列视为空串。
func RecordFromFields(get func(column string) string) MediaRecord {
	return MediaRecord{
		Name:              get("name"),
		Size:              get("size"),
		Duration:          get("duration"),
		Collection:        get("collection"),
		Cast:              get("cast"),
		Tags:              get("tags"),
		Path:              get("path"),
		Bitrate:           get("bitrate"),
		CreateTime:        get("create_time"),
		FPS:               get("fps"),
		Resolution:        get("resolution"),
		AudioBitrate:      get("audio_bitrate"),
		AudioChannels:     get("audio_channels"),
		AudioSamplingRate: get("audio_sampling_rate"),
		Comment:           get("comment"),
	}
}
