package probe

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/John-Robertt/mediacat/internal/domain"
)

// 只声明会用到的字段；ffprobe 其余输出一律忽略。
type document struct {
	Format  *formatSection   `json:"format"`
	Streams *[]streamSection `json:"streams"`
}

type formatSection struct {
	Duration field            `json:"duration"`
	BitRate  field            `json:"bit_rate"`
	Tags     map[string]field `json:"tags"`
}

type streamSection struct {
	CodecType  string `json:"codec_type"`
	Width      field  `json:"width"`
	Height     field  `json:"height"`
	RFrameRate field  `json:"r_frame_rate"`
	BitRate    field  `json:"bit_rate"`
	Channels   field  `json:"channels"`
	SampleRate field  `json:"sample_rate"`
}

// field 同时接受 JSON 字符串与数字：ffprobe 不同版本对同一字段的类型并不稳定。
type field string

func (f *field) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = field(s)
	case b[0] == '{' || b[0] == '[':
		// 非标量：当作缺失
		*f = ""
	default:
		*f = field(b)
	}
	return nil
}

func (f field) float() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(f)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (f field) int() int64 {
	s := strings.TrimSpace(string(f))
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	// "48000.000" 这类写法
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return int64(v)
	}
	return 0
}

// Decode 把 ffprobe 的 JSON 输出解析为 ProbeResult。
//
// 约束：
// - 纯函数，不做 IO
// - format 对象与 streams 数组必须存在，否则返回 StageStructure
// - 数值字段缺失或格式错误时取 0（不视为失败）
// - 码率换算为 kbps（整除 1000）
// - 视频/音频各取第一条对应流；没有则相关字段为 0
func Decode(out []byte) (domain.ProbeResult, error) {
	var doc document
	if err := json.Unmarshal(out, &doc); err != nil {
		return domain.ProbeResult{}, &Error{Stage: StageDecode, Err: err}
	}
	if doc.Format == nil {
		return domain.ProbeResult{}, &Error{Stage: StageStructure, Err: errors.New("缺少 format")}
	}
	if doc.Streams == nil {
		return domain.ProbeResult{}, &Error{Stage: StageStructure, Err: errors.New("缺少 streams")}
	}

	res := domain.ProbeResult{
		Duration: doc.Format.Duration.float(),
		Bitrate:  doc.Format.BitRate.int() / 1000,
		Comment:  tagValue(doc.Format.Tags, "comment"),
	}

	var video, audio *streamSection
	for i := range *doc.Streams {
		s := &(*doc.Streams)[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}

	if video != nil {
		res.Width = int(video.Width.int())
		res.Height = int(video.Height.int())
		res.FPS = ParseFrameRate(string(video.RFrameRate))
	}
	if audio != nil {
		res.AudioBitrate = audio.BitRate.int() / 1000
		res.AudioChannels = int(audio.Channels.int())
		res.AudioSampleRate = int(audio.SampleRate.int())
	}
	return res, nil
}

// ParseFrameRate 解析 "num/den" 形式的有理帧率；
// 单独的整数按 num/1 处理；缺失、格式错误或分母为 0 时返回 0。
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		den = "1"
	}
	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
	if err != nil || d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// tagValue 先精确匹配 key，再忽略大小写匹配（Matroska 常见大写 COMMENT）。
func tagValue(tags map[string]field, key string) string {
	if v, ok := tags[key]; ok {
		return string(v)
	}
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return string(v)
		}
	}
	return ""
}
