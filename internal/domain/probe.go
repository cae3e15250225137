package domain

import "fmt"

// ProbeResult 是 ffprobe 输出折叠后的技术元数据。
// 只在单个工作单元内存活，折叠进 MediaRecord 后即丢弃。
type ProbeResult struct {
	Duration float64 // 秒
	Bitrate  int64   // kbps
	Width    int
	Height   int
	FPS      float64

	AudioBitrate    int64 // kbps
	AudioChannels   int
	AudioSampleRate int // Hz

	Comment string
}

// ResolutionLabel 按短边给出分辨率标签（竖屏视频同样按短边归档）。
func ResolutionLabel(width, height int) string {
	short := min(width, height)
	switch {
	case short >= 2160:
		return "2160p"
	case short >= 1080:
		return "1080p"
	case short >= 720:
		return "720p"
	case short >= 540:
		return "540p"
	case short >= 480:
		return "480p"
	default:
		return fmt.Sprintf("%dp", short)
	}
}
