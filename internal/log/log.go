// Package log 构造运行期使用的 zerolog.Logger（控制台 + 可选的日志文件）。
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config 描述一次运行的日志输出。
type Config struct {
	// Level 是整体最低级别（默认 info）。
	Level string
	// ConsoleLevel 只约束控制台输出，可以比 Level 更高（例如显示进度条时只显示 warn 以上）。
	ConsoleLevel string
	// File 为空表示不写日志文件；否则以 JSON lines 追加写入。
	File string
	// Console 为 nil 表示不输出到控制台。
	Console io.Writer
	NoColor bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New 按 cfg 构造 logger。返回的 io.Closer 负责关闭日志文件（没有文件时为 no-op）。
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	writers := make([]io.Writer, 0, 2)
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nopCloser{}, err
		}
		f, err := os.OpenFile(cfg.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("打开日志文件失败：%w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	if cfg.Console != nil {
		cw := zerolog.ConsoleWriter{
			Out:        cfg.Console,
			NoColor:    cfg.NoColor,
			TimeFormat: time.TimeOnly,
			PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
		}
		var w io.Writer = cw
		if cfg.ConsoleLevel != "" {
			cl, err := ParseLevel(cfg.ConsoleLevel)
			if err != nil {
				_ = closer.Close()
				return zerolog.Nop(), nopCloser{}, err
			}
			w = &zerolog.FilteredLevelWriter{Writer: zerolog.LevelWriterAdapter{Writer: cw}, Level: cl}
		}
		writers = append(writers, w)
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

// ParseLevel 解析日志级别；空串视为 info。
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("无效的日志级别：%q", s)
	}
	return l, nil
}

// WithComponent 返回带 component 字段的子 logger。
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
