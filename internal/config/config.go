// Package config 负责发现配置文件、读取环境变量，并与 CLI 参数合并为最终配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/John-Robertt/mediacat/internal/domain"
	"github.com/John-Robertt/mediacat/internal/probe"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingInput 表示 CLI/环境变量/配置文件都没有给出 input。
	ErrCodeMissingInput = "config_missing_input"
	// ErrCodeMissingCatalog 表示 CLI/环境变量/配置文件都没有给出 catalog。
	ErrCodeMissingCatalog = "config_missing_catalog"
)

const (
	// DefaultConcurrency 是并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 12
	// MaxConcurrency 是并发上限；超出截断。
	MaxConcurrency = 64
	// DefaultLogFile 是默认的日志文件（相对 cwd）。
	DefaultLogFile = "parse.log"
	// DefaultLogLevel 是默认日志级别。
	DefaultLogLevel = "info"
	// EnvPrefix 是环境变量前缀。
	EnvPrefix = "MEDIACAT_"
)

// FileNames 是在 cwd 下自动发现配置文件时依次尝试的文件名。
var FileNames = []string{"mediacat.yaml", "mediacat.yml", "mediacat.json", "mediacat.toml"}

// CLIArgs 保存命令行参数，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 -n 未指定时不能覆盖配置文件中的 concurrency。
type CLIArgs struct {
	ConfigPath string

	Input   string
	Catalog string
	Tag     string
	TagSet  bool
	Mode    string
	ModeSet bool

	Concurrency    int
	ConcurrencySet bool

	FFprobe      string
	FFprobeSet   bool
	ProbeTimeout time.Duration
	TimeoutSet   bool

	ExcludeDirs []string

	LogFile     string
	LogFileSet  bool
	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应配置文件（yaml/json/toml）与 MEDIACAT_* 环境变量。
// 环境变量覆盖文件中的同名字段。
type FileConfig struct {
	Input        string   `yaml:"input" json:"input" toml:"input" env:"MEDIACAT_INPUT"`
	Catalog      string   `yaml:"catalog" json:"catalog" toml:"catalog" env:"MEDIACAT_CATALOG"`
	Tag          string   `yaml:"tag" json:"tag" toml:"tag" env:"MEDIACAT_TAG"`
	Mode         string   `yaml:"mode" json:"mode" toml:"mode" env:"MEDIACAT_MODE"`
	Concurrency  int      `yaml:"concurrency" json:"concurrency" toml:"concurrency" env:"MEDIACAT_CONCURRENCY"`
	FFprobe      string   `yaml:"ffprobe" json:"ffprobe" toml:"ffprobe" env:"MEDIACAT_FFPROBE"`
	ProbeTimeout string   `yaml:"probe_timeout" json:"probe_timeout" toml:"probe_timeout" env:"MEDIACAT_PROBE_TIMEOUT"`
	ExcludeDirs  []string `yaml:"exclude_dirs" json:"exclude_dirs" toml:"exclude_dirs" env:"MEDIACAT_EXCLUDE_DIRS" env-separator:","`
	LogFile      string   `yaml:"log_file" json:"log_file" toml:"log_file" env:"MEDIACAT_LOG_FILE"`
	LogLevel     string   `yaml:"log_level" json:"log_level" toml:"log_level" env:"MEDIACAT_LOG_LEVEL"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string

	Input   string `validate:"required"` // clean + absolute
	Catalog string `validate:"required"` // clean + absolute
	Tag     string
	Mode    domain.Mode `validate:"oneof=append overwrite"`

	Concurrency  int    `validate:"min=1,max=64"`
	FFprobe      string `validate:"required"`
	ProbeTimeout time.Duration
	ExcludeDirs  []string

	// LogFile 为空表示不写日志文件。
	LogFile  string
	LogLevel string `validate:"oneof=trace debug info warn error fatal panic disabled"`
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeMissingInput:
		return fmt.Sprintf("%s：未指定输入路径（-i / MEDIACAT_INPUT / input）", e.Code)
	case ErrCodeMissingCatalog:
		return fmt.Sprintf("%s：未指定目录表路径（-c / MEDIACAT_CATALOG / catalog）", e.Code)
	case ErrCodeInvalid:
		if e.Path != "" && e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEnvFiles 从 dir 加载 .env.local 与 .env（不存在则忽略）。
// 已存在的环境变量不会被覆盖；.env.local 先加载，因此优先于 .env。
func LoadEnvFiles(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(filepath.Join(dir, name))
	}
}

// LoadEffective 发现并读取配置，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 给了 --config：必须存在且可解析
// 2) 否则依次尝试 <cwd>/FileNames（可选）
//
// 覆盖优先级（固定）：CLI（显式指定）> MEDIACAT_* 环境变量 > 配置文件 > 内置默认
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	cfgPath, err := discover(cwdAbs, cli.ConfigPath)
	if err != nil {
		return EffectiveConfig{}, err
	}

	var fc FileConfig
	if cfgPath != "" {
		// cleanenv：先读文件，再用环境变量覆盖
		if err := cleanenv.ReadConfig(cfgPath, &fc); err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	} else if err := cleanenv.ReadEnv(&fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	eff, err := merge(cwdAbs, cli, fc)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = cfgPath
		}
		return EffectiveConfig{}, err
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

func discover(cwdAbs, explicit string) (string, error) {
	if p := strings.TrimSpace(explicit); p != "" {
		p = absCleanFrom(cwdAbs, p)
		fi, err := os.Stat(p)
		if err != nil {
			return "", &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if fi.IsDir() {
			return "", &Error{Code: ErrCodeInvalid, Path: p, Err: fmt.Errorf("是目录")}
		}
		return p, nil
	}
	for _, name := range FileNames {
		p := filepath.Join(cwdAbs, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	input := pick(cli.Input, cli.Input != "", fc.Input)
	if strings.TrimSpace(input) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingInput}
	}
	catalog := pick(cli.Catalog, cli.Catalog != "", fc.Catalog)
	if strings.TrimSpace(catalog) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingCatalog}
	}

	mode, err := domain.ParseMode(pick(cli.Mode, cli.ModeSet, fc.Mode))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	concurrency = ClampConcurrency(concurrency)

	timeout := time.Duration(0)
	if cli.TimeoutSet {
		timeout = cli.ProbeTimeout
	} else if s := strings.TrimSpace(fc.ProbeTimeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("probe_timeout 无效：%w", err)}
		}
		timeout = d
	}
	if timeout < 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("probe_timeout 不能为负数：%s", timeout)}
	}

	ffprobe := strings.TrimSpace(pick(cli.FFprobe, cli.FFprobeSet, fc.FFprobe))
	if ffprobe == "" {
		ffprobe = probe.DefaultBin
	}

	excludes := fc.ExcludeDirs
	if len(cli.ExcludeDirs) > 0 {
		excludes = cli.ExcludeDirs
	}

	logFile := DefaultLogFile
	if cli.LogFileSet {
		logFile = cli.LogFile
	} else if s := strings.TrimSpace(fc.LogFile); s != "" {
		logFile = s
	}
	// "-" 显式关闭日志文件（便于在配置文件/环境变量中表达）。
	if strings.TrimSpace(logFile) == "-" {
		logFile = ""
	}
	if logFile != "" {
		logFile = absCleanFrom(cwdAbs, logFile)
	}

	logLevel := strings.ToLower(strings.TrimSpace(pick(cli.LogLevel, cli.LogLevelSet, fc.LogLevel)))
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	eff := EffectiveConfig{
		Input:        absCleanFrom(cwdAbs, input),
		Catalog:      absCleanFrom(cwdAbs, catalog),
		Tag:          pick(cli.Tag, cli.TagSet, fc.Tag),
		Mode:         mode,
		Concurrency:  concurrency,
		FFprobe:      ffprobe,
		ProbeTimeout: timeout,
		ExcludeDirs:  append([]string(nil), excludes...),
		LogFile:      logFile,
		LogLevel:     logLevel,
	}
	if err := validate.Struct(eff); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: validationError(err)}
	}
	return eff, nil
}

// ClampConcurrency 把并发数限制在 [1, MaxConcurrency]；0 表示使用默认值。
func ClampConcurrency(n int) int {
	if n == 0 {
		return DefaultConcurrency
	}
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

func pick(cli string, cliSet bool, file string) string {
	if cliSet {
		return cli
	}
	return file
}

var validate = validator.New()

// validationError 把 validator 的错误压缩成一行：字段名 + 规则 + 实际值。
func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return err
	}
	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		parts = append(parts, fmt.Sprintf("%s 无效（%s=%s）：%v", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return errors.New(strings.Join(parts, "；"))
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
