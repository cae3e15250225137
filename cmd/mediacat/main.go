package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/mediacat/internal/app/run"
	"github.com/John-Robertt/mediacat/internal/config"
	"github.com/John-Robertt/mediacat/internal/domain"
	mlog "github.com/John-Robertt/mediacat/internal/log"
	"github.com/John-Robertt/mediacat/internal/watch"
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// streams 把 stdout/stderr 以及它们是否为交互终端集中起来，便于测试替换。
type streams struct {
	out    io.Writer
	errOut io.Writer
	outTTY bool
	errTTY bool
}

func stdio() streams {
	return streams{
		out:    os.Stdout,
		errOut: os.Stderr,
		outTTY: isTTY(os.Stdout),
		errTTY: isTTY(os.Stderr),
	}
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// exitError 携带进程退出码；cobra 只负责把它原样传回 main。
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], stdio())
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, s streams) int {
	root := newRootCmd(s)
	root.SetArgs(args)
	root.SetOut(s.out)
	root.SetErr(s.errOut)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// 未知命令 / 参数解析失败
	fmt.Fprintf(s.errOut, "参数错误：%v\n", err)
	return exitUsage
}

func newRootCmd(s streams) *cobra.Command {
	root := &cobra.Command{
		Use:           "mediacat",
		Short:         "扫描媒体目录，增量维护 CSV 目录表",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(s), newWatchCmd(s), newVersionCmd(s))
	return root
}

// runFlags 是 run/watch 共用的命令行参数。
type runFlags struct {
	configPath   string
	input        string
	catalog      string
	tag          string
	mode         string
	concurrency  int
	ffprobe      string
	probeTimeout time.Duration
	exclude      []string
	logFile      string
	logLevel     string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "配置文件（默认在当前目录查找 mediacat.yaml/.json/.toml）")
	fs.StringVarP(&f.input, "input", "i", "", "输入目录（或单个文件）")
	fs.StringVarP(&f.catalog, "csv", "c", "", "目录表 CSV 路径")
	fs.StringVarP(&f.tag, "tag", "t", "", "写入 tags 列的自定义标签")
	fs.StringVarP(&f.mode, "mode", "m", "a", "a|append（追加）或 w|overwrite（覆盖）")
	fs.IntVarP(&f.concurrency, "num", "n", config.DefaultConcurrency, "并发 worker 数")
	fs.StringVar(&f.ffprobe, "ffprobe", "ffprobe", "ffprobe 可执行文件")
	fs.DurationVar(&f.probeTimeout, "probe-timeout", 0, "单个文件 ffprobe 超时（0 表示不限制）")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "排除的目录（相对输入目录，可重复）")
	fs.StringVar(&f.logFile, "log-file", config.DefaultLogFile, "日志文件（空串表示不写文件）")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "日志级别：debug|info|warn|error")
}

func (f *runFlags) cliArgs(cmd *cobra.Command) config.CLIArgs {
	changed := cmd.Flags().Changed
	return config.CLIArgs{
		ConfigPath:     f.configPath,
		Input:          f.input,
		Catalog:        f.catalog,
		Tag:            f.tag,
		TagSet:         changed("tag"),
		Mode:           f.mode,
		ModeSet:        changed("mode"),
		Concurrency:    f.concurrency,
		ConcurrencySet: changed("num"),
		FFprobe:        f.ffprobe,
		FFprobeSet:     changed("ffprobe"),
		ProbeTimeout:   f.probeTimeout,
		TimeoutSet:     changed("probe-timeout"),
		ExcludeDirs:    f.exclude,
		LogFile:        f.logFile,
		LogFileSet:     changed("log-file"),
		LogLevel:       f.logLevel,
		LogLevelSet:    changed("log-level"),
	}
}

// session 是一次命令调用内共享的运行环境。
type session struct {
	s      streams
	eff    config.EffectiveConfig
	logger zerolog.Logger
	closer io.Closer
}

// open 加载配置并构造 logger；配置错误时已输出 report 并返回 exitError。
func open(cmd *cobra.Command, f *runFlags, s streams) (*session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(s.errOut, "读取当前目录失败：%v\n", err)
		return nil, &exitError{code: exitFailed}
	}
	config.LoadEnvFiles(cwd)

	eff, err := config.LoadEffective(cwd, f.cliArgs(cmd))
	if err != nil {
		emitReport(s, reportForConfigError(err))
		return nil, &exitError{code: exitUsage}
	}

	lc := mlog.Config{
		Level:   eff.LogLevel,
		File:    eff.LogFile,
		Console: s.errOut,
		NoColor: !s.errTTY || os.Getenv("NO_COLOR") != "",
	}
	// 进度条占用 stderr 时，控制台只显示 warn 以上；完整日志仍写入文件。
	if s.errTTY {
		lc.ConsoleLevel = "warn"
	}
	logger, closer, err := mlog.New(lc)
	if err != nil {
		emitReport(s, reportForConfigError(&config.Error{Code: config.ErrCodeInvalid, Err: err}))
		return nil, &exitError{code: exitUsage}
	}
	return &session{s: s, eff: eff, logger: logger, closer: closer}, nil
}

func (ss *session) close() { _ = ss.closer.Close() }

func (ss *session) runOnce(ctx context.Context, eff config.EffectiveConfig) domain.RunReport {
	var obs run.Observer
	if ss.s.errTTY {
		obs = newProgressUI(ss.s.errOut)
	}
	rr := run.ExecuteWithObserver(ctx, eff, run.Deps{Logger: mlog.WithComponent(ss.logger, "run")}, obs)
	emitReport(ss.s, rr)
	return rr
}

func newRunCmd(s streams) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "扫描一次并更新目录表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ss, err := open(cmd, f, s)
			if err != nil {
				return err
			}
			defer ss.close()

			rr := ss.runOnce(cmd.Context(), ss.eff)
			if !rr.OK() {
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newWatchCmd(s streams) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "先运行一次，然后在出现新媒体文件时自动追加",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ss, err := open(cmd, f, s)
			if err != nil {
				return err
			}
			defer ss.close()
			ctx := cmd.Context()

			rr := ss.runOnce(ctx, ss.eff)
			if rr.Fatal != nil {
				return &exitError{code: exitFailed}
			}

			// 之后的每次触发都是追加：已收录的文件不会重复处理。
			next := ss.eff
			next.Mode = domain.ModeAppend
			err = watch.Run(ctx, next.Input, mlog.WithComponent(ss.logger, "watch"), func(ctx context.Context) error {
				rr := ss.runOnce(ctx, next)
				if !rr.OK() {
					return fmt.Errorf("本次运行存在失败：failed=%d persist_error=%q", rr.Summary.Failed, rr.PersistError)
				}
				return nil
			})
			if err != nil {
				ss.logger.Error().Err(err).Msg("监视失败")
				return &exitError{code: exitFailed}
			}
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newVersionCmd(s streams) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(s.out, "mediacat %s\n", version)
		},
	}
}

func emitReport(s streams, rr domain.RunReport) {
	if s.outTTY {
		printSummary(s.out, rr, true)
		printFailures(s.errOut, rr)
		return
	}

	// stdout 非 TTY：stdout 每次运行只输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(s.out)
	_ = enc.Encode(rr)
	printSummary(s.errOut, rr, s.errTTY)
}

func printSummary(w io.Writer, rr domain.RunReport, colored bool) {
	c := color.New(color.FgHiGreen)
	switch {
	case rr.Fatal != nil || rr.PersistError != "":
		c = color.New(color.FgHiRed, color.Bold)
	case rr.Summary.Failed > 0:
		c = color.New(color.FgYellow)
	}
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	c.Fprintf(w, "完成：succeeded=%d failed=%d skipped=%d duplicates=%d written=%d\n",
		rr.Summary.Succeeded, rr.Summary.Failed, rr.Summary.Skipped, rr.Summary.Duplicates, rr.Summary.Written,
	)
}

func printFailures(w io.Writer, rr domain.RunReport) {
	if rr.Fatal != nil {
		fmt.Fprintf(w, "%s %s: %s\n", rr.Fatal.Path, rr.Fatal.ErrorCode, rr.Fatal.ErrorMsg)
	}
	for _, f := range rr.Failures {
		fmt.Fprintf(w, "%s %s: %s\n", f.Path, f.ErrorCode, f.ErrorMsg)
	}
	if rr.PersistError != "" {
		fmt.Fprintf(w, "%s %s: %s\n", rr.Catalog, domain.ErrCodePersistFailed, rr.PersistError)
	}
}

func reportForConfigError(err error) domain.RunReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if strings.TrimSpace(code) == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		StartedAt:  now,
		FinishedAt: now,
		Fatal: &domain.FileFailure{
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		},
	}
	rr.Finalize()
	return rr
}
