package gologger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.Level(-8)

type ConsoleOptions struct {
	Level  string
	Format string
	Output io.Writer
}

// ConsoleLogger is a glog.Logger backed by log/slog.
type ConsoleLogger struct {
	logger *slog.Logger
	exit   func(code int)
}

func NewConsoleLogger(opts ConsoleOptions) *ConsoleLogger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handler = slog.NewJSONHandler(output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(output, handlerOpts)
	}
	return &ConsoleLogger{logger: slog.New(handler), exit: os.Exit}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *ConsoleLogger) Trace(msg string, args ...any) {
	l.log(context.Background(), LevelTrace, msg, args...)
}

func (l *ConsoleLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

func (l *ConsoleLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

func (l *ConsoleLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

func (l *ConsoleLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

func (l *ConsoleLogger) Fatal(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
	if l != nil && l.exit != nil {
		l.exit(1)
	}
}

func (l *ConsoleLogger) WithContext(context.Context) glog.Logger {
	return l
}

// With returns a child logger carrying args on every record.
func (l *ConsoleLogger) With(args ...any) *ConsoleLogger {
	if l == nil || l.logger == nil {
		return l
	}
	return &ConsoleLogger{logger: l.logger.With(args...), exit: l.exit}
}

func (l *ConsoleLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Log(ctx, level, msg, args...)
}

// ConsoleProvider hands out ConsoleLogger children tagged with the logger name.
type ConsoleProvider struct {
	root *ConsoleLogger
}

func NewConsoleProvider(root *ConsoleLogger) *ConsoleProvider {
	return &ConsoleProvider{root: root}
}

func (p *ConsoleProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return p.root
	}
	return p.root.With("logger", name)
}

var (
	_ glog.Logger         = (*ConsoleLogger)(nil)
	_ glog.LoggerProvider = (*ConsoleProvider)(nil)
)
