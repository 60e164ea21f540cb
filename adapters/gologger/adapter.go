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

// LevelTrace sits below slog's debug level.
const LevelTrace = slog.Level(-8)

// SlogLogger is a glog.Logger writing through log/slog.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
	exit   func(int)
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger, ctx: context.Background(), exit: os.Exit}
}

func (l *SlogLogger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args...) }
func (l *SlogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *SlogLogger) Fatal(msg string, args ...any) {
	l.log(slog.LevelError, msg, append(args, "fatal", true)...)
	if l.exit != nil {
		l.exit(1)
	}
}

func (l *SlogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	next := *l
	next.ctx = ctx
	return &next
}

func (l *SlogLogger) log(level slog.Level, msg string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Log(l.ctx, level, msg, args...)
}

// SlogProvider hands out named SlogLoggers sharing one handler.
type SlogProvider struct {
	base *slog.Logger
}

func NewSlogProvider(handler slog.Handler) *SlogProvider {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return &SlogProvider{base: slog.New(handler)}
}

func (p *SlogProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.base == nil {
		return glog.Nop()
	}
	logger := p.base
	if name = strings.TrimSpace(name); name != "" {
		logger = logger.With("logger", name)
	}
	return NewSlogLogger(logger)
}

// NewProvider builds a provider writing JSON or text records to out at the
// given level name (trace, debug, info, warn, error).
func NewProvider(out io.Writer, level string, jsonFormat bool) *SlogProvider {
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if jsonFormat {
		return NewSlogProvider(slog.NewJSONHandler(out, opts))
	}
	return NewSlogProvider(slog.NewTextHandler(out, opts))
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

var (
	_ glog.Logger         = (*SlogLogger)(nil)
	_ glog.LoggerProvider = (*SlogProvider)(nil)
)
