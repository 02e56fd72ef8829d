package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/questionbot/core/buildinfo"
	coreconfig "github.com/m3rciful/questionbot/core/config"
)

var (
	// L is the base logger. Until InitLogger runs it discards everything, so
	// packages can log from tests without setup.
	L = slog.New(slog.NewTextHandler(io.Discard, nil))

	// HTTP logs the interactions endpoint.
	HTTP = L
	// DC logs outbound Discord REST traffic.
	DC = L
	// DB logs database connectivity.
	DB = L
	// MIG logs schema migrations.
	MIG = L
	// STATE logs state store access.
	STATE = L
	// Wire logs startup wiring.
	Wire = L
)

var (
	levelVar     slog.LevelVar
	debugSampler = newRatioSampler(defaultSampleNum, defaultSampleDen)
	traceAll     bool

	initOnce sync.Once

	closeMu  sync.Mutex
	closed   bool
	sink     *asyncWriter
	sinkFile []io.Closer
)

// InitLogger installs the structured logger described by cfg as the process
// default. Calls after the first are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := resolveSettings(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleNum, s.sampleDen)
		traceAll = traceRequested()

		var outputs []io.Writer
		outputs, sinkFile = s.openSinks()
		sink = newAsyncWriter(outputs, writerQueueBytes)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   sink,
			format:   s.format,
			keyOrder: s.keyOrder,
		}))
		slog.SetDefault(L)

		HTTP = Component("http")
		DC = Component("discord")
		DB = Component("db")
		MIG = Component("db.migrate")
		STATE = Component("state")
		Wire = Component("wire")

		announce(cfg, s)
	})
	return nil
}

func announce(cfg *coreconfig.Config, s settings) {
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", s.profile),
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("flag_backend", cfg.State.FlagBackend),
			slog.String("prompt_backend", cfg.State.PromptBackend),
		)
	}
	LogEvent(context.Background(), L, slog.LevelInfo, "startup", attrs...)
}

// Shutdown drains buffered output and closes the log file. It is safe to call more than once.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if sink != nil {
		errs = append(errs, sink.Flush(), sink.Close())
	}
	for _, c := range sinkFile {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// LogEvent logs attrs under the given event name, resolving the logger from ctx when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug detail should be
// logged. TRACE=1 in the environment logs all of them.
func ShouldSampleDebug() bool {
	return traceAll || debugSampler.Allow()
}

// Background returns a root context for log calls made outside any request.
func Background() context.Context {
	return context.Background()
}
