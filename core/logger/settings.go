package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	coreconfig "github.com/m3rciful/questionbot/core/config"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
	writerQueueBytes = 64 * 1024
)

// settings is the logging configuration after defaults are applied.
type settings struct {
	format    logFormat
	level     slog.Level
	keyOrder  []string
	sampleNum int
	sampleDen int
	profile   string
	filePath  string
}

func resolveSettings(cfg *coreconfig.Config) settings {
	s := settings{
		format:    formatJSON,
		level:     slog.LevelInfo,
		keyOrder:  append([]string(nil), defaultKeyOrder...),
		sampleNum: defaultSampleNum,
		sampleDen: defaultSampleDen,
		profile:   "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "json":
	case "kv", "text", "pretty":
		s.format = formatKV
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	if lvl, ok := levelByName[strings.ToLower(strings.TrimSpace(lc.Level))]; ok {
		s.level = lvl
	}
	if order := splitKeys(lc.KeysOrder); len(order) > 0 {
		s.keyOrder = order
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		switch num, den := parseRatioSpec(spec); {
		case num == 0 && den == 0:
			s.sampleNum, s.sampleDen = 0, 0
		case num > 0 && den > 0:
			s.sampleNum, s.sampleDen = num, den
		}
	}
	if dir, file := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.File); dir != "" && file != "" {
		s.filePath = filepath.Join(dir, file)
	}
	return s
}

var levelByName = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// splitKeys parses a comma separated key order; "default" keeps the built-in one.
func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// openSinks returns stdout plus the optional log file. A file that cannot be
// opened is reported and skipped; logging to stdout still works.
func (s settings) openSinks() ([]io.Writer, []io.Closer) {
	sinks := []io.Writer{os.Stdout}
	if s.filePath == "" {
		return sinks, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logger: create log dir: %v\n", err)
		return sinks, nil
	}
	f, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: open log file: %v\n", err)
		return sinks, nil
	}
	return append(sinks, f), []io.Closer{f}
}

func traceRequested() bool {
	for _, name := range []string{"TRACE", "LOG_TRACE"} {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}
