package logger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as single-line JSON or key=value text
// with the configured keys first.
type structuredHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &structuredHandler{cfg: cfg, rank: rank}
}

// Enabled implements slog.Handler.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle implements slog.Handler.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	e := newEntry(16)
	ts := r.Time.UTC()
	e.set("ts", ts.Truncate(time.Millisecond).Format(timeFormatMillis))
	e.set("level", normalizeLevel(r.Level.String()))
	if h.cfg.format == formatJSON {
		e.set("ts_unix_nano", ts.UnixNano())
	}
	for _, a := range h.attrs {
		addAttr(e, "", a)
	}
	group := strings.TrimSuffix(h.prefix, ".")
	r.Attrs(func(a slog.Attr) bool {
		addAttr(e, group, a)
		return true
	})
	if ctx != nil {
		e.setDefault("rid", RIDFrom(ctx))
		e.setDefault("interaction_id", InteractionIDFrom(ctx))
		e.setDefault("guild_id", GuildIDFrom(ctx))
		e.setDefault("user_id", UserIDFrom(ctx))
		e.setDefault("handler", HandlerFrom(ctx))
	}
	if e.str("event") == "" {
		event := r.Message
		if event == "" {
			event = "unknown"
		}
		e.set("event", event)
	}
	if e.str("component") == "" {
		e.set("component", "app")
	}
	normalizeEnums(e)

	line, err := encode(e, h.cfg.format, h.rank)
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(line)
}

// WithAttrs implements slog.Handler.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.qualify(a))
	}
	return &clone
}

// WithGroup implements slog.Handler. Groups become dotted key prefixes.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// qualify binds a pre-set attribute to the group prefix active when it was added.
func (h *structuredHandler) qualify(a slog.Attr) slog.Attr {
	if h.prefix == "" || a.Key == "" {
		return a
	}
	a.Key = h.prefix + a.Key
	return a
}

func addAttr(e *entry, group string, a slog.Attr) {
	walkAttr(group, a, func(key string, v slog.Value) {
		if key, val, ok := fieldValue(key, v); ok {
			e.set(key, val)
		}
	})
}

func walkAttr(prefix string, a slog.Attr, fn func(string, slog.Value)) {
	key := a.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		if key != "" {
			fn(key, v)
		}
		return
	}
	for _, child := range v.Group() {
		walkAttr(key, child, fn)
	}
}

// fieldValue converts a slog value to what the encoders emit. Empty strings
// and nil values are dropped; durations become integer milliseconds.
func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return nonEmpty(key, strings.TrimSpace(v.String()))
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return nonEmpty(key, x.Error())
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return nonEmpty(key, x.String())
	case string:
		return nonEmpty(key, strings.TrimSpace(x))
	default:
		return nonEmpty(key, fmt.Sprint(x))
	}
}

func nonEmpty(key, s string) (string, any, bool) {
	return key, s, s != ""
}

// durationKey suffixes duration attributes with _ms since values are emitted as milliseconds.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func normalizeEnums(e *entry) {
	if s := e.str("status"); s != "" {
		normalized, _ := normalizeStatus(s)
		e.set("status", normalized)
	}
	if o := e.str("outcome"); o != "" {
		if normalized, ok := normalizeOutcome(o); ok {
			e.set("outcome", normalized)
		} else {
			e.del("outcome")
		}
	}
}
