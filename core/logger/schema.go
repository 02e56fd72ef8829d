package logger

import "strings"

// Level names as they appear in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// vocabulary maps accepted spellings to the canonical value of an enum field.
type vocabulary map[string]string

func (v vocabulary) lookup(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	canon, ok := v[key]
	if !ok {
		return key, false
	}
	return canon, true
}

var (
	levelNames = vocabulary{
		"debug": LevelDebug, "info": LevelInfo,
		"warn": LevelWarn, "warning": LevelWarn,
		"error": LevelError,
	}
	statusNames = vocabulary{
		"ok": "ok", "fail": "fail", "error": "fail", "skip": "skip",
		"rejected": "rejected", "cancelled": "cancelled",
	}
	// outcome is how a handler finished from the caller's point of view.
	outcomeNames = vocabulary{
		"ok": "ok", "fail": "fail", "rejected": "rejected", "cancelled": "cancelled",
	}
)

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if canon, ok := levelNames.lookup(level); ok {
		return canon
	}
	return strings.ToUpper(level)
}

// normalizeStatus keeps unknown statuses lowercased and reports whether it was recognised.
func normalizeStatus(status string) (string, bool) {
	return statusNames.lookup(status)
}

func normalizeOutcome(outcome string) (string, bool) {
	return outcomeNames.lookup(outcome)
}

// defaultKeyOrder puts the fields an operator scans for first; unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status", "rid", "ts_unix_nano",
	"interaction_id", "interaction_type", "guild_id", "user_id", "handler",
	"op", "outcome", "duration_ms",
	"channel_id", "message_id", "prompt_id", "open", "state", "backend",
	"job_id", "queue", "workers",
	"listen", "http_code", "db", "host", "port",
	"err", "err_code", "cause", "attempts", "backoff_ms",
}
