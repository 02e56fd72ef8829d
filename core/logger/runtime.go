package logger

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
)

type ctxKey uint8

const (
	keyLogger ctxKey = iota
	keyRID
	keyInteraction
	keyGuild
	keyUser
	keyHandler
)

func withString(ctx context.Context, key ctxKey, val string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if val == "" {
		return ctx
	}
	return context.WithValue(ctx, key, val)
}

func stringFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

// WithLogger carries log in ctx; FromContext returns it.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, keyLogger, log)
}

// FromContext returns the logger stored by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(keyLogger).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context { return withString(ctx, keyRID, rid) }

// RIDFrom returns the request correlation id.
func RIDFrom(ctx context.Context) string { return stringFrom(ctx, keyRID) }

// WithInteractionMeta attaches the identifiers of an inbound interaction.
// DM interactions have no guild and carry no guild_id.
func WithInteractionMeta(ctx context.Context, interactionID, guildID, userID string) context.Context {
	ctx = withString(ctx, keyInteraction, interactionID)
	ctx = withString(ctx, keyGuild, guildID)
	return withString(ctx, keyUser, userID)
}

func InteractionIDFrom(ctx context.Context) string { return stringFrom(ctx, keyInteraction) }
func GuildIDFrom(ctx context.Context) string       { return stringFrom(ctx, keyGuild) }
func UserIDFrom(ctx context.Context) string        { return stringFrom(ctx, keyUser) }

// WithHandler names the interaction handler serving ctx, e.g. "command:questions".
func WithHandler(ctx context.Context, handler string) context.Context {
	return withString(ctx, keyHandler, handler)
}

func HandlerFrom(ctx context.Context) string { return stringFrom(ctx, keyHandler) }

// Sanitize drops control and format runes other than tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	out := Sanitize(s)
	n := 0
	for i := range out {
		if n == max {
			return out[:i]
		}
		n++
	}
	return out
}
