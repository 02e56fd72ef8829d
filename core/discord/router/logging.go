package router

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/logger"
)

// summary is the single handler.handled line written per interaction.
type summary struct {
	handler string
	start   time.Time
	status  string
	outcome string
	err     error
	extra   []slog.Attr
}

func (s summary) log(ctx context.Context) {
	status, outcome := s.status, s.outcome
	if status == "" {
		status = logger.Status(s.err)
	}
	if outcome == "" {
		outcome = logger.Status(s.err)
	}
	level := slog.LevelInfo
	attrs := make([]slog.Attr, 0, 6+len(s.extra))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", outcome),
		slog.Duration("duration", logger.Took(s.start)),
	)
	if s.err != nil {
		level = slog.LevelError
		attrs = append(attrs, logger.ErrAttr(s.err), slog.String("err_code", deriveErrorCode(s.err)))
	}
	logger.LogEvent(ctx, logger.Component("discord"), level, "handler.handled", append(attrs, s.extra...)...)
}

func handleWithSummary(ctx context.Context, i *discordgo.Interaction, handlerName string, start time.Time, fn func(context.Context) error) error {
	err := fn(logger.WithHandler(ctx, handlerName))
	ctx = logger.WithInteractionMeta(ctx, i.ID, i.GuildID, discord.InvokerID(i))
	summary{handler: handlerName, start: start, err: err}.log(ctx)
	return err
}

// normalizeHandlerName turns a command or custom id into a log-friendly handler suffix.
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

// deriveErrorCode prefers an explicit Code() anywhere in the chain, then the error's type name.
func deriveErrorCode(err error) string {
	var c interface{ Code() string }
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.Join(strings.Fields(code), "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
