package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/logger"
)

// ErrPanic wraps a recovered handler panic.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string { return fmt.Sprintf("handler panic: %v", e.Value) }

// Code returns an error code for log summaries.
func (e *ErrPanic) Code() string { return "PANIC" }

// RecoverMiddleware turns a handler panic into an error so one delivery cannot crash the server.
func RecoverMiddleware(next discord.HandlerFunc) discord.HandlerFunc {
	return func(ctx context.Context, i *discordgo.Interaction) (resp *discordgo.InteractionResponse, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogEvent(ctx, nil, slog.LevelError, "handler.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				resp, err = nil, &ErrPanic{Value: r}
			}
		}()
		return next(ctx, i)
	}
}
