package middleware

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/idgen"
	"github.com/m3rciful/questionbot/core/logger"
)

// LoggerMiddleware attaches interaction metadata to ctx and logs a sampled receipt line.
// A rid already set by the HTTP layer is kept.
func LoggerMiddleware(next discord.HandlerFunc) discord.HandlerFunc {
	return func(ctx context.Context, i *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
		rid := logger.RIDFrom(ctx)
		if rid == "" {
			rid = idgen.MustGenerate("")
			ctx = logger.WithRID(ctx, rid)
		}
		ctx = logger.WithInteractionMeta(ctx, i.ID, i.GuildID, discord.InvokerID(i))
		ctx = logger.WithLogger(ctx, logger.Component("discord"))

		if logger.ShouldSampleDebug() {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("interaction_type", i.Type.String()),
			}
			if i.ChannelID != "" {
				attrs = append(attrs, slog.String("channel_id", i.ChannelID))
			}
			logger.LogEvent(ctx, nil, slog.LevelDebug, "interaction.received", attrs...)
		}
		return next(ctx, i)
	}
}
