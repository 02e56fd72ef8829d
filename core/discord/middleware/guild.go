package middleware

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
)

// GuildOnlyMessage is the reply for guild-scoped interactions sent from a DM.
const GuildOnlyMessage = "This command can only be used in a server"

// GuildOnly rejects interactions that carry no guild member.
func GuildOnly(next discord.HandlerFunc) discord.HandlerFunc {
	return func(ctx context.Context, i *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
		if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
			return discord.Reply(GuildOnlyMessage), nil
		}
		return next(ctx, i)
	}
}
