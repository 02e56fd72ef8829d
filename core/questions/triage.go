package questions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/logger"
)

// HandleTriage relabels a posted question from a message command.
func (s *Service) HandleTriage(ctx context.Context, i *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
	data := i.ApplicationCommandData()
	var target *discordgo.Message
	if data.Resolved != nil {
		target = data.Resolved.Messages[data.TargetID]
	}
	if target == nil || target.WebhookID == "" || target.WebhookID != s.platform.WebhookID() {
		return discord.Reply(msgNotOurMessage), nil
	}

	next := FromCommandName(data.Name)
	var (
		prev        QuestionState
		known       bool
		description string
	)
	if len(target.Embeds) > 0 && target.Embeds[0] != nil {
		prev, known = FromTitle(target.Embeds[0].Title)
		description = target.Embeds[0].Description
	}

	embeds := []*discordgo.MessageEmbed{{
		Title:       next.Title(),
		Description: description,
		Color:       next.Color(),
	}}
	if _, err := s.platform.EditWebhookMessage(ctx, target.ID, &discordgo.WebhookEdit{Embeds: &embeds}); err != nil {
		return discord.Reply(fmt.Sprintf(msgMarkFailed, next, discord.StatusText(err))), nil
	}

	s.tasks.Go(ctx, "triage.ack_delete", func(ctx context.Context) error {
		return s.platform.DeleteOriginalResponse(ctx, i)
	})
	if next == NeedsMoreInfo && (!known || prev != NeedsMoreInfo) {
		if threadID := threadOf(target); threadID != "" {
			s.tasks.Go(ctx, "triage.more_info", func(ctx context.Context) error {
				_, err := s.platform.SendMessage(ctx, threadID, &discordgo.MessageSend{Content: msgMoreInfo})
				return err
			})
		}
	}

	logger.LogEvent(ctx, s.log, slog.LevelInfo, "questions.triaged",
		slog.String("status", "ok"),
		slog.String("message_id", target.ID),
		slog.String("state", next.String()),
	)
	return discord.Reply(msgDone), nil
}

// threadOf returns the thread rooted at m, whose id equals the message id.
func threadOf(m *discordgo.Message) string {
	if m.Thread != nil && m.Thread.ID != "" {
		return m.Thread.ID
	}
	if m.Flags&discordgo.MessageFlagsHasThread != 0 {
		return m.ID
	}
	return ""
}
