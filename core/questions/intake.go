package questions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/logger"
	"github.com/m3rciful/questionbot/core/state"
)

// HandleAskButton opens the ask modal.
func (s *Service) HandleAskButton(context.Context, *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
	return discord.Modal(AskModal()), nil
}

// HandleAskModal posts a submitted question, opens its thread and rotates the prompt.
func (s *Service) HandleAskModal(ctx context.Context, i *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
	values := modalValues(i.ModalSubmitData())
	reply, err := s.Submit(ctx, Submission{
		GuildID:  i.GuildID,
		Member:   i.Member,
		Question: values[QuestionInput],
		Hint:     values[ThreadNameInput],
	})
	if err != nil {
		return nil, err
	}
	return discord.Reply(reply), nil
}

// Submission is a question entered through the ask modal.
type Submission struct {
	GuildID  string
	Member   *discordgo.Member
	Question string
	Hint     string
}

// Submit runs the intake pipeline and returns the reply for the submitter.
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	flag, err := s.store.LoadFlag(ctx)
	if err != nil {
		return "", err
	}
	if !flag.Open {
		return msgClosed, nil
	}
	if strings.TrimSpace(sub.Question) == "" {
		return msgEmptyQuestion, nil
	}

	params := &discordgo.WebhookParams{
		Username: displayName(sub.Member),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       Unanswered.Title(),
			Description: sub.Question,
			Color:       Unanswered.Color(),
		}},
	}
	if sub.Member != nil && sub.Member.User != nil {
		params.AvatarURL = sub.Member.AvatarURL("")
	}
	msg, err := s.platform.ExecuteWebhook(ctx, params)
	if err != nil {
		return fmt.Sprintf(msgQuestionFailed, discord.StatusText(err)), nil
	}

	userID := ""
	if sub.Member != nil && sub.Member.User != nil {
		userID = sub.Member.User.ID
	}
	name := ThreadName(sub.Hint, sub.Question)
	s.tasks.Go(ctx, "intake.thread", func(ctx context.Context) error {
		th, err := s.platform.StartThread(ctx, msg.ChannelID, msg.ID, name)
		if err != nil {
			return err
		}
		if userID == "" {
			return nil
		}
		return s.platform.AddThreadMember(ctx, th.ID, userID)
	})

	if err := s.rotatePrompt(ctx); err != nil {
		logger.LogEvent(ctx, s.log, slog.LevelWarn, "questions.prompt_rotate",
			slog.String("status", "fail"),
			slog.String("message_id", msg.ID),
			logger.ErrAttr(err),
		)
	}

	logger.LogEvent(ctx, s.log, slog.LevelInfo, "questions.submitted",
		slog.String("status", "ok"),
		slog.String("channel_id", msg.ChannelID),
		slog.String("message_id", msg.ID),
	)
	return fmt.Sprintf(msgQuestionSent, sub.GuildID, msg.ChannelID, msg.ID), nil
}

// rotatePrompt replaces the standing prompt so it stays the newest message in
// the channel. It runs under the prompt lock and does nothing once the gate
// has been closed by a concurrent toggle.
func (s *Service) rotatePrompt(ctx context.Context) error {
	return s.store.Update(ctx, func(ctx context.Context, st *state.GateState) error {
		if !st.Open {
			return nil
		}
		s.deleteRef(ctx, st.Prompt, "prompt")
		prompt, err := s.platform.SendMessage(ctx, s.store.PromptChannel(), PromptMessage())
		if err != nil {
			logger.LogEvent(ctx, s.log, slog.LevelWarn, "questions.prompt_send",
				slog.String("status", "fail"),
				logger.ErrAttr(err),
			)
			st.Prompt = nil
			return nil
		}
		st.Prompt = refOf(prompt)
		return nil
	})
}
