// Package questions implements the community questions workflow: the
// open/closed gate, question intake through the ask modal and moderator
// triage of posted questions.
package questions

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/logger"
	"github.com/m3rciful/questionbot/core/state"
)

// Platform is the subset of the Discord REST client the workflow needs.
type Platform interface {
	WebhookID() string
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	ExecuteWebhook(ctx context.Context, params *discordgo.WebhookParams) (*discordgo.Message, error)
	EditWebhookMessage(ctx context.Context, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error)
	StartThread(ctx context.Context, channelID, messageID, name string) (*discordgo.Channel, error)
	AddThreadMember(ctx context.Context, threadID, userID string) error
	DeleteOriginalResponse(ctx context.Context, i *discordgo.Interaction) error
}

// Deferrer runs work after the interaction response has been written.
type Deferrer interface {
	Go(ctx context.Context, action string, run func(context.Context) error)
}

// Service holds the handlers of the questions workflow.
type Service struct {
	platform Platform
	store    *state.Store
	tasks    Deferrer
	log      *slog.Logger
}

// NewService wires the workflow to its platform, state and deferred task runner.
func NewService(platform Platform, store *state.Store, tasks Deferrer) *Service {
	return &Service{
		platform: platform,
		store:    store,
		tasks:    tasks,
		log:      logger.Component("questions"),
	}
}

// errAborted unwinds a state update whose outcome was already reported to the user.
var errAborted = errors.New("questions: aborted")

// deleteRef removes a bot message and logs failures.
func (s *Service) deleteRef(ctx context.Context, ref *state.MessageRef, what string) {
	if ref == nil || ref.MessageID == "" {
		return
	}
	if err := s.platform.DeleteMessage(ctx, ref.ChannelID, ref.MessageID); err != nil {
		logger.LogEvent(ctx, s.log, slog.LevelWarn, "questions.delete_failed",
			slog.String("status", "fail"),
			slog.String("what", what),
			slog.String("channel_id", ref.ChannelID),
			slog.String("message_id", ref.MessageID),
			logger.ErrAttr(err),
		)
	}
}

// deleteRefs deletes every ref concurrently and waits for all of them.
func (s *Service) deleteRefs(ctx context.Context, refs map[string]*state.MessageRef) {
	var wg sync.WaitGroup
	for what, ref := range refs {
		if ref == nil {
			continue
		}
		wg.Add(1)
		go func(what string, ref *state.MessageRef) {
			defer wg.Done()
			s.deleteRef(ctx, ref, what)
		}(what, ref)
	}
	wg.Wait()
}

func refOf(m *discordgo.Message) *state.MessageRef {
	if m == nil {
		return nil
	}
	return &state.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID}
}

func sameRef(a, b *state.MessageRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
