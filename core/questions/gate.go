package questions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/logger"
	"github.com/m3rciful/questionbot/core/state"
)

// Options of the questions chat command.
const (
	OptionOpen                = "open"
	OptionAnnouncementChannel = "announcement-channel"
)

// HandleGate toggles the question gate from the questions chat command.
func (s *Service) HandleGate(ctx context.Context, i *discordgo.Interaction) (*discordgo.InteractionResponse, error) {
	data := i.ApplicationCommandData()
	var (
		open    bool
		channel string
	)
	for _, opt := range data.Options {
		switch opt.Name {
		case OptionOpen:
			open = opt.BoolValue()
		case OptionAnnouncementChannel:
			channel, _ = opt.Value.(string)
		}
	}
	reply, err := s.SetOpen(ctx, open, channel)
	if err != nil {
		return nil, err
	}
	return discord.Reply(reply), nil
}

// SetOpen moves the gate to the desired state and returns the reply for the invoker.
// Repeating the current state makes no outbound calls and no writes.
func (s *Service) SetOpen(ctx context.Context, open bool, announcementChannel string) (string, error) {
	cur, err := s.store.LoadFlag(ctx)
	if err != nil {
		return "", err
	}
	if cur.Open == open {
		return alreadyReply(open), nil
	}
	if open && announcementChannel == "" {
		return msgNeedChannel, nil
	}

	var (
		reply   string
		stale   *state.MessageRef
		created []*state.MessageRef
	)
	err = s.store.Update(ctx, func(ctx context.Context, st *state.GateState) error {
		if st.Open == open {
			reply = alreadyReply(open)
			return errAborted
		}
		if !open {
			s.close(ctx, st)
			reply = msgClosed
			return nil
		}
		stale = st.Prompt
		r, err := s.open(ctx, st, announcementChannel)
		if err == nil {
			created = []*state.MessageRef{st.Announcement, st.Prompt}
		}
		reply = r
		return err
	})
	switch {
	case errors.Is(err, errAborted):
		return reply, nil
	case err != nil:
		// Messages posted for an open that was never persisted would be orphaned.
		for _, ref := range created {
			s.deleteRef(ctx, ref, "rollback")
		}
		return "", err
	}

	if open && stale != nil && !sameRef(stale, created[1]) {
		s.tasks.Go(ctx, "gate.stale_prompt_delete", func(ctx context.Context) error {
			s.deleteRef(ctx, stale, "prompt")
			return nil
		})
	}

	logger.LogEvent(ctx, s.log, slog.LevelInfo, "questions.gate",
		slog.String("status", "ok"),
		slog.Bool("open", open),
	)
	return reply, nil
}

func alreadyReply(open bool) string {
	if open {
		return msgAlreadyOpen
	}
	return msgAlreadyClosed
}

// open posts the announcement and the prompt together. Either failing
// removes the other and leaves the state untouched.
func (s *Service) open(ctx context.Context, st *state.GateState, channel string) (string, error) {
	var (
		wg                   sync.WaitGroup
		announcement, prompt *discordgo.Message
		announceErr, sendErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		announcement, announceErr = s.platform.SendMessage(ctx, channel, AnnouncementMessage())
	}()
	go func() {
		defer wg.Done()
		prompt, sendErr = s.platform.SendMessage(ctx, s.store.PromptChannel(), PromptMessage())
	}()
	wg.Wait()

	switch {
	case announceErr != nil:
		if sendErr == nil {
			s.deleteRef(ctx, refOf(prompt), "prompt")
		}
		return fmt.Sprintf(msgAnnouncementFailed, discord.StatusText(announceErr)), errAborted
	case sendErr != nil:
		s.deleteRef(ctx, refOf(announcement), "announcement")
		return fmt.Sprintf(msgPromptFailed, discord.StatusText(sendErr)), errAborted
	}

	st.Open = true
	st.Announcement = refOf(announcement)
	st.Prompt = refOf(prompt)
	return msgOpened, nil
}

// close removes the announcement and the prompt, tolerating failures.
func (s *Service) close(ctx context.Context, st *state.GateState) {
	s.deleteRefs(ctx, map[string]*state.MessageRef{
		"announcement": st.Announcement,
		"prompt":       st.Prompt,
	})
	st.Open = false
	st.Announcement = nil
	st.Prompt = nil
}
