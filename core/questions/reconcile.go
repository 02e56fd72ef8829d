package questions

import (
	"context"
	"log/slog"

	"github.com/m3rciful/questionbot/core/logger"
	"github.com/m3rciful/questionbot/core/state"
)

// Repair describes what a reconcile pass changed.
type Repair struct {
	PromptSent bool
	Deleted    int
}

// Changed reports whether the pass touched anything.
func (r Repair) Changed() bool { return r.PromptSent || r.Deleted > 0 }

// Reconcile closes the gaps a failed prompt send or an interrupted toggle can
// leave behind: an open gate gets a prompt back, a closed gate loses any
// leftover messages.
func (s *Service) Reconcile(ctx context.Context) (Repair, error) {
	var rep Repair
	err := s.store.Update(ctx, func(ctx context.Context, st *state.GateState) error {
		rep = Repair{}
		if st.Open {
			if st.Prompt != nil {
				return nil
			}
			prompt, err := s.platform.SendMessage(ctx, s.store.PromptChannel(), PromptMessage())
			if err != nil {
				return err
			}
			st.Prompt = refOf(prompt)
			rep.PromptSent = true
			return nil
		}
		for _, ref := range []*state.MessageRef{st.Announcement, st.Prompt} {
			if ref != nil {
				rep.Deleted++
			}
		}
		if rep.Deleted == 0 {
			return nil
		}
		s.deleteRefs(ctx, map[string]*state.MessageRef{
			"announcement": st.Announcement,
			"prompt":       st.Prompt,
		})
		st.Announcement = nil
		st.Prompt = nil
		return nil
	})
	if err != nil {
		return Repair{}, err
	}
	if rep.Changed() {
		logger.LogEvent(ctx, s.log, slog.LevelInfo, "questions.reconciled",
			slog.String("status", "ok"),
			slog.Bool("prompt_sent", rep.PromptSent),
			slog.Int("deleted", rep.Deleted),
		)
	}
	return rep, nil
}
