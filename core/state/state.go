// Package state persists the question gate: the open flag with its
// announcement, and the reference to the standing prompt message.
package state

import (
	"context"
	"errors"
	"fmt"
)

// ErrConcurrentMutation is returned when a prompt mutation lost a race
// against another writer of the same backend.
var ErrConcurrentMutation = errors.New("state: concurrent prompt mutation")

// MessageRef identifies a message the bot posted.
type MessageRef struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

// Flag is the persisted open/closed document.
type Flag struct {
	Open         bool        `json:"open"`
	Announcement *MessageRef `json:"announcement,omitempty"`
}

// GateState is the combined view of both state domains.
type GateState struct {
	Open         bool
	Prompt       *MessageRef
	Announcement *MessageRef
}

// FlagStore keeps the flag document. Saves are last-writer-wins.
type FlagStore interface {
	Load(ctx context.Context) (Flag, error)
	Save(ctx context.Context, f Flag) error
}

// PromptStore keeps the prompt message id. An empty id means no prompt.
// Mutate runs fn exclusively and persists its result before returning;
// an error from fn leaves the stored id unchanged. A result equal to the
// current id is not written.
type PromptStore interface {
	Load(ctx context.Context) (string, error)
	Mutate(ctx context.Context, fn func(ctx context.Context, current string) (string, error)) error
}

// Store joins a FlagStore and a PromptStore into the gate state.
type Store struct {
	flags         FlagStore
	prompts       PromptStore
	promptChannel string
}

// New builds a Store. Prompt references are always in promptChannel.
func New(flags FlagStore, prompts PromptStore, promptChannel string) *Store {
	return &Store{flags: flags, prompts: prompts, promptChannel: promptChannel}
}

// PromptChannel returns the channel prompts are posted to.
func (s *Store) PromptChannel() string { return s.promptChannel }

// Read returns the current state; a never-written store reads as closed.
func (s *Store) Read(ctx context.Context) (GateState, error) {
	flag, err := s.flags.Load(ctx)
	if err != nil {
		return GateState{}, fmt.Errorf("state: load flag: %w", err)
	}
	id, err := s.prompts.Load(ctx)
	if err != nil {
		return GateState{}, fmt.Errorf("state: load prompt: %w", err)
	}
	return GateState{
		Open:         flag.Open,
		Prompt:       s.ref(id),
		Announcement: flag.Announcement,
	}, nil
}

// Write replaces both domains with st.
func (s *Store) Write(ctx context.Context, st GateState) error {
	return s.Update(ctx, func(_ context.Context, cur *GateState) error {
		*cur = st
		return nil
	})
}

// LoadFlag returns the flag document alone.
func (s *Store) LoadFlag(ctx context.Context) (Flag, error) {
	flag, err := s.flags.Load(ctx)
	if err != nil {
		return Flag{}, fmt.Errorf("state: load flag: %w", err)
	}
	return flag, nil
}

// Update runs fn with the full state while the prompt domain is locked.
// A changed flag is saved before fn's prompt reference is persisted, so a
// caller holding the lock always observes a flag at least as new as the
// prompt. If persisting the prompt then fails, the previous flag is put back.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, st *GateState) error) error {
	var (
		prev  Flag
		saved bool
	)
	err := s.prompts.Mutate(ctx, func(ctx context.Context, current string) (string, error) {
		flag, err := s.flags.Load(ctx)
		if err != nil {
			return current, fmt.Errorf("load flag: %w", err)
		}
		st := GateState{Open: flag.Open, Prompt: s.ref(current), Announcement: flag.Announcement}
		if err := fn(ctx, &st); err != nil {
			return current, err
		}
		next := Flag{Open: st.Open, Announcement: st.Announcement}
		if !sameFlag(flag, next) {
			if err := s.flags.Save(ctx, next); err != nil {
				return current, fmt.Errorf("save flag: %w", err)
			}
			prev, saved = flag, true
		}
		return messageID(st.Prompt), nil
	})
	if err == nil {
		return nil
	}
	if saved {
		if rerr := s.flags.Save(context.WithoutCancel(ctx), prev); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore flag: %w", rerr))
		}
	}
	return fmt.Errorf("state: update: %w", err)
}

func (s *Store) ref(id string) *MessageRef {
	if id == "" {
		return nil
	}
	return &MessageRef{ChannelID: s.promptChannel, MessageID: id}
}

func messageID(ref *MessageRef) string {
	if ref == nil {
		return ""
	}
	return ref.MessageID
}

func sameFlag(a, b Flag) bool {
	if a.Open != b.Open {
		return false
	}
	switch {
	case a.Announcement == nil && b.Announcement == nil:
		return true
	case a.Announcement == nil || b.Announcement == nil:
		return false
	default:
		return *a.Announcement == *b.Announcement
	}
}
