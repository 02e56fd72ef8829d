package state

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
)

func newMemoryStore() *Store {
	return New(NewMemoryFlagStore(), NewMemoryPromptStore(), "chan-q")
}

func TestReadDefaultsToClosed(t *testing.T) {
	st, err := newMemoryStore().Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if st.Open || st.Prompt != nil || st.Announcement != nil {
		t.Fatalf("unexpected default state: %+v", st)
	}
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()
	want := GateState{
		Open:         true,
		Prompt:       &MessageRef{ChannelID: "chan-q", MessageID: "p1"},
		Announcement: &MessageRef{ChannelID: "chan-a", MessageID: "a1"},
	}
	if err := s.Write(ctx, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.Open || *got.Prompt != *want.Prompt || *got.Announcement != *want.Announcement {
		t.Fatalf("read = %+v, want %+v", got, want)
	}

	if err := s.Write(ctx, GateState{}); err != nil {
		t.Fatalf("write closed: %v", err)
	}
	got, _ = s.Read(ctx)
	if got.Open || got.Prompt != nil || got.Announcement != nil {
		t.Fatalf("expected cleared state, got %+v", got)
	}
}

func setPrompt(id string) func(context.Context, *GateState) error {
	return func(_ context.Context, st *GateState) error {
		st.Prompt = &MessageRef{MessageID: id}
		return nil
	}
}

func TestUpdateErrorLeavesReference(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()
	if err := s.Update(ctx, setPrompt("p1")); err != nil {
		t.Fatalf("update: %v", err)
	}

	boom := errors.New("send failed")
	err := s.Update(ctx, func(_ context.Context, st *GateState) error {
		if st.Prompt == nil || st.Prompt.MessageID != "p1" || st.Prompt.ChannelID != "chan-q" {
			t.Fatalf("current = %+v", st.Prompt)
		}
		st.Prompt = &MessageRef{MessageID: "p2"}
		st.Open = true
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("update err = %v, want %v", err, boom)
	}
	st, _ := s.Read(ctx)
	if st.Open || st.Prompt == nil || st.Prompt.MessageID != "p1" {
		t.Fatalf("state = %+v, want closed with prompt p1", st)
	}
}

// lossyPrompts runs the mutation and then fails the durable write.
type lossyPrompts struct {
	MemoryPromptStore
}

func (l *lossyPrompts) Mutate(ctx context.Context, fn func(context.Context, string) (string, error)) error {
	cur, _ := l.Load(ctx)
	if _, err := fn(ctx, cur); err != nil {
		return err
	}
	return ErrConcurrentMutation
}

func TestUpdateRestoresFlagWhenPromptWriteFails(t *testing.T) {
	ctx := context.Background()
	flags := NewMemoryFlagStore()
	s := New(flags, &lossyPrompts{}, "chan-q")

	err := s.Update(ctx, func(_ context.Context, st *GateState) error {
		st.Open = true
		st.Announcement = &MessageRef{ChannelID: "a", MessageID: "m1"}
		st.Prompt = &MessageRef{MessageID: "p1"}
		return nil
	})
	if !errors.Is(err, ErrConcurrentMutation) {
		t.Fatalf("err = %v, want ErrConcurrentMutation", err)
	}
	f, _ := flags.Load(ctx)
	if f.Open || f.Announcement != nil {
		t.Fatalf("flag = %+v, want closed without announcement", f)
	}
}

type countingFlags struct {
	MemoryFlagStore
	saves int
}

func (c *countingFlags) Save(ctx context.Context, f Flag) error {
	c.saves++
	return c.MemoryFlagStore.Save(ctx, f)
}

func TestUpdateSkipsUnchangedFlag(t *testing.T) {
	ctx := context.Background()
	flags := &countingFlags{}
	s := New(flags, NewMemoryPromptStore(), "chan-q")

	if err := s.Update(ctx, func(_ context.Context, st *GateState) error {
		st.Prompt = &MessageRef{MessageID: "p1"}
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if flags.saves != 0 {
		t.Fatalf("flag saved %d times for a prompt-only change", flags.saves)
	}

	if err := s.Update(ctx, func(_ context.Context, st *GateState) error {
		st.Open = true
		st.Announcement = &MessageRef{ChannelID: "a", MessageID: "m"}
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if flags.saves != 1 {
		t.Fatalf("saves = %d, want 1", flags.saves)
	}
}

func TestUpdateSerializesMutations(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, func(_ context.Context, st *GateState) error {
				next := 1
				if st.Prompt != nil {
					v, _ := strconv.Atoi(st.Prompt.MessageID)
					next = v + 1
				}
				st.Prompt = &MessageRef{MessageID: strconv.Itoa(next)}
				return nil
			})
		}()
	}
	wg.Wait()

	st, _ := s.Read(ctx)
	if st.Prompt == nil || st.Prompt.MessageID != strconv.Itoa(n) {
		t.Fatalf("prompt = %+v, want %d (lost update)", st.Prompt, n)
	}
}
