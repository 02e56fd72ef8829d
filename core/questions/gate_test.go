package questions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/state"
)

func TestOpenRecordsBothRefs(t *testing.T) {
	fx := newFixture(t)
	fx.open(t)

	st := fx.read(t)
	if !st.Open || st.Announcement == nil || st.Prompt == nil {
		t.Fatalf("state after open = %+v", st)
	}
	if st.Announcement.ChannelID != testAnnounce || st.Prompt.ChannelID != testPromptChannel {
		t.Fatalf("refs = %+v / %+v", st.Announcement, st.Prompt)
	}
}

func TestOpenWithoutChannelIsRejected(t *testing.T) {
	fx := newFixture(t)
	reply, err := fx.svc.SetOpen(context.Background(), true, "")
	if err != nil {
		t.Fatalf("set open: %v", err)
	}
	if reply != msgNeedChannel {
		t.Fatalf("reply = %q", reply)
	}
	if n := len(fx.platform.ops()); n != 0 {
		t.Fatalf("outbound calls = %d, want 0", n)
	}
	if fx.read(t).Open {
		t.Fatal("gate opened without a channel")
	}
}

func TestToggleIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	fx.open(t)
	before, _ := json.Marshal(fx.read(t))

	reply, err := fx.svc.SetOpen(context.Background(), true, testAnnounce)
	if err != nil || reply != msgAlreadyOpen {
		t.Fatalf("second open: reply=%q err=%v", reply, err)
	}
	fx.drain()
	if n := len(fx.platform.ops()); n != 0 {
		t.Fatalf("outbound calls = %d, want 0", n)
	}
	after, _ := json.Marshal(fx.read(t))
	if string(before) != string(after) {
		t.Fatalf("state changed: %s -> %s", before, after)
	}

	if _, err := fx.svc.SetOpen(context.Background(), false, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	fx.platform.reset()
	reply, err = fx.svc.SetOpen(context.Background(), false, "")
	if err != nil || reply != msgAlreadyClosed {
		t.Fatalf("second close: reply=%q err=%v", reply, err)
	}
	if n := len(fx.platform.ops()); n != 0 {
		t.Fatalf("outbound calls = %d, want 0", n)
	}
}

func TestCloseDeletesBothRefs(t *testing.T) {
	fx := newFixture(t)
	fx.open(t)
	opened := fx.read(t)

	reply, err := fx.svc.SetOpen(context.Background(), false, "")
	if err != nil || reply != msgClosed {
		t.Fatalf("close: reply=%q err=%v", reply, err)
	}
	st := fx.read(t)
	if st.Open || st.Announcement != nil || st.Prompt != nil {
		t.Fatalf("state after close = %+v", st)
	}
	deleted := map[string]bool{}
	for _, c := range fx.platform.ops() {
		if c.op == "delete" {
			deleted[c.messageID] = true
		}
	}
	if !deleted[opened.Announcement.MessageID] || !deleted[opened.Prompt.MessageID] {
		t.Fatalf("deleted = %v, want announcement and prompt", deleted)
	}
}

// A rejected announcement leaves the gate closed and removes the prompt sent alongside it.
func TestOpenAnnouncementFailureLeavesStateClosed(t *testing.T) {
	fx := newFixture(t)
	fx.platform.sendErr[testAnnounce] = &discord.APIError{Status: 403, Text: "403 Forbidden"}

	reply, err := fx.svc.SetOpen(context.Background(), true, testAnnounce)
	if err != nil {
		t.Fatalf("set open: %v", err)
	}
	if reply != "Failed to send announcement, received: 403 Forbidden" {
		t.Fatalf("reply = %q", reply)
	}
	flag, _ := fx.flags.Load(context.Background())
	if flag.Open {
		t.Fatal("flag persisted as open")
	}
	if st := fx.read(t); st.Prompt != nil {
		t.Fatalf("prompt ref = %+v, want nil", st.Prompt)
	}
	if n := fx.platform.livePrompts(); n != 0 {
		t.Fatalf("live prompts = %d, want 0", n)
	}
}

func TestOpenPromptFailureRemovesAnnouncement(t *testing.T) {
	fx := newFixture(t)
	fx.platform.sendErr[testPromptChannel] = &discord.APIError{Status: 500, Text: "500 Internal Server Error"}

	reply, err := fx.svc.SetOpen(context.Background(), true, testAnnounce)
	if err != nil {
		t.Fatalf("set open: %v", err)
	}
	if reply != "Failed to send question prompt, received: 500 Internal Server Error" {
		t.Fatalf("reply = %q", reply)
	}
	if fx.read(t).Open {
		t.Fatal("gate opened without a prompt")
	}
	if fx.platform.count("delete") != 1 {
		t.Fatalf("deletes = %d, want 1", fx.platform.count("delete"))
	}
}

func TestOpenReplacesStalePrompt(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	stale, _ := fx.platform.SendMessage(ctx, testPromptChannel, PromptMessage())
	if err := fx.store.Update(ctx, func(_ context.Context, st *state.GateState) error {
		st.Prompt = refOf(stale)
		return nil
	}); err != nil {
		t.Fatalf("seed prompt: %v", err)
	}

	fx.open(t)
	if n := fx.platform.livePrompts(); n != 1 {
		t.Fatalf("live prompts = %d, want 1", n)
	}
	if st := fx.read(t); st.Prompt == nil || st.Prompt.MessageID == stale.ID {
		t.Fatalf("prompt ref = %+v", st.Prompt)
	}
}

// failingPrompts runs the mutation and then loses the durable write.
type failingPrompts struct {
	*state.MemoryPromptStore
}

func (f failingPrompts) Mutate(ctx context.Context, fn func(context.Context, string) (string, error)) error {
	cur, _ := f.Load(ctx)
	if _, err := fn(ctx, cur); err != nil {
		return err
	}
	return state.ErrConcurrentMutation
}

func TestOpenPromptWriteFailureLeavesGateClosed(t *testing.T) {
	fx := newFixture(t)
	fx.store = state.New(fx.flags, failingPrompts{state.NewMemoryPromptStore()}, testPromptChannel)
	fx.svc = NewService(fx.platform, fx.store, fx.tasks)
	ctx := context.Background()

	if _, err := fx.svc.SetOpen(ctx, true, testAnnounce); !errors.Is(err, state.ErrConcurrentMutation) {
		t.Fatalf("err = %v, want ErrConcurrentMutation", err)
	}
	fx.drain()
	flag, _ := fx.flags.Load(ctx)
	if flag.Open || flag.Announcement != nil {
		t.Fatalf("flag = %+v, want closed without announcement", flag)
	}
	if n := len(fx.platform.live); n != 0 {
		t.Fatalf("live messages = %d, want 0", n)
	}

	fx.platform.reset()
	reply, _ := fx.svc.SetOpen(ctx, true, testAnnounce)
	if reply == msgAlreadyOpen {
		t.Fatal("retry answered already open")
	}
}

func TestHandleGateReadsOptions(t *testing.T) {
	fx := newFixture(t)
	i := &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "questions",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: OptionOpen, Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
				{Name: OptionAnnouncementChannel, Type: discordgo.ApplicationCommandOptionChannel, Value: testAnnounce},
			},
		},
	}
	resp, err := fx.svc.HandleGate(context.Background(), i)
	if err != nil {
		t.Fatalf("handle gate: %v", err)
	}
	if resp.Data.Content != msgOpened || resp.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Fatalf("response = %+v", resp.Data)
	}
}
