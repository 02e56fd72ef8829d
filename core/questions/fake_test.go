package questions

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/discord/sender"
	"github.com/m3rciful/questionbot/core/state"
)

const (
	testWebhookID     = "123456789012345678"
	testPromptChannel = "prompt-chan"
	testAnnounce      = "announce-chan"
	testQuestionChan  = "question-chan"
)

type call struct {
	op        string
	channelID string
	messageID string
	content   string
}

// fakePlatform records every outbound call. sendErr fails sends per channel.
type fakePlatform struct {
	mu       sync.Mutex
	calls    []call
	nextID   int
	live     map[string]string
	sendErr  map[string]error
	hookErr  error
	editErr  error
	edits    []*discordgo.WebhookEdit
	params   []*discordgo.WebhookParams
	threadOK bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{live: map[string]string{}, sendErr: map[string]error{}, threadOK: true}
}

func (f *fakePlatform) record(c call) {
	f.calls = append(f.calls, c)
}

func (f *fakePlatform) id() string {
	f.nextID++
	return "m" + strconv.Itoa(f.nextID)
}

func (f *fakePlatform) WebhookID() string { return testWebhookID }

func (f *fakePlatform) SendMessage(_ context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{op: "send", channelID: channelID, content: msg.Content})
	if err := f.sendErr[channelID]; err != nil {
		return nil, err
	}
	id := f.id()
	f.live[id] = channelID
	return &discordgo.Message{ID: id, ChannelID: channelID, Content: msg.Content}, nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{op: "delete", channelID: channelID, messageID: messageID})
	delete(f.live, messageID)
	return nil
}

func (f *fakePlatform) ExecuteWebhook(_ context.Context, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{op: "webhook"})
	f.params = append(f.params, params)
	if f.hookErr != nil {
		return nil, f.hookErr
	}
	return &discordgo.Message{ID: f.id(), ChannelID: testQuestionChan, WebhookID: testWebhookID}, nil
}

func (f *fakePlatform) EditWebhookMessage(_ context.Context, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{op: "edit", messageID: messageID})
	f.edits = append(f.edits, edit)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &discordgo.Message{ID: messageID}, nil
}

func (f *fakePlatform) StartThread(_ context.Context, channelID, messageID, name string) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{op: "thread", channelID: channelID, messageID: messageID, content: name})
	if !f.threadOK {
		return nil, &discord.APIError{Status: 403, Text: "403 Forbidden"}
	}
	return &discordgo.Channel{ID: messageID}, nil
}

func (f *fakePlatform) AddThreadMember(_ context.Context, threadID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{op: "member", channelID: threadID, content: userID})
	return nil
}

func (f *fakePlatform) DeleteOriginalResponse(context.Context, *discordgo.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{op: "ack_delete"})
	return nil
}

func (f *fakePlatform) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakePlatform) ops() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakePlatform) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// livePrompts counts prompt messages that were sent and not deleted.
func (f *fakePlatform) livePrompts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ch := range f.live {
		if ch == testPromptChannel {
			n++
		}
	}
	return n
}

type fixture struct {
	svc      *Service
	platform *fakePlatform
	store    *state.Store
	flags    *state.MemoryFlagStore
	tasks    *sender.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	flags := state.NewMemoryFlagStore()
	store := state.New(flags, state.NewMemoryPromptStore(), testPromptChannel)
	platform := newFakePlatform()
	tasks := sender.NewDispatcher(sender.Options{Workers: 2})
	fx := &fixture{
		svc:      NewService(platform, store, tasks),
		platform: platform,
		store:    store,
		flags:    flags,
		tasks:    tasks,
	}
	t.Cleanup(func() { fx.tasks.Close() })
	return fx
}

// drain waits for deferred jobs and starts a fresh dispatcher for later calls.
func (fx *fixture) drain() {
	fx.tasks.Close()
	fx.tasks = sender.NewDispatcher(sender.Options{Workers: 2})
	fx.svc.tasks = fx.tasks
}

func (fx *fixture) read(t *testing.T) state.GateState {
	t.Helper()
	st, err := fx.store.Read(context.Background())
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	return st
}

func (fx *fixture) open(t *testing.T) {
	t.Helper()
	reply, err := fx.svc.SetOpen(context.Background(), true, testAnnounce)
	if err != nil || reply != msgOpened {
		t.Fatalf("open: reply=%q err=%v", reply, err)
	}
	fx.drain()
	fx.platform.reset()
}
