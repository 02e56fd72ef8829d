package state

import (
	"context"
	"sync"
)

// MemoryFlagStore keeps the flag in process memory.
type MemoryFlagStore struct {
	mu   sync.Mutex
	flag Flag
}

// NewMemoryFlagStore returns an empty, closed flag store.
func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{}
}

// Load implements FlagStore.
func (m *MemoryFlagStore) Load(context.Context) (Flag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyFlag(m.flag), nil
}

// Save implements FlagStore.
func (m *MemoryFlagStore) Save(_ context.Context, f Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flag = copyFlag(f)
	return nil
}

func copyFlag(f Flag) Flag {
	if f.Announcement != nil {
		a := *f.Announcement
		f.Announcement = &a
	}
	return f
}

// MemoryPromptStore keeps the prompt id in process memory.
// lock serializes Mutate; reads only take mu so they never wait on a mutation.
type MemoryPromptStore struct {
	lock sync.Mutex
	mu   sync.RWMutex
	id   string
}

// NewMemoryPromptStore returns a store with no prompt.
func NewMemoryPromptStore() *MemoryPromptStore {
	return &MemoryPromptStore{}
}

// Load implements PromptStore.
func (m *MemoryPromptStore) Load(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id, nil
}

// Mutate implements PromptStore.
func (m *MemoryPromptStore) Mutate(ctx context.Context, fn func(context.Context, string) (string, error)) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	current, _ := m.Load(ctx)
	next, err := fn(ctx, current)
	if err != nil || next == current {
		return err
	}
	m.mu.Lock()
	m.id = next
	m.mu.Unlock()
	return nil
}
