package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSPromptStore keeps the prompt id in a JetStream key/value bucket.
// Mutations in this process are serialized by a mutex; writes from other
// processes are detected through the entry revision.
type NATSPromptStore struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
	key  string
	mu   sync.Mutex
}

// NewNATSPromptStore connects to url and creates the bucket when missing.
func NewNATSPromptStore(ctx context.Context, url, bucket, key string, opts ...nats.Option) (*NATSPromptStore, error) {
	defaults := []nats.Option{
		nats.Name("questionbot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "questionbot prompt reference",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("key/value bucket %s: %w", bucket, err)
	}
	return &NATSPromptStore{conn: nc, kv: kv, key: key}, nil
}

// Load implements PromptStore.
func (n *NATSPromptStore) Load(ctx context.Context) (string, error) {
	id, _, err := n.get(ctx)
	return id, err
}

// Mutate implements PromptStore. Losing the revision race to another
// process returns ErrConcurrentMutation; fn's side effects are not undone.
func (n *NATSPromptStore) Mutate(ctx context.Context, fn func(context.Context, string) (string, error)) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	current, rev, err := n.get(ctx)
	if err != nil {
		return err
	}
	next, err := fn(ctx, current)
	if err != nil {
		return err
	}
	if next == current {
		return nil
	}
	if rev == 0 {
		_, err = n.kv.Create(ctx, n.key, []byte(next))
	} else {
		_, err = n.kv.Update(ctx, n.key, []byte(next), rev)
	}
	if err != nil {
		if isRevisionConflict(err) {
			return fmt.Errorf("nats: save prompt: %w", ErrConcurrentMutation)
		}
		return fmt.Errorf("nats: save prompt: %w", err)
	}
	return nil
}

// Close drains the connection.
func (n *NATSPromptStore) Close() error {
	return n.conn.Drain()
}

func (n *NATSPromptStore) get(ctx context.Context) (string, uint64, error) {
	entry, err := n.kv.Get(ctx, n.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("nats: load prompt: %w", err)
	}
	return string(entry.Value()), entry.Revision(), nil
}

func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
