package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/questionbot/core/config"
	"github.com/m3rciful/questionbot/core/logger"
)

// Open builds the Store selected by cfg. db may be nil when no backend is Postgres.
// The returned close function releases backend connections owned by the store.
func Open(ctx context.Context, cfg *coreconfig.Config, db *sqlx.DB) (*Store, func() error, error) {
	closeFn := func() error { return nil }

	var flags FlagStore
	switch cfg.State.FlagBackend {
	case coreconfig.BackendPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("state: flag backend %q needs a database", cfg.State.FlagBackend)
		}
		flags = NewPostgresFlagStore(db)
	case coreconfig.BackendS3:
		s3Store, err := NewS3FlagStore(ctx, cfg.S3.Bucket, cfg.S3.Key, cfg.S3.Region, cfg.S3.Endpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("state: %w", err)
		}
		flags = s3Store
	case coreconfig.BackendMemory:
		flags = NewMemoryFlagStore()
	default:
		return nil, nil, fmt.Errorf("state: unknown flag backend %q", cfg.State.FlagBackend)
	}

	var prompts PromptStore
	switch cfg.State.PromptBackend {
	case coreconfig.BackendPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("state: prompt backend %q needs a database", cfg.State.PromptBackend)
		}
		prompts = NewPostgresPromptStore(db)
	case coreconfig.BackendNATS:
		natsStore, err := NewNATSPromptStore(ctx, cfg.NATS.URL, cfg.NATS.Bucket, cfg.NATS.Key)
		if err != nil {
			return nil, nil, fmt.Errorf("state: %w", err)
		}
		prompts = natsStore
		closeFn = natsStore.Close
	case coreconfig.BackendMemory:
		prompts = NewMemoryPromptStore()
	default:
		return nil, nil, fmt.Errorf("state: unknown prompt backend %q", cfg.State.PromptBackend)
	}

	logger.STATE.Info("state store ready",
		slog.String("event", "state.open"),
		slog.String("flag_backend", cfg.State.FlagBackend),
		slog.String("prompt_backend", cfg.State.PromptBackend),
		slog.String("channel_id", cfg.Discord.QuestionChannel),
	)
	return New(flags, prompts, cfg.Discord.QuestionChannel), closeFn, nil
}
