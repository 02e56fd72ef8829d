package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const flagSettingKey = "questions_gate"

const (
	qLoadFlag = `SELECT value FROM bot_settings WHERE key = $1`
	qSaveFlag = `INSERT INTO bot_settings (key, value, updated_at) VALUES ($1, $2::jsonb, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	qLoadPrompt   = `SELECT message_id FROM prompt_ref WHERE id = 1`
	qLockPrompt   = `SELECT message_id FROM prompt_ref WHERE id = 1 FOR UPDATE`
	qUpsertPrompt = `INSERT INTO prompt_ref (id, message_id, updated_at) VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET message_id = EXCLUDED.message_id, updated_at = now()`
)

// PostgresFlagStore keeps the flag as a JSONB row in bot_settings.
type PostgresFlagStore struct {
	db *sqlx.DB
}

// NewPostgresFlagStore wraps db.
func NewPostgresFlagStore(db *sqlx.DB) *PostgresFlagStore {
	return &PostgresFlagStore{db: db}
}

// Load implements FlagStore.
func (p *PostgresFlagStore) Load(ctx context.Context) (Flag, error) {
	var raw []byte
	err := p.db.GetContext(ctx, &raw, qLoadFlag, flagSettingKey)
	if errors.Is(err, sql.ErrNoRows) {
		return Flag{}, nil
	}
	if err != nil {
		return Flag{}, fmt.Errorf("postgres: load flag: %w", err)
	}
	return decodeFlag(raw)
}

// Save implements FlagStore.
func (p *PostgresFlagStore) Save(ctx context.Context, f Flag) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("postgres: encode flag: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, qSaveFlag, flagSettingKey, string(data)); err != nil {
		return fmt.Errorf("postgres: save flag: %w", err)
	}
	return nil
}

// PostgresPromptStore keeps the prompt id in the singleton prompt_ref row.
// Mutations hold a row lock for the length of the transaction.
type PostgresPromptStore struct {
	db *sqlx.DB
}

// NewPostgresPromptStore wraps db.
func NewPostgresPromptStore(db *sqlx.DB) *PostgresPromptStore {
	return &PostgresPromptStore{db: db}
}

// Load implements PromptStore.
func (p *PostgresPromptStore) Load(ctx context.Context) (string, error) {
	var id sql.NullString
	err := p.db.GetContext(ctx, &id, qLoadPrompt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres: load prompt: %w", err)
	}
	return id.String, nil
}

// Mutate implements PromptStore.
func (p *PostgresPromptStore) Mutate(ctx context.Context, fn func(context.Context, string) (string, error)) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	if err := tx.GetContext(ctx, &current, qLockPrompt); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("postgres: lock prompt: %w", err)
	}

	next, err := fn(ctx, current.String)
	if err != nil {
		return err
	}
	if next == current.String {
		return tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, qUpsertPrompt, sql.NullString{String: next, Valid: next != ""}); err != nil {
		return fmt.Errorf("postgres: save prompt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func decodeFlag(raw []byte) (Flag, error) {
	var f Flag
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return Flag{}, fmt.Errorf("decode flag: %w", err)
	}
	if f.Announcement != nil && f.Announcement.MessageID == "" {
		f.Announcement = nil
	}
	return f, nil
}
