// Package bootstrap initializes shared infrastructure and wires the bot.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/questionbot/core/config"
	coredatabase "github.com/m3rciful/questionbot/core/database"
	"github.com/m3rciful/questionbot/core/logger"
)

// Options control the infrastructure pipeline. Nil hooks use the defaults.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Wait       func(ctx context.Context, cfg coredatabase.Config, timeout time.Duration) error
	Connect    func(ctx context.Context, cfg coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(*sqlx.DB) error

	// DBWaitTimeout bounds how long startup waits for Postgres; zero means 30s.
	DBWaitTimeout time.Duration
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil when no state backend uses Postgres.
	DB *sqlx.DB
}

// Close releases the database connection.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, when a state backend needs it, connects to
// Postgres and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if !opts.Config.UsesPostgres() {
		logger.Wire.Info("database skipped",
			slog.String("event", "db.skip"),
			slog.String("cause", "no postgres backend"),
		)
		return &Result{}, nil
	}

	wait := opts.Wait
	if wait == nil {
		wait = coredatabase.WaitForPostgres
	}
	timeout := opts.DBWaitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := wait(ctx, opts.Config.Database, timeout); err != nil {
		return nil, fmt.Errorf("bootstrap: database unavailable: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	return &Result{DB: db}, nil
}
