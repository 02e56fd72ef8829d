// Package cmd holds the process-level entrypoints shared by the CLI.
package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/questionbot/core/bootstrap"
	coreconfig "github.com/m3rciful/questionbot/core/config"
	"github.com/m3rciful/questionbot/core/discord/commands"
	"github.com/m3rciful/questionbot/core/logger"
)

// App is what Serve runs once infrastructure is ready.
type App interface {
	Run(ctx context.Context) error
	Close() error
}

// Options describe how to load configuration, bootstrap the app and run it.
type Options struct {
	// ConfigPath is an explicit config file; it wins over ConfigEnvVar.
	ConfigPath   string
	ConfigEnvVar string

	LoadConfig     func(path string) (*coreconfig.Config, error)
	Bootstrap      func(ctx context.Context, opts bootstrap.Options) (*bootstrap.Result, error)
	Build          func(ctx context.Context, cfg *coreconfig.Config, db *sqlx.DB) (App, error)
	ShutdownLogger func() error
}

func (o Options) withDefaults() Options {
	if o.ConfigEnvVar == "" {
		o.ConfigEnvVar = "CONFIG_PATH"
	}
	if o.LoadConfig == nil {
		o.LoadConfig = coreconfig.Load
	}
	if o.Bootstrap == nil {
		o.Bootstrap = bootstrap.Run
	}
	if o.Build == nil {
		o.Build = func(ctx context.Context, cfg *coreconfig.Config, db *sqlx.DB) (App, error) {
			return bootstrap.Build(ctx, cfg, db)
		}
	}
	if o.ShutdownLogger == nil {
		o.ShutdownLogger = logger.Shutdown
	}
	return o
}

// configPath resolves the config file: the explicit path, else the env var.
// An empty result means configuration comes from the environment alone.
func (o Options) configPath() string {
	if p := strings.TrimSpace(o.ConfigPath); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(o.ConfigEnvVar))
}

func (o Options) loadConfig() (*coreconfig.Config, error) {
	path := o.configPath()
	if path != "" {
		log.Printf("loading config: %s", path)
	}
	cfg, err := o.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	return cfg, nil
}

// Serve loads configuration, bootstraps infrastructure and serves interactions
// until SIGINT or SIGTERM.
func Serve(opts Options) error {
	opts = opts.withDefaults()
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	infra, err := opts.Bootstrap(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := opts.ShutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	defer func() { _ = infra.Close() }()

	app, err := opts.Build(ctx, cfg, infra.DB)
	if err != nil {
		return fmt.Errorf("cmd: wiring failed: %w", err)
	}

	logger.L.With("component", "app").Info("app ready",
		slog.String("event", "ready"),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	runErr := app.Run(ctx)
	logger.L.With("component", "app").Info("shutting down...",
		slog.String("event", "shutdown"),
	)
	if err := app.Close(); err != nil {
		logger.L.With("component", "app").Warn("shutdown incomplete",
			slog.String("event", "shutdown"),
			slog.String("status", "fail"),
			logger.ErrAttr(err),
		)
	}
	return runErr
}

// RegisterCommands overwrites the application's command set and exits.
func RegisterCommands(opts Options) error {
	opts = opts.withDefaults()
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	client, err := bootstrap.NewClient(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.RegisterCommands(ctx, commands.Catalogue()); err != nil {
		return fmt.Errorf("cmd: register commands: %w", err)
	}
	return nil
}

// Migrate applies database migrations and exits.
func Migrate(opts Options) error {
	opts = opts.withDefaults()
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.UsesPostgres() {
		return fmt.Errorf("cmd: no state backend uses %q", coreconfig.BackendPostgres)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infra, err := opts.Bootstrap(ctx, bootstrap.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("cmd: migrate failed: %w", err)
	}
	defer func() { _ = opts.ShutdownLogger() }()
	return infra.Close()
}
