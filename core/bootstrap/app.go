package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/questionbot/core/config"
	"github.com/m3rciful/questionbot/core/discord"
	"github.com/m3rciful/questionbot/core/discord/commands"
	"github.com/m3rciful/questionbot/core/discord/middleware"
	"github.com/m3rciful/questionbot/core/discord/router"
	"github.com/m3rciful/questionbot/core/discord/sender"
	"github.com/m3rciful/questionbot/core/logger"
	"github.com/m3rciful/questionbot/core/questions"
	"github.com/m3rciful/questionbot/core/reconcile"
	"github.com/m3rciful/questionbot/core/server"
	"github.com/m3rciful/questionbot/core/state"
)

// App is the fully wired bot.
type App struct {
	Client    *discord.Client
	Store     *state.Store
	Service   *questions.Service
	Router    *router.Router
	Server    *server.Server
	Tasks     *sender.Dispatcher
	Scheduler *reconcile.Scheduler

	closeStore func() error
}

// NewClient builds the Discord REST client from cfg.
func NewClient(cfg *coreconfig.Config) (*discord.Client, error) {
	webhook, err := discord.ParseWebhookURL(cfg.Discord.QuestionsWebhook)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return discord.NewClient(discord.Options{
		BotToken:      cfg.Discord.BotToken,
		ApplicationID: cfg.Discord.ApplicationID,
		Webhook:       webhook,
		RetryAttempts: cfg.Discord.HTTPRetryAttempts,
	})
}

// Build wires every component. db may be nil when no backend is Postgres.
func Build(ctx context.Context, cfg *coreconfig.Config, db *sqlx.DB) (*App, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	verifier, err := discord.NewVerifier(cfg.Discord.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	store, closeStore, err := state.Open(ctx, cfg, db)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	tasks := sender.NewDispatcher(sender.Options{
		QueueSize:  cfg.Dispatcher.QueueSize,
		Workers:    cfg.Dispatcher.Workers,
		JobTimeout: cfg.Dispatcher.JobTimeout(),
	})
	svc := questions.NewService(client, store, tasks)

	r := router.New()
	r.HandleCommand(commands.GateCommand, svc.HandleGate, middleware.GuildOnly)
	r.HandleMessageCommand(svc.HandleTriage, middleware.GuildOnly)
	r.HandleComponent(questions.AskButtonID, svc.HandleAskButton, middleware.GuildOnly)
	r.HandleModal(questions.AskModalID, svc.HandleAskModal, middleware.GuildOnly)

	app := &App{
		Client:  client,
		Store:   store,
		Service: svc,
		Router:  r,
		Tasks:   tasks,
		Server: server.New(server.Options{
			Addr:       cfg.HTTP.Addr(),
			Verifier:   verifier,
			Dispatcher: r,
			Registrar:  client,
			Commands:   commands.Catalogue(),
		}),
		closeStore: closeStore,
	}

	if cfg.Reconcile.Spec != "" {
		app.Scheduler, err = reconcile.NewScheduler(cfg.Reconcile.Spec, svc, time.Minute)
		if err != nil {
			tasks.Close()
			_ = closeStore()
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	logger.Wire.Info("app wired",
		slog.String("event", "wire.done"),
		slog.String("listen", cfg.HTTP.Addr()),
		slog.Bool("reconcile", app.Scheduler != nil),
	)
	return app, nil
}

// Run serves until ctx is done, then stops the server before draining deferred work.
func (a *App) Run(ctx context.Context) error {
	if a.Scheduler != nil {
		a.Scheduler.RunOnce()
		a.Scheduler.Start()
	}
	return a.Server.ListenAndServe(ctx)
}

// Close stops background work in dependency order.
func (a *App) Close() error {
	if a.Scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		a.Scheduler.Stop(ctx)
		cancel()
	}
	a.Tasks.Close()
	var errs []error
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("bootstrap: close state: %w", err))
		}
	}
	return errors.Join(errs...)
}
