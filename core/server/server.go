// Package server exposes the interactions endpoint over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/m3rciful/questionbot/core/idgen"
	"github.com/m3rciful/questionbot/core/logger"
)

// Verifier authenticates an inbound delivery and decodes it.
type Verifier interface {
	Verify(r *http.Request) (*discordgo.Interaction, error)
}

// Dispatcher answers a verified interaction.
type Dispatcher interface {
	Dispatch(ctx context.Context, i *discordgo.Interaction) *discordgo.InteractionResponse
}

// Registrar overwrites the application's command set.
type Registrar interface {
	RegisterCommands(ctx context.Context, cmds []*discordgo.ApplicationCommand) error
}

// Options configures the server.
type Options struct {
	Addr       string
	Verifier   Verifier
	Dispatcher Dispatcher
	Registrar  Registrar
	Commands   []*discordgo.ApplicationCommand
	// ShutdownTimeout bounds graceful shutdown; zero means 10s.
	ShutdownTimeout time.Duration
}

// Server serves POST / for interactions, POST /set-commands and GET /health.
type Server struct {
	opts Options
	srv  *http.Server
	log  *slog.Logger
}

// New builds a Server; call ListenAndServe to start it.
func New(opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{opts: opts, log: logger.HTTP}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleInteraction)
	mux.HandleFunc("/set-commands", s.handleSetCommands)
	mux.HandleFunc("/health", s.handleHealth)
	return s.withRequestID(mux)
}

// ListenAndServe blocks until ctx is done, then shuts the server down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.LogEvent(ctx, s.log, slog.LevelInfo, "http.listen", slog.String("listen", s.opts.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	logger.LogEvent(shutdownCtx, s.log, slog.LevelInfo, "http.stopped")
	return nil
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRID(r.Context(), idgen.MustGenerate(""))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	start := time.Now()
	i, err := s.opts.Verifier.Verify(r)
	if err != nil {
		s.logRequest(r.Context(), "interaction", start, http.StatusUnauthorized, err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	resp := s.opts.Dispatcher.Dispatch(r.Context(), i)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logRequest(r.Context(), "interaction", start, http.StatusInternalServerError, err)
		return
	}
	s.logRequest(r.Context(), "interaction", start, http.StatusOK, nil)
}

func (s *Server) handleSetCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	start := time.Now()
	if err := s.opts.Registrar.RegisterCommands(r.Context(), s.opts.Commands); err != nil {
		s.logRequest(r.Context(), "set_commands", start, http.StatusInternalServerError, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logRequest(r.Context(), "set_commands", start, http.StatusOK, nil)
	_, _ = w.Write([]byte("Commands created"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	_, _ = w.Write([]byte("OK"))
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (s *Server) logRequest(ctx context.Context, route string, start time.Time, code int, err error) {
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("op", route),
		slog.Int("http_code", code),
		slog.Duration("duration", logger.Took(start)),
	}
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, logger.ErrAttr(err))
	}
	logger.LogEvent(ctx, s.log, level, "http.request", attrs...)
}
