// ABOUTME: Gateway orchestrator that wires the store, assistant, and HTTP server
// ABOUTME: Manages route registration and graceful shutdown lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/quotedesk/quotedesk/internal/assets"
	"github.com/quotedesk/quotedesk/internal/assistant"
	"github.com/quotedesk/quotedesk/internal/config"
	"github.com/quotedesk/quotedesk/internal/conversation"
	"github.com/quotedesk/quotedesk/internal/messenger"
	"github.com/quotedesk/quotedesk/internal/store"
	"github.com/quotedesk/quotedesk/internal/webadmin"
)

// Gateway orchestrates the quotedesk server components.
// It owns the store, the assistant client, the conversation service,
// and the HTTP server that fronts them.
type Gateway struct {
	config       *config.Config
	store        store.Store
	conversation *conversation.Service
	webAdmin     *webadmin.Admin
	httpServer   *http.Server
	logger       *slog.Logger

	// baseURL is the external URL used when building affiliate links
	baseURL string
}

// initStore creates a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("QUOTEDESK_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// determineBaseURL resolves the external URL from config or environment.
func determineBaseURL(cfg *config.Config) string {
	if cfg.Server.BaseURL != "" {
		return cfg.Server.BaseURL
	}
	if envURL := os.Getenv("QUOTEDESK_BASE_URL"); envURL != "" {
		return envURL
	}
	return "http://" + cfg.Server.HTTPAddr
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	sqlStore, ok := s.(*store.SQLiteStore)
	if !ok {
		return nil, errors.New("unexpected store type: expected SQLiteStore")
	}

	client := assistant.New(assistant.Config{
		BaseURL:     cfg.Assistant.BaseURL,
		APIKey:      cfg.Assistant.APIKey,
		Model:       cfg.Assistant.Model,
		Temperature: cfg.Assistant.Temperature,
		MaxTokens:   cfg.Assistant.MaxTokens,
		Timeout:     cfg.Assistant.Timeout,
	})

	convService := conversation.New(sqlStore, client, cfg.Assistant.HistoryWindow, logger)

	gw := &Gateway{
		config:       cfg,
		store:        s,
		conversation: convService,
		logger:       logger.With("component", "gateway"),
		baseURL:      determineBaseURL(cfg),
	}

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("GET /health", gw.handleHealth)

	// Visitor API
	mux.HandleFunc("POST /api/chat", gw.handleChat)
	mux.HandleFunc("POST /api/lead", gw.handleLeadForm)
	mux.HandleFunc("GET /track/{partner}", gw.handleTrack)

	// Messenger webhook (only when a page is configured)
	if cfg.Messenger.Enabled {
		sender := messenger.NewSendClient("", cfg.Messenger.PageAccessToken)
		webhook := messenger.New(convService, sender, messenger.Config{
			VerifyToken: cfg.Messenger.VerifyToken,
		})
		webhook.RegisterRoutes(mux)
	}

	// Admin dashboard with its own session-based auth
	gw.webAdmin = webadmin.New(sqlStore, webadmin.Config{
		BaseURL:   gw.baseURL,
		JWTSecret: cfg.Admin.JWTSecret,
	})
	gw.webAdmin.RegisterRoutes(mux)
	logger.Info("admin web UI enabled at /admin/", "base_url", gw.baseURL)

	// Embedded visitor chat UI at the root
	mux.Handle("/", assets.FileServer())
	mux.HandleFunc("GET /chat", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusMovedPermanently)
	})

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 with a status body if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
