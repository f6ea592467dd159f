// Package server wires the application together: storage, gateway, services,
// handlers, middleware, routes, and graceful shutdown.
//
// COMPOSITION ROOT:
// This is the only place that knows concrete types. Everything below it
// receives interfaces or already-constructed collaborators:
//
//	config → store (sqlite|postgres) → services → handlers → routes
//	       → gateway (openai|gemini) ↗
//
// Swapping the database driver or the LLM provider is a config change that
// touches nothing outside this package.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/magami/pmai/internal/auth"
	"github.com/magami/pmai/internal/config"
	"github.com/magami/pmai/internal/gateway"
	"github.com/magami/pmai/internal/gateway/gemini"
	"github.com/magami/pmai/internal/gateway/openai"
	"github.com/magami/pmai/internal/handler"
	"github.com/magami/pmai/internal/middleware"
	"github.com/magami/pmai/internal/prompt"
	"github.com/magami/pmai/internal/quota"
	"github.com/magami/pmai/internal/repository"
	postgresRepo "github.com/magami/pmai/internal/repository/postgres"
	sqliteRepo "github.com/magami/pmai/internal/repository/sqlite"
	"github.com/magami/pmai/internal/safety"
	"github.com/magami/pmai/internal/service"
)

// Server owns the router and every resource that needs closing on shutdown.
type Server struct {
	router   *chi.Mux
	cfg      *config.Config
	logger   *slog.Logger
	store    repository.Store
	quotas   *quota.Store
	limiters *middleware.LimiterStore
}

// New assembles the full dependency chain from config.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := newStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	completer, err := newCompleter(cfg.Gateway, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	// Optional collaborators: a nil checker skips the external URL check in
	// scam mode, a zero quota disables the guest allowance.
	var checker safety.Checker
	if cfg.Safety.IPQSKey != "" {
		checker = safety.NewIPQS(cfg.Safety.IPQSKey, logger)
	}
	quotas := quota.NewStore(cfg.Quota.FreeMessages, time.Hour)
	limiters := middleware.NewLimiterStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, 5*time.Minute)

	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		logger:   logger,
		store:    store,
		quotas:   quotas,
		limiters: limiters,
	}

	if err := s.setupRoutes(completer, checker); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// newStore opens the configured persistence backend. Both drivers implement
// repository.Store, so nothing downstream cares which one is active.
func newStore(cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return postgresRepo.New(postgresRepo.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
	default:
		return sqliteRepo.New(cfg.SQLitePath)
	}
}

// newCompleter builds the configured language-model backend.
func newCompleter(cfg config.GatewayConfig, logger *slog.Logger) (gateway.Completer, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.New(context.Background(), cfg.GeminiKey, logger)
	default:
		return openai.New(cfg.OpenAIKey, logger), nil
	}
}

// setupRoutes configures middleware and all route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/auth/register → create account, set session cookie
//	POST   /api/auth/login    → verify credentials, set session cookie
//	POST   /api/auth/logout   → clear session cookie
//	GET    /api/me            → profile (auth)
//	DELETE /api/me            → delete own account (auth)
//	POST   /api/chat          → one chat exchange (optional auth)
//	GET    /api/history       → own exchanges, newest first (auth)
//	GET    /api/admin/stats   → usage report (auth + allow-list)
//	GET    /healthz           → liveness probe
func (s *Server) setupRoutes(completer gateway.Completer, checker safety.Checker) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.cfg.Auth.JWTSecret, time.Duration(s.cfg.Auth.TokenTTLMinutes)*time.Minute)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	policy := auth.DefaultPolicy()
	if s.cfg.Auth.PasswordMinLength > 0 {
		policy.MinLength = s.cfg.Auth.PasswordMinLength
	}

	authService := service.NewAuthService(
		s.store, tokens, auth.NewPasswordService(), policy, s.cfg.Admin.Emails, s.logger)

	chatService := service.NewChatService(
		s.store, prompt.NewBuilder(), completer, checker, s.quotas,
		service.ChatConfig{
			Options: gateway.Options{
				Model:       s.cfg.Gateway.Model,
				Temperature: s.cfg.Gateway.Temperature,
				MaxTokens:   s.cfg.Gateway.MaxTokens,
			},
			Timeout:   time.Duration(s.cfg.Gateway.TimeoutSeconds) * time.Second,
			Fallbacks: s.cfg.Gateway.Fallbacks,
		},
		s.logger)

	reportService := service.NewReportService(
		s.store, s.store, s.cfg.Admin.Emails, s.cfg.Admin.RecentLimit, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.limiters, tokens.TTL(), s.logger)
	chatHandler := handler.NewChatHandler(chatService, s.logger)
	adminHandler := handler.NewAdminHandler(reportService, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.Delete("/me", authHandler.HandleDelete)
			r.Get("/history", chatHandler.HandleHistory)
			r.Get("/admin/stats", adminHandler.HandleStats)
		})

		// Chat is open to guests: OptionalAuth attributes logged-in users,
		// Guest mints the cookie the quota is counted against.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Use(middleware.Guest)
			r.Post("/chat", chatHandler.HandleSubmit)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the store and stop the background loops.
func (s *Server) Start() error {
	defer s.closeResources()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // gateway calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("store", s.cfg.Store.Driver),
			slog.String("gateway", s.cfg.Gateway.Provider),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the assembled handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) closeResources() {
	s.limiters.Stop()
	s.quotas.Stop()
	if err := s.store.Close(); err != nil {
		s.logger.Error("closing store", slog.String("error", err.Error()))
	}
}
