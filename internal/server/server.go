// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware, and
// routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware (and which auth check) runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config ──▶ server.New
//	                    ├─ sqlite.DB ── implements every repository interface
//	                    ├─ ActivityService(db)
//	                    ├─ CardService(db, db, activity)
//	                    ├─ AuthService(db, tokens, passwords)
//	                    └─ handlers(services) ──▶ chi routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/greeting-cards/internal/auth"
	"github.com/sakif/greeting-cards/internal/config"
	"github.com/sakif/greeting-cards/internal/handler"
	"github.com/sakif/greeting-cards/internal/middleware"
	"github.com/sakif/greeting-cards/internal/model"
	sqliteRepo "github.com/sakif/greeting-cards/internal/repository/sqlite"
	"github.com/sakif/greeting-cards/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it on the way out;
// callers that never Start (tests) call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB

	tokens   *auth.TokenService
	auth     *service.AuthService
	cards    *service.CardService
	activity *service.ActivityService
}

// New opens the database, builds the services, makes sure the configured
// staff accounts exist and registers the routes.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` so it is not confused with
// the sqlite driver package.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	// === SERVICES ===
	// sqlite.DB implements CardRepository, ActivityRepository, UserRepository
	// and TxManager, so it is passed in several roles. The services only see
	// the interfaces.
	activity := service.NewActivityService(db, logger)
	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		tokens:   tokens,
		auth:     service.NewAuthService(db, tokens, auth.NewPasswordService(cfg.Auth.BcryptCost), logger),
		cards:    service.NewCardService(db, db, activity, logger),
		activity: activity,
	}

	if err := s.bootstrapStaff(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.setupRoutes()
	return s, nil
}

// bootstrapStaff creates or refreshes the reviewer and admin accounts named
// in the configuration. An empty password skips that account.
func (s *Server) bootstrapStaff(ctx context.Context) error {
	staff := []struct {
		username, password string
		role               model.Role
	}{
		{s.config.Auth.AdminUsername, s.config.Auth.AdminPassword, model.RoleAdmin},
		{s.config.Auth.ReviewerUsername, s.config.Auth.ReviewerPassword, model.RoleReviewer},
	}

	for _, acct := range staff {
		if acct.password == "" {
			s.logger.Info("staff account not configured, skipping", slog.String("role", string(acct.role)))
			continue
		}
		if _, err := s.auth.EnsureStaff(ctx, acct.username, acct.password, acct.role); err != nil {
			return fmt.Errorf("bootstrapping %s account %q: %w", acct.role, acct.username, err)
		}
	}
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                          liveness + DB ping
//	POST   /auth/login                       staff login
//	POST   /auth/logout
//	GET    /auth/github/login                (only when GitHub is configured)
//	GET    /auth/github/callback
//
//	optional auth:
//	POST   /api/cards                        submit (starts pending)
//	GET    /api/cards                        search visible cards
//	GET    /api/cards/{id}
//	PATCH  /api/cards/{id}                   edit content (submitter or admin)
//	POST   /api/cards/{id}/like
//	DELETE /api/cards/{id}                   admin
//
//	required auth:
//	GET    /api/me
//
//	reviewer or admin:
//	GET    /api/admin/cards                  search every status
//	GET    /api/admin/cards/pending          review queue
//	DELETE /api/admin/cards/{id}             admin
//	PUT    /api/admin/cards/{id}/approve
//	PUT    /api/admin/cards/{id}/reject
//	PATCH  /api/admin/cards/{id}             {status: active|inactive}, admin
//	GET    /api/admin/cards/{id}/activity
//	GET    /api/admin/stats
//	GET    /api/admin/recent-activity?limit=
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added:
// 1. RequestID: assigns unique ID to each request (our logger reads it)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
//
// Unmatched paths and methods answer in the same JSON error format as the
// handlers, not chi's plain-text defaults.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.NotFound(handler.HandleNotFound)
	s.router.MethodNotAllowed(handler.HandleMethodNotAllowed)

	healthHandler := handler.NewHealthHandler(s.db, s.logger)
	s.router.Get("/healthz", healthHandler.HandleHealth)

	// === Auth Routes ===
	var github *auth.GitHubProvider
	if s.config.Auth.GitHubEnabled() {
		github = auth.NewGitHubProvider(
			s.config.Auth.GitHubClientID,
			s.config.Auth.GitHubClientSecret,
			s.config.Auth.GitHubCallbackURL,
		)
	}
	authHandler := handler.NewAuthHandler(s.auth, github, handler.CookieOptions{
		TTL:    s.config.Auth.TokenTTL,
		Secure: s.config.Auth.SecureCookies,
	}, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		} else {
			s.logger.Info("GitHub OAuth not configured, member login disabled")
		}
	})

	// === API Routes ===
	cardHandler := handler.NewCardHandler(s.cards, s.logger)
	adminHandler := handler.NewAdminHandler(s.cards, s.activity, handler.ActivityLimits{
		Default: s.config.Cards.RecentActivityDefault,
		Max:     s.config.Cards.RecentActivityMax,
	}, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		// Public card routes: the actor is attached when a token is present,
		// and the service decides what that actor may see or do.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(s.tokens))

			r.Post("/cards", cardHandler.HandleCreate)
			r.Get("/cards", cardHandler.HandleList)
			r.Get("/cards/{id}", cardHandler.HandleGet)
			r.Patch("/cards/{id}", cardHandler.HandleUpdate)
			r.Post("/cards/{id}/like", cardHandler.HandleLike)
			r.Delete("/cards/{id}", cardHandler.HandleDelete)
		})

		r.With(auth.RequireAuth(s.tokens)).Get("/me", authHandler.HandleMe)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))
			r.Use(auth.RequireRole(model.RoleReviewer))

			r.Get("/cards", adminHandler.HandleList)
			r.Get("/cards/pending", adminHandler.HandlePending)
			r.Delete("/cards/{id}", adminHandler.HandleDelete)
			r.Put("/cards/{id}/approve", adminHandler.HandleApprove)
			r.Put("/cards/{id}/reject", adminHandler.HandleReject)
			r.Patch("/cards/{id}", adminHandler.HandleSetStatus)
			r.Get("/cards/{id}/activity", adminHandler.HandleCardActivity)
			r.Get("/stats", adminHandler.HandleStats)
			r.Get("/recent-activity", adminHandler.HandleRecentActivity)
		})
	})
}

// Handler exposes the router, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// Two goroutines run in an errgroup:
//
//	serve:    ListenAndServe until Shutdown is called (or it fails)
//	shutdown: wait for ctx (SIGINT/SIGTERM in main), then Shutdown with
//	          the configured timeout so in-flight requests can finish
//
// If serving fails first (port in use), the group's context is cancelled
// and the shutdown goroutine returns straight away. The database is closed
// last, after no handler can touch it any more.
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Database.Path),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutdown started")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
