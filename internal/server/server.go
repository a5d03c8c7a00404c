// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads a *config.Config and passes it to New, which creates:
//
//	sqlite.DB        → PoemService       → PoemHandler, PageHandler
//	s3blob.Store     → BackgroundService → BackgroundHandler
//	HuggingFace      → EnhanceService    → EnhanceHandler
//	kv.Store         → background.Picker → PageHandler
//	TokenService + PasswordService → AuthService → AuthHandler
//
// Every collaborator is built here and injected. Nothing reaches for a
// package-level client.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/poetry-studio/internal/auth"
	"github.com/sakif/poetry-studio/internal/background"
	"github.com/sakif/poetry-studio/internal/blob"
	"github.com/sakif/poetry-studio/internal/blob/s3blob"
	"github.com/sakif/poetry-studio/internal/config"
	"github.com/sakif/poetry-studio/internal/generate"
	"github.com/sakif/poetry-studio/internal/handler"
	"github.com/sakif/poetry-studio/internal/kv"
	"github.com/sakif/poetry-studio/internal/middleware"
	sqliteRepo "github.com/sakif/poetry-studio/internal/repository/sqlite"
	"github.com/sakif/poetry-studio/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the state store. Start closes
// both after the HTTP server has drained; tests call Close directly.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	closers []func() error

	store  blob.Store
	gen    generate.Generator
	state  kv.Store
	tokens *auth.TokenService
	authed *service.AuthService
}

// New creates a new Server from cfg.
//
// Optional collaborators degrade instead of failing startup:
// no bucket configured means the gallery answers 503, no auth configured
// means every route is open.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.closers = append(s.closers, db.Close)

	if err := s.setupDependencies(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupDependencies(ctx context.Context) error {
	cfg := s.config

	// === BLOB STORAGE ===
	if cfg.Storage.Enabled() {
		store, err := s3blob.New(ctx, s3blob.Config{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("creating blob store: %w", err)
		}
		s.store = store
	} else {
		s.logger.Warn("storage.bucket not set, background uploads are disabled")
	}

	// === TEXT GENERATION ===
	s.gen = generate.NewHuggingFace(generate.Config{
		BaseURL:           cfg.Generate.BaseURL,
		Token:             cfg.Generate.Token,
		Models:            cfg.Generate.Models,
		RetryWait:         cfg.Generate.RetryWait,
		MinLength:         cfg.Generate.MinLength,
		RequestsPerSecond: cfg.Generate.RequestsPerSecond,
		Timeout:           cfg.Generate.Timeout,
	}, s.logger)

	// === STATE (background preference) ===
	dir := cfg.Draft.Dir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(cfg.Database.Path), "state")
	}
	state, closeState, err := kv.Open(ctx, kv.Options{
		Backend:       cfg.Draft.Backend,
		Dir:           dir,
		RedisAddr:     cfg.Draft.RedisAddr,
		RedisPassword: cfg.Draft.RedisPassword,
		RedisPrefix:   cfg.Draft.RedisPrefix,
	})
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	s.state = state
	s.closers = append(s.closers, closeState)

	// === AUTH ===
	// JWT_SECRET and the password hash enable login. Without them the studio
	// runs open, which is how it is used on a private machine.
	if cfg.Auth.Enabled() {
		tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		s.tokens = tokens
		s.authed = service.NewAuthService(cfg.Auth.PasswordHash, tokens, auth.NewPasswordService(), s.logger)
	} else {
		s.logger.Warn("auth not configured, all routes are open")
	}

	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                   → Database ping
// GET    /static/*                  → Static files
// GET    /background{1..10}.jpg     → Built-in backgrounds
// GET    /api/poems/count           → {"count": n}
// GET    /api/poems?limit=&offset=  → One range, newest first
// GET    /api/poems/{id}            → Single poem
// POST   /api/poems                 → Create           (auth)
// PUT    /api/poems/{id}            → Update           (auth)
// DELETE /api/poems/{id}            → Delete           (auth)
// GET    /api/backgrounds           → Gallery URLs
// POST   /api/backgrounds           → Upload           (auth)
// DELETE /api/backgrounds?url=      → Remove           (auth)
// POST   /api/enhance               → NDJSON stream    (auth)
// POST   /auth/login, /auth/logout  → Session cookie + token
// GET    /, /history, /poem/{id}    → Pages
// POST   /, /poem/{id}/edit, /poem/{id}/delete, /settings/background → Forms (session)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (logged by Logger)
// 2. RealIP: extracts the client IP from proxy headers
// 3. Recoverer: turns panics into 500s
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Static Files ===
	// GET /static/css/style.css → {StaticDir}/css/style.css
	fileServer := http.FileServer(http.Dir(s.config.Server.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	for _, ref := range background.BuiltIn {
		s.router.Handle(ref, fileServer)
	}

	// === Services ===
	poems := service.NewPoemService(s.db, s.logger)
	backgrounds := service.NewBackgroundService(s.store, s.logger)
	enhance := service.NewEnhanceService(s.gen, s.logger)

	// The server renders the background on every page, so applying a choice
	// needs no extra work beyond the log line.
	picker := background.NewPicker(s.state, background.ApplierFunc(func(ref string) {
		s.logger.Debug("background applied", slog.String("reference", ref))
	}), s.logger)

	// === Handlers ===
	var session *handler.AuthHandler
	if s.authed != nil {
		session = handler.NewAuthHandler(s.authed, s.tokens.TTL(), s.config.Server.SecureCookies, s.logger)
	}

	pages, err := handler.NewPageHandler(handler.PageConfig{
		Poems:       poems,
		Backgrounds: backgrounds,
		Picker:      picker,
		Session:     session,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	poemHandler := handler.NewPoemHandler(poems, s.logger)
	bgHandler := handler.NewBackgroundHandler(backgrounds, s.logger)
	enhanceHandler := handler.NewEnhanceHandler(enhance, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	// protect guards mutating API routes. A pass-through when auth is off.
	protect := func(next http.Handler) http.Handler { return next }
	optional := protect
	if s.tokens != nil {
		protect = auth.RequireAuth(s.tokens)
		optional = auth.OptionalAuth(s.tokens)

		s.router.Route("/auth", func(r chi.Router) {
			r.Post("/login", session.HandleLogin)
			r.Post("/logout", session.HandleLogout)
		})
	}

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/poems/count", poemHandler.HandleCount)
		r.Get("/poems", poemHandler.HandleList)
		r.Get("/poems/{id}", poemHandler.HandleGetByID)
		r.Get("/backgrounds", bgHandler.HandleList)

		r.Group(func(r chi.Router) {
			r.Use(protect)
			r.Post("/poems", poemHandler.HandleCreate)
			r.Put("/poems/{id}", poemHandler.HandleUpdate)
			r.Delete("/poems/{id}", poemHandler.HandleDelete)
			r.Post("/backgrounds", bgHandler.HandleUpload)
			r.Delete("/backgrounds", bgHandler.HandleDelete)
			r.Post("/enhance", enhanceHandler.HandleEnhance)
		})
	})

	// === Page Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(optional)
		r.Get("/", pages.HandleEditor)
		r.Get("/history", pages.HandleHistory)
		r.Get("/poem/{id}", pages.HandleDetail)
		r.Get("/login", pages.HandleLoginPage)
		r.Post("/login", pages.HandleLoginForm)
		r.Post("/logout", pages.HandleLogoutForm)

		r.Group(func(r chi.Router) {
			r.Use(pages.RequireSession)
			r.Post("/", pages.HandleCreate)
			r.Get("/poem/{id}/edit", pages.HandleEditor)
			r.Post("/poem/{id}/edit", pages.HandleEdit)
			r.Post("/poem/{id}/delete", pages.HandleDelete)
			r.Post("/settings/background", pages.HandleBackground)
		})
	})

	return nil
}

// Handler exposes the router, for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the state store and the database, in reverse order of creation.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the state store and the database (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
			slog.Bool("auth", s.tokens != nil),
			slog.Bool("storage", s.store != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
