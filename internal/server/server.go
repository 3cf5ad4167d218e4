// Package server is the composition root: it builds the store, services,
// session manager and handlers from a config.Config and mounts them on a chi
// router.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → repository.Store (sqlite or memory)
//	             → IdentityService / PostService / AccountService
//	             → session.Manager (gorilla sessions over the store)
//	             → Page / Auth / Post / Account handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/avatar"
	"github.com/sakif/microblog/internal/config"
	"github.com/sakif/microblog/internal/handler"
	"github.com/sakif/microblog/internal/metrics"
	"github.com/sakif/microblog/internal/middleware"
	"github.com/sakif/microblog/internal/repository"
	"github.com/sakif/microblog/internal/repository/memory"
	sqliteRepo "github.com/sakif/microblog/internal/repository/sqlite"
	"github.com/sakif/microblog/internal/service"
	"github.com/sakif/microblog/internal/session"
	"github.com/sakif/microblog/web"
)

// Server owns the store and the router. The store is closed when Start
// returns.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  repository.Store

	identity *service.IdentityService
}

// New opens the configured store and builds the server on it.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	s, err := NewWithStore(cfg, logger, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// OpenStore returns the store named by cfg.Store.
func OpenStore(cfg config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite, "":
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// NewWithStore builds the server on an existing store. Tests use it with the
// memory store.
func NewWithStore(cfg config.Config, logger *slog.Logger, store repository.Store) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes wires every dependency and mounts the routes.
//
// ROUTE STRUCTURE:
// GET    /                          → feed (HTML)
// GET    /login, /register          → entry page
// POST   /login                     → username login        [username mode]
// POST   /register                  → register
// GET    /auth/google               → start OAuth            [google mode]
// GET    /auth/google/callback      → finish OAuth           [google mode]
// GET    /registerUsername          → pick a username        [pending identity]
// POST   /registerUsername          → register               [pending identity]
// POST   /posts                     → create post            [login]
// GET    /profile                   → own posts              [login]
// GET    /avatar/{username}         → redirect to avatar
// POST   /like/{id}                 → toggle like            [login, JSON]
// POST   /delete/{id}               → delete post            [login, JSON]
// POST   /updateSorting/{mode}      → feed order             [login, JSON]
// POST   /deleteaccount             → delete own account     [login, JSON]
// POST   /setAdminMode              → role admin             [login, JSON]
// POST   /exitAdminMode             → role user              [login, JSON]
// POST   /adminremoveaccount/{id}   → remove post's author   [login, JSON]
// GET    /logout, /googleLogout     → end session
// GET    /error                     → generic error page
// GET    /static/*, /metrics
//
// MIDDLEWARE ORDER:
// RequestID → RealIP → Recoverer → Logger → session. The session middleware
// runs last so the auth gates inside route groups can read it.
func (s *Server) setupRoutes() error {
	keys, err := auth.DeriveKeys(s.config.SessionSecret)
	if err != nil {
		return err
	}

	// === Sessions ===
	sessionStore := session.NewStore(s.store, keys.SessionHash, keys.SessionBlock, sessions.Options{
		Path:     "/",
		MaxAge:   int(s.config.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	sessionManager := session.NewManager(sessionStore, s.logger)

	// === Services ===
	avatars, err := avatar.New()
	if err != nil {
		return fmt.Errorf("loading avatar font: %w", err)
	}
	s.identity = service.NewIdentityService(s.store, avatars, s.logger)
	posts := service.NewPostService(s.store, s.store, s.logger)
	accounts := service.NewAccountService(s.store, s.store, s.logger)

	// === Handlers ===
	renderer, err := handler.NewRenderer(web.Templates(), handler.Site{
		AppName:  s.config.AppName,
		AuthMode: s.config.AuthMode,
	}, s.logger)
	if err != nil {
		return err
	}
	pageHandler := handler.NewPageHandler(posts, s.identity, renderer, sessionManager, s.logger)
	postHandler := handler.NewPostHandler(posts, s.identity, sessionManager, s.logger)
	accountHandler := handler.NewAccountHandler(s.identity, accounts, sessionManager, s.logger)

	var google *auth.GoogleProvider
	var states *auth.StateSigner
	if s.config.AuthMode == config.AuthGoogle {
		google = auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     s.config.GoogleClientID,
			ClientSecret: s.config.GoogleClientSecret,
			CallbackURL:  s.config.GoogleCallbackURL,
			AuthURL:      s.config.GoogleAuthURL,
			TokenURL:     s.config.GoogleTokenURL,
			UserInfoURL:  s.config.GoogleUserInfoURL,
		})
		states, err = auth.NewStateSigner(keys.State)
		if err != nil {
			return err
		}
	}
	authHandler := handler.NewAuthHandler(s.config.AuthMode, google, states, s.identity, sessionManager, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// Static files and metrics need no session.
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Group(func(r chi.Router) {
		r.Use(sessionManager.Middleware)

		// === Public pages ===
		r.Get("/", pageHandler.HandleHome)
		r.Get("/login", pageHandler.HandleLogin)
		r.Get("/register", pageHandler.HandleRegisterPage)
		r.Post("/register", authHandler.HandleRegister)
		r.Get("/error", pageHandler.HandleError)
		r.Get("/avatar/{username}", accountHandler.HandleAvatar)
		r.Get("/logout", authHandler.HandleLogout)
		r.Get("/googleLogout", pageHandler.HandleGoogleLogout)

		// === Login variants ===
		if s.config.AuthMode == config.AuthGoogle {
			r.Get("/auth/google", authHandler.HandleGoogleLogin)
			r.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequirePendingIdentity("/login"))
				r.Get("/registerUsername", pageHandler.HandleRegisterUsername)
				r.Post("/registerUsername", authHandler.HandleRegister)
			})
		} else {
			r.Post("/login", authHandler.HandleUsernameLogin)
		}

		// === Browser routes behind login ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLogin("/login"))
			r.Post("/posts", postHandler.HandleCreate)
			r.Get("/profile", pageHandler.HandleProfile)
		})

		// === JSON routes behind login ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLoginJSON)
			r.Post("/like/{id}", postHandler.HandleLike)
			r.Post("/delete/{id}", postHandler.HandleDelete)
			r.Post("/updateSorting/{mode}", postHandler.HandleUpdateSorting)
			r.Post("/deleteaccount", accountHandler.HandleDeleteAccount)
			r.Post("/setAdminMode", accountHandler.HandleSetAdminMode)
			r.Post("/exitAdminMode", accountHandler.HandleExitAdminMode)
			r.Post("/adminremoveaccount/{id}", accountHandler.HandleAdminRemoveAccount)
		})
	})

	return nil
}

// Sweep runs the startup maintenance: avatars for users who have none and
// removal of expired sessions. Failures are logged, not fatal.
func (s *Server) Sweep(ctx context.Context) {
	if _, err := s.identity.BackfillAvatars(ctx); err != nil {
		s.logger.Warn("avatar backfill failed", slog.String("error", err.Error()))
	}

	n, err := s.store.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		s.logger.Warn("pruning sessions failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions pruned", slog.Int64("count", n))
	}
}

// Start runs the startup sweep, serves until SIGINT or SIGTERM, then shuts
// down gracefully and closes the store.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the store (flushes the SQLite WAL)
func (s *Server) Start() error {
	defer s.store.Close()

	sweepCtx, cancelSweep := context.WithTimeout(context.Background(), time.Minute)
	s.Sweep(sweepCtx)
	cancelSweep()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.Store),
			slog.String("auth", s.config.AuthMode),
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
