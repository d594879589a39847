package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"safed/useradmin/internal/audit"
	"safed/useradmin/internal/auth"
	"safed/useradmin/internal/config"
	"safed/useradmin/internal/httpserver"
	"safed/useradmin/internal/migrations"
	"safed/useradmin/internal/observability"
	"safed/useradmin/internal/users"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

type App struct {
	cfg      config.Config
	log      *slog.Logger
	db       *sql.DB
	auth     *auth.Service
	server   *httpserver.Server
	shutdown observability.ShutdownFunc
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.LogLevel)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	a := &App{cfg: cfg, log: logger, shutdown: shutdownTracing}
	if err := a.init(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg
	deps := httpserver.Deps{
		Cookie:      httpserver.CookieConfig{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure},
		Logger:      a.log,
		ServiceName: cfg.ServiceName,
		Version:     Version,
	}

	var userStore users.Store
	var sessionStore auth.SessionStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.db = db
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		migrationService, err := migrations.NewService(db)
		if err != nil {
			return err
		}
		if cfg.MigrateOnStart {
			applied, err := migrationService.Up(ctx)
			if err != nil {
				return err
			}
			a.log.Info("database migrations applied", "count", len(applied), "files", applied)
		}

		pgUsers, err := users.NewPostgresStore(db)
		if err != nil {
			return fmt.Errorf("create postgres user store: %w", err)
		}
		pgSessions, err := auth.NewPostgresSessionStore(db)
		if err != nil {
			return fmt.Errorf("create postgres session store: %w", err)
		}
		userStore, sessionStore = pgUsers, pgSessions
		deps.DB = db
		deps.Migrations = migrationService
	} else {
		a.log.Warn("DATABASE_URL not set, using in-memory stores")
		memSessions := auth.NewMemorySessionStore()
		userStore = cascadingUserStore{Store: users.NewMemoryStore(), sessions: memSessions}
		sessionStore = memSessions
	}

	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	userService, err := users.NewService(userStore, hasher)
	if err != nil {
		return fmt.Errorf("create user service: %w", err)
	}
	authService, err := auth.NewService(userService, hasher, auth.ServiceConfig{
		SessionSecret: cfg.Auth.SessionSecret,
		SessionTTL:    cfg.Auth.SessionTTL,
		Issuer:        cfg.Auth.SessionIssuer,
		SessionStore:  sessionStore,
	})
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}

	if err := bootstrapAdmin(ctx, userService, cfg.Auth, a.log); err != nil {
		return err
	}

	deps.Auth = authService
	deps.Users = userService
	deps.Audit = audit.NewLogger(cfg.AuditLogFile)

	a.auth = authService
	a.server = httpserver.New(cfg.HTTP, deps)
	return nil
}

type userSessionDeleter interface {
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

// cascadingUserStore drops a user's sessions after the user is deleted, as
// the auth_sessions foreign key does on Postgres.
type cascadingUserStore struct {
	users.Store
	sessions userSessionDeleter
}

func (s cascadingUserStore) Delete(ctx context.Context, id int64) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	if _, err := s.sessions.DeleteByUser(ctx, id); err != nil {
		return fmt.Errorf("delete sessions of user %d: %w", id, err)
	}
	return nil
}

// bootstrapAdmin creates the configured IM account when no user with that
// username exists. An existing account is left untouched.
func bootstrapAdmin(ctx context.Context, svc *users.Service, cfg config.AuthConfig, log *slog.Logger) error {
	_, err := svc.GetByUsername(ctx, cfg.BootstrapUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return fmt.Errorf("check bootstrap user: %w", err)
	}

	active := true
	u, err := svc.Create(ctx, users.CreateInput{
		Name:     cfg.BootstrapName,
		Username: cfg.BootstrapUsername,
		Email:    cfg.BootstrapEmail,
		Password: cfg.BootstrapPassword,
		Role:     users.RoleIM,
		IsActive: &active,
	})
	if err != nil {
		return fmt.Errorf("create bootstrap user: %w", err)
	}
	log.Info("bootstrap user created", "username", u.Username, "user_id", u.ID)
	return nil
}

type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// runJanitor purges expired sessions every interval until ctx is done.
func runJanitor(ctx context.Context, p sessionPurger, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Warn("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired sessions purged", "count", n)
			}
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.close(context.Background())

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runJanitor(janitorCtx, a.auth, a.cfg.Auth.SessionPurgeEvery, a.log)
	}()
	defer func() {
		stopJanitor()
		wg.Wait()
	}()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr, "version", Version)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}

func (a *App) close(ctx context.Context) {
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.log.Warn("tracing shutdown failed", "error", err)
		}
		a.shutdown = nil
	}
	if a.db != nil {
		_ = a.db.Close()
		a.db = nil
	}
}
