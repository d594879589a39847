package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"safed/useradmin/internal/apperr"
	"safed/useradmin/internal/audit"
	"safed/useradmin/internal/auth"
	"safed/useradmin/internal/config"
	"safed/useradmin/internal/migrations"
	"safed/useradmin/internal/users"
)

const maxBodyBytes = 1 << 20

type AuthService interface {
	Login(ctx context.Context, username, password string) (auth.Session, error)
	Resolve(ctx context.Context, token string) (auth.Session, error)
	Logout(ctx context.Context, token string) error
	TTL() time.Duration
}

type UserService interface {
	List(ctx context.Context, f users.Filter) (users.Page, error)
	Get(ctx context.Context, id int64) (users.User, error)
	Create(ctx context.Context, in users.CreateInput) (users.User, error)
	Update(ctx context.Context, id int64, in users.UpdateInput) (users.User, error)
	Delete(ctx context.Context, id int64) error
}

type MigrationService interface {
	Status(ctx context.Context) ([]migrations.Status, error)
}

type AuditLogger interface {
	Record(e audit.Event) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type Deps struct {
	Auth        AuthService
	Users       UserService
	Migrations  MigrationService
	Audit       AuditLogger
	DB          Pinger
	Cookie      CookieConfig
	Logger      *slog.Logger
	ServiceName string
	Version     string
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	handler := otelhttp.NewHandler(loggingMiddleware(log, NewHandler(deps)), "useradmin.http")

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

type api struct {
	deps Deps
	log  *slog.Logger
}

func NewHandler(deps Deps) http.Handler {
	if deps.Cookie.Name == "" {
		deps.Cookie.Name = auth.DefaultCookieName
	}
	if deps.ServiceName == "" {
		deps.ServiceName = "useradmin"
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	a := &api{deps: deps, log: deps.Logger}
	if a.log == nil {
		a.log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", a.handleReady)
	mux.HandleFunc("/v1/info", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": deps.ServiceName,
			"version": deps.Version,
		})
	})
	mux.HandleFunc("/v1/migrations", a.handleMigrations)

	mux.HandleFunc("/auth/login", a.handleLogin)
	mux.HandleFunc("/auth/logout", a.handleLogout)
	mux.HandleFunc("/auth/me", a.handleMe)
	mux.HandleFunc("/auth/guard", a.handleGuard)

	mux.HandleFunc("/users", a.handleUsers)
	mux.HandleFunc("/users/", a.handleUser)

	return mux
}

func (a *api) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.deps.DB.PingContext(ctx); err != nil {
			a.log.Warn("readiness ping failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *api) handleMigrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if _, ok := a.requireSession(w, r, users.RoleIM); !ok {
		return
	}
	if a.deps.Migrations == nil {
		writeUnavailable(w, "migration service unavailable")
		return
	}
	status, err := a.deps.Migrations.Status(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": status})
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError converts any error into the public error body. Internal causes
// are logged and never sent to the client.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	status := apperr.HTTPStatus(e.Kind)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFromContext(r.Context()),
			"trace_id", traceID(r),
			"error", err,
		)
	}
	writeJSON(w, status, e.Public())
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, apperr.Body{Error: "Method not allowed", Code: "method_not_allowed"})
}

func writeUnavailable(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusServiceUnavailable, apperr.Body{Error: msg, Code: "unavailable"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
			"trace_id", traceID(r),
		)
	})
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey{}).(string); ok {
		return s
	}
	return ""
}

// traceID is empty when tracing is disabled.
func traceID(r *http.Request) string {
	sc := trace.SpanContextFromContext(r.Context())
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// auditReq fills request metadata and records e. Audit failures are logged
// and never fail the request.
func (a *api) auditReq(r *http.Request, e audit.Event) {
	if a.deps.Audit == nil {
		return
	}
	e.RequestID = requestIDFromContext(r.Context())
	e.ClientIP = clientIP(r)
	if err := a.deps.Audit.Record(e); err != nil {
		a.log.Warn("audit write failed", "action", e.Action, "error", err)
	}
}

func failureReason(err error) string {
	return string(apperr.From(err).Kind)
}
