package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"safed/useradmin/internal/apperr"
	"safed/useradmin/internal/users"
)

var tracer = otel.Tracer("safed/useradmin/internal/auth")

type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (users.User, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type Service struct {
	users    UserLookup
	hasher   PasswordHasher
	sessions SessionStore
	signer   *CookieSigner
	ttl      time.Duration
	nowFunc  func() time.Time

	// verified against when the username is unknown so both failure paths
	// pay for one hash comparison
	dummyHash string
}

type ServiceConfig struct {
	SessionSecret string
	SessionTTL    time.Duration
	Issuer        string
	SessionStore  SessionStore
}

func NewService(lookup UserLookup, hasher PasswordHasher, cfg ServiceConfig) (*Service, error) {
	if lookup == nil {
		return nil, fmt.Errorf("user lookup is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be > 0")
	}
	signer, err := NewCookieSigner(cfg.SessionSecret, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	store := cfg.SessionStore
	if store == nil {
		store = NewMemorySessionStore()
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	s := &Service{
		users:     lookup,
		hasher:    hasher,
		sessions:  store,
		signer:    signer,
		ttl:       cfg.SessionTTL,
		nowFunc:   time.Now,
		dummyHash: dummy,
	}
	signer.nowFunc = func() time.Time { return s.nowFunc() }
	return s, nil
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login validates input, looks the user up once, rejects inactive accounts,
// verifies the password and then issues a session. Unknown usernames and
// wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer span.End()

	username = strings.TrimSpace(username)
	if fields := validateCredentials(username, password); fields != nil {
		return Session{}, apperr.Validation(fields)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			span.SetAttributes(attribute.String("auth.outcome", "unknown_user"))
			return Session{}, apperr.AuthFailed()
		}
		return Session{}, apperr.Internal(fmt.Errorf("look up user: %w", err))
	}

	// Checked before the password: an inactive account is reported as such
	// even when the password is wrong.
	if !u.IsActive {
		span.SetAttributes(attribute.String("auth.outcome", "inactive"))
		return Session{}, apperr.AccountInactive()
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		span.SetAttributes(attribute.String("auth.outcome", "bad_password"))
		return Session{}, apperr.AuthFailed()
	}

	now := s.nowFunc().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		User:      snapshotOf(u),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return Session{}, apperr.Internal(err)
	}
	token, err := s.signer.Sign(sess)
	if err != nil {
		_ = s.sessions.Delete(ctx, sess.ID)
		return Session{}, apperr.Internal(err)
	}
	sess.Token = token
	span.SetAttributes(attribute.String("auth.outcome", "success"), attribute.Int64("user.id", u.ID))
	return sess, nil
}

// Resolve maps a cookie value to a live session. Any problem with the token
// or the stored session is Unauthenticated.
func (s *Service) Resolve(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, apperr.Unauthenticated()
	}
	id, err := s.signer.SessionID(token)
	if err != nil {
		return Session{}, apperr.Unauthenticated()
	}
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{}, apperr.Unauthenticated()
		}
		return Session{}, apperr.Internal(err)
	}
	if sess.Expired(s.nowFunc()) {
		_ = s.sessions.Delete(ctx, sess.ID)
		return Session{}, apperr.Unauthenticated()
	}
	sess.Token = token
	return sess, nil
}

// CurrentUser returns nil without error when there is no valid session.
func (s *Service) CurrentUser(ctx context.Context, token string) (*SessionUser, error) {
	sess, err := s.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			return nil, nil
		}
		return nil, err
	}
	u := sess.User
	return &u, nil
}

// Logout is idempotent: a missing, invalid or already revoked token is not
// an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	id, err := s.signer.SessionID(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.nowFunc())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

func validateCredentials(username, password string) map[string]string {
	fields := make(map[string]string)
	if username == "" {
		fields["username"] = "Username is required"
	}
	if password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
