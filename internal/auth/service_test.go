package auth

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"safed/useradmin/internal/apperr"
	"safed/useradmin/internal/users"
)

const testSecret = "test-session-secret-0123456789abcdef"

type countingLookup struct {
	inner UserLookup
	calls int
}

func (c *countingLookup) GetByUsername(ctx context.Context, username string) (users.User, error) {
	c.calls++
	return c.inner.GetByUsername(ctx, username)
}

type failingLookup struct{}

func (failingLookup) GetByUsername(context.Context, string) (users.User, error) {
	return users.User{}, errors.New("connection reset")
}

func newTestAuth(t *testing.T) (*Service, *users.MemoryStore, *countingLookup) {
	t.Helper()
	store := users.NewMemoryStore()
	hasher := NewHasher(bcrypt.MinCost)
	lookup := &countingLookup{inner: store}
	svc, err := NewService(lookup, hasher, ServiceConfig{SessionSecret: testSecret, SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return svc, store, lookup
}

func seedUser(t *testing.T, store *users.MemoryStore, username, password string, active bool) users.User {
	t.Helper()
	hash, err := NewHasher(bcrypt.MinCost).Hash(password)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	u, err := store.Insert(context.Background(), users.User{
		Name:         "Ann Lee",
		Username:     username,
		Email:        username + "@x.com",
		PasswordHash: hash,
		Role:         users.RoleStaff,
		IsActive:     active,
	})
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	return u
}

func TestNewServiceValidatesConfig(t *testing.T) {
	store := users.NewMemoryStore()
	hasher := NewHasher(bcrypt.MinCost)

	if _, err := NewService(nil, hasher, ServiceConfig{SessionSecret: testSecret, SessionTTL: time.Hour}); err == nil {
		t.Fatalf("expected error for nil lookup")
	}
	if _, err := NewService(store, nil, ServiceConfig{SessionSecret: testSecret, SessionTTL: time.Hour}); err == nil {
		t.Fatalf("expected error for nil hasher")
	}
	if _, err := NewService(store, hasher, ServiceConfig{SessionSecret: testSecret}); err == nil {
		t.Fatalf("expected error for zero TTL")
	}
	if _, err := NewService(store, hasher, ServiceConfig{SessionSecret: "short", SessionTTL: time.Hour}); err == nil {
		t.Fatalf("expected error for short secret")
	}
}

func TestLoginIssuesSessionAndCurrentUser(t *testing.T) {
	svc, store, lookup := newTestAuth(t)
	u := seedUser(t, store, "annl", "Passw0rd", true)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "annl", "Passw0rd")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if sess.Token == "" || sess.ID == "" {
		t.Fatalf("expected session id and token")
	}
	if lookup.calls != 1 {
		t.Fatalf("expected exactly one lookup, got %d", lookup.calls)
	}

	want := SessionUser{ID: u.ID, Name: "Ann Lee", Username: "annl", Email: "annl@x.com", Role: users.RoleStaff, IsActive: true}
	if sess.User != want {
		t.Fatalf("unexpected snapshot: %+v", sess.User)
	}

	current, err := svc.CurrentUser(ctx, sess.Token)
	if err != nil {
		t.Fatalf("CurrentUser() error: %v", err)
	}
	if current == nil || *current != want {
		t.Fatalf("unexpected current user: %+v", current)
	}
}

func TestLoginUnknownUserAndWrongPasswordLookIdentical(t *testing.T) {
	svc, store, _ := newTestAuth(t)
	seedUser(t, store, "annl", "Passw0rd", true)
	ctx := context.Background()

	_, errUnknown := svc.Login(ctx, "nobody", "Passw0rd")
	_, errWrong := svc.Login(ctx, "annl", "WrongPass1")

	for _, err := range []error{errUnknown, errWrong} {
		if !errors.Is(err, apperr.ErrAuthFailed) {
			t.Fatalf("expected AuthFailed, got %v", err)
		}
	}
	if !reflect.DeepEqual(apperr.From(errUnknown).Public(), apperr.From(errWrong).Public()) {
		t.Fatalf("expected identical bodies: %+v vs %+v", apperr.From(errUnknown).Public(), apperr.From(errWrong).Public())
	}
	if got := apperr.From(errUnknown).Fields["auth"]; got != "Invalid username or password." {
		t.Fatalf("unexpected auth message %q", got)
	}
}

func TestLoginInactiveUserRegardlessOfPassword(t *testing.T) {
	svc, store, _ := newTestAuth(t)
	seedUser(t, store, "idle", "Passw0rd", false)
	ctx := context.Background()

	for _, password := range []string{"Passw0rd", "WrongPass1"} {
		_, err := svc.Login(ctx, "idle", password)
		if !errors.Is(err, apperr.ErrAccountInactive) {
			t.Fatalf("password %q: expected AccountInactive, got %v", password, err)
		}
	}
}

func TestLoginValidatesBeforeLookup(t *testing.T) {
	svc, _, lookup := newTestAuth(t)

	_, err := svc.Login(context.Background(), "   ", "")
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if e.Fields["username"] != "Username is required" || e.Fields["password"] != "Password is required" {
		t.Fatalf("unexpected field errors: %+v", e.Fields)
	}
	if lookup.calls != 0 {
		t.Fatalf("expected no lookups, got %d", lookup.calls)
	}
}

func TestLoginLookupFailureIsInternal(t *testing.T) {
	svc, err := NewService(failingLookup{}, NewHasher(bcrypt.MinCost), ServiceConfig{SessionSecret: testSecret, SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	_, err = svc.Login(context.Background(), "annl", "Passw0rd")
	if !errors.Is(err, apperr.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestResolveExpiredSession(t *testing.T) {
	svc, store, _ := newTestAuth(t)
	seedUser(t, store, "annl", "Passw0rd", true)
	ctx := context.Background()

	fakeNow := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return fakeNow }

	sess, err := svc.Login(ctx, "annl", "Passw0rd")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if _, err := svc.Resolve(ctx, sess.Token); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	svc.nowFunc = func() time.Time { return fakeNow.Add(2 * time.Hour) }
	if _, err := svc.Resolve(ctx, sess.Token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected Unauthenticated after expiry, got %v", err)
	}
	user, err := svc.CurrentUser(ctx, sess.Token)
	if err != nil || user != nil {
		t.Fatalf("expected no user and no error, got %+v, %v", user, err)
	}
}

func TestResolveRejectsTamperedToken(t *testing.T) {
	svc, store, _ := newTestAuth(t)
	seedUser(t, store, "annl", "Passw0rd", true)

	sess, err := svc.Login(context.Background(), "annl", "Passw0rd")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	tampered := sess.Token + "x"
	if _, err := svc.Resolve(context.Background(), tampered); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	if _, err := svc.Resolve(context.Background(), ""); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected Unauthenticated for empty token, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, store, _ := newTestAuth(t)
	seedUser(t, store, "annl", "Passw0rd", true)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "annl", "Passw0rd")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("second Logout() error: %v", err)
	}
	if err := svc.Logout(ctx, ""); err != nil {
		t.Fatalf("Logout() without session error: %v", err)
	}
	if _, err := svc.Resolve(ctx, sess.Token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected Unauthenticated after logout, got %v", err)
	}
}

func TestLoginAfterDeactivation(t *testing.T) {
	store := users.NewMemoryStore()
	hasher := NewHasher(bcrypt.MinCost)
	userSvc, err := users.NewService(store, hasher)
	if err != nil {
		t.Fatalf("users.NewService() error: %v", err)
	}
	svc, err := NewService(userSvc, hasher, ServiceConfig{SessionSecret: testSecret, SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	ctx := context.Background()

	created, err := userSvc.Create(ctx, users.CreateInput{
		Name: "Ann Lee", Username: "annl", Email: "ann@x.com", Password: "Passw0rd", Role: users.RoleStaff,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := svc.Login(ctx, "annl", "Passw0rd"); err != nil {
		t.Fatalf("Login() before deactivation error: %v", err)
	}

	inactive := false
	if _, err := userSvc.Update(ctx, created.ID, users.UpdateInput{IsActive: &inactive}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if _, err := svc.Login(ctx, "annl", "Passw0rd"); !errors.Is(err, apperr.ErrAccountInactive) {
		t.Fatalf("expected AccountInactive, got %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	svc, store, _ := newTestAuth(t)
	seedUser(t, store, "annl", "Passw0rd", true)
	ctx := context.Background()

	fakeNow := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return fakeNow }
	if _, err := svc.Login(ctx, "annl", "Passw0rd"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	svc.nowFunc = func() time.Time { return fakeNow.Add(30 * time.Minute) }
	if n, err := svc.PurgeExpired(ctx); err != nil || n != 0 {
		t.Fatalf("expected nothing purged yet, got %d, %v", n, err)
	}
	svc.nowFunc = func() time.Time { return fakeNow.Add(time.Hour) }
	if n, err := svc.PurgeExpired(ctx); err != nil || n != 1 {
		t.Fatalf("expected one purged session, got %d, %v", n, err)
	}
}
