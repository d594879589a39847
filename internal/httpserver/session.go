package httpserver

import (
	"net/http"
	"strings"

	"safed/useradmin/internal/apperr"
	"safed/useradmin/internal/auth"
	"safed/useradmin/internal/users"
)

// sessionToken prefers the session cookie and falls back to an
// Authorization: Bearer header.
func (a *api) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(a.deps.Cookie.Name); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// currentSession returns ok=false without writing anything when the caller
// is not authenticated.
func (a *api) currentSession(r *http.Request) (auth.Session, bool, error) {
	token := a.sessionToken(r)
	if token == "" {
		return auth.Session{}, false, nil
	}
	sess, err := a.deps.Auth.Resolve(r.Context(), token)
	if err != nil {
		if apperr.From(err).Kind == apperr.KindUnauthenticated {
			return auth.Session{}, false, nil
		}
		return auth.Session{}, false, err
	}
	return sess, true, nil
}

// requireSession writes 401 without a live session and 403 when role is set
// and the session's role differs.
func (a *api) requireSession(w http.ResponseWriter, r *http.Request, role users.Role) (auth.Session, bool) {
	if a.deps.Auth == nil {
		writeUnavailable(w, "auth service unavailable")
		return auth.Session{}, false
	}
	sess, ok, err := a.currentSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return auth.Session{}, false
	}
	if !ok {
		a.writeError(w, r, apperr.Unauthenticated())
		return auth.Session{}, false
	}
	if role != "" && sess.User.Role != role {
		a.writeError(w, r, apperr.Forbidden())
		return auth.Session{}, false
	}
	return sess, true
}

func (a *api) issueCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.deps.Cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.deps.Auth.TTL().Seconds()),
		HttpOnly: true,
		Secure:   a.deps.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *api) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.deps.Cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.deps.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
