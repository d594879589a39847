package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"safed/useradmin/internal/apperr"
	"safed/useradmin/internal/audit"
	"safed/useradmin/internal/auth"
	"safed/useradmin/internal/guard"
)

func invalidBody() *apperr.Error {
	return apperr.Validation(map[string]string{"body": "Invalid request body"})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if a.deps.Auth == nil {
		writeUnavailable(w, "auth service unavailable")
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, invalidBody())
		return
	}

	sess, err := a.deps.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.auditReq(r, audit.Event{
			Actor:   strings.TrimSpace(req.Username),
			Action:  "auth.login",
			Outcome: audit.OutcomeFailure,
			Reason:  failureReason(err),
		})
		a.writeError(w, r, err)
		return
	}

	a.issueCookie(w, sess.Token)
	a.auditReq(r, audit.Event{
		Actor:     sess.User.Username,
		Action:    "auth.login",
		Outcome:   audit.OutcomeSuccess,
		SessionID: sess.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login successful",
		"user":    sess.User,
	})
}

// handleLogout always succeeds and clears the cookie, even without a live
// session.
func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if a.deps.Auth == nil {
		writeUnavailable(w, "auth service unavailable")
		return
	}

	token := a.sessionToken(r)
	sess, _, _ := a.currentSession(r)
	if err := a.deps.Auth.Logout(r.Context(), token); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.clearCookie(w)
	a.auditReq(r, audit.Event{
		Actor:     sess.User.Username,
		Action:    "auth.logout",
		Outcome:   audit.OutcomeSuccess,
		SessionID: sess.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logout successful",
	})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if a.deps.Auth == nil {
		writeUnavailable(w, "auth service unavailable")
		return
	}
	sess, ok, err := a.currentSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var user *auth.SessionUser
	if ok {
		user = &sess.User
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *api) handleGuard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if a.deps.Auth == nil {
		writeUnavailable(w, "auth service unavailable")
		return
	}
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		path = guard.LandingPath
	}
	sess, ok, err := a.currentSession(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, guard.Evaluate(path, ok, sess.User.Role))
}
