package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"safed/useradmin/internal/apperr"
	"safed/useradmin/internal/audit"
	"safed/useradmin/internal/auth"
	"safed/useradmin/internal/users"
)

func (a *api) handleUsers(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r, users.RoleIM)
	if !ok {
		return
	}
	if a.deps.Users == nil {
		writeUnavailable(w, "user service unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		page, err := a.deps.Users.List(r.Context(), users.ParseFilter(r.URL.Query()))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if page.Users == nil {
			page.Users = []users.User{}
		}
		writeJSON(w, http.StatusOK, page)
	case http.MethodPost:
		a.createUser(w, r, sess)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *api) createUser(w http.ResponseWriter, r *http.Request, sess auth.Session) {
	var in users.CreateInput
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		a.writeError(w, r, invalidBody())
		return
	}

	created, err := a.deps.Users.Create(r.Context(), in)
	if err != nil {
		a.auditUser(r, sess, "user.create", "", err)
		a.writeError(w, r, err)
		return
	}
	a.auditUser(r, sess, "user.create", strconv.FormatInt(created.ID, 10), nil)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User created successfully",
		"user":    created,
	})
}

func (a *api) handleUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r, users.RoleIM)
	if !ok {
		return
	}
	if a.deps.Users == nil {
		writeUnavailable(w, "user service unavailable")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/users/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		a.writeError(w, r, apperr.Validation(map[string]string{"id": "Invalid user ID"}))
		return
	}
	target := strconv.FormatInt(id, 10)

	switch r.Method {
	case http.MethodGet:
		u, err := a.deps.Users.Get(r.Context(), id)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	case http.MethodPut, http.MethodPatch:
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		in, err := users.DecodeUpdate(r.Body)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		updated, err := a.deps.Users.Update(r.Context(), id, in)
		if err != nil {
			a.auditUser(r, sess, "user.update", target, err)
			a.writeError(w, r, err)
			return
		}
		a.auditUser(r, sess, "user.update", target, nil)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "User updated successfully",
			"user":    updated,
		})
	case http.MethodDelete:
		if err := a.deps.Users.Delete(r.Context(), id); err != nil {
			a.auditUser(r, sess, "user.delete", target, err)
			a.writeError(w, r, err)
			return
		}
		a.auditUser(r, sess, "user.delete", target, nil)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "User deleted successfully",
		})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *api) auditUser(r *http.Request, sess auth.Session, action, target string, err error) {
	e := audit.Event{
		Actor:     sess.User.Username,
		Action:    action,
		Target:    target,
		Outcome:   audit.OutcomeSuccess,
		SessionID: sess.ID,
	}
	if err != nil {
		e.Outcome = audit.OutcomeFailure
		e.Reason = failureReason(err)
	}
	a.auditReq(r, e)
}
