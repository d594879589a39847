package auth

import (
	"time"

	"safed/useradmin/internal/users"
)

// SessionUser is the snapshot copied into a session at login.
type SessionUser struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     users.Role `json:"role"`
	IsActive bool       `json:"isActive"`
}

func snapshotOf(u users.User) SessionUser {
	return SessionUser{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

type Session struct {
	ID        string      `json:"id"`
	User      SessionUser `json:"user"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
	// Token is the signed cookie value. It is never persisted.
	Token string `json:"-"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
