package users

import (
	"time"

	"safed/useradmin/internal/apperr"
)

type Role string

const (
	RoleIM       Role = "IM"
	RoleObserver Role = "OBSERVER"
	RoleStaff    Role = "STAFF"
)

var AllRoles = []Role{RoleIM, RoleObserver, RoleStaff}

func (r Role) Valid() bool {
	switch r {
	case RoleIM, RoleObserver, RoleStaff:
		return true
	}
	return false
}

var (
	ErrNotFound          = apperr.NotFound("User not found")
	ErrDuplicateEmail    = apperr.DuplicateEmail()
	ErrDuplicateUsername = apperr.DuplicateUsername()
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type CreateInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	IsActive *bool  `json:"isActive,omitempty"`
}

// UpdateInput is a partial update; nil means "leave unchanged".
type UpdateInput struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

func (in UpdateInput) Empty() bool {
	return in.Name == nil && in.Username == nil && in.Email == nil &&
		in.Password == nil && in.Role == nil && in.IsActive == nil
}

// Changes is what a store applies on update. PasswordHash replaces Password.
type Changes struct {
	Name         *string
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *Role
	IsActive     *bool
}

type Filter struct {
	Search   string
	Roles    []Role
	Statuses []bool
	Page     int
	Limit    int
}

type Page struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}
