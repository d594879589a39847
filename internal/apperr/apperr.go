package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation        Kind = "validation_failed"
	KindAuthFailed        Kind = "auth_failed"
	KindAccountInactive   Kind = "account_inactive"
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindDuplicateEmail    Kind = "duplicate_email"
	KindDuplicateUsername Kind = "duplicate_username"
	KindNoFields          Kind = "no_fields_provided"
	KindInternal          Kind = "internal_error"
)

const (
	msgInvalidCredentials = "Invalid username or password."
	msgAccountInactive    = "Your account is inactive. Please contact the administrator."
)

// Error is the single failure shape crossing package boundaries. Fields holds
// per-field messages keyed by input field name ("auth" for credential
// failures).
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind only so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAuthFailed        = &Error{Kind: KindAuthFailed}
	ErrAccountInactive   = &Error{Kind: KindAccountInactive}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrDuplicateEmail    = &Error{Kind: KindDuplicateEmail}
	ErrDuplicateUsername = &Error{Kind: KindDuplicateUsername}
	ErrNoFields          = &Error{Kind: KindNoFields}
	ErrInternal          = &Error{Kind: KindInternal}
)

func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

func AuthFailed() *Error {
	return &Error{
		Kind:    KindAuthFailed,
		Message: "Invalid username or password",
		Fields:  map[string]string{"auth": msgInvalidCredentials},
	}
}

func AccountInactive() *Error {
	return &Error{
		Kind:    KindAccountInactive,
		Message: "Account is inactive",
		Fields:  map[string]string{"auth": msgAccountInactive},
	}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "Authentication required"}
}

func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "You do not have permission to access this resource"}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func DuplicateEmail() *Error {
	return &Error{
		Kind:    KindDuplicateEmail,
		Message: "Email already exists",
		Fields:  map[string]string{"email": "This email is already registered"},
	}
}

func DuplicateUsername() *Error {
	return &Error{
		Kind:    KindDuplicateUsername,
		Message: "Username already exists",
		Fields:  map[string]string{"username": "This username is already taken"},
	}
}

func NoFields() *Error {
	return &Error{Kind: KindNoFields, Message: "No fields provided for update"}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// From returns err as *Error, wrapping anything unrecognised as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindDuplicateEmail, KindDuplicateUsername, KindNoFields:
		return http.StatusBadRequest
	case KindAuthFailed, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccountInactive, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage picks the most specific text available for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if msg := e.Fields["auth"]; msg != "" {
		return msg
	}
	if len(e.Fields) == 1 {
		for _, msg := range e.Fields {
			return msg
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}
