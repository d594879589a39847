package apperr

import "net/http"

// Body is the JSON shape written for every failed request.
type Body struct {
	Error  string            `json:"error"`
	Code   Kind              `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Public never carries the wrapped cause.
func (e *Error) Public() Body {
	return Body{Error: e.Message, Code: e.Kind, Fields: e.Fields}
}

func FromBody(status int, b Body) *Error {
	kind := b.Code
	if kind == "" {
		kind = kindForStatus(status)
	}
	msg := b.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: kind, Message: msg, Fields: b.Fields}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindInternal
	}
}
