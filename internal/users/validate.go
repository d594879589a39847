package users

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"safed/useradmin/internal/apperr"
)

var (
	namePattern     = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

const maxPasswordBytes = 72

// ValidateCreate trims text fields in place and returns per-field messages.
// A nil map means the input is valid.
func ValidateCreate(in *CreateInput) map[string]string {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	fields := make(map[string]string)
	addIf(fields, "name", checkName(in.Name))
	addIf(fields, "username", checkUsername(in.Username))
	addIf(fields, "email", checkEmail(in.Email))
	addIf(fields, "password", checkPassword(in.Password))
	addIf(fields, "role", checkRole(in.Role))
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// ValidateUpdate checks only the fields that are present. An empty password
// means "keep the current one" and is cleared to nil.
func ValidateUpdate(in *UpdateInput) map[string]string {
	fields := make(map[string]string)
	if in.Name != nil {
		v := strings.TrimSpace(*in.Name)
		in.Name = &v
		addIf(fields, "name", checkName(v))
	}
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		in.Username = &v
		addIf(fields, "username", checkUsername(v))
	}
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		in.Email = &v
		addIf(fields, "email", checkEmail(v))
	}
	if in.Password != nil {
		if *in.Password == "" {
			in.Password = nil
		} else {
			addIf(fields, "password", checkPassword(*in.Password))
		}
	}
	if in.Role != nil {
		addIf(fields, "role", checkRole(*in.Role))
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

var updateKeys = map[string]struct{}{
	"name": {}, "username": {}, "email": {}, "password": {}, "role": {}, "isActive": {},
}

// DecodeUpdate parses a strict partial-update body: unknown keys and values
// of the wrong JSON type are reported per field.
func DecodeUpdate(r io.Reader) (UpdateInput, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return UpdateInput{}, apperr.Validation(map[string]string{"body": "Invalid request body"})
	}

	var in UpdateInput
	fields := make(map[string]string)
	for key, val := range raw {
		if _, ok := updateKeys[key]; !ok {
			fields[key] = "Unrecognized field"
			continue
		}
		if bytes.Equal(bytes.TrimSpace(val), []byte("null")) {
			fields[key] = "Invalid value"
			continue
		}
		var err error
		switch key {
		case "name":
			in.Name, err = decodeField[string](val)
		case "username":
			in.Username, err = decodeField[string](val)
		case "email":
			in.Email, err = decodeField[string](val)
		case "password":
			in.Password, err = decodeField[string](val)
		case "role":
			in.Role, err = decodeField[Role](val)
		case "isActive":
			in.IsActive, err = decodeField[bool](val)
		}
		if err != nil {
			fields[key] = "Invalid value"
		}
	}
	if len(fields) > 0 {
		return UpdateInput{}, apperr.Validation(fields)
	}
	return in, nil
}

func decodeField[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode field: %w", err)
	}
	return &v, nil
}

func addIf(fields map[string]string, key, msg string) {
	if msg != "" {
		fields[key] = msg
	}
}

func checkName(v string) string {
	n := utf8.RuneCountInString(v)
	switch {
	case n == 0:
		return "Full name is required"
	case n < 3:
		return "Full name must be at least 3 characters"
	case n > 100:
		return "Full name must not exceed 100 characters"
	case !namePattern.MatchString(v):
		return "Please enter a valid full name"
	}
	return ""
}

func checkUsername(v string) string {
	n := utf8.RuneCountInString(v)
	switch {
	case n == 0:
		return "Username is required"
	case n < 3:
		return "Username must be at least 3 characters"
	case n > 50:
		return "Username must not exceed 50 characters"
	case !usernamePattern.MatchString(v):
		return "Username can only contain letters, numbers, underscores, and hyphens"
	}
	return ""
}

func checkEmail(v string) string {
	if v == "" {
		return "Email is required"
	}
	if !validEmail(v) {
		return "Please enter a valid email address"
	}
	return ""
}

func validEmail(v string) bool {
	if len(v) > 255 || strings.ContainsAny(v, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return false
	}
	at := strings.LastIndex(v, "@")
	if at < 1 {
		return false
	}
	domain := v[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

func checkPassword(v string) string {
	if v == "" {
		return "Password is required"
	}
	if utf8.RuneCountInString(v) < 8 {
		return "Password must be at least 8 characters"
	}
	if len(v) > maxPasswordBytes {
		return "Password must not exceed 72 bytes"
	}
	var lower, upper, digit bool
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	switch {
	case !lower:
		return "Password must contain at least one lowercase letter"
	case !upper:
		return "Password must contain at least one uppercase letter"
	case !digit:
		return "Password must contain at least one number"
	}
	return ""
}

func checkRole(r Role) string {
	if r == "" {
		return "Role is required"
	}
	if !r.Valid() {
		return "Role must be one of IM, OBSERVER, STAFF"
	}
	return ""
}
