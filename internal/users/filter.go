package users

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ParseFilter reads search, roles, status, page and limit from a query
// string. roles and status accept comma-separated values and repeated keys.
// page and limit read their leading integer; a missing or non-numeric value
// takes the default and any number is clamped, so limit=0 yields 1.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Search: strings.TrimSpace(q.Get("search")),
		Page:   DefaultPage,
		Limit:  DefaultLimit,
	}
	if n, ok := leadingInt(q.Get("page")); ok && n > 1 {
		f.Page = n
	}
	if n, ok := leadingInt(q.Get("limit")); ok {
		f.Limit = min(max(n, 1), MaxLimit)
	}

	for _, v := range splitValues(q["roles"]) {
		f.Roles = append(f.Roles, Role(v))
	}
	for _, v := range splitValues(q["status"]) {
		switch v {
		case "true":
			f.Statuses = append(f.Statuses, true)
		case "false":
			f.Statuses = append(f.Statuses, false)
		}
	}
	return f.Normalize()
}

// Normalize treats a zero Limit as unset. Query strings never reach it with
// zero because ParseFilter clamps first.
func (f Filter) Normalize() Filter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 1 {
		f.Limit = 1
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Values encodes f as a query string that ParseFilter reads back.
func (f Filter) Values() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if len(f.Roles) > 0 {
		roles := make([]string, len(f.Roles))
		for i, r := range f.Roles {
			roles[i] = string(r)
		}
		q.Set("roles", strings.Join(roles, ","))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = strconv.FormatBool(st)
		}
		q.Set("status", strings.Join(statuses, ","))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// leadingInt parses the optionally signed run of digits at the start of raw,
// ignoring anything after it: "2abc" is 2 and "abc" is not a number.
func leadingInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// Only overflow is possible here.
		n = math.MaxInt
	}
	if neg {
		n = -n
	}
	return n, true
}

func splitValues(raw []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}
