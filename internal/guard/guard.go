package guard

import (
	"strings"

	"safed/useradmin/internal/users"
)

const (
	LandingPath  = "/"
	UsersPrefix  = "/users"
	StaffHome    = "/staff"
	ObserverHome = "/observer"
)

type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

func allow() Decision { return Decision{Allow: true} }

func redirect(to string) Decision { return Decision{Redirect: to} }

// Evaluate decides a navigation to path before anything renders. role is
// ignored when loggedIn is false.
func Evaluate(path string, loggedIn bool, role users.Role) Decision {
	if !loggedIn {
		if path != LandingPath {
			return redirect(LandingPath)
		}
		return allow()
	}
	if path == LandingPath {
		return redirect(HomeFor(role))
	}
	if strings.HasPrefix(path, UsersPrefix) && role != users.RoleIM {
		return redirect(LandingPath)
	}
	return allow()
}

func HomeFor(role users.Role) string {
	switch role {
	case users.RoleStaff:
		return StaffHome
	case users.RoleObserver:
		return ObserverHome
	default:
		return UsersPrefix
	}
}
