package users

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilterDefaults(t *testing.T) {
	f := ParseFilter(url.Values{})

	assert.Equal(t, Filter{Page: 1, Limit: 10}, f)
	assert.Equal(t, 0, f.Offset())
}

func TestParseFilterClampsPageAndLimit(t *testing.T) {
	tests := []struct {
		page, limit         string
		wantPage, wantLimit int
	}{
		{"0", "1000", 1, 100},
		{"-3", "-5", 1, 1},
		{"abc", "xyz", 1, 10},
		{"3", "0", 3, 1},
		{"2", "25", 2, 25},
		{"2abc", "25rows", 2, 25},
		{" 4", "+7", 4, 7},
		{"", "", 1, 10},
		{"-", "99999999999999999999999", 1, 100},
	}
	for _, tt := range tests {
		f := ParseFilter(url.Values{"page": {tt.page}, "limit": {tt.limit}})
		assert.Equal(t, tt.wantPage, f.Page, "page=%s", tt.page)
		assert.Equal(t, tt.wantLimit, f.Limit, "limit=%s", tt.limit)
	}
}

func TestParseFilterMissingLimitUsesDefault(t *testing.T) {
	f := ParseFilter(url.Values{"page": {"2"}})
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, 10, f.Offset())
}

func TestNormalizeZeroLimitMeansUnset(t *testing.T) {
	assert.Equal(t, DefaultLimit, Filter{}.Normalize().Limit)
}

func TestParseFilterRolesAndStatus(t *testing.T) {
	q := url.Values{
		"search": {"  ann  "},
		"roles":  {"IM,STAFF", "STAFF", " , OBSERVER"},
		"status": {"true,maybe", "false"},
	}
	f := ParseFilter(q)

	assert.Equal(t, "ann", f.Search)
	assert.Equal(t, []Role{RoleIM, RoleStaff, RoleObserver}, f.Roles)
	assert.Equal(t, []bool{true, false}, f.Statuses)
}

func TestNormalizeOffset(t *testing.T) {
	f := Filter{Page: 3, Limit: 20}.Normalize()
	assert.Equal(t, 40, f.Offset())
}

func TestFilterValuesParsesBack(t *testing.T) {
	in := Filter{
		Search:   "ann",
		Roles:    []Role{RoleStaff, RoleIM},
		Statuses: []bool{false},
		Page:     2,
		Limit:    25,
	}

	q := in.Values()
	assert.Equal(t, "STAFF,IM", q.Get("roles"))
	assert.Equal(t, "false", q.Get("status"))
	assert.Equal(t, in, ParseFilter(q))
}
