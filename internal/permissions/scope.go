package permissions

import (
	"fmt"
	"strings"
)

// Scope is the organizational breadth a permission applies to.
type Scope string

const (
	ScopeOwn        Scope = "OWN"
	ScopeTeam       Scope = "TEAM"
	ScopeDepartment Scope = "DEPARTMENT"
	ScopeBranch     Scope = "BRANCH"
	ScopeGlobal     Scope = "GLOBAL"
)

var scopeRanks = map[Scope]int{
	ScopeOwn:        0,
	ScopeTeam:       1,
	ScopeDepartment: 2,
	ScopeBranch:     3,
	ScopeGlobal:     4,
}

// AllScopes lists scopes from the narrowest to the broadest.
func AllScopes() []Scope {
	return []Scope{ScopeOwn, ScopeTeam, ScopeDepartment, ScopeBranch, ScopeGlobal}
}

// ParseScope normalises and validates a scope string.
func ParseScope(value string) (Scope, error) {
	scope := Scope(strings.ToUpper(strings.TrimSpace(value)))
	if !scope.Valid() {
		return "", fmt.Errorf("permission: unknown scope %q", value)
	}
	return scope, nil
}

// Rank returns the scope's position in the ordering, or -1 when unknown.
func (s Scope) Rank() int {
	rank, ok := scopeRanks[s]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether s is one of the five known scopes.
func (s Scope) Valid() bool {
	_, ok := scopeRanks[s]
	return ok
}

// Covers reports whether a grant at scope s is broad enough for requested.
func (s Scope) Covers(requested Scope) bool {
	if !s.Valid() || !requested.Valid() {
		return false
	}
	return requested.Rank() <= s.Rank()
}

func (s Scope) String() string {
	return string(s)
}
