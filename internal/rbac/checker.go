// Package rbac maps roles to permissions and gates handlers on them.
package rbac

import (
	"context"
	"strings"
)

// Checker answers permission questions against a role policy.
type Checker struct {
	rules map[string][]string
}

// NewChecker builds a checker. A nil policy uses RolePermissions.
func NewChecker(rules map[string][]string) *Checker {
	if rules == nil {
		rules = RolePermissions
	}
	return &Checker{rules: rules}
}

// Has reports whether the role grants the permission.
func (c *Checker) Has(role, perm string) bool {
	for _, granted := range c.rules[role] {
		if matchPerm(granted, perm) {
			return true
		}
	}
	return false
}

// Any reports whether the role grants at least one of the permissions.
func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func matchPerm(granted, want string) bool {
	if granted == "*" || granted == want {
		return true
	}
	if strings.HasSuffix(granted, "*") {
		return strings.HasPrefix(want, strings.TrimSuffix(granted, "*"))
	}
	return false
}

type ctxKey struct{}

// WithRole stores the request role on the context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

// RoleFromContext returns the request role, or "" when unset.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(ctxKey{}).(string)
	return role
}
