package auth

import "strings"

// Role is the access level carried in a token.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// roleRanks orders roles; each one can do everything below it.
var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole validates and lowercases a role string.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role grants required. Unknown roles grant nothing.
func RoleAtLeast(role Role, required Role) bool {
	rank, ok := roleRanks[role]
	return ok && rank >= roleRanks[required]
}
