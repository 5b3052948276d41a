// Copyright (c) 2026 Tourly. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Unrestricted system access
	RoleAdmin UserRole = "admin"

	// Default role for verified and federated accounts
	RoleTourist UserRole = "tourist"

	// Browsing-only accounts
	RoleGuest UserRole = "guest"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r.level() > 0
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleAdmin:
		return 30
	case RoleTourist:
		return 20
	case RoleGuest:
		return 10
	default:
		return 0
	}
}

// # Principals

// Principal is the freshly loaded identity attached to an authenticated request.
type Principal struct {
	UserID    string
	Email     string
	Role      UserRole
	FirstName string
	LastName  string
}

// AccessPolicy derives effective privileges from the stored role and configuration.
//
// The super-admin grant is computed here on every check and is never read from
// persisted role data.
type AccessPolicy struct {
	SuperAdminEmail string
}

// IsSuperAdmin reports whether email is exactly the configured super-admin email.
func (policy AccessPolicy) IsSuperAdmin(email string) bool {
	return policy.SuperAdminEmail != "" && email == policy.SuperAdminEmail
}

// IsAdmin reports whether the principal holds admin rights, stored or implicit.
func (policy AccessPolicy) IsAdmin(principal *Principal) bool {
	if principal == nil {
		return false
	}
	return principal.Role == RoleAdmin || policy.IsSuperAdmin(principal.Email)
}

// RoleFor returns the role an account should carry after synchronization.
// An existing admin is never downgraded.
func (policy AccessPolicy) RoleFor(email string, current UserRole) UserRole {
	if policy.IsSuperAdmin(email) || current == RoleAdmin {
		return RoleAdmin
	}
	if current == "" {
		return RoleTourist
	}
	return current
}
