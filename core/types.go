/*
Package core provides the shared value types for the attendance and leave
accounting engine.

PURPOSE:
  This package contains the domain-neutral building blocks used by both the
  attendance ledger and the leave ledger: calendar dates, the clock/policy
  provider, the caller identity context, and the error taxonomy.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identity: Who is calling (user, role, department)
  - Role: Closed set of caller roles
  - Decimal helpers: All quantities (days, hours) use decimal.Decimal

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for day counts and worked hours, never float64
  2. Type Safety: Closed enums for roles and statuses
  3. No ambient state: Clock and policy are injected, never read globally

SEE ALSO:
  - date.go: Calendar-date value type
  - clock.go: Clock and punch policy
  - errors.go: Error taxonomy
*/
package core

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTITY - Caller context supplied by upstream authentication
// =============================================================================

// Role identifies the capability level of a caller.
type Role string

const (
	RoleEmployee  Role = "employee"
	RoleManager   Role = "manager"
	RoleHRManager Role = "hr_manager"
	RoleAdmin     Role = "admin"
)

// Identity is the per-call caller context. The engine never authenticates;
// it only scopes queries by DepartmentID when Role is RoleManager.
type Identity struct {
	UserID       string
	Role         Role
	DepartmentID string
}

// IsPrivileged reports whether the caller may act on records owned by others.
func (id Identity) IsPrivileged() bool {
	return id.Role == RoleAdmin || id.Role == RoleHRManager || id.Role == RoleManager
}

// CanManageDepartment reports whether the caller may act on records of users
// in the given department. Admin and HR see everything; a Manager only their
// own department.
func (id Identity) CanManageDepartment(departmentID string) bool {
	switch id.Role {
	case RoleAdmin, RoleHRManager:
		return true
	case RoleManager:
		return id.DepartmentID == departmentID
	default:
		return false
	}
}

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleEmployee, RoleManager, RoleHRManager, RoleAdmin:
		return true
	}
	return false
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// MustParseDecimal parses s, falling back to zero on malformed input.
// Used when scanning trusted values out of the store.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
