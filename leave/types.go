/*
Package leave implements the leave-balance ledger and the request
reconciler.

PURPOSE:
  The balance ledger owns the (user, leave-type, year) entitlement record:
  allocated, carried-over and used days, with availability derived, never
  stored. The reconciler consumes leave-request status transitions and
  applies the matching delta to the ledger inside one atomic unit of work,
  so `used` always equals the sum of days over currently-APPROVED requests.

KEY CONCEPTS IN THIS FILE (types.go):
  - Balance: The per (user, type, year) entitlement row
  - Request: A leave request with its PENDING/APPROVED/REJECTED status
  - RequestStatus: Closed enum; transitions are unconstrained (undo is
    allowed) because every transition is reconciled

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for day counts (half days are 0.5)
  2. Derived availability: available = allocated + carryOver - used is
     computed on demand and may be negative; a negative value is a
     displayable flag for a human reviewer, not an error
  3. Atomicity: request write and ledger delta commit or roll back together

SEE ALSO:
  - balance.go: Upsert/delete/list operations
  - reconciler.go: Status transitions and ledger deltas
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
)

// =============================================================================
// BALANCE - (user, leave-type, year) entitlement row
// =============================================================================

type Balance struct {
	ID          string
	UserID      string
	LeaveTypeID string
	Year        int
	Month       int // legacy placeholder, always 0 for the initial record
	Allocated   decimal.Decimal
	Used        decimal.Decimal
	CarryOver   decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available derives the remaining entitlement. May be negative: that is a
// valid state meant to flag over-allocation to a reviewer.
func (b Balance) Available() decimal.Decimal {
	return b.Allocated.Add(b.CarryOver).Sub(b.Used)
}

// BalanceRow is a Balance joined with display metadata for listings.
type BalanceRow struct {
	Balance
	UserName      string
	UserEmail     string
	LeaveTypeName string
}

// =============================================================================
// REQUEST - A leave request and its status
// =============================================================================

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// ValidRequestStatus reports whether s names a known status.
func ValidRequestStatus(s string) bool {
	switch RequestStatus(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

type Request struct {
	ID            string
	UserID        string
	LeaveTypeID   string
	StartDate     core.Date
	EndDate       core.Date
	DaysRequested decimal.Decimal
	Status        RequestStatus
	Reason        string
	AppliedAt     time.Time
	UpdatedAt     time.Time
}

// LedgerYear is the balance year a request charges against: the year the
// leave starts.
func (r Request) LedgerYear() int { return r.StartDate.Year }
