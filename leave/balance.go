/*
balance.go - The leave balance ledger

PURPOSE:
  CRUD surface for the (user, leave-type, year) entitlement rows. Upsert is
  a full replace of the three stored quantities, not a delta: callers doing
  partial updates read-then-write. Incremental adjustment is reserved for
  the reconciler (Store.AddToUsed).

SEE ALSO:
  - reconciler.go: The only writer that adjusts `used` incrementally
*/
package leave

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
)

// Ledger owns the balance rows.
type Ledger struct {
	store TxStore
	clock core.Clock
}

func NewLedger(store TxStore, clock core.Clock) *Ledger {
	return &Ledger{store: store, clock: clock}
}

// UpsertInput carries absolute values; negatives are rejected.
type UpsertInput struct {
	UserID      string
	LeaveTypeID string
	Year        int
	Allocated   decimal.Decimal
	Used        decimal.Decimal
	CarryOver   decimal.Decimal
}

func (in UpsertInput) validate() error {
	if in.UserID == "" {
		return &core.ValidationError{Field: "user_id", Reason: "required"}
	}
	if in.LeaveTypeID == "" {
		return &core.ValidationError{Field: "leave_type_id", Reason: "required"}
	}
	if in.Year <= 0 {
		return &core.ValidationError{Field: "year", Reason: "required"}
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{{"allocated", in.Allocated}, {"used", in.Used}, {"carry_over", in.CarryOver}} {
		if f.value.IsNegative() {
			return &core.ValidationError{Field: f.name, Reason: "must not be negative"}
		}
	}
	return nil
}

// Upsert lazily creates the row for (user, type, year) or overwrites its
// three quantities with the supplied absolute values.
func (l *Ledger) Upsert(ctx context.Context, ident core.Identity, in UpsertInput) (*Balance, error) {
	if !ident.IsPrivileged() {
		return nil, fmt.Errorf("role %s cannot adjust balances: %w", ident.Role, core.ErrForbidden)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	var out *Balance
	err := l.store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetBalance(ctx, in.UserID, in.LeaveTypeID, in.Year)
		if err != nil {
			return err
		}
		if existing == nil {
			b := Balance{
				ID:          uuid.NewString(),
				UserID:      in.UserID,
				LeaveTypeID: in.LeaveTypeID,
				Year:        in.Year,
				Month:       0,
				Allocated:   in.Allocated,
				Used:        in.Used,
				CarryOver:   in.CarryOver,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.InsertBalance(ctx, b); err != nil {
				return err
			}
			out = &b
			return nil
		}

		existing.Allocated = in.Allocated
		existing.Used = in.Used
		existing.CarryOver = in.CarryOver
		existing.UpdatedAt = now
		if err := s.UpdateBalance(ctx, *existing); err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete hard-deletes a balance row.
func (l *Ledger) Delete(ctx context.Context, ident core.Identity, id string) error {
	if !ident.IsPrivileged() {
		return fmt.Errorf("role %s cannot delete balances: %w", ident.Role, core.ErrForbidden)
	}
	b, err := l.store.GetBalanceByID(ctx, id)
	if err != nil {
		return err
	}
	if b == nil {
		return &core.NotFoundError{Kind: "leave balance", ID: id}
	}
	return l.store.DeleteBalance(ctx, id)
}

// ListByYear returns every balance row for a year joined with user display
// fields and leave-type metadata, sorted by user name.
func (l *Ledger) ListByYear(ctx context.Context, year int) ([]BalanceRow, error) {
	return l.store.ListBalancesByYear(ctx, year)
}
