/*
reconciler.go - Leave request transitions and ledger deltas

PURPOSE:
  Applies leave-request status transitions and keeps the balance ledger
  reconciled: after any transition, `used` for (user, type, start-year)
  equals the sum of daysRequested over currently-APPROVED requests.

DELTA RULES (applied inside one transaction with the request write):
  - resulting status APPROVED:
      used += newDays - (oldDays if the prior status was APPROVED else 0)
  - resulting status not APPROVED, prior status APPROVED:
      used -= oldDays
  Transitions between two non-approved statuses touch nothing.

  Rejection after approval therefore reverses the earlier increment; undo
  (APPROVED -> PENDING) is allowed and reconciles the same way. The status
  graph is intentionally unconstrained because every edge is reconciled.

LAZY BALANCE ROWS:
  An approval for a (user, type, year) with no balance row yet creates the
  row with zero allocation and carry-over; availability simply goes
  negative until HR allocates.

SEE ALSO:
  - balance.go: The ledger being adjusted
  - store.go: WithTx atomicity contract
*/
package leave

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
)

// Reconciler owns leave requests and their ledger effects.
type Reconciler struct {
	store TxStore
	clock core.Clock
}

func NewReconciler(store TxStore, clock core.Clock) *Reconciler {
	return &Reconciler{store: store, clock: clock}
}

// =============================================================================
// CREATE / DELETE
// =============================================================================

// CreateInput is the submission payload.
type CreateInput struct {
	UserID        string
	LeaveTypeID   string
	StartDate     core.Date
	EndDate       core.Date
	DaysRequested decimal.Decimal
	Reason        string
}

// Create inserts a PENDING request. The ledger is untouched until approval.
func (r *Reconciler) Create(ctx context.Context, in CreateInput) (*Request, error) {
	switch {
	case in.UserID == "":
		return nil, &core.ValidationError{Field: "user_id", Reason: "required"}
	case in.LeaveTypeID == "":
		return nil, &core.ValidationError{Field: "leave_type_id", Reason: "required"}
	case in.StartDate.IsZero():
		return nil, &core.ValidationError{Field: "start_date", Reason: "required"}
	case in.EndDate.IsZero():
		return nil, &core.ValidationError{Field: "end_date", Reason: "required"}
	case in.EndDate.Before(in.StartDate):
		return nil, &core.ValidationError{Field: "end_date", Reason: "before start_date"}
	case !in.DaysRequested.IsPositive():
		return nil, &core.ValidationError{Field: "days_requested", Reason: "must be positive"}
	}

	now := r.clock.Now()
	req := Request{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		LeaveTypeID:   in.LeaveTypeID,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		DaysRequested: in.DaysRequested,
		Status:        StatusPending,
		Reason:        in.Reason,
		AppliedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.store.InsertRequest(ctx, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Delete hard-deletes a request without reversing any ledger effect
// already applied. Administrative action, assumed rare and deliberate.
func (r *Reconciler) Delete(ctx context.Context, ident core.Identity, id string) error {
	if !ident.IsPrivileged() {
		return fmt.Errorf("role %s cannot delete requests: %w", ident.Role, core.ErrForbidden)
	}
	req, err := r.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req == nil {
		return &core.NotFoundError{Kind: "leave request", ID: id}
	}
	return r.store.DeleteRequest(ctx, id)
}

// =============================================================================
// STATUS TRANSITION - One atomic unit of work
// =============================================================================

// StatusUpdate carries the transition; nil fields keep prior values.
type StatusUpdate struct {
	Status        RequestStatus
	StartDate     *core.Date
	EndDate       *core.Date
	DaysRequested *decimal.Decimal
}

// UpdateStatus writes the new status/dates/days onto the request and
// applies the ledger delta, all inside one transaction. Partial
// application is impossible: any failure rolls both writes back.
func (r *Reconciler) UpdateStatus(ctx context.Context, ident core.Identity, id string, upd StatusUpdate) (*Request, error) {
	if !ident.IsPrivileged() {
		return nil, fmt.Errorf("role %s cannot transition requests: %w", ident.Role, core.ErrForbidden)
	}
	if !ValidRequestStatus(string(upd.Status)) {
		return nil, &core.ValidationError{Field: "status", Reason: "must be PENDING, APPROVED or REJECTED"}
	}
	if upd.DaysRequested != nil && !upd.DaysRequested.IsPositive() {
		return nil, &core.ValidationError{Field: "days_requested", Reason: "must be positive"}
	}

	now := r.clock.Now()
	var out *Request
	err := r.store.WithTx(ctx, func(s Store) error {
		req, err := s.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req == nil {
			return &core.NotFoundError{Kind: "leave request", ID: id}
		}

		oldStatus := req.Status
		oldDays := req.DaysRequested
		oldYear := req.LedgerYear()

		req.Status = upd.Status
		if upd.StartDate != nil {
			req.StartDate = *upd.StartDate
		}
		if upd.EndDate != nil {
			req.EndDate = *upd.EndDate
		}
		if upd.DaysRequested != nil {
			req.DaysRequested = *upd.DaysRequested
		}
		if req.EndDate.Before(req.StartDate) {
			return &core.ValidationError{Field: "end_date", Reason: "before start_date"}
		}
		req.UpdatedAt = now

		if err := s.UpdateRequest(ctx, *req); err != nil {
			return err
		}

		if err := r.applyDelta(ctx, s, req, oldStatus, oldDays, oldYear); err != nil {
			return err
		}

		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyDelta adjusts `used` so it reflects the transition. Runs inside the
// caller's transaction.
func (r *Reconciler) applyDelta(ctx context.Context, s Store, req *Request, oldStatus RequestStatus, oldDays decimal.Decimal, oldYear int) error {
	wasApproved := oldStatus == StatusApproved
	isApproved := req.Status == StatusApproved

	// Dates may move a request across balance years; charge the old year
	// back and the new year forward independently.
	if wasApproved {
		if err := r.increment(ctx, s, req.UserID, req.LeaveTypeID, oldYear, oldDays.Neg()); err != nil {
			return err
		}
	}
	if isApproved {
		if err := r.increment(ctx, s, req.UserID, req.LeaveTypeID, req.LedgerYear(), req.DaysRequested); err != nil {
			return err
		}
	}
	return nil
}

// increment applies a delta to the keyed balance row, creating the row
// lazily when an approval arrives before any allocation. A reversal
// against a missing row is a no-op: the charge it would undo was removed
// along with the row, and a fresh row must never start with negative
// used days.
func (r *Reconciler) increment(ctx context.Context, s Store, userID, leaveTypeID string, year int, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	err := s.AddToUsed(ctx, userID, leaveTypeID, year, delta)
	if err == nil {
		return nil
	}
	if !core.IsNotFound(err) {
		return err
	}
	if delta.IsNegative() {
		return nil
	}

	now := r.clock.Now()
	b := Balance{
		ID:          uuid.NewString(),
		UserID:      userID,
		LeaveTypeID: leaveTypeID,
		Year:        year,
		Month:       0,
		Allocated:   decimal.Zero,
		Used:        delta,
		CarryOver:   decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.InsertBalance(ctx, b)
}

// =============================================================================
// READS & AUDIT
// =============================================================================

// ListByUser returns a user's requests.
func (r *Reconciler) ListByUser(ctx context.Context, userID string) ([]Request, error) {
	return r.store.ListRequestsByUser(ctx, userID)
}

// CheckConsistency recomputes the sum of APPROVED request days for the key
// and compares it against the stored `used`. A mismatch is returned as a
// core.ConsistencyError; callers decide whether to alert or repair.
func (r *Reconciler) CheckConsistency(ctx context.Context, userID, leaveTypeID string, year int) error {
	computed, err := r.store.SumApprovedDays(ctx, userID, leaveTypeID, year)
	if err != nil {
		return err
	}
	b, err := r.store.GetBalance(ctx, userID, leaveTypeID, year)
	if err != nil {
		return err
	}

	recorded := decimal.Zero
	if b != nil {
		recorded = b.Used
	}
	if recorded.Equal(computed) {
		return nil
	}
	return &core.ConsistencyError{
		UserID:      userID,
		LeaveTypeID: leaveTypeID,
		Year:        year,
		Recorded:    recorded,
		Computed:    computed,
	}
}
