/*
ledger.go - The attendance punch state machine

PURPOSE:
  Implements the per-(user, date) lifecycle:

    NoRecord --punch/check-in--> CheckedIn --punch/check-out--> CheckedOut

  Punch is the single toggle endpoint the UI and the chat-bot both call;
  CheckIn/CheckOut are the explicit non-toggling variants. Manual create,
  edit and delete are privileged operations scoped by role.

GUARDS:
  - Debounce: a punch closing a session less than DebounceWindow after the
    check-in is rejected. Punches arrive from multiple channels (web UI and
    bot) that can double-submit.
  - Terminal date: once checked out (or swept Absent), further punches on
    that date are conflicts.
  - Uniqueness race: two concurrent punches both observing NoRecord are
    resolved by the store's unique (user, date) index; the loser surfaces
    as a conflict.

SEE ALSO:
  - types.go: Status derivation rules
  - sweeper.go: Absent fill-in
*/
package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/directory"
)

// PlaceholderPrefix marks a virtual record id of the form
// "missing-<userID>", used by the admin UI to edit a user who has no
// record yet. UpdateRecord resolves it to a create for the current date.
const PlaceholderPrefix = "missing-"

// Ledger owns attendance records. All mutations go through it.
type Ledger struct {
	store  Store
	users  directory.Store
	clock  core.Clock
	policy core.PunchPolicy
}

func NewLedger(store Store, users directory.Store, clock core.Clock, policy core.PunchPolicy) *Ledger {
	return &Ledger{store: store, users: users, clock: clock, policy: policy}
}

// =============================================================================
// PUNCH - Single idempotent toggle
// =============================================================================

// Punch advances the caller's state machine for today: first call checks in,
// second call (past the debounce window) checks out, any further call is a
// conflict.
func (l *Ledger) Punch(ctx context.Context, ident core.Identity) (*Record, error) {
	now := l.clock.Now()
	today := core.DateOf(now)

	rec, err := l.store.GetRecordForDay(ctx, ident.UserID, today)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		return l.openSession(ctx, ident.UserID, now)
	}

	if !rec.Open() {
		return nil, &core.ConflictError{Op: "punch", Detail: "attendance already logged for this date"}
	}

	elapsed := now.Sub(*rec.CheckIn)
	if elapsed < l.policy.DebounceWindow {
		return nil, &core.ConflictError{Op: "punch", Detail: "please wait before punching out"}
	}

	return l.closeSession(ctx, rec, now)
}

// CheckIn opens today's session. Unlike Punch it never toggles: a second
// call is always a conflict.
func (l *Ledger) CheckIn(ctx context.Context, ident core.Identity) (*Record, error) {
	now := l.clock.Now()
	today := core.DateOf(now)

	rec, err := l.store.GetRecordForDay(ctx, ident.UserID, today)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return nil, &core.ConflictError{Op: "check-in", Detail: "attendance already logged for this date"}
	}

	return l.openSession(ctx, ident.UserID, now)
}

// CheckOut closes today's session. No debounce: it is an explicit,
// separate call.
func (l *Ledger) CheckOut(ctx context.Context, ident core.Identity) (*Record, error) {
	now := l.clock.Now()
	today := core.DateOf(now)

	rec, err := l.store.GetRecordForDay(ctx, ident.UserID, today)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.CheckIn == nil {
		return nil, &core.NotFoundError{Kind: "check-in", ID: ident.UserID + "/" + today.String()}
	}
	if rec.CheckOut != nil {
		return nil, &core.ConflictError{Op: "check-out", Detail: "attendance already logged for this date"}
	}

	return l.closeSession(ctx, rec, now)
}

func (l *Ledger) openSession(ctx context.Context, userID string, now time.Time) (*Record, error) {
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      core.DateOf(now),
		CheckIn:   &now,
		Status:    ArrivalStatus(now, l.policy),
		WorkHours: decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.store.InsertRecord(ctx, rec); err != nil {
		// A concurrent punch may have won the race; the unique index
		// turns the duplicate insert into a conflict.
		return nil, err
	}
	return &rec, nil
}

func (l *Ledger) closeSession(ctx context.Context, rec *Record, now time.Time) (*Record, error) {
	out := now
	rec.CheckOut = &out
	rec.WorkHours = WorkHours(*rec.CheckIn, now)
	rec.Status = FinalStatus(rec.Status, rec.WorkHours, l.policy)
	rec.UpdatedAt = now

	// CloseRecord only lands when the row is still open; a concurrent
	// punch that closed it first surfaces as a conflict.
	if err := l.store.CloseRecord(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// =============================================================================
// PRIVILEGED OPERATIONS - Manual create / edit / delete
// =============================================================================

// ManualRecordInput is the privileged-create payload.
type ManualRecordInput struct {
	EmployeeID string
	Date       core.Date
	CheckIn    *time.Time
	CheckOut   *time.Time
	Status     Status
	Notes      string
}

// AddManualRecord creates a record on behalf of an employee. Absent forces
// null timestamps and zero hours; otherwise hours are computed when both
// timestamps are supplied.
func (l *Ledger) AddManualRecord(ctx context.Context, ident core.Identity, in ManualRecordInput) (*Record, error) {
	if in.EmployeeID == "" {
		return nil, &core.ValidationError{Field: "employee_id", Reason: "required"}
	}
	if !ValidStatus(string(in.Status)) {
		return nil, &core.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", in.Status)}
	}
	if in.Date.IsZero() {
		in.Date = core.DateOf(l.clock.Now())
	}
	if err := l.authorizeWrite(ctx, ident, in.EmployeeID); err != nil {
		return nil, err
	}

	existing, err := l.store.GetRecordForDay(ctx, in.EmployeeID, in.Date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &core.ConflictError{Op: "add record", Detail: "attendance already logged for this date"}
	}

	now := l.clock.Now()
	rec := Record{
		ID:        uuid.NewString(),
		UserID:    in.EmployeeID,
		Date:      in.Date,
		CheckIn:   in.CheckIn,
		CheckOut:  in.CheckOut,
		Status:    in.Status,
		WorkHours: decimal.Zero,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyTimestampRules(&rec)

	if err := l.store.InsertRecord(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdatePatch is the privileged-edit payload. Nil fields keep prior values.
type UpdatePatch struct {
	Status   *Status
	CheckIn  *time.Time
	CheckOut *time.Time
	Notes    *string
}

// UpdateRecord edits an existing record, or creates one for today when id
// is a "missing-<userID>" placeholder. Manual edits trust the caller's
// chosen status; time thresholds are NOT re-applied.
func (l *Ledger) UpdateRecord(ctx context.Context, ident core.Identity, id string, patch UpdatePatch) (*Record, error) {
	if userID, ok := strings.CutPrefix(id, PlaceholderPrefix); ok {
		status := StatusAbsent
		if patch.Status != nil {
			status = *patch.Status
		}
		notes := ""
		if patch.Notes != nil {
			notes = *patch.Notes
		}
		return l.AddManualRecord(ctx, ident, ManualRecordInput{
			EmployeeID: userID,
			CheckIn:    patch.CheckIn,
			CheckOut:   patch.CheckOut,
			Status:     status,
			Notes:      notes,
		})
	}

	rec, err := l.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &core.NotFoundError{Kind: "attendance record", ID: id}
	}
	if err := l.authorizeWrite(ctx, ident, rec.UserID); err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if !ValidStatus(string(*patch.Status)) {
			return nil, &core.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *patch.Status)}
		}
		rec.Status = *patch.Status
	}
	if patch.CheckIn != nil {
		rec.CheckIn = patch.CheckIn
	}
	if patch.CheckOut != nil {
		rec.CheckOut = patch.CheckOut
	}
	if patch.Notes != nil {
		rec.Notes = *patch.Notes
	}
	applyTimestampRules(rec)
	rec.UpdatedAt = l.clock.Now()

	if err := l.store.UpdateRecord(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteRecord hard-deletes a record.
func (l *Ledger) DeleteRecord(ctx context.Context, ident core.Identity, id string) error {
	rec, err := l.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return &core.NotFoundError{Kind: "attendance record", ID: id}
	}
	if err := l.authorizeWrite(ctx, ident, rec.UserID); err != nil {
		return err
	}
	return l.store.DeleteRecord(ctx, id)
}

// applyTimestampRules enforces the Absent invariant and recomputes hours.
// Absent never carries timestamps; any other status gets hours from the
// pair when both are present.
func applyTimestampRules(rec *Record) {
	if rec.Status == StatusAbsent {
		rec.CheckIn = nil
		rec.CheckOut = nil
		rec.WorkHours = decimal.Zero
		return
	}
	if rec.CheckIn != nil && rec.CheckOut != nil {
		rec.WorkHours = WorkHours(*rec.CheckIn, *rec.CheckOut)
	}
}

// =============================================================================
// READS
// =============================================================================

// GetTodayStatus returns the caller's record for today, or nil when no
// punch has happened yet.
func (l *Ledger) GetTodayStatus(ctx context.Context, ident core.Identity) (*Record, error) {
	return l.store.GetRecordForDay(ctx, ident.UserID, core.DateOf(l.clock.Now()))
}

// GetHistory returns a user's records, newest first. Employees see only
// their own history; Managers their own department; HR/Admin everyone.
func (l *Ledger) GetHistory(ctx context.Context, ident core.Identity, userID string) ([]Record, error) {
	if userID == "" {
		userID = ident.UserID
	}
	if err := l.authorizeRead(ctx, ident, userID); err != nil {
		return nil, err
	}
	return l.store.ListRecordsByUser(ctx, userID)
}

// authorizeWrite checks that ident may create, edit or delete records
// owned by userID. These operations are privileged even when
// self-targeted: an Employee must never rewrite their own punches, only
// produce them through the state machine.
func (l *Ledger) authorizeWrite(ctx context.Context, ident core.Identity, userID string) error {
	if !ident.IsPrivileged() {
		return fmt.Errorf("role %s cannot modify records of user %s: %w", ident.Role, userID, core.ErrForbidden)
	}
	if ident.Role == core.RoleManager {
		emp, err := l.users.GetEmployee(ctx, userID)
		if err != nil {
			return err
		}
		if emp == nil {
			return &core.NotFoundError{Kind: "employee", ID: userID}
		}
		if !ident.CanManageDepartment(emp.DepartmentID) {
			return fmt.Errorf("manager of department %s cannot modify records in department %s: %w",
				ident.DepartmentID, emp.DepartmentID, core.ErrForbidden)
		}
	}
	return nil
}

// authorizeRead checks that ident may view records owned by userID.
// Unlike writes, self-service reads are always allowed.
func (l *Ledger) authorizeRead(ctx context.Context, ident core.Identity, userID string) error {
	if userID == ident.UserID {
		return nil
	}
	return l.authorizeWrite(ctx, ident, userID)
}
