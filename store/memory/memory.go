/*
Package memory provides an in-memory implementation of the storage
interfaces, for tests and local development.

PURPOSE:
  Implements attendance.Store, directory.Store and leave.TxStore with the
  same observable semantics as store/sqlite: (nil, nil) lookups for missing
  rows, conflicts on (user, date) and balance-key duplicates, and atomic
  WithTx - simulated with a snapshot restored on error.

SEE ALSO:
  - store/sqlite: Production implementation
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/directory"
	"github.com/warp/attendance-engine/leave"
)

type dayKey struct {
	UserID string
	Date   core.Date
}

type balanceKey struct {
	UserID      string
	LeaveTypeID string
	Year        int
}

// Store holds everything in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	records     map[string]attendance.Record
	recordByDay map[dayKey]string

	employees  map[string]directory.Employee
	leaveTypes map[string]directory.LeaveType

	balances     map[string]leave.Balance
	balanceByKey map[balanceKey]string
	requests     map[string]leave.Request
}

func New() *Store {
	return &Store{
		records:      make(map[string]attendance.Record),
		recordByDay:  make(map[dayKey]string),
		employees:    make(map[string]directory.Employee),
		leaveTypes:   make(map[string]directory.LeaveType),
		balances:     make(map[string]leave.Balance),
		balanceByKey: make(map[balanceKey]string),
		requests:     make(map[string]leave.Request),
	}
}

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

func (m *Store) GetRecord(_ context.Context, id string) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Store) GetRecordForDay(_ context.Context, userID string, date core.Date) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.recordByDay[dayKey{UserID: userID, Date: date}]
	if !ok {
		return nil, nil
	}
	rec := m.records[id]
	return &rec, nil
}

func (m *Store) InsertRecord(_ context.Context, rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRecordLocked(rec)
}

func (m *Store) InsertRecords(_ context.Context, recs []attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all keys first so the batch is all-or-nothing.
	for _, rec := range recs {
		if _, exists := m.recordByDay[dayKey{UserID: rec.UserID, Date: rec.Date}]; exists {
			return &core.ConflictError{Op: "insert attendance record", Detail: "attendance already logged for this date"}
		}
	}
	for _, rec := range recs {
		if err := m.insertRecordLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Store) insertRecordLocked(rec attendance.Record) error {
	k := dayKey{UserID: rec.UserID, Date: rec.Date}
	if _, exists := m.recordByDay[k]; exists {
		return &core.ConflictError{Op: "insert attendance record", Detail: "attendance already logged for this date"}
	}
	m.records[rec.ID] = rec
	m.recordByDay[k] = rec.ID
	return nil
}

func (m *Store) UpdateRecord(_ context.Context, rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.ID]; !ok {
		return &core.NotFoundError{Kind: "attendance record", ID: rec.ID}
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *Store) CloseRecord(_ context.Context, rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.records[rec.ID]
	if !ok {
		return &core.NotFoundError{Kind: "attendance record", ID: rec.ID}
	}
	if cur.CheckOut != nil {
		return &core.ConflictError{Op: "close attendance record", Detail: "session already closed"}
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *Store) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return &core.NotFoundError{Kind: "attendance record", ID: id}
	}
	delete(m.records, id)
	delete(m.recordByDay, dayKey{UserID: rec.UserID, Date: rec.Date})
	return nil
}

func (m *Store) ListRecordsByUser(_ context.Context, userID string) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Record
	for _, rec := range m.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out, nil
}

func (m *Store) ListRecordsForDay(_ context.Context, date core.Date) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []attendance.Record
	for _, rec := range m.records {
		if rec.Date.Equal(date) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// =============================================================================
// DIRECTORY STORE
// =============================================================================

func (m *Store) GetEmployee(_ context.Context, id string) (*directory.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return &emp, nil
}

func (m *Store) ListEmployees(_ context.Context) ([]directory.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]directory.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		out = append(out, emp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) ListEmployeesByDepartment(_ context.Context, departmentID string) ([]directory.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []directory.Employee
	for _, emp := range m.employees {
		if emp.DepartmentID == departmentID {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) SaveEmployee(_ context.Context, emp directory.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
	return nil
}

func (m *Store) DeleteEmployee(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.employees[id]; !ok {
		return &core.NotFoundError{Kind: "employee", ID: id}
	}
	delete(m.employees, id)
	return nil
}

func (m *Store) GetLeaveType(_ context.Context, id string) (*directory.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lt, ok := m.leaveTypes[id]
	if !ok {
		return nil, nil
	}
	return &lt, nil
}

func (m *Store) ListLeaveTypes(_ context.Context) ([]directory.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]directory.LeaveType, 0, len(m.leaveTypes))
	for _, lt := range m.leaveTypes {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) SaveLeaveType(_ context.Context, lt directory.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveTypes[lt.ID] = lt
	return nil
}

func (m *Store) DeleteLeaveType(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leaveTypes[id]; !ok {
		return &core.NotFoundError{Kind: "leave type", ID: id}
	}
	delete(m.leaveTypes, id)
	return nil
}

// =============================================================================
// LEAVE STORE
// =============================================================================

func (m *Store) GetBalance(_ context.Context, userID, leaveTypeID string, year int) (*leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBalanceLocked(userID, leaveTypeID, year), nil
}

func (m *Store) getBalanceLocked(userID, leaveTypeID string, year int) *leave.Balance {
	id, ok := m.balanceByKey[balanceKey{UserID: userID, LeaveTypeID: leaveTypeID, Year: year}]
	if !ok {
		return nil
	}
	b := m.balances[id]
	return &b
}

func (m *Store) GetBalanceByID(_ context.Context, id string) (*leave.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.balances[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Store) InsertBalance(_ context.Context, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertBalanceLocked(b)
}

func (m *Store) insertBalanceLocked(b leave.Balance) error {
	k := balanceKey{UserID: b.UserID, LeaveTypeID: b.LeaveTypeID, Year: b.Year}
	if _, exists := m.balanceByKey[k]; exists {
		return &core.ConflictError{Op: "insert leave balance", Detail: "balance already exists for this user, leave type and year"}
	}
	m.balances[b.ID] = b
	m.balanceByKey[k] = b.ID
	return nil
}

func (m *Store) UpdateBalance(_ context.Context, b leave.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBalanceLocked(b)
}

func (m *Store) updateBalanceLocked(b leave.Balance) error {
	if _, ok := m.balances[b.ID]; !ok {
		return &core.NotFoundError{Kind: "leave balance", ID: b.ID}
	}
	m.balances[b.ID] = b
	return nil
}

func (m *Store) DeleteBalance(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.balances[id]
	if !ok {
		return &core.NotFoundError{Kind: "leave balance", ID: id}
	}
	delete(m.balances, id)
	delete(m.balanceByKey, balanceKey{UserID: b.UserID, LeaveTypeID: b.LeaveTypeID, Year: b.Year})
	return nil
}

func (m *Store) AddToUsed(_ context.Context, userID, leaveTypeID string, year int, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addToUsedLocked(userID, leaveTypeID, year, delta)
}

func (m *Store) addToUsedLocked(userID, leaveTypeID string, year int, delta decimal.Decimal) error {
	b := m.getBalanceLocked(userID, leaveTypeID, year)
	if b == nil {
		return &core.NotFoundError{Kind: "leave balance", ID: fmt.Sprintf("%s/%s/%d", userID, leaveTypeID, year)}
	}
	b.Used = b.Used.Add(delta)
	m.balances[b.ID] = *b
	return nil
}

func (m *Store) ListBalancesByYear(_ context.Context, year int) ([]leave.BalanceRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.BalanceRow
	for _, b := range m.balances {
		if b.Year != year {
			continue
		}
		row := leave.BalanceRow{Balance: b}
		if emp, ok := m.employees[b.UserID]; ok {
			row.UserName = emp.Name
			row.UserEmail = emp.Email
		}
		if lt, ok := m.leaveTypes[b.LeaveTypeID]; ok {
			row.LeaveTypeName = lt.Name
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserName != out[j].UserName {
			return out[i].UserName < out[j].UserName
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (m *Store) GetRequest(_ context.Context, id string) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) InsertRequest(_ context.Context, r leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *Store) UpdateRequest(_ context.Context, r leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequestLocked(r)
}

func (m *Store) updateRequestLocked(r leave.Request) error {
	if _, ok := m.requests[r.ID]; !ok {
		return &core.NotFoundError{Kind: "leave request", ID: r.ID}
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Store) DeleteRequest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[id]; !ok {
		return &core.NotFoundError{Kind: "leave request", ID: id}
	}
	delete(m.requests, id)
	return nil
}

func (m *Store) ListRequestsByUser(_ context.Context, userID string) ([]leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []leave.Request
	for _, r := range m.requests {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (m *Store) SumApprovedDays(_ context.Context, userID, leaveTypeID string, year int) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, r := range m.requests {
		if r.UserID == userID && r.LeaveTypeID == leaveTypeID &&
			r.Status == leave.StatusApproved && r.LedgerYear() == year {
			sum = sum.Add(r.DaysRequested)
		}
	}
	return sum, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback on error
// =============================================================================

// WithTx executes fn against a view bound to the held lock; on error the
// pre-transaction snapshot is restored.
func (m *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	balances     map[string]leave.Balance
	balanceByKey map[balanceKey]string
	requests     map[string]leave.Request
}

func (m *Store) snapshot() memorySnapshot {
	s := memorySnapshot{
		balances:     make(map[string]leave.Balance, len(m.balances)),
		balanceByKey: make(map[balanceKey]string, len(m.balanceByKey)),
		requests:     make(map[string]leave.Request, len(m.requests)),
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	for k, v := range m.balanceByKey {
		s.balanceByKey[k] = v
	}
	for k, v := range m.requests {
		s.requests[k] = v
	}
	return s
}

func (m *Store) restore(s memorySnapshot) {
	m.balances = s.balances
	m.balanceByKey = s.balanceByKey
	m.requests = s.requests
}

// txView is the leave.Store handed to WithTx callbacks. The parent's lock
// is already held, so it calls the unlocked internals.
type txView struct {
	parent *Store
}

func (t *txView) GetBalance(_ context.Context, userID, leaveTypeID string, year int) (*leave.Balance, error) {
	return t.parent.getBalanceLocked(userID, leaveTypeID, year), nil
}

func (t *txView) GetBalanceByID(_ context.Context, id string) (*leave.Balance, error) {
	b, ok := t.parent.balances[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t *txView) InsertBalance(_ context.Context, b leave.Balance) error {
	return t.parent.insertBalanceLocked(b)
}

func (t *txView) UpdateBalance(_ context.Context, b leave.Balance) error {
	return t.parent.updateBalanceLocked(b)
}

func (t *txView) DeleteBalance(_ context.Context, id string) error {
	b, ok := t.parent.balances[id]
	if !ok {
		return &core.NotFoundError{Kind: "leave balance", ID: id}
	}
	delete(t.parent.balances, id)
	delete(t.parent.balanceByKey, balanceKey{UserID: b.UserID, LeaveTypeID: b.LeaveTypeID, Year: b.Year})
	return nil
}

func (t *txView) AddToUsed(_ context.Context, userID, leaveTypeID string, year int, delta decimal.Decimal) error {
	return t.parent.addToUsedLocked(userID, leaveTypeID, year, delta)
}

func (t *txView) ListBalancesByYear(_ context.Context, year int) ([]leave.BalanceRow, error) {
	var out []leave.BalanceRow
	for _, b := range t.parent.balances {
		if b.Year == year {
			out = append(out, leave.BalanceRow{Balance: b})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (t *txView) GetRequest(_ context.Context, id string) (*leave.Request, error) {
	r, ok := t.parent.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (t *txView) InsertRequest(_ context.Context, r leave.Request) error {
	t.parent.requests[r.ID] = r
	return nil
}

func (t *txView) UpdateRequest(_ context.Context, r leave.Request) error {
	return t.parent.updateRequestLocked(r)
}

func (t *txView) DeleteRequest(_ context.Context, id string) error {
	if _, ok := t.parent.requests[id]; !ok {
		return &core.NotFoundError{Kind: "leave request", ID: id}
	}
	delete(t.parent.requests, id)
	return nil
}

func (t *txView) ListRequestsByUser(_ context.Context, userID string) ([]leave.Request, error) {
	var out []leave.Request
	for _, r := range t.parent.requests {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.After(out[j].AppliedAt) })
	return out, nil
}

func (t *txView) SumApprovedDays(_ context.Context, userID, leaveTypeID string, year int) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, r := range t.parent.requests {
		if r.UserID == userID && r.LeaveTypeID == leaveTypeID &&
			r.Status == leave.StatusApproved && r.LedgerYear() == year {
			sum = sum.Add(r.DaysRequested)
		}
	}
	return sum, nil
}
