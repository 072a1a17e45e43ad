/*
handlers.go - HTTP handlers for the attendance and leave engine

PURPOSE:
  Exposes the engine via REST. Handles JSON serialization, input
  validation, and delegates everything else to the domain packages.

ENDPOINTS:
  Attendance:
    POST   /api/attendance/punch          Toggle check-in/check-out
    POST   /api/attendance/check-in       Explicit check-in
    POST   /api/attendance/check-out      Explicit check-out
    GET    /api/attendance/today          Caller's record for today
    GET    /api/attendance/history        Caller's history
    GET    /api/attendance/history/{userID}  Another user's history (privileged)
    POST   /api/attendance/records        Manual create (privileged)
    PUT    /api/attendance/records/{id}   Manual edit (privileged)
    DELETE /api/attendance/records/{id}   Hard delete (privileged)
    POST   /api/attendance/cleanup        Absence sweep (privileged)

  Leave:
    GET    /api/leave/balances?year=      Balances joined with display fields
    POST   /api/leave/balances            Full-replace upsert
    DELETE /api/leave/balances/{id}
    GET    /api/leave/balances/consistency  Audit used vs approved requests
    POST   /api/leave/requests            Submit (PENDING)
    GET    /api/leave/requests?user_id=
    PUT    /api/leave/requests/{id}/status  Transition + ledger delta
    DELETE /api/leave/requests/{id}

  Directory (supporting surface):
    GET/POST /api/employees, GET/DELETE /api/employees/{id}
    GET/POST /api/leave-types, DELETE /api/leave-types/{id}

ERROR HANDLING:
  Domain errors map by kind: validation 400, not-found 404, conflict and
  consistency 409, forbidden 403, anything else 500. Storage failures are
  logged with their cause and surfaced as a generic message.

SEE ALSO:
  - dto.go: Payload shapes
  - identity.go: Caller identity middleware
  - server.go: Router setup
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/directory"
	"github.com/warp/attendance-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Attendance *attendance.Ledger
	Sweeper    *attendance.Sweeper
	Balances   *leave.Ledger
	Requests   *leave.Reconciler
	Directory  directory.Store

	validate *validator.Validate
}

func NewHandler(led *attendance.Ledger, sweep *attendance.Sweeper, bal *leave.Ledger, rec *leave.Reconciler, dir directory.Store) *Handler {
	return &Handler{
		Attendance: led,
		Sweeper:    sweep,
		Balances:   bal,
		Requests:   rec,
		Directory:  dir,
		validate:   validator.New(),
	}
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// Punch toggles the caller's attendance state for today.
func (h *Handler) Punch(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Attendance.Punch(r.Context(), identityFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// CheckIn opens today's session explicitly.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Attendance.CheckIn(r.Context(), identityFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// CheckOut closes today's session explicitly.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Attendance.CheckOut(r.Context(), identityFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// GetToday returns the caller's record for today, or the no_record state.
func (h *Handler) GetToday(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Attendance.GetTodayStatus(r.Context(), identityFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if rec == nil {
		writeJSON(w, http.StatusOK, TodayStatusDTO{State: "no_record"})
		return
	}

	state := "checked_in"
	switch {
	case rec.Status == attendance.StatusAbsent:
		state = "absent"
	case rec.CheckOut != nil:
		state = "checked_out"
	}
	dto := toRecordDTO(rec)
	writeJSON(w, http.StatusOK, TodayStatusDTO{State: state, Record: &dto})
}

// GetHistory returns attendance history, newest first. Without a userID
// path param it is the caller's own.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	records, err := h.Attendance.GetHistory(r.Context(), identityFrom(r), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RecordDTO, len(records))
	for i := range records {
		dtos[i] = toRecordDTO(&records[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddManualRecord creates a record on behalf of an employee.
func (h *Handler) AddManualRecord(w http.ResponseWriter, r *http.Request) {
	var req ManualRecordRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := attendance.ManualRecordInput{
		EmployeeID: req.EmployeeID,
		Status:     attendance.Status(req.Status),
		Notes:      req.Notes,
	}
	if req.Date != "" {
		date, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date (use YYYY-MM-DD)", err)
			return
		}
		in.Date = date
	}
	var ok bool
	if in.CheckIn, ok = parseTimestamp(w, req.CheckIn, "check_in"); !ok {
		return
	}
	if in.CheckOut, ok = parseTimestamp(w, req.CheckOut, "check_out"); !ok {
		return
	}

	rec, err := h.Attendance.AddManualRecord(r.Context(), identityFrom(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(rec))
}

// UpdateRecord edits a record (or a "missing-<userID>" placeholder).
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateRecordRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := attendance.UpdatePatch{Notes: req.Notes}
	if req.Status != nil {
		status := attendance.Status(*req.Status)
		patch.Status = &status
	}
	var ok bool
	if patch.CheckIn, ok = parseTimestamp(w, req.CheckIn, "check_in"); !ok {
		return
	}
	if patch.CheckOut, ok = parseTimestamp(w, req.CheckOut, "check_out"); !ok {
		return
	}

	rec, err := h.Attendance.UpdateRecord(r.Context(), identityFrom(r), id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec))
}

// DeleteRecord hard-deletes a record.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Attendance.DeleteRecord(r.Context(), identityFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// RunCleanup sweeps the scope for users without a record today.
func (h *Handler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	// Empty body means "all users" (subject to role scoping).
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	result, err := h.Sweeper.RunCleanup(r.Context(), identityFrom(r), attendance.SweepScope{DepartmentID: req.DepartmentID})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := CleanupResponse{
		Date:         result.Date.String(),
		DepartmentID: result.DepartmentID,
		Checked:      result.Checked,
		Inserted:     result.Inserted,
		NoOp:         result.NoOp(),
	}
	for i := range result.Records {
		resp.Records = append(resp.Records, toRecordDTO(&result.Records[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// LEAVE BALANCE HANDLERS
// =============================================================================

// ListBalances returns all balance rows for a year, joined with display
// fields, sorted by user name.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		year = y
	}

	rows, err := h.Balances.ListByYear(r.Context(), year)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]BalanceDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toBalanceRowDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertBalance creates or fully replaces a balance row.
func (h *Handler) UpsertBalance(w http.ResponseWriter, r *http.Request) {
	var req UpsertBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	b, err := h.Balances.Upsert(r.Context(), identityFrom(r), leave.UpsertInput{
		UserID:      req.UserID,
		LeaveTypeID: req.LeaveTypeID,
		Year:        req.Year,
		Allocated:   decimal.NewFromFloat(req.Allocated),
		Used:        decimal.NewFromFloat(req.Used),
		CarryOver:   decimal.NewFromFloat(req.CarryOver),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(*b))
}

// DeleteBalance hard-deletes a balance row.
func (h *Handler) DeleteBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Balances.Delete(r.Context(), identityFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// CheckConsistency audits used against approved requests for one key.
func (h *Handler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	leaveTypeID := q.Get("leave_type_id")
	year, err := strconv.Atoi(q.Get("year"))
	if userID == "" || leaveTypeID == "" || err != nil {
		writeError(w, http.StatusBadRequest, "user_id, leave_type_id and year are required", err)
		return
	}

	if err := h.Requests.CheckConsistency(r.Context(), userID, leaveTypeID, year); err != nil {
		var incons *core.ConsistencyError
		if errors.As(err, &incons) {
			recorded, _ := incons.Recorded.Float64()
			computed, _ := incons.Computed.Float64()
			writeJSON(w, http.StatusConflict, map[string]any{
				"consistent": false,
				"recorded":   recorded,
				"computed":   computed,
				"detail":     incons.Error(),
			})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consistent": true})
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// CreateLeaveRequest submits a PENDING request.
func (h *Handler) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := core.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Requests.Create(r.Context(), leave.CreateInput{
		UserID:        req.UserID,
		LeaveTypeID:   req.LeaveTypeID,
		StartDate:     start,
		EndDate:       end,
		DaysRequested: decimal.NewFromFloat(req.DaysRequested),
		Reason:        req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// ListLeaveRequests returns requests for a user (default: the caller).
func (h *Handler) ListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = identityFrom(r).UserID
	}

	requests, err := h.Requests.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RequestDTO, len(requests))
	for i := range requests {
		dtos[i] = toRequestDTO(&requests[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateLeaveRequestStatus transitions a request and reconciles the ledger.
func (h *Handler) UpdateLeaveRequestStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateLeaveStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	upd := leave.StatusUpdate{Status: leave.RequestStatus(req.Status)}
	if req.StartDate != nil {
		d, err := core.ParseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date (use YYYY-MM-DD)", err)
			return
		}
		upd.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := core.ParseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date (use YYYY-MM-DD)", err)
			return
		}
		upd.EndDate = &d
	}
	if req.DaysRequested != nil {
		d := decimal.NewFromFloat(*req.DaysRequested)
		upd.DaysRequested = &d
	}

	updated, err := h.Requests.UpdateStatus(r.Context(), identityFrom(r), id, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// DeleteLeaveRequest hard-deletes a request without reversing its ledger
// effect.
func (h *Handler) DeleteLeaveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Requests.Delete(r.Context(), identityFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Directory.ListEmployees(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{
			ID:           e.ID,
			Name:         e.Name,
			Email:        e.Email,
			DepartmentID: e.DepartmentID,
			HireDate:     e.HireDate.Format("2006-01-02"),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Directory.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "employee not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, EmployeeDTO{
		ID:           emp.ID,
		Name:         emp.Name,
		Email:        emp.Email,
		DepartmentID: emp.DepartmentID,
		HireDate:     emp.HireDate.Format("2006-01-02"),
	})
}

func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req SaveEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	hireDate, err := time.Parse("2006-01-02", req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hire_date (use YYYY-MM-DD)", err)
		return
	}

	emp := directory.Employee{
		ID:           req.ID,
		Name:         req.Name,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		HireDate:     hireDate,
	}
	if err := h.Directory.SaveEmployee(r.Context(), emp); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID:           emp.ID,
		Name:         emp.Name,
		Email:        emp.Email,
		DepartmentID: emp.DepartmentID,
		HireDate:     emp.HireDate.Format("2006-01-02"),
	})
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Directory.DeleteEmployee(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Directory.ListLeaveTypes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = LeaveTypeDTO{ID: lt.ID, Name: lt.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveLeaveType(w http.ResponseWriter, r *http.Request) {
	var req SaveLeaveTypeRequest
	if !h.decode(w, r, &req) {
		return
	}

	lt := directory.LeaveType{ID: req.ID, Name: req.Name}
	if err := h.Directory.SaveLeaveType(r.Context(), lt); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LeaveTypeDTO{ID: lt.ID, Name: lt.Name})
}

func (h *Handler) DeleteLeaveType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Directory.DeleteLeaveType(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON body, writing the error response
// itself. Returns false when the caller should bail out.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

func parseTimestamp(w http.ResponseWriter, s *string, field string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+field+" (use RFC3339)", err)
		return nil, false
	}
	return &t, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error kind to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid input", err)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, core.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, core.ErrConsistency):
		writeError(w, http.StatusConflict, "ledger inconsistent", err)
	case errors.Is(err, core.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err)
	default:
		// Storage and unexpected failures: log the cause, hide it from
		// the caller.
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
