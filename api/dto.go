/*
dto.go - Request/response data structures

PURPOSE:
  JSON shapes for the HTTP surface, separate from domain types. Inputs are
  validated with go-playground/validator tags before they reach the
  domain; outputs render dates as "YYYY-MM-DD" and timestamps as RFC3339.
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/leave"
)

// =============================================================================
// ATTENDANCE
// =============================================================================

type RecordDTO struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Date      string  `json:"date"`
	CheckIn   *string `json:"check_in,omitempty"`
	CheckOut  *string `json:"check_out,omitempty"`
	Status    string  `json:"status"`
	WorkHours float64 `json:"work_hours"`
	Notes     string  `json:"notes,omitempty"`
}

func toRecordDTO(rec *attendance.Record) RecordDTO {
	dto := RecordDTO{
		ID:     rec.ID,
		UserID: rec.UserID,
		Date:   rec.Date.String(),
		Status: string(rec.Status),
		Notes:  rec.Notes,
	}
	dto.WorkHours, _ = rec.WorkHours.Float64()
	if rec.CheckIn != nil {
		s := rec.CheckIn.Format(time.RFC3339)
		dto.CheckIn = &s
	}
	if rec.CheckOut != nil {
		s := rec.CheckOut.Format(time.RFC3339)
		dto.CheckOut = &s
	}
	return dto
}

// TodayStatusDTO wraps today's record; State is "no_record" before any
// punch, then "checked_in" / "checked_out" / "absent".
type TodayStatusDTO struct {
	State  string     `json:"state"`
	Record *RecordDTO `json:"record,omitempty"`
}

type ManualRecordRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	Date       string  `json:"date"` // YYYY-MM-DD, defaults to today
	CheckIn    *string `json:"check_in"`
	CheckOut   *string `json:"check_out"`
	Status     string  `json:"status" validate:"required"`
	Notes      string  `json:"notes"`
}

type UpdateRecordRequest struct {
	Status   *string `json:"status"`
	CheckIn  *string `json:"check_in"`
	CheckOut *string `json:"check_out"`
	Notes    *string `json:"notes"`
}

type CleanupRequest struct {
	DepartmentID string `json:"department_id"`
}

type CleanupResponse struct {
	Date         string      `json:"date"`
	DepartmentID string      `json:"department_id,omitempty"`
	Checked      int         `json:"checked"`
	Inserted     int         `json:"inserted"`
	NoOp         bool        `json:"no_op"`
	Records      []RecordDTO `json:"records,omitempty"`
}

// =============================================================================
// LEAVE BALANCES
// =============================================================================

type BalanceDTO struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	UserName      string  `json:"user_name,omitempty"`
	UserEmail     string  `json:"user_email,omitempty"`
	LeaveTypeID   string  `json:"leave_type_id"`
	LeaveTypeName string  `json:"leave_type_name,omitempty"`
	Year          int     `json:"year"`
	Allocated     float64 `json:"allocated"`
	Used          float64 `json:"used"`
	CarryOver     float64 `json:"carry_over"`
	Available     float64 `json:"available"`
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	dto := BalanceDTO{
		ID:          b.ID,
		UserID:      b.UserID,
		LeaveTypeID: b.LeaveTypeID,
		Year:        b.Year,
	}
	dto.Allocated, _ = b.Allocated.Float64()
	dto.Used, _ = b.Used.Float64()
	dto.CarryOver, _ = b.CarryOver.Float64()
	dto.Available, _ = b.Available().Float64()
	return dto
}

func toBalanceRowDTO(r leave.BalanceRow) BalanceDTO {
	dto := toBalanceDTO(r.Balance)
	dto.UserName = r.UserName
	dto.UserEmail = r.UserEmail
	dto.LeaveTypeName = r.LeaveTypeName
	return dto
}

type UpsertBalanceRequest struct {
	UserID      string  `json:"user_id" validate:"required"`
	LeaveTypeID string  `json:"leave_type_id" validate:"required"`
	Year        int     `json:"year" validate:"required,gt=0"`
	Allocated   float64 `json:"allocated" validate:"gte=0"`
	Used        float64 `json:"used" validate:"gte=0"`
	CarryOver   float64 `json:"carry_over" validate:"gte=0"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type RequestDTO struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	LeaveTypeID   string  `json:"leave_type_id"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	DaysRequested float64 `json:"days_requested"`
	Status        string  `json:"status"`
	Reason        string  `json:"reason,omitempty"`
	AppliedAt     string  `json:"applied_at"`
}

func toRequestDTO(r *leave.Request) RequestDTO {
	dto := RequestDTO{
		ID:          r.ID,
		UserID:      r.UserID,
		LeaveTypeID: r.LeaveTypeID,
		StartDate:   r.StartDate.String(),
		EndDate:     r.EndDate.String(),
		Status:      string(r.Status),
		Reason:      r.Reason,
		AppliedAt:   r.AppliedAt.Format(time.RFC3339),
	}
	dto.DaysRequested, _ = r.DaysRequested.Float64()
	return dto
}

type CreateLeaveRequest struct {
	UserID        string  `json:"user_id" validate:"required"`
	LeaveTypeID   string  `json:"leave_type_id" validate:"required"`
	StartDate     string  `json:"start_date" validate:"required"`
	EndDate       string  `json:"end_date" validate:"required"`
	DaysRequested float64 `json:"days_requested" validate:"required,gt=0"`
	Reason        string  `json:"reason"`
}

type UpdateLeaveStatusRequest struct {
	Status        string   `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED"`
	StartDate     *string  `json:"start_date"`
	EndDate       *string  `json:"end_date"`
	DaysRequested *float64 `json:"days_requested"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

type EmployeeDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	DepartmentID string `json:"department_id"`
	HireDate     string `json:"hire_date"`
}

type SaveEmployeeRequest struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"omitempty,email"`
	DepartmentID string `json:"department_id"`
	HireDate     string `json:"hire_date" validate:"required"`
}

type LeaveTypeDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SaveLeaveTypeRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
