package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *core.FixedClock) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &core.FixedClock{Current: time.Date(2025, time.March, 10, 8, 58, 0, 0, time.UTC)}
	handler := api.NewHandler(
		attendance.NewLedger(store, store, clock, core.DefaultPunchPolicy()),
		attendance.NewSweeper(store, store, clock),
		leave.NewLedger(store, clock),
		leave.NewReconciler(store, clock),
		store,
	)

	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, clock
}

func do(t *testing.T, srv *httptest.Server, method, path string, ident core.Identity, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if ident.UserID != "" {
		req.Header.Set("X-User-ID", ident.UserID)
		req.Header.Set("X-Role", string(ident.Role))
		if ident.DepartmentID != "" {
			req.Header.Set("X-Department-ID", ident.DepartmentID)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

var (
	emp  = core.Identity{UserID: "emp-1", Role: core.RoleEmployee}
	hr   = core.Identity{UserID: "hr-1", Role: core.RoleHRManager}
	none core.Identity
)

// =============================================================================
// IDENTITY MIDDLEWARE
// =============================================================================

func TestAPI_MissingIdentity_Rejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/attendance/today", none, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_UnknownRole_Rejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/attendance/today",
		core.Identity{UserID: "emp-1", Role: "superuser"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Healthz_NoIdentityNeeded(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/healthz", none, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// ATTENDANCE ENDPOINTS
// =============================================================================

func TestAPI_PunchLifecycle(t *testing.T) {
	// GIVEN: A fresh day
	// WHEN: Punching, punching again later, then a third time
	// THEN: 200 (open), 200 (close), 409 (terminal)

	srv, clock := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/attendance/punch", emp, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec struct {
		Status   string  `json:"status"`
		CheckOut *string `json:"check_out"`
	}
	decodeBody(t, resp, &rec)
	assert.Equal(t, "on_time", rec.Status)
	assert.Nil(t, rec.CheckOut)

	clock.Advance(8 * time.Hour)
	resp = do(t, srv, http.MethodPost, "/api/attendance/punch", emp, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &rec)
	assert.NotNil(t, rec.CheckOut)

	resp = do(t, srv, http.MethodPost, "/api/attendance/punch", emp, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_Today_States(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/attendance/today", emp, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var today struct {
		State string `json:"state"`
	}
	decodeBody(t, resp, &today)
	assert.Equal(t, "no_record", today.State)

	do(t, srv, http.MethodPost, "/api/attendance/punch", emp, nil)

	resp = do(t, srv, http.MethodGet, "/api/attendance/today", emp, nil)
	decodeBody(t, resp, &today)
	assert.Equal(t, "checked_in", today.State)
}

func TestAPI_ManualRecord_EmployeeForbidden(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/attendance/records", emp, map[string]any{
		"employee_id": "emp-2",
		"status":      "on_time",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_Cleanup(t *testing.T) {
	srv, _ := newTestServer(t)

	// Seed two employees through the directory endpoint.
	for _, id := range []string{"emp-1", "emp-2"} {
		resp := do(t, srv, http.MethodPost, "/api/employees", hr, map[string]any{
			"id":        id,
			"name":      "Employee " + id,
			"hire_date": "2024-01-15",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	do(t, srv, http.MethodPost, "/api/attendance/punch", emp, nil)

	resp := do(t, srv, http.MethodPost, "/api/attendance/cleanup", hr, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Checked  int  `json:"checked"`
		Inserted int  `json:"inserted"`
		NoOp     bool `json:"no_op"`
	}
	decodeBody(t, resp, &result)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Inserted)
	assert.False(t, result.NoOp)
}

// =============================================================================
// LEAVE ENDPOINTS
// =============================================================================

func TestAPI_BalanceUpsertAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/leave/balances", hr, map[string]any{
		"user_id":       "emp-1",
		"leave_type_id": "annual",
		"year":          2025,
		"allocated":     12,
		"used":          0,
		"carry_over":    2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal struct {
		Available float64 `json:"available"`
	}
	decodeBody(t, resp, &bal)
	assert.InDelta(t, 14, bal.Available, 0.001)

	resp = do(t, srv, http.MethodGet, "/api/leave/balances?year=2025", hr, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []map[string]any
	decodeBody(t, resp, &rows)
	assert.Len(t, rows, 1)
}

func TestAPI_BalanceUpsert_NegativeRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/leave/balances", hr, map[string]any{
		"user_id":       "emp-1",
		"leave_type_id": "annual",
		"year":          2025,
		"allocated":     -3,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_LeaveRequestLifecycle(t *testing.T) {
	// Submit, approve, verify the ledger moved, then audit.

	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/leave/balances", hr, map[string]any{
		"user_id":       "emp-1",
		"leave_type_id": "annual",
		"year":          2025,
		"allocated":     12,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/leave/requests", emp, map[string]any{
		"user_id":        "emp-1",
		"leave_type_id":  "annual",
		"start_date":     "2025-07-07",
		"end_date":       "2025-07-09",
		"days_requested": 3,
		"reason":         "family event",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &created)
	assert.Equal(t, "PENDING", created.Status)

	resp = do(t, srv, http.MethodPut, "/api/leave/requests/"+created.ID+"/status", hr, map[string]any{
		"status": "APPROVED",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/leave/balances?year=2025", hr, nil)
	var rows []struct {
		Used      float64 `json:"used"`
		Available float64 `json:"available"`
	}
	decodeBody(t, resp, &rows)
	require.Len(t, rows, 1)
	assert.InDelta(t, 3, rows[0].Used, 0.001)
	assert.InDelta(t, 9, rows[0].Available, 0.001)

	resp = do(t, srv, http.MethodGet, "/api/leave/balances/consistency?user_id=emp-1&leave_type_id=annual&year=2025", hr, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var audit struct {
		Consistent bool `json:"consistent"`
	}
	decodeBody(t, resp, &audit)
	assert.True(t, audit.Consistent)
}

func TestAPI_LeaveStatusUpdate_EmployeeForbidden(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/leave/requests", emp, map[string]any{
		"user_id":        "emp-1",
		"leave_type_id":  "annual",
		"start_date":     "2025-07-07",
		"end_date":       "2025-07-09",
		"days_requested": 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)

	resp = do(t, srv, http.MethodPut, "/api/leave/requests/"+created.ID+"/status", emp, map[string]any{
		"status": "APPROVED",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
