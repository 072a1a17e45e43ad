package core_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/attendance-engine/core"
)

func TestStructuredErrors_UnwrapToSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{&core.ValidationError{Field: "status", Reason: "unknown"}, core.ErrValidation},
		{&core.ConflictError{Op: "punch", Detail: "already logged"}, core.ErrConflict},
		{&core.NotFoundError{Kind: "leave request", ID: "r-1"}, core.ErrNotFound},
		{&core.ConsistencyError{UserID: "emp-1", Recorded: decimal.NewFromInt(7), Computed: decimal.NewFromInt(3)}, core.ErrConsistency},
		{&core.StorageError{Op: "insert", Err: fmt.Errorf("disk full")}, core.ErrStorage},
	}
	for _, c := range cases {
		assert.ErrorIs(t, c.err, c.sentinel, "%T", c.err)
	}

	// Wrapping keeps the chain intact.
	wrapped := fmt.Errorf("punch for emp-1: %w", &core.ConflictError{Op: "punch", Detail: "already logged"})
	assert.ErrorIs(t, wrapped, core.ErrConflict)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, core.IsClientError(&core.ValidationError{Field: "x"}))
	assert.True(t, core.IsClientError(&core.NotFoundError{Kind: "employee", ID: "e"}))
	assert.True(t, core.IsClientError(fmt.Errorf("denied: %w", core.ErrForbidden)))
	assert.False(t, core.IsClientError(&core.StorageError{Op: "query", Err: fmt.Errorf("locked")}))
	assert.False(t, core.IsClientError(core.ErrConsistency),
		"drift is a system fault, not a caller mistake")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, core.IsNotFound(&core.NotFoundError{Kind: "leave balance", ID: "b"}))
	assert.False(t, core.IsNotFound(core.ErrConflict))
}
