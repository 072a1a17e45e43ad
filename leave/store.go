/*
store.go - Persistence interface for balances and requests

PURPOSE:
  Defines the interface between the leave domain and the database.
  Implementations: store/sqlite (production), store/memory (tests/dev).

TRANSACTION CONTRACT:
  The reconciler's read-request / write-request / adjust-ledger sequence
  must be atomic. TxStore.WithTx runs the callback against a Store bound
  to one database transaction: any error rolls everything back.

INCREMENT CONTRACT:
  AddToUsed applies a delta to the stored `used` value (not a full
  replace), so concurrent reconciliations compose instead of clobbering
  each other. It fails with core.ErrNotFound when no balance row exists
  for the key.

SEE ALSO:
  - balance.go, reconciler.go: Users of this interface
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store handles persistence of balances and requests.
// Point lookups return (nil, nil) when the row does not exist.
type Store interface {
	// Balances
	GetBalance(ctx context.Context, userID, leaveTypeID string, year int) (*Balance, error)
	GetBalanceByID(ctx context.Context, id string) (*Balance, error)
	InsertBalance(ctx context.Context, b Balance) error
	UpdateBalance(ctx context.Context, b Balance) error
	DeleteBalance(ctx context.Context, id string) error
	ListBalancesByYear(ctx context.Context, year int) ([]BalanceRow, error)

	// AddToUsed increments used for the keyed row by delta (negative
	// deltas decrement).
	AddToUsed(ctx context.Context, userID, leaveTypeID string, year int, delta decimal.Decimal) error

	// Requests
	GetRequest(ctx context.Context, id string) (*Request, error)
	InsertRequest(ctx context.Context, r Request) error
	UpdateRequest(ctx context.Context, r Request) error
	DeleteRequest(ctx context.Context, id string) error
	ListRequestsByUser(ctx context.Context, userID string) ([]Request, error)

	// SumApprovedDays totals daysRequested over APPROVED requests for the
	// key, charging each request to its start-date year. Used by the
	// consistency audit.
	SumApprovedDays(ctx context.Context, userID, leaveTypeID string, year int) (decimal.Decimal, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within one transaction. If fn returns an error
	// the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
