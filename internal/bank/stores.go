package bank

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the engine-facing contract of the account/ledger storage.
// WithinTx runs fn inside one atomic unit of work: every lock acquired
// and every write staged through the Tx commits together when fn
// returns nil and is rolled back (locks released, nothing persisted)
// when fn returns an error.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	// LockAndLoad acquires an exclusive, blocking row lock on the
	// account and returns its current state. The lock is held until the
	// enclosing unit of work commits or rolls back. A missing account
	// yields *AccountNotFoundError.
	LockAndLoad(ctx context.Context, id uuid.UUID) (*Account, error)

	// Save stages the updated account row for commit. The account must
	// have been locked by this Tx.
	Save(ctx context.Context, account *Account) error

	// InsertAll stages ledger entries for an append-only insert,
	// transactional with the account saves.
	InsertAll(ctx context.Context, entries []*Transaction) error
}

// RateSource yields the spot rate for an ordered currency pair: one
// unit of from equals rate units of to. (from,to) and (to,from) are
// distinct pairs and are not assumed reciprocal.
type RateSource interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}
