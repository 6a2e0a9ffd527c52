// Package store provides the account/ledger storage implementations
// behind the bank contracts: Postgres (production), SQLite (embedded
// local mode), and an in-memory store used by tests.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/transfer-core/internal/bank"
)

// MemoryStore is an in-memory implementation of the bank store
// contracts. Each account carries its own mutex as the row lock, so
// lock acquisition blocks and misordered acquisition can genuinely
// deadlock — which is exactly what the engine's lock-ordering tests
// need to exercise.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*bank.Account
	locks    map[uuid.UUID]*sync.Mutex
	ledger   []*bank.Transaction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]*bank.Account),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// CreateAccount adds a new account with the given opening balance.
func (s *MemoryStore) CreateAccount(ctx context.Context, clientID, currency string, opening decimal.Decimal) (*bank.Account, error) {
	account := &bank.Account{
		ID:        uuid.New(),
		ClientID:  clientID,
		Currency:  currency,
		Balance:   opening,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
	s.locks[account.ID] = &sync.Mutex{}

	cp := *account
	return &cp, nil
}

// GetAccount returns a copy of the account, or *AccountNotFoundError.
func (s *MemoryStore) GetAccount(ctx context.Context, id uuid.UUID) (*bank.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, &bank.AccountNotFoundError{ID: id}
	}
	cp := *account
	return &cp, nil
}

// AccountsByClient returns all accounts owned by clientID. An unknown
// client yields *ClientNotFoundError.
func (s *MemoryStore) AccountsByClient(ctx context.Context, clientID string) ([]*bank.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*bank.Account
	for _, account := range s.accounts {
		if account.ClientID == clientID {
			cp := *account
			out = append(out, &cp)
		}
	}
	if len(out) == 0 {
		return nil, &bank.ClientNotFoundError{ClientID: clientID}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// TransactionsByAccount returns the account's ledger entries newest
// first, with the total count before paging.
func (s *MemoryStore) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*bank.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return nil, 0, &bank.AccountNotFoundError{ID: accountID}
	}

	var matched []*bank.Transaction
	for _, entry := range s.ledger {
		if entry.AccountID == accountID {
			cp := *entry
			matched = append(matched, &cp)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// LedgerEntries returns a snapshot of the full ledger, oldest first.
func (s *MemoryStore) LedgerEntries() []*bank.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*bank.Transaction, len(s.ledger))
	for i, entry := range s.ledger {
		cp := *entry
		out[i] = &cp
	}
	return out
}

// WithinTx runs fn as one atomic unit of work. Writes are staged on the
// transaction and applied only when fn returns nil; row locks are
// released either way.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx bank.Tx) error) error {
	tx := &memTx{
		store:  s,
		staged: make(map[uuid.UUID]*bank.Account),
		dirty:  make(map[uuid.UUID]bool),
	}
	defer tx.releaseLocks()

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	store   *MemoryStore
	held    []*sync.Mutex
	staged  map[uuid.UUID]*bank.Account
	dirty   map[uuid.UUID]bool
	pending []*bank.Transaction
}

func (t *memTx) LockAndLoad(ctx context.Context, id uuid.UUID) (*bank.Account, error) {
	s := t.store

	s.mu.Lock()
	lock, exists := s.locks[id]
	s.mu.Unlock()
	if !exists {
		return nil, &bank.AccountNotFoundError{ID: id}
	}

	// Block until the row lock is granted. Never hold s.mu here, or a
	// waiting transfer would stall every other account.
	lock.Lock()
	t.held = append(t.held, lock)

	// Re-read after acquiring the lock; the row may have changed while
	// this transaction was waiting.
	s.mu.Lock()
	cp := *s.accounts[id]
	s.mu.Unlock()

	t.staged[id] = &cp
	return &cp, nil
}

func (t *memTx) Save(ctx context.Context, account *bank.Account) error {
	if _, ok := t.staged[account.ID]; !ok {
		return &bank.AccountNotFoundError{ID: account.ID}
	}
	t.staged[account.ID] = account
	t.dirty[account.ID] = true
	return nil
}

func (t *memTx) InsertAll(ctx context.Context, entries []*bank.Transaction) error {
	for _, entry := range entries {
		cp := *entry
		t.pending = append(t.pending, &cp)
	}
	return nil
}

func (t *memTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, dirty := range t.dirty {
		if !dirty {
			continue
		}
		cp := *t.staged[id]
		s.accounts[id] = &cp
	}
	s.ledger = append(s.ledger, t.pending...)
}

func (t *memTx) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}
