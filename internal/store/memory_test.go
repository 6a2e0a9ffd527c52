package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/transfer-core/internal/bank"
)

func TestMemoryStoreCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	account, err := s.CreateAccount(ctx, "client-1", "USD", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(tx bank.Tx) error {
		locked, err := tx.LockAndLoad(ctx, account.ID)
		require.NoError(t, err)

		locked.Balance = decimal.RequireFromString("75.00")
		if err := tx.Save(ctx, locked); err != nil {
			return err
		}
		return tx.InsertAll(ctx, []*bank.Transaction{{
			ID:            uuid.New(),
			AccountID:     account.ID,
			Amount:        decimal.RequireFromString("-25.00"),
			Currency:      "USD",
			Type:          bank.TypeWithdrawal,
			CreatedAt:     time.Now().UTC(),
			CorrelationID: uuid.New(),
		}})
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("75.00")))
	assert.Len(t, s.LedgerEntries(), 1)
}

func TestMemoryStoreRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	account, err := s.CreateAccount(ctx, "client-1", "USD", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(tx bank.Tx) error {
		locked, err := tx.LockAndLoad(ctx, account.ID)
		require.NoError(t, err)

		locked.Balance = decimal.Zero
		require.NoError(t, tx.Save(ctx, locked))
		require.NoError(t, tx.InsertAll(ctx, []*bank.Transaction{{
			ID:        uuid.New(),
			AccountID: account.ID,
		}}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing staged may leak out of a failed unit of work.
	got, err := s.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("100.00")))
	assert.Empty(t, s.LedgerEntries())
}

func TestMemoryStoreLockAndLoadUnknownAccount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.WithinTx(ctx, func(tx bank.Tx) error {
		_, err := tx.LockAndLoad(ctx, uuid.New())
		return err
	})

	var notFound *bank.AccountNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMemoryStoreLockBlocksConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	account, err := s.CreateAccount(ctx, "client-1", "USD", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithinTx(ctx, func(tx bank.Tx) error {
			a, err := tx.LockAndLoad(ctx, account.ID)
			if err != nil {
				return err
			}
			close(locked)
			<-release
			a.Balance = a.Balance.Sub(decimal.RequireFromString("10.00"))
			return tx.Save(ctx, a)
		})
	}()

	<-locked
	done := make(chan struct{})
	go func() {
		_ = s.WithinTx(ctx, func(tx bank.Tx) error {
			a, err := tx.LockAndLoad(ctx, account.ID)
			if err != nil {
				return err
			}
			a.Balance = a.Balance.Sub(decimal.RequireFromString("20.00"))
			return tx.Save(ctx, a)
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second transaction acquired the row lock while the first still held it")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second transaction never acquired the released lock")
	}

	got, err := s.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("70.00")),
		"both debits must apply, got %s", got.Balance)
}

func TestMemoryStoreAccountsByClient(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.CreateAccount(ctx, "client-1", "USD", decimal.Zero)
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, "client-1", "EUR", decimal.Zero)
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, "client-2", "USD", decimal.Zero)
	require.NoError(t, err)

	accounts, err := s.AccountsByClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	_, err = s.AccountsByClient(ctx, "nobody")
	var notFound *bank.ClientNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestMemoryStoreTransactionsByAccountPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	account, err := s.CreateAccount(ctx, "client-1", "USD", decimal.Zero)
	require.NoError(t, err)

	base := time.Now().UTC()
	err = s.WithinTx(ctx, func(tx bank.Tx) error {
		var entries []*bank.Transaction
		for i := 0; i < 5; i++ {
			entries = append(entries, &bank.Transaction{
				ID:            uuid.New(),
				AccountID:     account.ID,
				Amount:        decimal.New(int64(i+1), 0),
				Currency:      "USD",
				Type:          bank.TypeDeposit,
				CreatedAt:     base.Add(time.Duration(i) * time.Second),
				CorrelationID: uuid.New(),
			})
		}
		return tx.InsertAll(ctx, entries)
	})
	require.NoError(t, err)

	entries, total, err := s.TransactionsByAccount(ctx, account.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, entries, 2)
	// Newest first, so offset 1 starts at the second newest.
	assert.True(t, entries[0].Amount.Equal(decimal.New(4, 0)))
	assert.True(t, entries[1].Amount.Equal(decimal.New(3, 0)))
}
