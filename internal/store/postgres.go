package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/example/transfer-core/internal/bank"
	"github.com/example/transfer-core/internal/money"
)

// PostgresStore backs the bank contracts with PostgreSQL. Row locks are
// taken with SELECT ... FOR UPDATE and are scoped to the enclosing
// transaction, so commit/rollback releases them.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS account (
			id UUID PRIMARY KEY,
			client_id TEXT NOT NULL,
			currency CHAR(3) NOT NULL,
			balance NUMERIC(15,2) NOT NULL CHECK (balance >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_client_id ON account (client_id)`,
		`CREATE TABLE IF NOT EXISTS account_transaction (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES account (id),
			amount NUMERIC(15,2) NOT NULL,
			currency CHAR(3) NOT NULL,
			type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			description TEXT,
			correlation_id UUID NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transaction_account_created
			ON account_transaction (account_id, created_at DESC, id DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateAccount inserts a new account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, clientID, currency string, opening decimal.Decimal) (*bank.Account, error) {
	account := &bank.Account{
		ID:       uuid.New(),
		ClientID: clientID,
		Currency: currency,
		Balance:  opening,
	}

	err := s.Pool.QueryRow(ctx, `
		INSERT INTO account (id, client_id, currency, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, account.ID, clientID, currency, opening.StringFixed(money.Scale)).Scan(&account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount loads one account without locking it.
func (s *PostgresStore) GetAccount(ctx context.Context, id uuid.UUID) (*bank.Account, error) {
	return scanAccount(s.Pool.QueryRow(ctx, `
		SELECT id, client_id, trim(currency), balance::text, created_at
		FROM account WHERE id = $1
	`, id), id)
}

// AccountsByClient returns all accounts for clientID, oldest first. An
// unknown client yields *ClientNotFoundError.
func (s *PostgresStore) AccountsByClient(ctx context.Context, clientID string) ([]*bank.Account, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, client_id, trim(currency), balance::text, created_at
		FROM account WHERE client_id = $1
		ORDER BY created_at
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*bank.Account
	for rows.Next() {
		account, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, &bank.ClientNotFoundError{ClientID: clientID}
	}
	return accounts, nil
}

// TransactionsByAccount returns the account's ledger entries newest
// first along with the total count before paging.
func (s *PostgresStore) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*bank.Transaction, int, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}

	var total int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM account_transaction WHERE account_id = $1`,
		accountID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, account_id, amount::text, trim(currency), type, created_at, COALESCE(description, ''), correlation_id
		FROM account_transaction
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var entries []*bank.Transaction
	for rows.Next() {
		var (
			entry     bank.Transaction
			amountStr string
			entryType string
		)
		err := rows.Scan(&entry.ID, &entry.AccountID, &amountStr, &entry.Currency,
			&entryType, &entry.CreatedAt, &entry.Description, &entry.CorrelationID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		entry.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
		}
		entry.Type = bank.TransactionType(entryType)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read transactions: %w", err)
	}
	return entries, total, nil
}

// WithinTx runs fn inside one database transaction. Row locks taken via
// LockAndLoad are held until the transaction commits or rolls back.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx bank.Tx) error) error {
	pgtx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = pgtx.Rollback(ctx) }()

	if err := fn(&postgresTx{tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) LockAndLoad(ctx context.Context, id uuid.UUID) (*bank.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, `
		SELECT id, client_id, trim(currency), balance::text, created_at
		FROM account WHERE id = $1
		FOR UPDATE
	`, id), id)
}

func (t *postgresTx) Save(ctx context.Context, account *bank.Account) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE account SET balance = $2 WHERE id = $1`,
		account.ID, account.Balance.StringFixed(money.Scale))
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &bank.AccountNotFoundError{ID: account.ID}
	}
	return nil
}

func (t *postgresTx) InsertAll(ctx context.Context, entries []*bank.Transaction) error {
	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(`
			INSERT INTO account_transaction (id, account_id, amount, currency, type, created_at, description, correlation_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, entry.ID, entry.AccountID, entry.Amount.StringFixed(money.Scale), entry.Currency,
			string(entry.Type), entry.CreatedAt, entry.Description, entry.CorrelationID)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, id uuid.UUID) (*bank.Account, error) {
	account, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &bank.AccountNotFoundError{ID: id}
		}
		return nil, err
	}
	return account, nil
}

func scanAccountRow(row rowScanner) (*bank.Account, error) {
	var (
		account    bank.Account
		balanceStr string
		createdAt  time.Time
	)
	if err := row.Scan(&account.ID, &account.ClientID, &account.Currency, &balanceStr, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored balance %q: %w", balanceStr, err)
	}
	account.Balance = balance
	account.CreatedAt = createdAt
	return &account, nil
}
