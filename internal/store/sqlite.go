package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/example/transfer-core/internal/bank"
)

// SQLiteStore backs the bank contracts with an embedded SQLite
// database, for local and development use. SQLite has no row-level
// locks; transactions are opened immediate, which takes the database
// write lock up front. That is coarser than Postgres row locking but
// still satisfies the contract: an exclusive blocking lock scoped to
// the enclosing transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a SQLite store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS account (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			balance TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_client_id ON account (client_id)`,
		`CREATE TABLE IF NOT EXISTS account_transaction (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES account (id),
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			description TEXT,
			correlation_id TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transaction_account_created
			ON account_transaction (account_id, created_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateAccount inserts a new account row.
func (s *SQLiteStore) CreateAccount(ctx context.Context, clientID, currency string, opening decimal.Decimal) (*bank.Account, error) {
	account := &bank.Account{
		ID:        uuid.New(),
		ClientID:  clientID,
		Currency:  currency,
		Balance:   opening,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account (id, client_id, currency, balance, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, account.ID.String(), clientID, currency, opening.String(), account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// GetAccount loads one account without locking it.
func (s *SQLiteStore) GetAccount(ctx context.Context, id uuid.UUID) (*bank.Account, error) {
	return scanSQLiteAccount(s.db.QueryRowContext(ctx, `
		SELECT id, client_id, currency, balance, created_at
		FROM account WHERE id = ?
	`, id.String()), id)
}

// AccountsByClient returns all accounts for clientID, oldest first.
func (s *SQLiteStore) AccountsByClient(ctx context.Context, clientID string) ([]*bank.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, currency, balance, created_at
		FROM account WHERE client_id = ?
		ORDER BY created_at
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*bank.Account
	for rows.Next() {
		account, err := scanSQLiteAccountRow(rows)
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
func (s *SQLiteStore) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*bank.Transaction, int, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_transaction WHERE account_id = ?`,
		accountID.String()).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, currency, type, created_at, COALESCE(description, ''), correlation_id
		FROM account_transaction
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, accountID.String(), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var entries []*bank.Transaction
	for rows.Next() {
		var (
			entry         bank.Transaction
			idStr         string
			accountIDStr  string
			amountStr     string
			entryType     string
			correlationID string
		)
		err := rows.Scan(&idStr, &accountIDStr, &amountStr, &entry.Currency,
			&entryType, &entry.CreatedAt, &entry.Description, &correlationID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if entry.ID, err = uuid.Parse(idStr); err != nil {
			return nil, 0, fmt.Errorf("invalid stored transaction id %q: %w", idStr, err)
		}
		if entry.AccountID, err = uuid.Parse(accountIDStr); err != nil {
			return nil, 0, fmt.Errorf("invalid stored account id %q: %w", accountIDStr, err)
		}
		if entry.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, 0, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
		}
		if entry.CorrelationID, err = uuid.Parse(correlationID); err != nil {
			return nil, 0, fmt.Errorf("invalid stored correlation id %q: %w", correlationID, err)
		}
		entry.Type = bank.TransactionType(entryType)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read transactions: %w", err)
	}
	return entries, total, nil
}

// WithinTx runs fn inside one immediate transaction.
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(tx bank.Tx) error) error {
	sqltx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = sqltx.Rollback() }()

	if err := fn(&sqliteTx{tx: sqltx}); err != nil {
		return err
	}
	if err := sqltx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) LockAndLoad(ctx context.Context, id uuid.UUID) (*bank.Account, error) {
	return scanSQLiteAccount(t.tx.QueryRowContext(ctx, `
		SELECT id, client_id, currency, balance, created_at
		FROM account WHERE id = ?
	`, id.String()), id)
}

func (t *sqliteTx) Save(ctx context.Context, account *bank.Account) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE account SET balance = ? WHERE id = ?`,
		account.Balance.String(), account.ID.String())
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	if affected == 0 {
		return &bank.AccountNotFoundError{ID: account.ID}
	}
	return nil
}

func (t *sqliteTx) InsertAll(ctx context.Context, entries []*bank.Transaction) error {
	for _, entry := range entries {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO account_transaction (id, account_id, amount, currency, type, created_at, description, correlation_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.ID.String(), entry.AccountID.String(), entry.Amount.String(), entry.Currency,
			string(entry.Type), entry.CreatedAt, entry.Description, entry.CorrelationID.String())
		if err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}
	return nil
}

func scanSQLiteAccount(row *sql.Row, id uuid.UUID) (*bank.Account, error) {
	account, err := scanSQLiteAccountRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &bank.AccountNotFoundError{ID: id}
		}
		return nil, err
	}
	return account, nil
}

func scanSQLiteAccountRow(row rowScanner) (*bank.Account, error) {
	var (
		account    bank.Account
		idStr      string
		balanceStr string
	)
	if err := row.Scan(&idStr, &account.ClientID, &account.Currency, &balanceStr, &account.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored account id %q: %w", idStr, err)
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stored balance %q: %w", balanceStr, err)
	}
	account.ID = id
	account.Balance = balance
	return &account, nil
}
