package bank

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a single-currency balance owned by a client. The currency
// is fixed at creation and the balance never goes below zero; balance
// changes happen only through Debit and Credit while the account's row
// lock is held.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	ClientID  string          `json:"client_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Debit subtracts amount from the balance, enforcing the non-negativity
// invariant. It must be called with the account's lock held so the
// check and the mutation are one step.
func (a *Account) Debit(amount decimal.Decimal) error {
	newBalance := a.Balance.Sub(amount)
	if newBalance.IsNegative() {
		return &InsufficientFundsError{
			AccountID: a.ID,
			Balance:   a.Balance,
			Requested: amount,
			Currency:  a.Currency,
		}
	}
	a.Balance = newBalance
	return nil
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypeDeposit     TransactionType = "DEPOSIT"
	TypeWithdrawal  TransactionType = "WITHDRAWAL"
	TypeTransferIn  TransactionType = "TRANSFER_IN"
	TypeTransferOut TransactionType = "TRANSFER_OUT"
)

// Transaction is an immutable ledger entry. The amount is signed:
// negative for outflows, positive for inflows. The two entries produced
// by one transfer share a correlation id and a single timestamp.
// Entries are never updated or deleted; corrections are new entries.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          TransactionType `json:"type"`
	CreatedAt     time.Time       `json:"created_at"`
	Description   string          `json:"description"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
}

// TransferRequest is the engine's input. The currency is the currency
// of the amount and must match the receiver account's currency.
type TransferRequest struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        decimal.Decimal
	Currency      string
}

// TransferResult describes one committed transfer.
type TransferResult struct {
	CorrelationID      uuid.UUID
	DebitedAmount      decimal.Decimal
	SenderCurrency     string
	CreditedAmount     decimal.Decimal
	ReceiverCurrency   string
	ExchangeRate       decimal.Decimal
	SenderNewBalance   decimal.Decimal
	ReceiverNewBalance decimal.Decimal
}
