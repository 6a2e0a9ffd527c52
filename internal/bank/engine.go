package bank

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/transfer-core/internal/money"
	"github.com/example/transfer-core/pkg/audit"
)

// Auditor records committed transfers into a tamper-evident journal.
type Auditor interface {
	Append(event audit.TransferEvent) *audit.Entry
}

// Engine orchestrates fund transfers: deadlock-free lock acquisition,
// currency conversion, balance mutation, and double-entry ledger
// recording as one atomic unit of work.
type Engine struct {
	store   Store
	rates   RateSource
	logger  *slog.Logger
	auditor Auditor
}

// NewEngine creates a transfer engine. auditor may be nil.
func NewEngine(store Store, rates RateSource, logger *slog.Logger, auditor Auditor) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		rates:   rates,
		logger:  logger,
		auditor: auditor,
	}
}

// Transfer moves funds between two accounts, converting currency when
// the sender's account currency differs from the request currency.
// Validation failures abort before any lock is taken; every failure
// after lock acquisition rolls back all balance and ledger writes.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result *TransferResult
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		// Lock both accounts in canonical id order regardless of
		// transfer direction, so any two concurrent transfers sharing
		// an account request locks in the same global order.
		firstID, secondID := orderAccountIDs(req.FromAccountID, req.ToAccountID)

		first, err := tx.LockAndLoad(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := tx.LockAndLoad(ctx, secondID)
		if err != nil {
			return err
		}

		// Lock order and semantic order may differ; resolve roles now
		// that both locks are held.
		sender, receiver := first, second
		if firstID == req.ToAccountID {
			sender, receiver = second, first
		}

		if receiver.Currency != req.Currency {
			return &CurrencyMismatchError{
				AccountCurrency: receiver.Currency,
				RequestCurrency: req.Currency,
			}
		}

		rate := decimal.NewFromInt(1)
		debitAmount := req.Amount
		if sender.Currency != req.Currency {
			rate, err = e.rates.GetRate(ctx, req.Currency, sender.Currency)
			if err != nil {
				return &ExchangeRateUnavailableError{
					FromCurrency: req.Currency,
					ToCurrency:   sender.Currency,
					Err:          err,
				}
			}
			debitAmount = money.RoundHalfEven(req.Amount.Mul(rate))
		}

		if err := sender.Debit(debitAmount); err != nil {
			return err
		}
		receiver.Credit(req.Amount)

		if err := tx.Save(ctx, sender); err != nil {
			return fmt.Errorf("failed to save sender account: %w", err)
		}
		if err := tx.Save(ctx, receiver); err != nil {
			return fmt.Errorf("failed to save receiver account: %w", err)
		}

		correlationID, err := e.recordTransfer(ctx, tx, sender, receiver, debitAmount, req.Amount, rate)
		if err != nil {
			return err
		}

		result = &TransferResult{
			CorrelationID:      correlationID,
			DebitedAmount:      debitAmount,
			SenderCurrency:     sender.Currency,
			CreditedAmount:     req.Amount,
			ReceiverCurrency:   receiver.Currency,
			ExchangeRate:       rate,
			SenderNewBalance:   sender.Balance,
			ReceiverNewBalance: receiver.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("transfer committed",
		"correlation_id", result.CorrelationID,
		"from_account", req.FromAccountID,
		"to_account", req.ToAccountID,
		"debited", result.DebitedAmount.StringFixed(money.Scale),
		"debited_currency", result.SenderCurrency,
		"credited", result.CreditedAmount.StringFixed(money.Scale),
		"credited_currency", result.ReceiverCurrency,
		"rate", result.ExchangeRate.String(),
	)

	if e.auditor != nil {
		e.auditor.Append(audit.TransferEvent{
			CorrelationID:    result.CorrelationID.String(),
			FromAccountID:    req.FromAccountID.String(),
			ToAccountID:      req.ToAccountID.String(),
			DebitedAmount:    result.DebitedAmount.StringFixed(money.Scale),
			SenderCurrency:   result.SenderCurrency,
			CreditedAmount:   result.CreditedAmount.StringFixed(money.Scale),
			ReceiverCurrency: result.ReceiverCurrency,
			ExchangeRate:     result.ExchangeRate.String(),
		})
	}

	return result, nil
}

// recordTransfer inserts the correlated double-entry pair: a
// TRANSFER_OUT for the sender with the negated debit amount and a
// TRANSFER_IN for the receiver with the credited amount. Both rows
// share one correlation id and one timestamp captured once, so the
// pair stays co-temporal.
func (e *Engine) recordTransfer(
	ctx context.Context,
	tx Tx,
	sender, receiver *Account,
	debitAmount, creditAmount decimal.Decimal,
	rate decimal.Decimal,
) (uuid.UUID, error) {
	correlationID := uuid.New()
	now := time.Now().UTC()

	description := "Transfer to " + receiver.ID.String()
	if !rate.Equal(decimal.NewFromInt(1)) {
		description += fmt.Sprintf(" (Rate: %s %s/%s)", rate.String(), sender.Currency, receiver.Currency)
	}

	entries := []*Transaction{
		{
			ID:            uuid.New(),
			AccountID:     sender.ID,
			Amount:        debitAmount.Neg(),
			Currency:      sender.Currency,
			Type:          TypeTransferOut,
			CreatedAt:     now,
			Description:   description,
			CorrelationID: correlationID,
		},
		{
			ID:            uuid.New(),
			AccountID:     receiver.ID,
			Amount:        creditAmount,
			Currency:      receiver.Currency,
			Type:          TypeTransferIn,
			CreatedAt:     now,
			Description:   "Transfer from " + sender.ID.String(),
			CorrelationID: correlationID,
		},
	}

	if err := tx.InsertAll(ctx, entries); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record ledger entries: %w", err)
	}
	return correlationID, nil
}

func validateRequest(req TransferRequest) error {
	if req.FromAccountID == uuid.Nil {
		return &ValidationError{Field: "from_account_id", Reason: "is required"}
	}
	if req.ToAccountID == uuid.Nil {
		return &ValidationError{Field: "to_account_id", Reason: "is required"}
	}
	if req.FromAccountID == req.ToAccountID {
		return ErrSameAccountTransfer
	}
	if !req.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !money.ValidScale(req.Amount) {
		return &ValidationError{Field: "amount", Reason: "must have at most 2 fractional digits"}
	}
	if !money.ValidCurrencyCode(req.Currency) {
		return &InvalidCurrencyError{Code: req.Currency}
	}
	return nil
}

// orderAccountIDs computes the canonical lock order for two account ids
// by byte-wise comparison of their raw UUID form.
func orderAccountIDs(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}
