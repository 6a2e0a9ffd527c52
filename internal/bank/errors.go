package bank

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the stable classification of an engine error. The boundary
// layer maps each kind to one status; the engine itself only ever
// returns structured error values, never partial results.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindBusinessRule
	KindRateUnavailable
)

// ErrSameAccountTransfer rejects transfers where sender and receiver
// are the same account. Checked before any lock is taken.
var ErrSameAccountTransfer = errors.New("cannot transfer to the same account")

// ValidationError reports malformed input. It aborts before any lock is
// taken, so it never has side effects.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AccountNotFoundError reports that an account id did not resolve to a row.
type AccountNotFoundError struct {
	ID uuid.UUID
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.ID)
}

// ClientNotFoundError reports a client with no accounts.
type ClientNotFoundError struct {
	ClientID string
}

func (e *ClientNotFoundError) Error() string {
	return fmt.Sprintf("client %s not found", e.ClientID)
}

// InsufficientFundsError reports a debit that would drive the balance
// below zero. The account state is left unchanged.
type InsufficientFundsError struct {
	AccountID uuid.UUID
	Balance   decimal.Decimal
	Requested decimal.Decimal
	Currency  string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("account %s has insufficient funds: current balance %s %s, attempted debit %s %s",
		e.AccountID, e.Balance, e.Currency, e.Requested, e.Currency)
}

// CurrencyMismatchError reports a transfer currency that does not match
// the receiver account's currency.
type CurrencyMismatchError struct {
	AccountCurrency string
	RequestCurrency string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("receiver account requires %s, but transfer requested in %s",
		e.AccountCurrency, e.RequestCurrency)
}

// InvalidCurrencyError reports a malformed ISO 4217 currency code.
type InvalidCurrencyError struct {
	Code string
}

func (e *InvalidCurrencyError) Error() string {
	return fmt.Sprintf("invalid currency code: %q. Must be a valid ISO 4217 code", e.Code)
}

// ExchangeRateUnavailableError reports that neither the provider nor
// the cache could produce a rate. The transfer is aborted; conversion
// is never skipped or defaulted to 1.
type ExchangeRateUnavailableError struct {
	FromCurrency string
	ToCurrency   string
	Err          error
}

func (e *ExchangeRateUnavailableError) Error() string {
	return fmt.Sprintf("exchange rate %s=>%s unavailable: %v", e.FromCurrency, e.ToCurrency, e.Err)
}

func (e *ExchangeRateUnavailableError) Unwrap() error { return e.Err }

// Classify reduces err to its stable classification. Unrecognized
// errors are internal.
func Classify(err error) Kind {
	var (
		validationErr  *ValidationError
		notFoundErr    *AccountNotFoundError
		clientErr      *ClientNotFoundError
		fundsErr       *InsufficientFundsError
		mismatchErr    *CurrencyMismatchError
		badCurrencyErr *InvalidCurrencyError
		rateErr        *ExchangeRateUnavailableError
	)

	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &notFoundErr), errors.As(err, &clientErr):
		return KindNotFound
	case errors.Is(err, ErrSameAccountTransfer),
		errors.As(err, &fundsErr),
		errors.As(err, &mismatchErr),
		errors.As(err, &badCurrencyErr):
		return KindBusinessRule
	case errors.As(err, &rateErr):
		return KindRateUnavailable
	default:
		return KindInternal
	}
}
