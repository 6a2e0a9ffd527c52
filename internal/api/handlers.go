package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/transfer-core/internal/bank"
	"github.com/example/transfer-core/internal/security"
)

// Monetary amounts arrive as JSON numbers and are decoded through
// json.Number so they never pass through a float64.
type transferRequest struct {
	FromAccountID string      `json:"from_account_id"`
	ToAccountID   string      `json:"to_account_id"`
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
}

// Amounts are rendered as strings on the way out for the same reason.
type transferResponse struct {
	CorrelationID      string `json:"correlation_id"`
	DebitedAmount      string `json:"debited_amount"`
	SenderCurrency     string `json:"sender_currency"`
	CreditedAmount     string `json:"credited_amount"`
	ReceiverCurrency   string `json:"receiver_currency"`
	ExchangeRate       string `json:"exchange_rate"`
	SenderNewBalance   string `json:"sender_new_balance"`
	ReceiverNewBalance string `json:"receiver_new_balance"`
}

type createAccountRequest struct {
	ClientID       string      `json:"client_id"`
	Currency       string      `json:"currency"`
	OpeningBalance json.Number `json:"opening_balance"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Currency  string    `json:"currency"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Type          string    `json:"type"`
	Description   string    `json:"description,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type listTransactionsResponse struct {
	AccountID    string                 `json:"account_id"`
	Transactions []*transactionResponse `json:"transactions"`
	Total        int                    `json:"total"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

type listAccountsResponse struct {
	ClientID string             `json:"client_id"`
	Accounts []*accountResponse `json:"accounts"`
}

func toAccountResponse(a *bank.Account) *accountResponse {
	return &accountResponse{
		ID:        a.ID.String(),
		ClientID:  a.ClientID,
		Currency:  a.Currency,
		Balance:   a.Balance.StringFixed(2),
		CreatedAt: a.CreatedAt,
	}
}

func handleTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "malformed JSON")
			return
		}

		fromID, err := uuid.Parse(req.FromAccountID)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "from_account_id must be a UUID")
			return
		}
		toID, err := uuid.Parse(req.ToAccountID)
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "to_account_id must be a UUID")
			return
		}
		amount, err := decimal.NewFromString(req.Amount.String())
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "amount must be a number")
			return
		}

		result, err := deps.Transfers.Transfer(r.Context(), bank.TransferRequest{
			FromAccountID: fromID,
			ToAccountID:   toID,
			Amount:        amount,
			Currency:      req.Currency,
		})
		if err != nil {
			writeBankError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, transferResponse{
			CorrelationID:      result.CorrelationID.String(),
			DebitedAmount:      result.DebitedAmount.StringFixed(2),
			SenderCurrency:     result.SenderCurrency,
			CreditedAmount:     result.CreditedAmount.StringFixed(2),
			ReceiverCurrency:   result.ReceiverCurrency,
			ExchangeRate:       result.ExchangeRate.String(),
			SenderNewBalance:   result.SenderNewBalance.StringFixed(2),
			ReceiverNewBalance: result.ReceiverNewBalance.StringFixed(2),
		})
	}
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "malformed JSON")
			return
		}

		opening := decimal.Zero
		if req.OpeningBalance != "" {
			var err error
			opening, err = decimal.NewFromString(req.OpeningBalance.String())
			if err != nil {
				security.WriteJSONError(w, r, http.StatusBadRequest, "opening_balance must be a number")
				return
			}
		}
		if opening.IsNegative() {
			security.WriteJSONError(w, r, http.StatusBadRequest, "opening_balance must not be negative")
			return
		}

		account, err := deps.Accounts.CreateAccount(r.Context(), req.ClientID, req.Currency, opening)
		if err != nil {
			writeBankError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, toAccountResponse(account))
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "accountID"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "account id must be a UUID")
			return
		}

		account, err := deps.Accounts.GetAccount(r.Context(), id)
		if err != nil {
			writeBankError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, toAccountResponse(account))
	}
}

func handleListTransactions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "accountID"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "account id must be a UUID")
			return
		}

		limit, offset := 20, 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if i, err := strconv.Atoi(v); err == nil && i > 0 && i <= 100 {
				limit = i
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if i, err := strconv.Atoi(v); err == nil && i >= 0 {
				offset = i
			}
		}

		entries, total, err := deps.Accounts.TransactionsByAccount(r.Context(), id, limit, offset)
		if err != nil {
			writeBankError(w, r, err)
			return
		}

		out := make([]*transactionResponse, 0, len(entries))
		for _, entry := range entries {
			out = append(out, &transactionResponse{
				ID:            entry.ID.String(),
				AccountID:     entry.AccountID.String(),
				Amount:        entry.Amount.StringFixed(2),
				Currency:      entry.Currency,
				Type:          string(entry.Type),
				Description:   entry.Description,
				CorrelationID: entry.CorrelationID.String(),
				CreatedAt:     entry.CreatedAt,
			})
		}

		writeJSON(w, r, http.StatusOK, listTransactionsResponse{
			AccountID:    id.String(),
			Transactions: out,
			Total:        total,
			Limit:        limit,
			Offset:       offset,
		})
	}
}

func handleClientAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := chi.URLParam(r, "clientID")
		if clientID == "" {
			security.WriteJSONError(w, r, http.StatusBadRequest, "client id is required")
			return
		}

		accounts, err := deps.Accounts.AccountsByClient(r.Context(), clientID)
		if err != nil {
			writeBankError(w, r, err)
			return
		}

		out := make([]*accountResponse, 0, len(accounts))
		for _, account := range accounts {
			out = append(out, toAccountResponse(account))
		}

		writeJSON(w, r, http.StatusOK, listAccountsResponse{
			ClientID: clientID,
			Accounts: out,
		})
	}
}
