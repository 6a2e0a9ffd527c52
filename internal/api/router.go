package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/transfer-core/internal/bank"
	"github.com/example/transfer-core/internal/security"
)

// TransferService executes transfers. Satisfied by *bank.Engine.
type TransferService interface {
	Transfer(ctx context.Context, req bank.TransferRequest) (*bank.TransferResult, error)
}

// AccountStore is the read/create surface the handlers need. All
// store implementations satisfy it.
type AccountStore interface {
	CreateAccount(ctx context.Context, clientID, currency string, opening decimal.Decimal) (*bank.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*bank.Account, error)
	AccountsByClient(ctx context.Context, clientID string) ([]*bank.Account, error)
	TransactionsByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*bank.Transaction, int, error)
}

type Dependencies struct {
	Logger *slog.Logger

	Transfers TransferService
	Accounts  AccountStore

	Metrics      http.Handler
	RateLimiter  *security.RedisTokenBucket
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	transferV, err := security.NewJSONSchemaValidator(transferSchema)
	if err != nil {
		return nil, err
	}
	createAccountV, err := security.NewJSONSchemaValidator(createAccountSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(transferV.Middleware).Post("/transfers", handleTransfer(deps))

		r.Route("/accounts", func(r chi.Router) {
			r.With(createAccountV.Middleware).Post("/", handleCreateAccount(deps))
			r.Get("/{accountID}", handleGetAccount(deps))
			r.Get("/{accountID}/transactions", handleListTransactions(deps))
		})

		r.Get("/clients/{clientID}/accounts", handleClientAccounts(deps))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "resource not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r, nil
}

func rateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
