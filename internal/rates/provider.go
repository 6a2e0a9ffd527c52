// Package rates provides the exchange-rate provider client and the
// cache/resilience layer wrapped around it.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Provider performs one external spot-rate lookup for an ordered
// currency pair. Implementations carry no retry logic; retries belong
// to the cache layer.
type Provider interface {
	Fetch(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// ProviderError is the distinguishable failure of a provider lookup,
// covering both network failures and malformed payloads.
type ProviderError struct {
	From string
	To   string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("exchange rate lookup %s=>%s failed: %v", e.From, e.To, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// HTTPProvider fetches spot rates from an openexchangerates-style HTTP
// API: GET {base}?app_id=...&base=FROM&symbols=TO returning
// {"rates": {"TO": <rate>}}.
type HTTPProvider struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewHTTPProvider creates a provider against the given API URL. client
// may be nil, in which case a client with a 10s timeout is used.
func NewHTTPProvider(apiURL, apiKey string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{
		apiURL: apiURL,
		apiKey: apiKey,
		client: client,
	}
}

// Fetch issues one rate lookup for the pair (from, to).
func (p *HTTPProvider) Fetch(ctx context.Context, from, to string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("app_id", p.apiKey)
	q.Set("base", from)
	q.Set("symbols", to)
	q.Set("prettyprint", "false")
	q.Set("show_alternative", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, &ProviderError{From: from, To: to, Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, &ProviderError{From: from, To: to, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, &ProviderError{
			From: from,
			To:   to,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var payload struct {
		Rates map[string]json.Number `json:"rates"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return decimal.Zero, &ProviderError{From: from, To: to, Err: fmt.Errorf("malformed payload: %w", err)}
	}

	raw, ok := payload.Rates[to]
	if !ok {
		return decimal.Zero, &ProviderError{From: from, To: to, Err: fmt.Errorf("pair missing from response")}
	}

	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, &ProviderError{From: from, To: to, Err: fmt.Errorf("malformed rate %q: %w", raw.String(), err)}
	}
	if !rate.IsPositive() {
		return decimal.Zero, &ProviderError{From: from, To: to, Err: fmt.Errorf("non-positive rate %s", rate)}
	}
	return rate, nil
}
