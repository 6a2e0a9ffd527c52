package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProviderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EUR", r.URL.Query().Get("base"))
		assert.Equal(t, "USD", r.URL.Query().Get("symbols"))
		assert.Equal(t, "test-key", r.URL.Query().Get("app_id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"EUR","rates":{"USD":1.10}}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", srv.Client())

	rate, err := p.Fetch(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.10")), "got %s", rate)
}

func TestHTTPProviderFetchNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", srv.Client())

	_, err := p.Fetch(context.Background(), "EUR", "USD")
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "EUR", provErr.From)
	assert.Equal(t, "USD", provErr.To)
}

func TestHTTPProviderFetchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", srv.Client())

	_, err := p.Fetch(context.Background(), "EUR", "USD")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
}

func TestHTTPProviderFetchMissingPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"GBP":0.85}}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "test-key", srv.Client())

	_, err := p.Fetch(context.Background(), "EUR", "USD")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
}

func TestHTTPProviderFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := NewHTTPProvider(srv.URL, "test-key", nil)

	_, err := p.Fetch(context.Background(), "EUR", "USD")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
}
