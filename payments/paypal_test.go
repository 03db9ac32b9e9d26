package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func paypalTestServer(t *testing.T, tokenRequests *int, orderStatus string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		*tokenRequests++
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/v2/checkout/orders/UNKNOWN" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":          "TX-1",
			"status":      orderStatus,
			"update_time": "2026-08-29T10:00:00Z",
			"payer": map[string]any{
				"email_address": "buyer@example.com",
			},
			"purchase_units": []map[string]any{
				{"amount": map[string]any{"currency_code": "USD", "value": "58.00"}},
			},
		})
	})

	return httptest.NewServer(mux)
}

func TestPayPalClient_VerifyCompletedTransaction(t *testing.T) {
	tokenRequests := 0
	srv := paypalTestServer(t, &tokenRequests, "COMPLETED")
	defer srv.Close()

	client := NewPayPalClient(srv.URL, "client", "secret", zap.NewNop())

	tx, err := client.VerifyTransaction(context.Background(), "TX-1")
	require.NoError(t, err)

	assert.True(t, tx.Verified)
	assert.Equal(t, "COMPLETED", tx.Status)
	assert.Equal(t, "58.00", tx.Amount)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, "buyer@example.com", tx.PayerEmail)
	assert.Equal(t, "2026-08-29T10:00:00Z", tx.UpdateTime)
}

func TestPayPalClient_PendingTransactionNotVerified(t *testing.T) {
	tokenRequests := 0
	srv := paypalTestServer(t, &tokenRequests, "PENDING")
	defer srv.Close()

	client := NewPayPalClient(srv.URL, "client", "secret", zap.NewNop())

	tx, err := client.VerifyTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	assert.False(t, tx.Verified)
}

func TestPayPalClient_UnknownTransaction(t *testing.T) {
	tokenRequests := 0
	srv := paypalTestServer(t, &tokenRequests, "COMPLETED")
	defer srv.Close()

	client := NewPayPalClient(srv.URL, "client", "secret", zap.NewNop())

	tx, err := client.VerifyTransaction(context.Background(), "UNKNOWN")
	require.NoError(t, err)
	assert.False(t, tx.Verified)
}

func TestPayPalClient_ShortLivedTokenReused(t *testing.T) {
	tokenRequests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   30,
		})
	})
	mux.HandleFunc("/v2/checkout/orders/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "TX-1", "status": "COMPLETED"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewPayPalClient(srv.URL, "client", "secret", zap.NewNop())

	_, err := client.VerifyTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	_, err = client.VerifyTransaction(context.Background(), "TX-1")
	require.NoError(t, err)

	// A token expiring inside the renewal margin must still be cached for
	// part of its lifetime, not refetched on every call.
	assert.Equal(t, 1, tokenRequests)
}

func TestPayPalClient_CachesAccessToken(t *testing.T) {
	tokenRequests := 0
	srv := paypalTestServer(t, &tokenRequests, "COMPLETED")
	defer srv.Close()

	client := NewPayPalClient(srv.URL, "client", "secret", zap.NewNop())

	_, err := client.VerifyTransaction(context.Background(), "TX-1")
	require.NoError(t, err)
	_, err = client.VerifyTransaction(context.Background(), "TX-1")
	require.NoError(t, err)

	assert.Equal(t, 1, tokenRequests)
}
