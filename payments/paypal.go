package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PayPalClient verifies transactions server-side against the PayPal Orders
// API, so the amount and status never come from the browser.
type PayPalClient struct {
	apiBase    string
	clientID   string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewPayPalClient(apiBase, clientID, secret string, logger *zap.Logger) *PayPalClient {
	return &PayPalClient{
		apiBase:    strings.TrimRight(apiBase, "/"),
		clientID:   clientID,
		secret:     secret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	// Fetched outside the lock so verifications holding a live token never
	// queue behind a refresh.
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token request returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode paypal token response: %w", err)
	}

	// Renew a minute early so in-flight requests never carry a stale token,
	// but keep at least half the lifetime of a short-lived token.
	ttl := time.Duration(body.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= time.Minute
	} else {
		ttl /= 2
	}

	c.mu.Lock()
	c.token = body.AccessToken
	c.tokenExp = time.Now().Add(ttl)
	c.mu.Unlock()
	return body.AccessToken, nil
}

func (c *PayPalClient) VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiBase+"/v2/checkout/orders/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal order lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Warn("paypal transaction not found", zap.String("transaction_id", transactionID))
		return &Transaction{ID: transactionID, Verified: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paypal order lookup returned status %d", resp.StatusCode)
	}

	var body struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		UpdateTime string `json:"update_time"`
		Payer      struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Amount struct {
				CurrencyCode string `json:"currency_code"`
				Value        string `json:"value"`
			} `json:"amount"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode paypal order response: %w", err)
	}

	tx := &Transaction{
		ID:         body.ID,
		Verified:   body.Status == "COMPLETED",
		Status:     body.Status,
		PayerEmail: body.Payer.EmailAddress,
		UpdateTime: body.UpdateTime,
	}
	if len(body.PurchaseUnits) > 0 {
		tx.Amount = body.PurchaseUnits[0].Amount.Value
		tx.Currency = body.PurchaseUnits[0].Amount.CurrencyCode
	}
	return tx, nil
}
