package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// LNBitsClient is a wallet client for an LNbits-compatible REST API.
type LNBitsClient struct {
	baseURL    string
	apiKey     string
	expiry     time.Duration
	httpClient *http.Client

	maxRetries int
	retryDelay time.Duration
}

// LNBitsConfig represents LNbits client configuration.
type LNBitsConfig struct {
	BaseURL string        // e.g. https://legend.lnbits.com
	APIKey  string        // Invoice/read key of the host wallet
	Expiry  time.Duration // Requested invoice expiry
	Timeout time.Duration // HTTP timeout per request
}

// NewLNBits creates a new LNbits wallet client.
func NewLNBits(cfg LNBitsConfig) (*LNBitsClient, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, errors.New("lnbits endpoint and api key are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Expiry == 0 {
		cfg.Expiry = 10 * time.Minute
	}

	return &LNBitsClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		expiry:     cfg.Expiry,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// createInvoiceRequest is the POST /api/v1/payments request body.
type createInvoiceRequest struct {
	Out    bool   `json:"out"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
	Expiry int64  `json:"expiry"`
}

// createInvoiceResponse is the POST /api/v1/payments response body.
type createInvoiceResponse struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
}

// paymentStatusResponse is the GET /api/v1/payments/{hash} response body.
type paymentStatusResponse struct {
	Paid   bool   `json:"paid"`
	Status string `json:"status"`
}

// walletInfoResponse is the GET /api/v1/wallet response body.
type walletInfoResponse struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// apiError is the LNbits error response body.
type apiError struct {
	Detail string `json:"detail"`
}

// MakeInvoice creates an incoming invoice for the given amount in sats.
func (c *LNBitsClient) MakeInvoice(ctx context.Context, amountSats int64, description string) (*Invoice, error) {
	body := createInvoiceRequest{
		Out:    false,
		Amount: amountSats,
		Memo:   description,
		Expiry: int64(c.expiry.Seconds()),
	}

	var resp createInvoiceResponse
	err := c.retry(func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/v1/payments", body, &resp)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create invoice")
	}

	return &Invoice{
		PaymentHash:    resp.PaymentHash,
		PaymentRequest: resp.PaymentRequest,
		Amount:         amountSats,
		Description:    description,
	}, nil
}

// LookupInvoice returns the current state of an invoice. Errors are
// transient; the caller retries on its next poll tick.
func (c *LNBitsClient) LookupInvoice(ctx context.Context, paymentHash string) (State, error) {
	var resp paymentStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/payments/"+paymentHash, nil, &resp); err != nil {
		return StatePending, errors.Wrap(err, "failed to look up invoice")
	}

	switch {
	case resp.Paid || resp.Status == "success":
		return StateSettled, nil
	case resp.Status == "failed":
		return StateFailed, nil
	default:
		return StatePending, nil
	}
}

// GetInfo fetches wallet metadata.
func (c *LNBitsClient) GetInfo(ctx context.Context) (*Info, error) {
	var resp walletInfoResponse
	err := c.retry(func() error {
		return c.doJSON(ctx, http.MethodGet, "/api/v1/wallet", nil, &resp)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch wallet info")
	}
	return &Info{Name: resp.Name, Balance: resp.Balance}, nil
}

// Close releases the client. The REST backend holds no persistent
// connection, so this only drops idle keep-alives.
func (c *LNBitsClient) Close() {
	c.httpClient.CloseIdleConnections()
}

// doJSON performs one authenticated request and decodes the JSON response.
func (c *LNBitsClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Detail != "" {
			return errors.Newf("wallet API error (%d): %s", resp.StatusCode, apiErr.Detail)
		}
		return errors.Newf("wallet API error (%d)", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, "failed to decode response body")
		}
	}
	return nil
}

// retry runs fn up to maxRetries times with a fixed delay between attempts.
func (c *LNBitsClient) retry(fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			zlog.Debug().Msgf("wallet request failed (attempt %d/%d): %v", attempt+1, c.maxRetries, err)
			time.Sleep(c.retryDelay)
			continue
		}
		return nil
	}
	return errors.Wrapf(lastErr, "all %d attempts failed", c.maxRetries)
}
