// Package gateway wraps the payment provider: transaction verification for
// the payment gate and transfers for the payout engine. Recipient
// verification happens elsewhere; this client only consumes recipient codes
// already on file.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds verify and transfer calls; a gateway that does
	// not answer resolves to a failure transition, never a hung caller.
	DefaultTimeout = 6 * time.Second

	// outboundRPS keeps us inside the provider's published rate limits.
	outboundRPS   = 10
	outboundBurst = 20
)

var ErrVerificationFailed = errors.New("gateway reported unsuccessful transaction")

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	limiter   *rate.Limiter
}

func New(baseURL, secretKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(outboundRPS), outboundBurst),
	}
}

// VerifyResult is the provider's view of a transaction.
type VerifyResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"` // "success" or a failure state
	Amount    int64  `json:"amount"`
}

// Success reports whether the provider settled the transaction.
func (v *VerifyResult) Success() bool {
	return v.Status == "success"
}

// VerifyTransaction asks the provider whether the referenced transaction
// settled, and for how much. A non-success status is returned as
// ErrVerificationFailed so callers can refuse state changes.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	var out struct {
		Status bool         `json:"status"`
		Data   VerifyResult `json:"data"`
	}
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if !out.Status || !out.Data.Success() {
		return &out.Data, fmt.Errorf("%w: reference=%s status=%s", ErrVerificationFailed, reference, out.Data.Status)
	}
	return &out.Data, nil
}

type TransferRequest struct {
	ProjectID     string `json:"project_id"`
	WorkerID      string `json:"worker_id"`
	Amount        int64  `json:"amount"`
	PlatformFee   int64  `json:"platform_fee"`
	RecipientCode string `json:"recipient_code"`
	Reason        string `json:"reason,omitempty"`
}

type TransferResult struct {
	Success           bool   `json:"success"`
	TransferReference string `json:"transfer_reference"`
}

// InitiateTransfer pays the worker's cut to their verified recipient code.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	var out TransferResult
	if err := c.doJSON(ctx, http.MethodPost, "/transfer", req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("transfer declined for project %s", req.ProjectID)
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secretKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
