package bobpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
)

const (
	defaultBaseURL           = "https://api.bobpay.co.za/v2"
	errorBodyReadLimit int64 = 2048
)

var errAPIKeyRequired = errors.New("bobpay api key is required")

// Client wraps the BobPay hosted payment API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the BobPay base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the BobPay client given the API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmed,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SessionRequest starts a hosted payment session.
type SessionRequest struct {
	AmountCents int    `json:"amount_cents"`
	Currency    string `json:"currency"`
	Reference   string `json:"merchant_reference"`
	Description string `json:"description,omitempty"`
	SuccessURL  string `json:"success_url,omitempty"`
	CancelURL   string `json:"cancel_url,omitempty"`
	NotifyURL   string `json:"notify_url,omitempty"`
}

// Session is the created hosted payment session.
type Session struct {
	PaymentURL string `json:"payment_url"`
	Reference  string `json:"reference"`
}

// CreateSession opens a hosted payment page for the buyer.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bobpay client not configured")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant reference is required")
	}
	if req.Currency == "" {
		req.Currency = "ZAR"
	}

	var session Session
	if err := c.post(ctx, "/payments", req, &session); err != nil {
		return nil, err
	}
	if session.PaymentURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bobpay returned no payment url")
	}
	if session.Reference == "" {
		session.Reference = req.Reference
	}
	return &session, nil
}

// PaymentStatus is the settled state of a payment.
type PaymentStatus struct {
	Status      string     `json:"status"`
	AmountCents int        `json:"amount_cents"`
	Reference   string     `json:"reference"`
	PaidAt      *time.Time `json:"paid_at"`
}

// Paid reports whether the payment completed successfully.
func (p PaymentStatus) Paid() bool {
	return strings.EqualFold(p.Status, "paid") || strings.EqualFold(p.Status, "complete")
}

// GetStatus fetches the authoritative payment state for a reference.
func (c *Client) GetStatus(ctx context.Context, reference string) (*PaymentStatus, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bobpay client not configured")
	}
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+reference, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build bobpay request")
	}

	var status PaymentStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode bobpay request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build bobpay request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call bobpay")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("bobpay responded %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": strings.TrimSpace(string(snippet))})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode bobpay response")
	}
	return nil
}
