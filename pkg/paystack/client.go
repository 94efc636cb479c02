package paystack

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
	defaultBaseURL           = "https://api.paystack.co"
	errorBodyReadLimit int64 = 2048
)

var errSecretKeyRequired = errors.New("paystack secret key is required")

// Client wraps the Paystack transaction API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
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

// WithBaseURL overrides the Paystack base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Paystack client given the secret key.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(secretKey)
	if trimmed == "" {
		return nil, errSecretKeyRequired
	}

	client := &Client{
		secretKey:  trimmed,
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

// InitializeRequest starts a hosted checkout session.
type InitializeRequest struct {
	AmountCents int            `json:"amount"`
	Email       string         `json:"email"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// InitializeResult carries both redirect and popup session handles.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initialize creates a payment session and returns the redirect URL plus the
// popup access code.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	if req.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if req.Currency == "" {
		req.Currency = "ZAR"
	}

	var envelope struct {
		Status  bool             `json:"status"`
		Message string           `json:"message"`
		Data    InitializeResult `json:"data"`
	}
	if err := c.post(ctx, "/transaction/initialize", req, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Status {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack rejected transaction").
			WithDetails(map[string]any{"message": envelope.Message})
	}
	return &envelope.Data, nil
}

// VerifyResult is the settled state of a transaction.
type VerifyResult struct {
	Status      string     `json:"status"`
	AmountCents int        `json:"amount"`
	Reference   string     `json:"reference"`
	PaidAt      *time.Time `json:"paid_at"`
}

// Paid reports whether the gateway settled the transaction successfully.
func (v VerifyResult) Paid() bool {
	return strings.EqualFold(v.Status, "success")
}

// Verify fetches the authoritative transaction state for a reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paystack request")
	}

	var envelope struct {
		Status  bool         `json:"status"`
		Message string       `json:"message"`
		Data    VerifyResult `json:"data"`
	}
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Status {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack verify failed").
			WithDetails(map[string]any{"message": envelope.Message})
	}
	return &envelope.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paystack request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paystack request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call paystack")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paystack responded %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": strings.TrimSpace(string(snippet))})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack response")
	}
	return nil
}
