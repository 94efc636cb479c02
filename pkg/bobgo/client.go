package bobgo

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

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
)

const (
	defaultBaseURL            = "https://api.bobgo.co.za/v2"
	errorBodyReadLimit  int64 = 2048
	trackRetryAttempts        = 3
	trackRetryBaseDelay       = 500 * time.Millisecond
)

var errAPIKeyRequired = errors.New("bobgo api key is required")

// Client wraps the BobGo courier aggregator API used for shipment creation
// and tracking.
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

// WithBaseURL overrides the configured BobGo base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the HTTP timeout for courier calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the BobGo client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
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

// CreateShipment books a shipment and returns the courier handles. Callers
// treat any failure as fatal to the surrounding workflow.
func (c *Client) CreateShipment(ctx context.Context, req CreateShipmentRequest) (*Shipment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bobgo client not configured")
	}
	if err := req.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipment request")
	}

	var resp shipmentResponse
	if err := c.post(ctx, "/shipments", req, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bobgo returned shipment without id")
	}
	return &Shipment{
		ShipmentID:     resp.ID,
		TrackingNumber: resp.TrackingReference,
		WaybillURL:     resp.WaybillURL,
	}, nil
}

// CancelShipment voids a previously created shipment. Used as compensation
// when the order update fails after booking.
func (c *Client) CancelShipment(ctx context.Context, shipmentID string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "bobgo client not configured")
	}
	if strings.TrimSpace(shipmentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}
	return c.post(ctx, fmt.Sprintf("/shipments/%s/cancel", shipmentID), struct{}{}, nil)
}

// TrackShipment fetches the event history for a tracking number, retrying
// transient failures with fixed backoff. Tracking is a read path, so retries
// are safe.
func (c *Client) TrackShipment(ctx context.Context, trackingNumber string) ([]TrackingUpdate, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bobgo client not configured")
	}
	if strings.TrimSpace(trackingNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}

	var resp trackingResponse
	backoff := retry.WithMaxRetries(trackRetryAttempts, retry.NewConstant(trackRetryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.get(ctx, fmt.Sprintf("/tracking/%s", trackingNumber), &resp); err != nil {
			if typed := pkgerrors.As(err); typed != nil && pkgerrors.MetadataFor(typed.Code()).Retryable {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode bobgo request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build bobgo request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build bobgo request")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call bobgo")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("bobgo responded %d", resp.StatusCode)).
			WithDetails(map[string]any{"body": strings.TrimSpace(string(snippet))})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode bobgo response")
	}
	return nil
}
