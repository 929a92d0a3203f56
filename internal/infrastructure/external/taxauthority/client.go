// Package taxauthority is the HTTP adapter for the tax authority's
// e-invoice submission gateway.
package taxauthority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
)

// Config holds tax authority gateway configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements port.TaxAuthorityClient over the gateway's JSON API.
// The error contract matters here: only a definitive gateway verdict
// becomes a port.AuthorityError; transport failures, timeouts and 5xx
// responses stay plain errors so the coordinator treats them as
// ambiguous outcomes.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new tax authority client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type submitRequest struct {
	InvoiceID      string  `json:"invoice_id"`
	InvoiceNumber  int64   `json:"invoice_number"`
	TemplateSerial string  `json:"template_serial"`
	CustomerID     string  `json:"customer_id"`
	IssueDate      string  `json:"issue_date,omitempty"`
	TotalAmount    float64 `json:"total_amount"`
}

type submitResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Submit files the invoice with the tax authority and returns the
// authority code on acceptance.
func (c *Client) Submit(ctx context.Context, sub *port.InvoiceSubmission) (string, error) {
	payload := submitRequest{
		InvoiceID:      sub.InvoiceID,
		InvoiceNumber:  sub.InvoiceNumber,
		TemplateSerial: sub.TemplateSerial,
		CustomerID:     sub.CustomerID,
		TotalAmount:    sub.TotalAmount,
	}
	if sub.IssueDate != nil {
		payload.IssueDate = sub.IssueDate.Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal submission: %w", err)
	}

	url := c.baseURL + "/api/v1/invoices/submit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Ambiguous: the request may or may not have reached the gateway.
		return "", fmt.Errorf("tax authority request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read tax authority response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var result submitResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return "", fmt.Errorf("failed to decode tax authority response: %w", err)
		}
		c.logger.Info("Tax authority accepted submission",
			zap.String("invoice_id", sub.InvoiceID),
			zap.String("code", result.Code))
		return result.Code, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Definitive verdict: the gateway received and refused the filing.
		var result submitResponse
		if err := json.Unmarshal(respBody, &result); err != nil || result.Code == "" {
			result.Code = "REJECTED"
			result.Message = string(respBody)
		}
		c.logger.Warn("Tax authority rejected submission",
			zap.String("invoice_id", sub.InvoiceID),
			zap.String("code", result.Code),
			zap.Int("http_status", resp.StatusCode))
		return "", &port.AuthorityError{Code: result.Code, Message: result.Message}

	default:
		// 5xx and anything unexpected: outcome unknown.
		return "", fmt.Errorf("tax authority returned status %d: %s", resp.StatusCode, respBody)
	}
}

// LookupStatus queries the authority for the verdict on an earlier
// filing. Used by the reconcile worker for submissions whose response
// was lost.
func (c *Client) LookupStatus(ctx context.Context, invoiceID string) (string, error) {
	url := c.baseURL + "/api/v1/invoices/" + invoiceID + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tax authority status lookup failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read tax authority response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var result submitResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return "", fmt.Errorf("failed to decode tax authority response: %w", err)
		}
		return result.Code, nil

	case http.StatusNotFound:
		// The authority has no record of the filing.
		return "KQ04", nil

	default:
		return "", fmt.Errorf("tax authority returned status %d: %s", resp.StatusCode, respBody)
	}
}

// Verify interface compliance
var _ port.TaxAuthorityClient = (*Client)(nil)
