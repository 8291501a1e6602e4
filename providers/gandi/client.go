// Package gandi implements the zonedit provider contract for Gandi
// LiveDNS (API v5).
package gandi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gitlab.bluewillows.net/root/zonedit/pkg/httputil"
	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for the Gandi LiveDNS v5 API.
	DefaultAPIEndpoint = "https://api.gandi.net/v5/livedns"

	providerName = "gandi"
)

// apiErrorBody is the JSON envelope LiveDNS returns on failures.
type apiErrorBody struct {
	Object  string `json:"object"`
	Cause   string `json:"cause"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rrset is a LiveDNS record set.
type rrset struct {
	Type   string   `json:"rrset_type"`
	TTL    int      `json:"rrset_ttl"`
	Name   string   `json:"rrset_name"`
	Values []string `json:"rrset_values"`
}

// upsertRequest is the PUT body that replaces one record set.
type upsertRequest struct {
	Values []string `json:"rrset_values"`
	TTL    int      `json:"rrset_ttl"`
}

// Client is a Gandi LiveDNS API client.
type Client struct {
	apiEndpoint string
	authHeader  string
	httpClient  *http.Client
	logger      *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAPIEndpoint sets a custom API endpoint (useful for testing).
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.apiEndpoint = endpoint
	}
}

// NewClient creates a new LiveDNS API client. authHeader is the full
// Authorization header value ("Apikey k" or "Bearer k").
func NewClient(authHeader string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		authHeader:  authHeader,
		httpClient:  httputil.DefaultClient(),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func recordPath(domain, host string, kind provider.RecordKind) string {
	return fmt.Sprintf("/domains/%s/records/%s/%s", domain, host, kind)
}

// RecordURL returns the full URL addressing one record set. Dry-run
// logging uses it to show the request that was suppressed.
func (c *Client) RecordURL(domain, host string, kind provider.RecordKind) string {
	return c.apiEndpoint + recordPath(domain, host, kind)
}

// doRequest performs an HTTP request against LiveDNS and maps failures
// onto the shared error taxonomy.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	c.logger.Debug("making API request",
		slog.String("method", method),
		slog.String("path", path),
	)

	req, err := http.NewRequestWithContext(ctx, method, c.apiEndpoint+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &provider.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.TransportError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, provider.ErrAuthFailed
	case http.StatusNotFound:
		return nil, provider.ErrNotFound
	}

	msg := strings.TrimSpace(string(respBody))
	var apiErr apiErrorBody
	if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return nil, &provider.APIError{Provider: providerName, StatusCode: resp.StatusCode, Message: msg}
}

// GetRecordSet fetches one record set by host and kind.
func (c *Client) GetRecordSet(ctx context.Context, domain, host string, kind provider.RecordKind) (*rrset, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, recordPath(domain, host, kind), nil)
	if err != nil {
		return nil, err
	}

	var rs rrset
	if err := json.Unmarshal(respBody, &rs); err != nil {
		return nil, fmt.Errorf("parsing record set response: %w", err)
	}

	return &rs, nil
}

// UpsertRecordSet replaces the record set, creating it when absent.
// LiveDNS PUT covers both cases in one request.
func (c *Client) UpsertRecordSet(ctx context.Context, domain, host string, kind provider.RecordKind, value string, ttl int) error {
	reqBody := upsertRequest{
		Values: []string{value},
		TTL:    ttl,
	}

	_, err := c.doRequest(ctx, http.MethodPut, recordPath(domain, host, kind), reqBody)
	if err != nil {
		return err
	}

	c.logger.Debug("upserted record set",
		slog.String("domain", domain),
		slog.String("host", host),
		slog.String("kind", string(kind)),
	)

	return nil
}

// DeleteRecordSet removes the record set.
func (c *Client) DeleteRecordSet(ctx context.Context, domain, host string, kind provider.RecordKind) error {
	_, err := c.doRequest(ctx, http.MethodDelete, recordPath(domain, host, kind), nil)
	return err
}
