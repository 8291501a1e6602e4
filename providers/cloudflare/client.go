// Package cloudflare implements the zonedit provider contract for
// Cloudflare DNS (API v4).
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"gitlab.bluewillows.net/root/zonedit/pkg/httputil"
	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for Cloudflare API v4.
	DefaultAPIEndpoint = "https://api.cloudflare.com/client/v4"

	providerName = "cloudflare"
)

// apiError represents an error from the Cloudflare API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// apiResponse is the standard Cloudflare API response wrapper.
type apiResponse struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

// zoneResult represents a zone from the Cloudflare API.
type zoneResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// dnsRecord represents a DNS record from the Cloudflare API. Name is
// fully qualified.
type dnsRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// recordRequest is the create/update body.
type recordRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// Client is a Cloudflare DNS API client.
type Client struct {
	apiEndpoint string
	token       string
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

// NewClient creates a new Cloudflare API client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		token:       token,
		httpClient:  httputil.DefaultClient(),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// isAuthErrorCode reports whether a Cloudflare error code means the
// token itself was rejected.
func isAuthErrorCode(code int) bool {
	switch code {
	case 6003, 9109, 10000:
		return true
	}
	return false
}

// doRequest performs an HTTP request against the Cloudflare API,
// unwraps the response envelope, and maps failures onto the shared
// error taxonomy.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*apiResponse, error) {
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

	req.Header.Set("Authorization", "Bearer "+c.token)
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

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, provider.ErrAuthFailed
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &provider.APIError{
				Provider:   providerName,
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(respBody)),
			}
		}
		return nil, fmt.Errorf("parsing response JSON: %w", err)
	}

	if !apiResp.Success {
		if len(apiResp.Errors) > 0 {
			e := apiResp.Errors[0]
			if isAuthErrorCode(e.Code) {
				return nil, provider.ErrAuthFailed
			}
			if resp.StatusCode == http.StatusNotFound {
				return nil, provider.ErrNotFound
			}
			return nil, &provider.APIError{
				Provider:   providerName,
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("%s (code: %d)", e.Message, e.Code),
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, provider.ErrNotFound
		}
		return nil, &provider.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "request failed with unknown error",
		}
	}

	return &apiResp, nil
}

// GetZoneID returns the zone ID for the given zone name. The name must
// match exactly; the configured domain is the zone.
func (c *Client) GetZoneID(ctx context.Context, domain string) (string, error) {
	params := url.Values{}
	params.Set("name", domain)

	resp, err := c.doRequest(ctx, http.MethodGet, "/zones?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	var zones []zoneResult
	if err := json.Unmarshal(resp.Result, &zones); err != nil {
		return "", fmt.Errorf("parsing zones response: %w", err)
	}

	if len(zones) == 0 {
		return "", provider.ErrNotFound
	}

	c.logger.Debug("found zone",
		slog.String("domain", domain),
		slog.String("zone_id", zones[0].ID),
	)

	return zones[0].ID, nil
}

// FindRecords returns the records matching the FQDN and kind in the
// given zone.
func (c *Client) FindRecords(ctx context.Context, zoneID string, kind provider.RecordKind, fqdn string) ([]dnsRecord, error) {
	params := url.Values{}
	params.Set("type", string(kind))
	params.Set("name", fqdn)

	path := fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, params.Encode())
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var records []dnsRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("parsing records response: %w", err)
	}

	return records, nil
}

// ListRecords returns the zone's records, filtered to one kind when
// kind is non-empty.
func (c *Client) ListRecords(ctx context.Context, zoneID string, kind provider.RecordKind) ([]dnsRecord, error) {
	params := url.Values{}
	params.Set("per_page", "100")
	if kind != "" {
		params.Set("type", string(kind))
	}

	path := fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, params.Encode())
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var records []dnsRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("parsing records response: %w", err)
	}

	c.logger.Debug("listed records",
		slog.String("zone_id", zoneID),
		slog.String("type", string(kind)),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// CreateRecord creates a new DNS record in the given zone.
func (c *Client) CreateRecord(ctx context.Context, zoneID string, kind provider.RecordKind, fqdn, content string, ttl int) error {
	reqBody := recordRequest{
		Type:    string(kind),
		Name:    fqdn,
		Content: content,
		TTL:     ttl,
	}

	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/dns_records", zoneID), reqBody)
	return err
}

// UpdateRecord replaces an existing DNS record by ID.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, kind provider.RecordKind, fqdn, content string, ttl int) error {
	reqBody := recordRequest{
		Type:    string(kind),
		Name:    fqdn,
		Content: content,
		TTL:     ttl,
	}

	_, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID), reqBody)
	return err
}

// DeleteRecord deletes a DNS record by ID.
func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, recordID), nil)
	return err
}
