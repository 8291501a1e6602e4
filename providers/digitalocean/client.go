// Package digitalocean implements the zonedit provider contract for
// DigitalOcean DNS.
package digitalocean

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
	// DefaultAPIEndpoint is the base URL for the DigitalOcean API v2.
	DefaultAPIEndpoint = "https://api.digitalocean.com/v2"

	providerName = "digitalocean"
)

// domainRecord is a DNS record from the DigitalOcean API. Name is the
// relative host with "@" for the apex.
type domainRecord struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	Data string `json:"data"`
	TTL  int    `json:"ttl"`
}

// recordsResponse wraps list responses.
type recordsResponse struct {
	DomainRecords []domainRecord `json:"domain_records"`
}

// recordRequest is the create/update body.
type recordRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Data string `json:"data"`
	TTL  int    `json:"ttl"`
}

// apiErrorBody is the DigitalOcean error shape.
type apiErrorBody struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Client is a DigitalOcean DNS API client.
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

// NewClient creates a new DigitalOcean API client.
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

// doRequest performs an HTTP request against the DigitalOcean API and
// maps failures onto the shared error taxonomy.
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

// FindRecords returns the records matching the FQDN and kind. The
// DigitalOcean name filter wants the fully qualified name.
func (c *Client) FindRecords(ctx context.Context, domain, fqdn string, kind provider.RecordKind) ([]domainRecord, error) {
	params := url.Values{}
	params.Set("type", string(kind))
	params.Set("name", fqdn)

	path := fmt.Sprintf("/domains/%s/records?%s", domain, params.Encode())
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var records recordsResponse
	if err := json.Unmarshal(respBody, &records); err != nil {
		return nil, fmt.Errorf("parsing records response: %w", err)
	}

	return records.DomainRecords, nil
}

// ListRecords returns the domain's records, filtered to one kind when
// kind is non-empty.
func (c *Client) ListRecords(ctx context.Context, domain string, kind provider.RecordKind) ([]domainRecord, error) {
	params := url.Values{}
	params.Set("per_page", "200")
	if kind != "" {
		params.Set("type", string(kind))
	}

	path := fmt.Sprintf("/domains/%s/records?%s", domain, params.Encode())
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var records recordsResponse
	if err := json.Unmarshal(respBody, &records); err != nil {
		return nil, fmt.Errorf("parsing records response: %w", err)
	}

	return records.DomainRecords, nil
}

// CreateRecord creates a new record. host is the relative name with
// "@" for the apex, as DigitalOcean expects in bodies.
func (c *Client) CreateRecord(ctx context.Context, domain, host string, kind provider.RecordKind, value string, ttl int) error {
	reqBody := recordRequest{
		Type: string(kind),
		Name: host,
		Data: value,
		TTL:  ttl,
	}

	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/domains/%s/records", domain), reqBody)
	return err
}

// UpdateRecord replaces an existing record by ID.
func (c *Client) UpdateRecord(ctx context.Context, domain string, id int64, host string, kind provider.RecordKind, value string, ttl int) error {
	reqBody := recordRequest{
		Type: string(kind),
		Name: host,
		Data: value,
		TTL:  ttl,
	}

	_, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/domains/%s/records/%d", domain, id), reqBody)
	return err
}

// DeleteRecord deletes a record by ID.
func (c *Client) DeleteRecord(ctx context.Context, domain string, id int64) error {
	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/domains/%s/records/%d", domain, id), nil)
	return err
}
