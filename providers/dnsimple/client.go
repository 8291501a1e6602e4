// Package dnsimple implements the zonedit provider contract for
// DNSimple (API v2).
package dnsimple

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
	// DefaultAPIEndpoint is the base URL for the production DNSimple API.
	DefaultAPIEndpoint = "https://api.dnsimple.com/v2"

	// SandboxAPIEndpoint is the base URL for the DNSimple sandbox
	// environment.
	SandboxAPIEndpoint = "https://api.sandbox.dnsimple.com/v2"

	providerName = "dnsimple"
)

// apiErrorBody is the DNSimple error payload.
type apiErrorBody struct {
	Message string `json:"message"`
}

// account represents an account visible to the authenticated token.
type account struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// zoneRecord represents a DNS record from the DNSimple API. Name is
// relative to the zone; the apex is the empty string.
type zoneRecord struct {
	ID      int64  `json:"id"`
	ZoneID  string `json:"zone_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// recordRequest is the create/update body.
type recordRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// Client is a DNSimple API client.
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

// WithAPIEndpoint sets a custom API endpoint (useful for testing and
// the sandbox).
func WithAPIEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.apiEndpoint = endpoint
	}
}

// NewClient creates a new DNSimple API client.
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

// doRequest performs an HTTP request against the DNSimple API and maps
// failures onto the shared error taxonomy. The response body is
// returned raw; DELETE responses are empty.
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
	req.Header.Set("Accept", "application/json")
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

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, provider.ErrAuthFailed
	case resp.StatusCode == http.StatusNotFound:
		return nil, provider.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		message := strings.TrimSpace(string(respBody))
		var errBody apiErrorBody
		if err := json.Unmarshal(respBody, &errBody); err == nil && errBody.Message != "" {
			message = errBody.Message
		}
		return nil, &provider.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	return respBody, nil
}

// ListAccounts returns the accounts the token can see.
func (c *Client) ListAccounts(ctx context.Context) ([]account, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/accounts", nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []account `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("parsing accounts response: %w", err)
	}

	return envelope.Data, nil
}

// FindRecords returns the records matching the relative name and kind.
// An empty name matches the zone apex.
func (c *Client) FindRecords(ctx context.Context, accountID, zone string, kind provider.RecordKind, name string) ([]zoneRecord, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("type", string(kind))

	path := fmt.Sprintf("/%s/zones/%s/records?%s", accountID, zone, params.Encode())
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []zoneRecord `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("parsing records response: %w", err)
	}

	return envelope.Data, nil
}

// CreateRecord creates a new DNS record in the zone.
func (c *Client) CreateRecord(ctx context.Context, accountID, zone string, kind provider.RecordKind, name, content string, ttl int) error {
	reqBody := recordRequest{
		Name:    name,
		Type:    string(kind),
		Content: content,
		TTL:     ttl,
	}

	path := fmt.Sprintf("/%s/zones/%s/records", accountID, zone)
	_, err := c.doRequest(ctx, http.MethodPost, path, reqBody)
	return err
}

// UpdateRecord replaces an existing DNS record by ID.
func (c *Client) UpdateRecord(ctx context.Context, accountID, zone string, recordID int64, kind provider.RecordKind, name, content string, ttl int) error {
	reqBody := recordRequest{
		Name:    name,
		Type:    string(kind),
		Content: content,
		TTL:     ttl,
	}

	path := fmt.Sprintf("/%s/zones/%s/records/%d", accountID, zone, recordID)
	_, err := c.doRequest(ctx, http.MethodPatch, path, reqBody)
	return err
}

// DeleteRecord deletes a DNS record by ID.
func (c *Client) DeleteRecord(ctx context.Context, accountID, zone string, recordID int64) error {
	path := fmt.Sprintf("/%s/zones/%s/records/%d", accountID, zone, recordID)
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	return err
}
