// Package linode implements the zonedit provider contract for Linode
// Domains (API v4).
package linode

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
	// DefaultAPIEndpoint is the base URL for the Linode API v4.
	DefaultAPIEndpoint = "https://api.linode.com/v4"

	providerName = "linode"
)

// apiError is one entry of the Linode error payload.
type apiError struct {
	Reason string `json:"reason"`
	Field  string `json:"field"`
}

// apiErrorsBody is the Linode error payload.
type apiErrorsBody struct {
	Errors []apiError `json:"errors"`
}

// domainEntry represents a domain from the Linode API.
type domainEntry struct {
	ID     int64  `json:"id"`
	Domain string `json:"domain"`
}

// domainsPage is the paged envelope around domain listings.
type domainsPage struct {
	Data    []domainEntry `json:"data"`
	Pages   int           `json:"pages"`
	Results int           `json:"results"`
}

// domainRecord represents a DNS record from the Linode API. Name is
// relative to the domain; the apex is the empty string.
type domainRecord struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Target string `json:"target"`
	TTLSec int    `json:"ttl_sec"`
}

// recordsPage is the paged envelope around record listings.
type recordsPage struct {
	Data    []domainRecord `json:"data"`
	Pages   int            `json:"pages"`
	Results int            `json:"results"`
}

// recordRequest is the create/update body.
type recordRequest struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Target string `json:"target"`
	TTLSec int    `json:"ttl_sec"`
}

// Client is a Linode API client.
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

// NewClient creates a new Linode API client.
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

// doRequest performs an HTTP request against the Linode API and maps
// failures onto the shared error taxonomy.
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
		var errBody apiErrorsBody
		if err := json.Unmarshal(respBody, &errBody); err == nil && len(errBody.Errors) > 0 {
			parts := make([]string, 0, len(errBody.Errors))
			for _, e := range errBody.Errors {
				if e.Field != "" {
					parts = append(parts, e.Field+": "+e.Reason)
				} else {
					parts = append(parts, e.Reason)
				}
			}
			message = strings.Join(parts, "; ")
		}
		return nil, &provider.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	return respBody, nil
}

// GetDomainID returns the ID of the domain with exactly the given
// name.
func (c *Client) GetDomainID(ctx context.Context, domain string) (int64, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/domains?page_size=500", nil)
	if err != nil {
		return 0, err
	}

	var page domainsPage
	if err := json.Unmarshal(respBody, &page); err != nil {
		return 0, fmt.Errorf("parsing domains response: %w", err)
	}

	for _, d := range page.Data {
		if d.Domain == domain {
			c.logger.Debug("found domain",
				slog.String("domain", domain),
				slog.Int64("domain_id", d.ID),
			)
			return d.ID, nil
		}
	}

	return 0, provider.ErrNotFound
}

// ListRecords returns all records of the domain. The endpoint carries
// every type; callers filter.
func (c *Client) ListRecords(ctx context.Context, domainID int64) ([]domainRecord, error) {
	path := fmt.Sprintf("/domains/%d/records?page_size=500", domainID)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var page recordsPage
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, fmt.Errorf("parsing records response: %w", err)
	}

	return page.Data, nil
}

// CreateRecord creates a new DNS record under the domain.
func (c *Client) CreateRecord(ctx context.Context, domainID int64, kind provider.RecordKind, name, target string, ttl int) error {
	reqBody := recordRequest{
		Type:   string(kind),
		Name:   name,
		Target: target,
		TTLSec: ttl,
	}

	path := fmt.Sprintf("/domains/%d/records", domainID)
	_, err := c.doRequest(ctx, http.MethodPost, path, reqBody)
	return err
}

// UpdateRecord replaces an existing DNS record by ID.
func (c *Client) UpdateRecord(ctx context.Context, domainID, recordID int64, kind provider.RecordKind, name, target string, ttl int) error {
	reqBody := recordRequest{
		Type:   string(kind),
		Name:   name,
		Target: target,
		TTLSec: ttl,
	}

	path := fmt.Sprintf("/domains/%d/records/%d", domainID, recordID)
	_, err := c.doRequest(ctx, http.MethodPut, path, reqBody)
	return err
}

// DeleteRecord deletes a DNS record by ID.
func (c *Client) DeleteRecord(ctx context.Context, domainID, recordID int64) error {
	path := fmt.Sprintf("/domains/%d/records/%d", domainID, recordID)
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	return err
}
