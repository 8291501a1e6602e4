// Package bunny implements the zonedit provider contract for Bunny DNS.
package bunny

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
	// DefaultAPIEndpoint is the base URL for the Bunny DNS zone API.
	DefaultAPIEndpoint = "https://api.bunny.net/dnszone"

	providerName = "bunny"
)

// apiErrorBody is the Bunny error payload.
type apiErrorBody struct {
	ErrorKey string `json:"ErrorKey"`
	Field    string `json:"Field"`
	Message  string `json:"Message"`
}

// dnsRecord represents a DNS record from the Bunny API. The JSON
// fields are PascalCase and the record type is numeric. Name is
// relative to the zone; the apex is the empty string.
type dnsRecord struct {
	ID    int64  `json:"Id"`
	Type  int    `json:"Type"`
	Name  string `json:"Name"`
	Value string `json:"Value"`
	TTL   int    `json:"Ttl"`
}

// dnsZone represents a DNS zone from the Bunny API.
type dnsZone struct {
	ID      int64       `json:"Id"`
	Domain  string      `json:"Domain"`
	Records []dnsRecord `json:"Records"`
}

// zoneListResponse is the paged envelope around zone searches.
type zoneListResponse struct {
	Items      []dnsZone `json:"Items"`
	TotalItems int       `json:"TotalItems"`
}

// recordRequest is the create/update body.
type recordRequest struct {
	Type  int    `json:"Type"`
	Name  string `json:"Name"`
	Value string `json:"Value"`
	TTL   int    `json:"Ttl"`
}

// Client is a Bunny DNS API client.
type Client struct {
	apiEndpoint string
	accessKey   string
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

// NewClient creates a new Bunny DNS API client.
func NewClient(accessKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		accessKey:   accessKey,
		httpClient:  httputil.DefaultClient(),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// doRequest performs an HTTP request against the Bunny API and maps
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

	req.Header.Set("AccessKey", c.accessKey)
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
			if errBody.Field != "" {
				message = errBody.Field + ": " + message
			}
		}
		return nil, &provider.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	return respBody, nil
}

// FindZone returns the zone whose domain matches exactly.
func (c *Client) FindZone(ctx context.Context, domain string) (*dnsZone, error) {
	params := url.Values{}
	params.Set("search", domain)

	respBody, err := c.doRequest(ctx, http.MethodGet, "?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var list zoneListResponse
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("parsing zones response: %w", err)
	}

	// The search matches substrings, so an exact comparison is still
	// needed.
	for i := range list.Items {
		if strings.EqualFold(list.Items[i].Domain, domain) {
			c.logger.Debug("found zone",
				slog.String("domain", domain),
				slog.Int64("zone_id", list.Items[i].ID),
			)
			return &list.Items[i], nil
		}
	}

	return nil, provider.ErrNotFound
}

// GetZone returns a zone with its records.
func (c *Client) GetZone(ctx context.Context, zoneID int64) (*dnsZone, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/%d", zoneID), nil)
	if err != nil {
		return nil, err
	}

	var zone dnsZone
	if err := json.Unmarshal(respBody, &zone); err != nil {
		return nil, fmt.Errorf("parsing zone response: %w", err)
	}

	return &zone, nil
}

// AddRecord creates a new DNS record in the zone. Bunny creates with
// PUT and updates with POST.
func (c *Client) AddRecord(ctx context.Context, zoneID int64, recordType int, name, value string, ttl int) error {
	reqBody := recordRequest{
		Type:  recordType,
		Name:  name,
		Value: value,
		TTL:   ttl,
	}

	_, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/%d/records", zoneID), reqBody)
	return err
}

// UpdateRecord replaces an existing DNS record by ID.
func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID int64, recordType int, name, value string, ttl int) error {
	reqBody := recordRequest{
		Type:  recordType,
		Name:  name,
		Value: value,
		TTL:   ttl,
	}

	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/%d/records/%d", zoneID, recordID), reqBody)
	return err
}

// DeleteRecord deletes a DNS record by ID.
func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID int64) error {
	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/%d/records/%d", zoneID, recordID), nil)
	return err
}
