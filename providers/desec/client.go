// Package desec implements the zonedit provider contract for deSEC
// (desec.io).
package desec

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
	// DefaultAPIEndpoint is the base URL for the deSEC API.
	DefaultAPIEndpoint = "https://desec.io/api/v1"

	// MinTTL is the lowest TTL deSEC accepts on a default account.
	// Requested TTLs below it are clamped up.
	MinTTL = 3600

	providerName = "desec"
)

// rrset is a deSEC record set. Subname is empty for the zone apex.
type rrset struct {
	Domain  string   `json:"domain"`
	Subname string   `json:"subname"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Records []string `json:"records"`
	TTL     int      `json:"ttl"`
}

// putRequest is the PUT body creating or replacing one record set.
type putRequest struct {
	Subname string   `json:"subname"`
	Type    string   `json:"type"`
	TTL     int      `json:"ttl"`
	Records []string `json:"records"`
}

// apiErrorBody is the JSON error shape deSEC returns.
type apiErrorBody struct {
	Detail string `json:"detail"`
}

// Client is a deSEC API client.
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

// NewClient creates a new deSEC API client.
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

// urlSubname yields the path segment deSEC expects; the apex is
// addressed as a literal "@".
func urlSubname(host string) string {
	if host == "" {
		return "@"
	}
	return host
}

// rrsetPath builds the record-set path. deSEC requires the trailing
// slash.
func rrsetPath(domain, host string, kind provider.RecordKind) string {
	return fmt.Sprintf("/domains/%s/rrsets/%s/%s/", domain, urlSubname(host), kind)
}

// RRSetURL returns the full URL addressing one record set. Dry-run
// logging uses it to show the request that was suppressed.
func (c *Client) RRSetURL(domain, host string, kind provider.RecordKind) string {
	return c.apiEndpoint + rrsetPath(domain, host, kind)
}

// doRequest performs an HTTP request against the deSEC API and maps
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

	req.Header.Set("Authorization", "Token "+c.token)
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
	if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Detail != "" {
		msg = apiErr.Detail
	}
	return nil, &provider.APIError{Provider: providerName, StatusCode: resp.StatusCode, Message: msg}
}

// GetRRSet fetches one record set by host and kind.
func (c *Client) GetRRSet(ctx context.Context, domain, host string, kind provider.RecordKind) (*rrset, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, rrsetPath(domain, host, kind), nil)
	if err != nil {
		return nil, err
	}

	var rs rrset
	if err := json.Unmarshal(respBody, &rs); err != nil {
		return nil, fmt.Errorf("parsing record set response: %w", err)
	}

	return &rs, nil
}

// PutRRSet creates or replaces the record set in one request.
func (c *Client) PutRRSet(ctx context.Context, domain, host string, kind provider.RecordKind, values []string, ttl int) error {
	subname := host
	if subname == "@" {
		subname = ""
	}
	reqBody := putRequest{
		Subname: subname,
		Type:    string(kind),
		TTL:     ttl,
		Records: values,
	}

	_, err := c.doRequest(ctx, http.MethodPut, rrsetPath(domain, host, kind), reqBody)
	return err
}

// DeleteRRSet removes the record set.
func (c *Client) DeleteRRSet(ctx context.Context, domain, host string, kind provider.RecordKind) error {
	_, err := c.doRequest(ctx, http.MethodDelete, rrsetPath(domain, host, kind), nil)
	return err
}

// ListRRSets returns the record sets in the zone, filtered to one kind
// when kind is non-empty.
func (c *Client) ListRRSets(ctx context.Context, domain string, kind provider.RecordKind) ([]rrset, error) {
	path := fmt.Sprintf("/domains/%s/rrsets/", domain)
	if kind != "" {
		path += "?type=" + string(kind)
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var sets []rrset
	if err := json.Unmarshal(respBody, &sets); err != nil {
		return nil, fmt.Errorf("parsing record sets response: %w", err)
	}

	return sets, nil
}
