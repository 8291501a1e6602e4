// Package porkbun implements the zonedit provider contract for the
// Porkbun DNS API (v3). Every call is a POST carrying the credential
// pair in the JSON body.
package porkbun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"gitlab.bluewillows.net/root/zonedit/pkg/httputil"
	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for the Porkbun v3 DNS API.
	DefaultAPIEndpoint = "https://api.porkbun.com/api/json/v3/dns"

	providerName = "porkbun"
)

// dnsRecord is a record as Porkbun returns it. Numeric fields arrive
// as JSON strings.
type dnsRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     string `json:"ttl"`
	Prio    string `json:"prio"`
}

// apiResponse is the common response envelope. Status is "SUCCESS" or
// "ERROR"; Message is set on errors.
type apiResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Records []dnsRecord `json:"records"`
}

// Client is a Porkbun DNS API client.
type Client struct {
	apiEndpoint string
	apiKey      string
	secretKey   string
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

// NewClient creates a new Porkbun API client.
func NewClient(apiKey, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		apiKey:      apiKey,
		secretKey:   secretKey,
		httpClient:  httputil.DefaultClient(),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// doRequest POSTs to the given path with the credentials merged into
// the body and maps failures onto the shared error taxonomy.
func (c *Client) doRequest(ctx context.Context, path string, fields map[string]string) (*apiResponse, error) {
	body := map[string]string{
		"apikey":       c.apiKey,
		"secretapikey": c.secretKey,
	}
	for k, v := range fields {
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	c.logger.Debug("making API request",
		slog.String("method", http.MethodPost),
		slog.String("path", path),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiEndpoint+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &provider.TransportError{Op: "POST " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.TransportError{Op: "POST " + path, Err: err}
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

	if apiResp.Status != "SUCCESS" {
		// Porkbun reports bad credentials as a 400 with this message.
		if strings.HasPrefix(strings.ToLower(apiResp.Message), "invalid api key") {
			return nil, provider.ErrAuthFailed
		}
		return nil, &provider.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    apiResp.Message,
		}
	}

	return &apiResp, nil
}

func retrievePath(domain, host string, kind provider.RecordKind) string {
	if host == "" {
		return fmt.Sprintf("/retrieveByNameType/%s/%s", domain, kind)
	}
	return fmt.Sprintf("/retrieveByNameType/%s/%s/%s", domain, kind, host)
}

// RetrieveRecords fetches the records matching host and kind. host is
// the bare subdomain; empty means the zone apex.
func (c *Client) RetrieveRecords(ctx context.Context, domain, host string, kind provider.RecordKind) ([]dnsRecord, error) {
	resp, err := c.doRequest(ctx, retrievePath(domain, host, kind), nil)
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// CreateRecord creates a new record.
func (c *Client) CreateRecord(ctx context.Context, domain, host string, kind provider.RecordKind, content string, ttl int) error {
	_, err := c.doRequest(ctx, "/create/"+domain, map[string]string{
		"name":    host,
		"type":    string(kind),
		"content": content,
		"ttl":     strconv.Itoa(ttl),
	})
	return err
}

// EditRecord replaces the content and TTL of an existing record.
func (c *Client) EditRecord(ctx context.Context, domain, id, host string, kind provider.RecordKind, content string, ttl int) error {
	_, err := c.doRequest(ctx, fmt.Sprintf("/edit/%s/%s", domain, id), map[string]string{
		"name":    host,
		"type":    string(kind),
		"content": content,
		"ttl":     strconv.Itoa(ttl),
	})
	return err
}

// DeleteRecord deletes a record by ID.
func (c *Client) DeleteRecord(ctx context.Context, domain, id string) error {
	_, err := c.doRequest(ctx, fmt.Sprintf("/delete/%s/%s", domain, id), nil)
	return err
}
