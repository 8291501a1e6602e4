// Package dnsmadeeasy implements the zonedit provider contract for
// DNSMadeEasy (API V2.0).
package dnsmadeeasy

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/zonedit/pkg/httputil"
	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

const (
	// DefaultAPIEndpoint is the base URL for the production DNSMadeEasy
	// API.
	DefaultAPIEndpoint = "https://api.dnsmadeeasy.com/V2.0"

	// SandboxAPIEndpoint is the base URL for the DNSMadeEasy sandbox.
	// The sandbox terminates TLS with a legacy configuration; handshake
	// failures there surface as transport errors.
	SandboxAPIEndpoint = "https://api.sandbox.dnsmadeeasy.com/V2.0"

	providerName = "dnsmadeeasy"

	// defaultGTDLocation is the Global Traffic Director region stamped
	// on records this client creates.
	defaultGTDLocation = "DEFAULT"
)

// apiErrorBody is the DNSMadeEasy error payload.
type apiErrorBody struct {
	Error []string `json:"error"`
}

// managedDomain represents a managed domain from the DNSMadeEasy API.
type managedDomain struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// managedRecord represents a DNS record from the DNSMadeEasy API. Name
// is relative to the domain; the apex is the empty string.
type managedRecord struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	TTL         int    `json:"ttl"`
	GTDLocation string `json:"gtdLocation"`
}

// recordRequest is the create/update body. ID is only set on updates.
type recordRequest struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	TTL         int    `json:"ttl"`
	GTDLocation string `json:"gtdLocation"`
}

// recordsPage is the paged envelope around record listings.
type recordsPage struct {
	Data         []managedRecord `json:"data"`
	TotalRecords int             `json:"totalRecords"`
	TotalPages   int             `json:"totalPages"`
}

// Client is a DNSMadeEasy API client.
type Client struct {
	apiEndpoint string
	key         string
	secret      string
	httpClient  *http.Client
	logger      *slog.Logger

	// now is the clock for request signing; swapped in tests.
	now func() time.Time
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

// NewClient creates a new DNSMadeEasy API client.
func NewClient(key, secret string, opts ...ClientOption) *Client {
	c := &Client{
		apiEndpoint: DefaultAPIEndpoint,
		key:         key,
		secret:      secret,
		httpClient:  httputil.DefaultClient(),
		logger:      slog.Default(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// sign stamps the DNSMadeEasy authentication headers onto the request.
// The scheme is HMAC-SHA1 of the RFC 1123 request date, keyed with the
// API secret, hex encoded.
func (c *Client) sign(req *http.Request) {
	date := c.now().UTC().Format(http.TimeFormat)
	mac := hmac.New(sha1.New, []byte(c.secret))
	mac.Write([]byte(date))

	req.Header.Set("x-dnsme-apiKey", c.key)
	req.Header.Set("x-dnsme-requestDate", date)
	req.Header.Set("x-dnsme-hmac", hex.EncodeToString(mac.Sum(nil)))
}

// doRequest performs a signed HTTP request against the DNSMadeEasy API
// and maps failures onto the shared error taxonomy.
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

	c.sign(req)
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
		if err := json.Unmarshal(respBody, &errBody); err == nil && len(errBody.Error) > 0 {
			message = strings.Join(errBody.Error, "; ")
		}
		return nil, &provider.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	return respBody, nil
}

// GetDomainID returns the numeric ID of a managed domain by name.
func (c *Client) GetDomainID(ctx context.Context, domain string) (int64, error) {
	params := url.Values{}
	params.Set("domainname", domain)

	respBody, err := c.doRequest(ctx, http.MethodGet, "/dns/managed/name?"+params.Encode(), nil)
	if err != nil {
		return 0, err
	}

	var md managedDomain
	if err := json.Unmarshal(respBody, &md); err != nil {
		return 0, fmt.Errorf("parsing domain response: %w", err)
	}

	c.logger.Debug("found managed domain",
		slog.String("domain", domain),
		slog.Int64("domain_id", md.ID),
	)

	return md.ID, nil
}

// FindRecords returns the records matching the relative name and kind.
// An empty name matches the domain apex.
func (c *Client) FindRecords(ctx context.Context, domainID int64, kind provider.RecordKind, name string) ([]managedRecord, error) {
	params := url.Values{}
	params.Set("recordName", name)
	params.Set("type", string(kind))

	path := fmt.Sprintf("/dns/managed/%d/records?%s", domainID, params.Encode())
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

// CreateRecord creates a new DNS record under the managed domain.
func (c *Client) CreateRecord(ctx context.Context, domainID int64, kind provider.RecordKind, name, value string, ttl int) error {
	reqBody := recordRequest{
		Name:        name,
		Type:        string(kind),
		Value:       value,
		TTL:         ttl,
		GTDLocation: defaultGTDLocation,
	}

	path := fmt.Sprintf("/dns/managed/%d/records", domainID)
	_, err := c.doRequest(ctx, http.MethodPost, path, reqBody)
	return err
}

// UpdateRecord replaces an existing DNS record by ID. The API requires
// the record ID in the body as well as the path.
func (c *Client) UpdateRecord(ctx context.Context, domainID, recordID int64, kind provider.RecordKind, name, value string, ttl int) error {
	reqBody := recordRequest{
		ID:          recordID,
		Name:        name,
		Type:        string(kind),
		Value:       value,
		TTL:         ttl,
		GTDLocation: defaultGTDLocation,
	}

	path := fmt.Sprintf("/dns/managed/%d/records/%d", domainID, recordID)
	_, err := c.doRequest(ctx, http.MethodPut, path, reqBody)
	return err
}

// DeleteRecord deletes a DNS record by ID.
func (c *Client) DeleteRecord(ctx context.Context, domainID, recordID int64) error {
	path := fmt.Sprintf("/dns/managed/%d/records/%d", domainID, recordID)
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
	return err
}
