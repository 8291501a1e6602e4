package gandi

import (
	"context"
	"log/slog"
	"net/http"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// Provider implements provider.Provider for Gandi LiveDNS.
type Provider struct {
	cfg    provider.Config
	client *Client
	logger *slog.Logger

	endpoint   string
	httpClient *http.Client
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger for the provider.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithEndpoint points the provider at a different API endpoint.
func WithEndpoint(endpoint string) ProviderOption {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithProviderHTTPClient sets a custom HTTP client for the provider.
func WithProviderHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// New creates a Gandi provider bound to one domain and credential.
// Gandi accepts APIKey (legacy "Apikey" scheme) and Token (personal
// access token) credentials.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var authHeader string
	switch a := auth.(type) {
	case provider.APIKey:
		authHeader = "Apikey " + a.Key
	case provider.Token:
		authHeader = "Bearer " + a.Value
	default:
		return nil, provider.ErrUnsupportedAuth(providerName, auth)
	}

	p := &Provider{
		cfg:      cfg,
		logger:   slog.Default(),
		endpoint: DefaultAPIEndpoint,
	}

	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []ClientOption{WithLogger(p.logger), WithAPIEndpoint(p.endpoint)}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, WithHTTPClient(p.httpClient))
	}
	p.client = NewClient(authHeader, clientOpts...)

	return p, nil
}

// Name returns "gandi".
func (p *Provider) Name() string {
	return providerName
}

// Domain returns the configured zone domain.
func (p *Provider) Domain() string {
	return p.cfg.Domain
}

// GetRecord fetches one record. Multi-value record sets collapse to
// their first value.
func (p *Provider) GetRecord(ctx context.Context, host string, kind provider.RecordKind) (*provider.Record, error) {
	if err := provider.ValidateHost(host); err != nil {
		return nil, err
	}

	rs, err := p.client.GetRecordSet(ctx, p.cfg.Domain, host, kind)
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}
	if len(rs.Values) == 0 {
		return nil, provider.WrapError(providerName, "get record", provider.ErrNotFound)
	}

	return &provider.Record{
		Kind:  kind,
		Host:  host,
		Value: rs.Values[0],
		TTL:   rs.TTL,
	}, nil
}

// SetRecord creates or replaces the record set. LiveDNS PUT is a
// native upsert, so one request covers both cases.
func (p *Provider) SetRecord(ctx context.Context, host string, kind provider.RecordKind, value string, ttl int) error {
	rec, err := provider.NewRecord(kind, host, value, ttl)
	if err != nil {
		return err
	}
	if rec.TTL == 0 {
		rec.TTL = provider.DefaultTTL
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would send record upsert",
			slog.String("provider", providerName),
			slog.String("url", p.client.RecordURL(p.cfg.Domain, host, kind)),
			slog.String("host", host),
			slog.String("kind", string(kind)),
			slog.String("value", value),
			slog.Int("ttl", rec.TTL),
		)
		provider.SkipDryRun(providerName, "set_record")
		return nil
	}

	if err := p.client.UpsertRecordSet(ctx, p.cfg.Domain, host, kind, value, rec.TTL); err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	p.logger.Info("set record",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
		slog.String("value", value),
		slog.Int("ttl", rec.TTL),
	)

	return nil
}

// DeleteRecord removes the record set. LiveDNS answers 204 whether or
// not the set exists, so absence is checked first.
func (p *Provider) DeleteRecord(ctx context.Context, host string, kind provider.RecordKind) error {
	if err := provider.ValidateHost(host); err != nil {
		return err
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would send record delete",
			slog.String("provider", providerName),
			slog.String("url", p.client.RecordURL(p.cfg.Domain, host, kind)),
			slog.String("host", host),
			slog.String("kind", string(kind)),
		)
		provider.SkipDryRun(providerName, "delete_record")
		return nil
	}

	if _, err := p.client.GetRecordSet(ctx, p.cfg.Domain, host, kind); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	if err := p.client.DeleteRecordSet(ctx, p.cfg.Domain, host, kind); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	p.logger.Info("deleted record",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
	)

	return nil
}

// Factory returns a provider.Factory constructing Gandi handles.
// Options are fixed at registration time and applied to every handle.
func Factory(opts ...ProviderOption) provider.Factory {
	return func(cfg provider.Config, auth provider.Auth) (provider.Provider, error) {
		return New(cfg, auth, opts...)
	}
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)
