package digitalocean

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// Provider implements provider.Provider for DigitalOcean DNS. It also
// implements provider.Lister.
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

// New creates a DigitalOcean provider bound to one domain and
// credential. DigitalOcean uses bearer tokens only.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tok, ok := auth.(provider.Token)
	if !ok {
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
	p.client = NewClient(tok.Value, clientOpts...)

	return p, nil
}

// Name returns "digitalocean".
func (p *Provider) Name() string {
	return providerName
}

// Domain returns the configured zone domain.
func (p *Provider) Domain() string {
	return p.cfg.Domain
}

// fqdn builds the fully qualified name the record filter expects.
func (p *Provider) fqdn(host string) string {
	if host == "@" {
		return p.cfg.Domain
	}
	return host + "." + p.cfg.Domain
}

// findOne locates exactly one record for host and kind. Zero matches
// map to ErrNotFound; several matches are ambiguous for a single-record
// operation and surface as an APIError.
func (p *Provider) findOne(ctx context.Context, host string, kind provider.RecordKind) (*domainRecord, error) {
	records, err := p.client.FindRecords(ctx, p.cfg.Domain, p.fqdn(host), kind)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, provider.ErrNotFound
	case 1:
		return &records[0], nil
	default:
		return nil, &provider.APIError{
			Provider:   providerName,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("%d records match %s/%s, expected at most one", len(records), host, kind),
		}
	}
}

// GetRecord fetches one record.
func (p *Provider) GetRecord(ctx context.Context, host string, kind provider.RecordKind) (*provider.Record, error) {
	if err := provider.ValidateHost(host); err != nil {
		return nil, err
	}

	rec, err := p.findOne(ctx, host, kind)
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}

	return &provider.Record{
		Kind:  kind,
		Host:  rec.Name,
		Value: rec.Data,
		TTL:   rec.TTL,
	}, nil
}

// SetRecord creates the record if absent and replaces it when present.
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
			slog.String("host", host),
			slog.String("kind", string(kind)),
			slog.String("value", value),
			slog.Int("ttl", rec.TTL),
		)
		provider.SkipDryRun(providerName, "set_record")
		return nil
	}

	existing, err := p.client.FindRecords(ctx, p.cfg.Domain, p.fqdn(host), kind)
	if err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	if len(existing) == 0 {
		err = p.client.CreateRecord(ctx, p.cfg.Domain, host, kind, value, rec.TTL)
	} else {
		err = p.client.UpdateRecord(ctx, p.cfg.Domain, existing[0].ID, host, kind, value, rec.TTL)
	}
	if err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	p.logger.Info("set record",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
		slog.String("value", value),
		slog.Int("ttl", rec.TTL),
		slog.Bool("created", len(existing) == 0),
	)

	return nil
}

// DeleteRecord removes one record.
func (p *Provider) DeleteRecord(ctx context.Context, host string, kind provider.RecordKind) error {
	if err := provider.ValidateHost(host); err != nil {
		return err
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would send record delete",
			slog.String("provider", providerName),
			slog.String("host", host),
			slog.String("kind", string(kind)),
		)
		provider.SkipDryRun(providerName, "delete_record")
		return nil
	}

	rec, err := p.findOne(ctx, host, kind)
	if err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	if err := p.client.DeleteRecord(ctx, p.cfg.Domain, rec.ID); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	p.logger.Info("deleted record",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
		slog.Int64("record_id", rec.ID),
	)

	return nil
}

// ListRecords enumerates the zone, filtered to one kind when kind is
// non-empty. Records of kinds outside the supported set are dropped.
func (p *Provider) ListRecords(ctx context.Context, kind provider.RecordKind) ([]provider.Record, error) {
	apiRecords, err := p.client.ListRecords(ctx, p.cfg.Domain, kind)
	if err != nil {
		return nil, provider.WrapError(providerName, "list records", err)
	}

	var records []provider.Record
	for _, r := range apiRecords {
		k, err := provider.ParseKind(r.Type)
		if err != nil {
			continue
		}
		records = append(records, provider.Record{
			Kind:  k,
			Host:  r.Name,
			Value: r.Data,
			TTL:   r.TTL,
		})
	}

	p.logger.Debug("listed records",
		slog.String("provider", providerName),
		slog.String("kind", string(kind)),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// Factory returns a provider.Factory constructing DigitalOcean handles.
// Options are fixed at registration time and applied to every handle.
func Factory(opts ...ProviderOption) provider.Factory {
	return func(cfg provider.Config, auth provider.Auth) (provider.Provider, error) {
		return New(cfg, auth, opts...)
	}
}

// Compile-time interface assertions.
var (
	_ provider.Provider = (*Provider)(nil)
	_ provider.Lister   = (*Provider)(nil)
)
