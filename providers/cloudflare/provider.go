package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// Provider implements provider.Provider for Cloudflare DNS.
type Provider struct {
	cfg    provider.Config
	client *Client
	logger *slog.Logger

	endpoint   string
	httpClient *http.Client

	// zoneOnce ensures the zone ID lookup happens at most once per
	// Provider; both the ID and a lookup failure are cached.
	zoneOnce sync.Once
	zoneID   string
	zoneErr  error
}

// ProviderOption is a functional option for configuring the Provider.
type ProviderOption func(*Provider)

// WithProviderLogger sets a custom logger.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithEndpoint sets a custom API endpoint (useful for testing).
func WithEndpoint(endpoint string) ProviderOption {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithProviderHTTPClient sets a custom HTTP client.
func WithProviderHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// New creates a Cloudflare provider. Cloudflare authenticates with an
// API token.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var token string
	switch a := auth.(type) {
	case provider.Token:
		token = a.Value
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

	clientOpts := []ClientOption{
		WithLogger(p.logger),
		WithAPIEndpoint(p.endpoint),
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, WithHTTPClient(p.httpClient))
	}
	p.client = NewClient(token, clientOpts...)

	return p, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Domain returns the configured zone.
func (p *Provider) Domain() string {
	return p.cfg.Domain
}

// resolveZoneID looks up the zone ID for the configured domain on
// first use.
func (p *Provider) resolveZoneID(ctx context.Context) (string, error) {
	p.zoneOnce.Do(func() {
		p.zoneID, p.zoneErr = p.client.GetZoneID(ctx, p.cfg.Domain)
	})
	if p.zoneErr != nil {
		return "", provider.WrapError(providerName, "resolve zone", p.zoneErr)
	}
	return p.zoneID, nil
}

// ResolveAccountID exposes the zone ID as the provider's account
// identifier.
func (p *Provider) ResolveAccountID(ctx context.Context) (string, error) {
	return p.resolveZoneID(ctx)
}

// fqdn converts a relative host to the fully qualified name Cloudflare
// uses on the wire.
func (p *Provider) fqdn(host string) string {
	if host == "@" {
		return p.cfg.Domain
	}
	return host + "." + p.cfg.Domain
}

// hostFromFQDN converts a wire name back to the relative form.
func (p *Provider) hostFromFQDN(name string) string {
	if name == p.cfg.Domain {
		return "@"
	}
	return strings.TrimSuffix(name, "."+p.cfg.Domain)
}

// GetRecord fetches a single record by host and kind.
func (p *Provider) GetRecord(ctx context.Context, host string, kind provider.RecordKind) (*provider.Record, error) {
	if err := provider.ValidateHost(host); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &provider.InputError{Field: "kind", Value: string(kind), Message: "unknown record kind"}
	}

	zoneID, err := p.resolveZoneID(ctx)
	if err != nil {
		return nil, err
	}

	records, err := p.client.FindRecords(ctx, zoneID, kind, p.fqdn(host))
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}

	switch len(records) {
	case 0:
		return nil, provider.WrapError(providerName, "get record", provider.ErrNotFound)
	case 1:
	default:
		err := &provider.APIError{
			Provider:   providerName,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("%d records match %s/%s, expected at most one", len(records), host, kind),
		}
		return nil, provider.WrapError(providerName, "get record", err)
	}

	rec := records[0]
	return &provider.Record{
		Kind:  kind,
		Host:  p.hostFromFQDN(rec.Name),
		Value: rec.Content,
		TTL:   rec.TTL,
	}, nil
}

// SetRecord creates or updates a record. An existing record of the
// same host and kind is replaced.
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
			slog.String("domain", p.cfg.Domain),
			slog.String("host", host),
			slog.String("kind", string(kind)),
			slog.String("value", value),
			slog.Int("ttl", rec.TTL),
		)
		provider.SkipDryRun(providerName, "set_record")
		return nil
	}

	zoneID, err := p.resolveZoneID(ctx)
	if err != nil {
		return err
	}

	fqdn := p.fqdn(host)
	existing, err := p.client.FindRecords(ctx, zoneID, kind, fqdn)
	if err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	if len(existing) == 0 {
		if err := p.client.CreateRecord(ctx, zoneID, kind, fqdn, rec.Value, rec.TTL); err != nil {
			return provider.WrapError(providerName, "set record", err)
		}
	} else {
		if err := p.client.UpdateRecord(ctx, zoneID, existing[0].ID, kind, fqdn, rec.Value, rec.TTL); err != nil {
			return provider.WrapError(providerName, "set record", err)
		}
	}

	p.logger.Info("record upserted",
		slog.String("provider", providerName),
		slog.String("domain", p.cfg.Domain),
		slog.String("host", host),
		slog.String("kind", string(kind)),
		slog.Bool("created", len(existing) == 0),
	)

	return nil
}

// DeleteRecord removes a record by host and kind.
func (p *Provider) DeleteRecord(ctx context.Context, host string, kind provider.RecordKind) error {
	if err := provider.ValidateHost(host); err != nil {
		return err
	}
	if !kind.Valid() {
		return &provider.InputError{Field: "kind", Value: string(kind), Message: "unknown record kind"}
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would send record delete",
			slog.String("provider", providerName),
			slog.String("domain", p.cfg.Domain),
			slog.String("host", host),
			slog.String("kind", string(kind)),
		)
		provider.SkipDryRun(providerName, "delete_record")
		return nil
	}

	zoneID, err := p.resolveZoneID(ctx)
	if err != nil {
		return err
	}

	records, err := p.client.FindRecords(ctx, zoneID, kind, p.fqdn(host))
	if err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	switch len(records) {
	case 0:
		return provider.WrapError(providerName, "delete record", provider.ErrNotFound)
	case 1:
	default:
		err := &provider.APIError{
			Provider:   providerName,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("%d records match %s/%s, expected at most one", len(records), host, kind),
		}
		return provider.WrapError(providerName, "delete record", err)
	}

	if err := p.client.DeleteRecord(ctx, zoneID, records[0].ID); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	p.logger.Info("record deleted",
		slog.String("provider", providerName),
		slog.String("domain", p.cfg.Domain),
		slog.String("host", host),
		slog.String("kind", string(kind)),
	)

	return nil
}

// ListRecords returns the zone's records, filtered to one kind when
// kind is non-empty. Record types outside the supported set are
// skipped.
func (p *Provider) ListRecords(ctx context.Context, kind provider.RecordKind) ([]provider.Record, error) {
	if kind != "" && !kind.Valid() {
		return nil, &provider.InputError{Field: "kind", Value: string(kind), Message: "unknown record kind"}
	}

	zoneID, err := p.resolveZoneID(ctx)
	if err != nil {
		return nil, err
	}

	records, err := p.client.ListRecords(ctx, zoneID, kind)
	if err != nil {
		return nil, provider.WrapError(providerName, "list records", err)
	}

	out := make([]provider.Record, 0, len(records))
	for _, rec := range records {
		k, err := provider.ParseKind(rec.Type)
		if err != nil {
			continue
		}
		out = append(out, provider.Record{
			Kind:  k,
			Host:  p.hostFromFQDN(rec.Name),
			Value: rec.Content,
			TTL:   rec.TTL,
		})
	}

	return out, nil
}

// Factory returns a provider.Factory that builds Cloudflare providers.
// Options are fixed at registration time and applied to every handle.
func Factory(opts ...ProviderOption) provider.Factory {
	return func(cfg provider.Config, auth provider.Auth) (provider.Provider, error) {
		return New(cfg, auth, opts...)
	}
}

var (
	_ provider.Provider        = (*Provider)(nil)
	_ provider.Lister          = (*Provider)(nil)
	_ provider.AccountResolver = (*Provider)(nil)
)
