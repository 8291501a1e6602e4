package dnsmadeeasy

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// Provider implements provider.Provider for DNSMadeEasy.
type Provider struct {
	cfg    provider.Config
	client *Client
	logger *slog.Logger

	endpoint   string
	httpClient *http.Client

	// domainOnce ensures the managed-domain lookup happens at most once
	// per Provider; both the ID and a lookup failure are cached.
	domainOnce sync.Once
	domainID   int64
	domainErr  error
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

// WithEndpoint sets a custom API endpoint (useful for testing and the
// sandbox).
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

// New creates a DNSMadeEasy provider. DNSMadeEasy authenticates with an
// API key and an HMAC secret.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var key, secret string
	switch a := auth.(type) {
	case provider.KeyAndSecret:
		key = a.Key
		secret = a.Secret
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
	p.client = NewClient(key, secret, clientOpts...)

	return p, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Domain returns the configured domain.
func (p *Provider) Domain() string {
	return p.cfg.Domain
}

// resolveDomainID looks up the managed domain's numeric ID on first
// use.
func (p *Provider) resolveDomainID(ctx context.Context) (int64, error) {
	p.domainOnce.Do(func() {
		p.domainID, p.domainErr = p.client.GetDomainID(ctx, p.cfg.Domain)
	})
	if p.domainErr != nil {
		return 0, provider.WrapError(providerName, "resolve domain", p.domainErr)
	}
	return p.domainID, nil
}

// ResolveAccountID exposes the managed domain's numeric ID as the
// provider's account identifier.
func (p *Provider) ResolveAccountID(ctx context.Context) (string, error) {
	id, err := p.resolveDomainID(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// apiHost converts the relative host to DNSMadeEasy's record name,
// where the apex is the empty string.
func apiHost(host string) string {
	if host == "@" {
		return ""
	}
	return host
}

// hostFromName converts a DNSMadeEasy record name back to the relative
// form.
func hostFromName(name string) string {
	if name == "" {
		return "@"
	}
	return name
}

// GetRecord fetches a single record by host and kind. When several
// records share the host and kind, the first is returned.
func (p *Provider) GetRecord(ctx context.Context, host string, kind provider.RecordKind) (*provider.Record, error) {
	if err := provider.ValidateHost(host); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, &provider.InputError{Field: "kind", Value: string(kind), Message: "unknown record kind"}
	}

	domainID, err := p.resolveDomainID(ctx)
	if err != nil {
		return nil, err
	}

	records, err := p.client.FindRecords(ctx, domainID, kind, apiHost(host))
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}
	if len(records) == 0 {
		return nil, provider.WrapError(providerName, "get record", provider.ErrNotFound)
	}

	rec := records[0]
	return &provider.Record{
		Kind:  kind,
		Host:  hostFromName(rec.Name),
		Value: rec.Value,
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

	domainID, err := p.resolveDomainID(ctx)
	if err != nil {
		return err
	}

	name := apiHost(host)
	existing, err := p.client.FindRecords(ctx, domainID, kind, name)
	if err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	if len(existing) == 0 {
		if err := p.client.CreateRecord(ctx, domainID, kind, name, rec.Value, rec.TTL); err != nil {
			return provider.WrapError(providerName, "set record", err)
		}
	} else {
		if err := p.client.UpdateRecord(ctx, domainID, existing[0].ID, kind, name, rec.Value, rec.TTL); err != nil {
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

	domainID, err := p.resolveDomainID(ctx)
	if err != nil {
		return err
	}

	records, err := p.client.FindRecords(ctx, domainID, kind, apiHost(host))
	if err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}
	if len(records) == 0 {
		return provider.WrapError(providerName, "delete record", provider.ErrNotFound)
	}

	if err := p.client.DeleteRecord(ctx, domainID, records[0].ID); err != nil {
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

// Factory returns a provider.Factory that builds DNSMadeEasy providers.
// Options are fixed at registration time and applied to every handle.
func Factory(opts ...ProviderOption) provider.Factory {
	return func(cfg provider.Config, auth provider.Auth) (provider.Provider, error) {
		return New(cfg, auth, opts...)
	}
}

var (
	_ provider.Provider        = (*Provider)(nil)
	_ provider.AccountResolver = (*Provider)(nil)
)
