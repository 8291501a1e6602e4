package porkbun

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// Provider implements provider.Provider for Porkbun.
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

// New creates a Porkbun provider bound to one domain and credential.
// Porkbun requires the KeyAndSecret pair; both halves travel in every
// request body.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ks, ok := auth.(provider.KeyAndSecret)
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
	p.client = NewClient(ks.Key, ks.Secret, clientOpts...)

	return p, nil
}

// Name returns "porkbun".
func (p *Provider) Name() string {
	return providerName
}

// Domain returns the configured zone domain.
func (p *Provider) Domain() string {
	return p.cfg.Domain
}

// apiHost converts the relative host to Porkbun's subdomain form,
// where the zone apex is the empty string.
func apiHost(host string) string {
	if host == "@" {
		return ""
	}
	return host
}

// hostFromName converts a response FQDN back to the relative form.
func (p *Provider) hostFromName(name string) string {
	if name == p.cfg.Domain {
		return "@"
	}
	return strings.TrimSuffix(name, "."+p.cfg.Domain)
}

func parseTTL(s string) int {
	ttl, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return ttl
}

// GetRecord fetches one record. When several records share the host
// and kind, the first one Porkbun returns wins.
func (p *Provider) GetRecord(ctx context.Context, host string, kind provider.RecordKind) (*provider.Record, error) {
	if err := provider.ValidateHost(host); err != nil {
		return nil, err
	}

	records, err := p.client.RetrieveRecords(ctx, p.cfg.Domain, apiHost(host), kind)
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}
	if len(records) == 0 {
		return nil, provider.WrapError(providerName, "get record", provider.ErrNotFound)
	}

	rec := records[0]
	return &provider.Record{
		Kind:  kind,
		Host:  p.hostFromName(rec.Name),
		Value: rec.Content,
		TTL:   parseTTL(rec.TTL),
	}, nil
}

// SetRecord creates the record if absent and edits it in place when
// present. Porkbun has no single upsert call, so a retrieve decides
// which verb to use.
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

	existing, err := p.client.RetrieveRecords(ctx, p.cfg.Domain, apiHost(host), kind)
	if err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	if len(existing) == 0 {
		err = p.client.CreateRecord(ctx, p.cfg.Domain, apiHost(host), kind, value, rec.TTL)
	} else {
		err = p.client.EditRecord(ctx, p.cfg.Domain, existing[0].ID, apiHost(host), kind, value, rec.TTL)
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

	existing, err := p.client.RetrieveRecords(ctx, p.cfg.Domain, apiHost(host), kind)
	if err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}
	if len(existing) == 0 {
		return provider.WrapError(providerName, "delete record", provider.ErrNotFound)
	}

	if err := p.client.DeleteRecord(ctx, p.cfg.Domain, existing[0].ID); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	p.logger.Info("deleted record",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
		slog.String("record_id", existing[0].ID),
	)

	return nil
}

// Factory returns a provider.Factory constructing Porkbun handles.
// Options are fixed at registration time and applied to every handle.
func Factory(opts ...ProviderOption) provider.Factory {
	return func(cfg provider.Config, auth provider.Auth) (provider.Provider, error) {
		return New(cfg, auth, opts...)
	}
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)
