package desec

import (
	"context"
	"log/slog"
	"net/http"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// Provider implements provider.Provider for deSEC. It also implements
// provider.Lister.
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

// New creates a deSEC provider bound to one domain and credential.
// deSEC tokens may arrive as APIKey or Token; both end up in the same
// "Authorization: Token" header.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var token string
	switch a := auth.(type) {
	case provider.APIKey:
		token = a.Key
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

	clientOpts := []ClientOption{WithLogger(p.logger), WithAPIEndpoint(p.endpoint)}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, WithHTTPClient(p.httpClient))
	}
	p.client = NewClient(token, clientOpts...)

	return p, nil
}

// Name returns "desec".
func (p *Provider) Name() string {
	return providerName
}

// Domain returns the configured zone domain.
func (p *Provider) Domain() string {
	return p.cfg.Domain
}

// effectiveTTL clamps the requested TTL to deSEC's minimum. Zero means
// the default, which for deSEC is the minimum itself.
func effectiveTTL(ttl int) int {
	if ttl < MinTTL {
		return MinTTL
	}
	return ttl
}

// wireValue quotes TXT-like values the way deSEC requires on the wire.
func wireValue(kind provider.RecordKind, value string) string {
	if kind == provider.KindTXT || kind == provider.KindSPF {
		return provider.EnsureQuotes(value)
	}
	return value
}

func hostFromSubname(subname string) string {
	if subname == "" {
		return "@"
	}
	return subname
}

// GetRecord fetches one record. Multi-value record sets collapse to
// their first value.
func (p *Provider) GetRecord(ctx context.Context, host string, kind provider.RecordKind) (*provider.Record, error) {
	if err := provider.ValidateHost(host); err != nil {
		return nil, err
	}

	rs, err := p.client.GetRRSet(ctx, p.cfg.Domain, host, kind)
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}
	if len(rs.Records) == 0 {
		return nil, provider.WrapError(providerName, "get record", provider.ErrNotFound)
	}

	return &provider.Record{
		Kind:  kind,
		Host:  hostFromSubname(rs.Subname),
		Value: rs.Records[0],
		TTL:   rs.TTL,
	}, nil
}

// SetRecord creates or replaces the record set. deSEC PUT is a native
// upsert.
func (p *Provider) SetRecord(ctx context.Context, host string, kind provider.RecordKind, value string, ttl int) error {
	rec, err := provider.NewRecord(kind, host, value, ttl)
	if err != nil {
		return err
	}
	sendTTL := effectiveTTL(rec.TTL)
	sendValue := wireValue(kind, value)

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would send record upsert",
			slog.String("provider", providerName),
			slog.String("url", p.client.RRSetURL(p.cfg.Domain, host, kind)),
			slog.String("host", host),
			slog.String("kind", string(kind)),
			slog.String("value", sendValue),
			slog.Int("ttl", sendTTL),
		)
		provider.SkipDryRun(providerName, "set_record")
		return nil
	}

	if err := p.client.PutRRSet(ctx, p.cfg.Domain, host, kind, []string{sendValue}, sendTTL); err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	p.logger.Info("set record",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
		slog.String("value", sendValue),
		slog.Int("ttl", sendTTL),
	)

	return nil
}

// DeleteRecord removes the record set. deSEC answers 204 whether or
// not the set exists, so absence is checked first.
func (p *Provider) DeleteRecord(ctx context.Context, host string, kind provider.RecordKind) error {
	if err := provider.ValidateHost(host); err != nil {
		return err
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would send record delete",
			slog.String("provider", providerName),
			slog.String("url", p.client.RRSetURL(p.cfg.Domain, host, kind)),
			slog.String("host", host),
			slog.String("kind", string(kind)),
		)
		provider.SkipDryRun(providerName, "delete_record")
		return nil
	}

	if _, err := p.client.GetRRSet(ctx, p.cfg.Domain, host, kind); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	if err := p.client.DeleteRRSet(ctx, p.cfg.Domain, host, kind); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	p.logger.Info("deleted record",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
	)

	return nil
}

// ListRecords enumerates the zone. Every value of a multi-value record
// set becomes its own Record.
func (p *Provider) ListRecords(ctx context.Context, kind provider.RecordKind) ([]provider.Record, error) {
	sets, err := p.client.ListRRSets(ctx, p.cfg.Domain, kind)
	if err != nil {
		return nil, provider.WrapError(providerName, "list records", err)
	}

	var records []provider.Record
	for _, rs := range sets {
		k, err := provider.ParseKind(rs.Type)
		if err != nil {
			// deSEC zones carry types outside the supported set
			// (SOA, DNSKEY); skip them.
			continue
		}
		for _, v := range rs.Records {
			records = append(records, provider.Record{
				Kind:  k,
				Host:  hostFromSubname(rs.Subname),
				Value: v,
				TTL:   rs.TTL,
			})
		}
	}

	p.logger.Debug("listed records",
		slog.String("provider", providerName),
		slog.String("kind", string(kind)),
		slog.Int("count", len(records)),
	)

	return records, nil
}

// Factory returns a provider.Factory constructing deSEC handles.
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
