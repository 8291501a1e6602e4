// Package rfc2136 implements the zonedit provider contract over DNS
// dynamic updates (RFC 2136), reaching any authoritative server that
// accepts them: BIND, Knot, PowerDNS, Windows DNS.
//
// Updates are signed with TSIG when the provider is constructed with a
// KeyAndSecret credential (key name plus base64 secret); a nil
// credential sends unsigned updates for servers that authorize by
// address. Reads are plain DNS queries and listing is a zone transfer,
// so the server must allow AXFR for ListRecords.
package rfc2136

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/miekg/dns"

	"gitlab.bluewillows.net/root/zonedit/pkg/dnsupdate"
	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

const providerName = "rfc2136"

// Provider implements provider.Provider for RFC 2136 dynamic updates.
type Provider struct {
	cfg    provider.Config
	client *dnsupdate.Client
	logger *slog.Logger
	zone   string

	server    string
	timeout   time.Duration
	useTCP    bool
	algorithm string
	signed    bool
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

// WithServer sets the DNS server address in host:port form. A bare
// host gets the default DNS port. The option is required.
func WithServer(server string) ProviderOption {
	return func(p *Provider) {
		p.server = server
	}
}

// WithTimeout bounds each DNS exchange.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		p.timeout = timeout
	}
}

// WithTCP forces TCP transport instead of UDP.
func WithTCP() ProviderOption {
	return func(p *Provider) {
		p.useTCP = true
	}
}

// WithTSIGAlgorithm selects the TSIG algorithm (hmac-sha256,
// hmac-sha512, hmac-md5). The default is hmac-sha256.
func WithTSIGAlgorithm(algorithm string) ProviderOption {
	return func(p *Provider) {
		p.algorithm = algorithm
	}
}

// New creates an RFC 2136 provider bound to one zone and server. Auth
// is either nil for unsigned updates or KeyAndSecret carrying the TSIG
// key name and its base64 secret.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:    cfg,
		logger: slog.Default(),
		zone:   dns.Fqdn(cfg.Domain),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.server == "" {
		return nil, &provider.InputError{Field: "server", Message: "dns server address is required"}
	}

	var key *dnsupdate.TSIG
	switch a := auth.(type) {
	case nil:
		// Unsigned updates; the server must authorize them by address.
	case provider.KeyAndSecret:
		var err error
		key, err = dnsupdate.NewTSIG(a.Key, a.Secret, p.algorithm)
		if err != nil {
			return nil, &provider.InputError{Field: "auth", Value: a.Key, Message: err.Error()}
		}
		p.signed = true
	default:
		return nil, provider.ErrUnsupportedAuth(providerName, auth)
	}

	clientOpts := []dnsupdate.Option{dnsupdate.WithLogger(p.logger)}
	if key != nil {
		clientOpts = append(clientOpts, dnsupdate.WithTSIG(key))
	}
	client, err := dnsupdate.NewClient(&dnsupdate.Config{
		Server:  p.server,
		Zone:    p.zone,
		Timeout: p.timeout,
		UseTCP:  p.useTCP,
	}, clientOpts...)
	if err != nil {
		return nil, &provider.InputError{Field: "server", Value: p.server, Message: err.Error()}
	}
	p.client = client

	return p, nil
}

// Name returns "rfc2136".
func (p *Provider) Name() string {
	return providerName
}

// Zone returns the fully qualified zone under management.
func (p *Provider) Zone() string {
	return p.zone
}

// GetRecord reads one record with a direct query against the server.
// Multi-value RRsets collapse to their first value.
func (p *Provider) GetRecord(ctx context.Context, host string, kind provider.RecordKind) (*provider.Record, error) {
	if err := provider.ValidateHost(host); err != nil {
		return nil, err
	}

	records, err := p.client.Query(ctx, p.fqdn(host), kindToType(kind))
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", p.mapError(err))
	}
	if len(records) == 0 {
		return nil, provider.WrapError(providerName, "get record", provider.ErrNotFound)
	}

	rec := records[0]
	return &provider.Record{
		Kind:  kind,
		Host:  host,
		Value: rec.Data,
		TTL:   int(rec.TTL),
	}, nil
}

// SetRecord replaces the RRset for host and kind with a single value.
// The removal and the insert travel in one update message, so the
// swap is atomic on the server.
func (p *Provider) SetRecord(ctx context.Context, host string, kind provider.RecordKind, value string, ttl int) error {
	rec, err := provider.NewRecord(kind, host, value, ttl)
	if err != nil {
		return err
	}
	if rec.TTL == 0 {
		rec.TTL = provider.DefaultTTL
	}

	update := dnsupdate.Record{
		Name: p.fqdn(host),
		Type: kindToType(kind),
		TTL:  uint32(rec.TTL),
		Data: value,
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would send record upsert",
			slog.String("provider", providerName),
			slog.String("server", p.server),
			slog.String("record", update.String()),
		)
		provider.SkipDryRun(providerName, "set_record")
		return nil
	}

	if err := p.client.Upsert(ctx, update); err != nil {
		return provider.WrapError(providerName, "set record", p.mapError(err))
	}

	p.logger.Info("record upserted",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
		slog.String("value", value),
		slog.Int("ttl", rec.TTL),
	)
	return nil
}

// DeleteRecord removes the RRset for host and kind. The update
// carries an existence prerequisite, so a missing record reports
// ErrNotFound without a separate lookup.
func (p *Provider) DeleteRecord(ctx context.Context, host string, kind provider.RecordKind) error {
	if err := provider.ValidateHost(host); err != nil {
		return err
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would send record delete",
			slog.String("provider", providerName),
			slog.String("server", p.server),
			slog.String("host", host),
			slog.String("kind", string(kind)),
		)
		provider.SkipDryRun(providerName, "delete_record")
		return nil
	}

	if err := p.client.Delete(ctx, p.fqdn(host), kindToType(kind)); err != nil {
		return provider.WrapError(providerName, "delete record", p.mapError(err))
	}

	p.logger.Info("record deleted",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
	)
	return nil
}

// ListRecords lists the zone by AXFR. Types outside the kind enum
// (SOA, DNSSEC material) are skipped; kind "" returns all kinds.
func (p *Provider) ListRecords(ctx context.Context, kind provider.RecordKind) ([]provider.Record, error) {
	transferred, err := p.client.Transfer(ctx)
	if err != nil {
		return nil, provider.WrapError(providerName, "list records", p.mapError(err))
	}

	records := make([]provider.Record, 0, len(transferred))
	for _, rec := range transferred {
		k, err := provider.ParseKind(rec.TypeString())
		if err != nil {
			continue
		}
		if kind != "" && k != kind {
			continue
		}
		records = append(records, provider.Record{
			Kind:  k,
			Host:  p.hostFromFQDN(rec.Name),
			Value: rec.Data,
			TTL:   int(rec.TTL),
		})
	}

	p.logger.Debug("listed records",
		slog.String("provider", providerName),
		slog.String("zone", p.zone),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// fqdn qualifies a relative host against the zone. "@" is the apex.
func (p *Provider) fqdn(host string) string {
	if host == "@" {
		return p.zone
	}
	return host + "." + p.zone
}

// hostFromFQDN converts an absolute name back to the relative host
// convention, "@" for the apex.
func (p *Provider) hostFromFQDN(name string) string {
	host := strings.TrimSuffix(name, p.zone)
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "@"
	}
	return host
}

// kindToType maps a record kind onto its wire type code. Every kind
// in the closed enum is a standard type miekg/dns knows by name.
func kindToType(kind provider.RecordKind) uint16 {
	return dns.StringToType[string(kind)]
}

// mapError converts dnsupdate errors onto the provider taxonomy.
// REFUSED from a server that was handed a key means the key or the
// update policy is wrong, so signed refusals map to ErrAuthFailed.
func (p *Provider) mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dnsupdate.ErrRecordNotFound):
		return provider.ErrNotFound
	case errors.Is(err, dnsupdate.ErrAuthenticationFailed):
		return provider.ErrAuthFailed
	case errors.Is(err, dnsupdate.ErrRefused) && p.signed:
		return provider.ErrAuthFailed
	case dnsupdate.IsNetworkError(err):
		return &provider.TransportError{Op: "dns exchange " + p.server, Err: err}
	}
	return err
}

// Factory returns a provider.Factory constructing RFC 2136 handles.
// Connection settings the uniform factory signature cannot carry
// (server address, transport, algorithm) are fixed into the factory
// through options.
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
