package bunny

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// kindToType maps record kinds onto Bunny's numeric type enum. Kinds
// missing here are not representable in Bunny DNS.
var kindToType = map[provider.RecordKind]int{
	provider.KindA:     0,
	provider.KindAAAA:  1,
	provider.KindCNAME: 2,
	provider.KindTXT:   3,
	provider.KindMX:    4,
	provider.KindSRV:   8,
	provider.KindCAA:   9,
	provider.KindPTR:   10,
	provider.KindNS:    12,
}

// typeToKind is the reverse of kindToType.
var typeToKind = func() map[int]provider.RecordKind {
	m := make(map[int]provider.RecordKind, len(kindToType))
	for k, t := range kindToType {
		m[t] = k
	}
	return m
}()

// recordTypeFor resolves a kind to Bunny's numeric type, or reports
// the kind unsupported.
func recordTypeFor(kind provider.RecordKind) (int, error) {
	t, ok := kindToType[kind]
	if !ok {
		return 0, provider.ErrUnsupported
	}
	return t, nil
}

// Provider implements provider.Provider for Bunny DNS.
type Provider struct {
	cfg    provider.Config
	client *Client
	logger *slog.Logger

	endpoint   string
	httpClient *http.Client

	// zoneOnce ensures the zone lookup happens at most once per
	// Provider; both the ID and a lookup failure are cached.
	zoneOnce sync.Once
	zoneID   int64
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

// New creates a Bunny DNS provider. Bunny authenticates with an
// account access key.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var accessKey string
	switch a := auth.(type) {
	case provider.APIKey:
		accessKey = a.Key
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
	p.client = NewClient(accessKey, clientOpts...)

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

// resolveZoneID looks up the zone's numeric ID on first use.
func (p *Provider) resolveZoneID(ctx context.Context) (int64, error) {
	p.zoneOnce.Do(func() {
		zone, err := p.client.FindZone(ctx, p.cfg.Domain)
		if err != nil {
			p.zoneErr = err
			return
		}
		p.zoneID = zone.ID
	})
	if p.zoneErr != nil {
		return 0, provider.WrapError(providerName, "resolve zone", p.zoneErr)
	}
	return p.zoneID, nil
}

// ResolveAccountID exposes the zone's numeric ID as the provider's
// account identifier.
func (p *Provider) ResolveAccountID(ctx context.Context) (string, error) {
	id, err := p.resolveZoneID(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

// apiHost converts the relative host to Bunny's record name, where the
// apex is the empty string.
func apiHost(host string) string {
	if host == "@" {
		return ""
	}
	return host
}

// hostFromName converts a Bunny record name back to the relative form.
func hostFromName(name string) string {
	if name == "" {
		return "@"
	}
	return name
}

// findRecords filters the zone's records by numeric type and relative
// name.
func (p *Provider) findRecords(ctx context.Context, zoneID int64, recordType int, host string) ([]dnsRecord, error) {
	zone, err := p.client.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	name := apiHost(host)
	var out []dnsRecord
	for _, rec := range zone.Records {
		if rec.Type == recordType && rec.Name == name {
			out = append(out, rec)
		}
	}
	return out, nil
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

	recordType, err := recordTypeFor(kind)
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}

	zoneID, err := p.resolveZoneID(ctx)
	if err != nil {
		return nil, err
	}

	records, err := p.findRecords(ctx, zoneID, recordType, host)
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

	recordType, err := recordTypeFor(kind)
	if err != nil {
		return provider.WrapError(providerName, "set record", err)
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

	existing, err := p.findRecords(ctx, zoneID, recordType, host)
	if err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	name := apiHost(host)
	if len(existing) == 0 {
		if err := p.client.AddRecord(ctx, zoneID, recordType, name, rec.Value, rec.TTL); err != nil {
			return provider.WrapError(providerName, "set record", err)
		}
	} else {
		if err := p.client.UpdateRecord(ctx, zoneID, existing[0].ID, recordType, name, rec.Value, rec.TTL); err != nil {
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

	recordType, err := recordTypeFor(kind)
	if err != nil {
		return provider.WrapError(providerName, "delete record", err)
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

	records, err := p.findRecords(ctx, zoneID, recordType, host)
	if err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}
	if len(records) == 0 {
		return provider.WrapError(providerName, "delete record", provider.ErrNotFound)
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
// kind is non-empty. Bunny zones can carry vendor-specific entries
// (redirects, pull zones, scripts); those are skipped.
func (p *Provider) ListRecords(ctx context.Context, kind provider.RecordKind) ([]provider.Record, error) {
	if kind != "" && !kind.Valid() {
		return nil, &provider.InputError{Field: "kind", Value: string(kind), Message: "unknown record kind"}
	}

	zoneID, err := p.resolveZoneID(ctx)
	if err != nil {
		return nil, err
	}

	zone, err := p.client.GetZone(ctx, zoneID)
	if err != nil {
		return nil, provider.WrapError(providerName, "list records", err)
	}

	out := make([]provider.Record, 0, len(zone.Records))
	for _, rec := range zone.Records {
		k, ok := typeToKind[rec.Type]
		if !ok {
			continue
		}
		if kind != "" && k != kind {
			continue
		}
		out = append(out, provider.Record{
			Kind:  k,
			Host:  hostFromName(rec.Name),
			Value: rec.Value,
			TTL:   rec.TTL,
		})
	}

	return out, nil
}

// Factory returns a provider.Factory that builds Bunny DNS providers.
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
