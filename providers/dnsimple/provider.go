package dnsimple

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// Provider implements provider.Provider for DNSimple.
type Provider struct {
	cfg    provider.Config
	client *Client
	logger *slog.Logger

	endpoint   string
	httpClient *http.Client

	// accountOnce ensures the account lookup happens at most once per
	// Provider; both the ID and a lookup failure are cached.
	accountOnce sync.Once
	accountID   string
	accountErr  error
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

// New creates a DNSimple provider. DNSimple authenticates with an
// OAuth-style bearer token.
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

// resolveAccountID looks up the token's account on first use. The API
// path needs it, but a token can see several accounts; only an
// unambiguous single account is usable.
func (p *Provider) resolveAccountID(ctx context.Context) (string, error) {
	p.accountOnce.Do(func() {
		accounts, err := p.client.ListAccounts(ctx)
		if err != nil {
			p.accountErr = err
			return
		}
		if len(accounts) != 1 {
			p.accountErr = &provider.APIError{
				Provider:   providerName,
				StatusCode: http.StatusOK,
				Message:    fmt.Sprintf("%d accounts visible to this token, expected exactly one", len(accounts)),
			}
			return
		}
		p.accountID = strconv.FormatInt(accounts[0].ID, 10)
		p.logger.Debug("resolved account",
			slog.String("provider", providerName),
			slog.String("account_id", p.accountID),
		)
	})
	if p.accountErr != nil {
		return "", provider.WrapError(providerName, "resolve account", p.accountErr)
	}
	return p.accountID, nil
}

// ResolveAccountID returns the ID of the account the token belongs to.
func (p *Provider) ResolveAccountID(ctx context.Context) (string, error) {
	return p.resolveAccountID(ctx)
}

// apiHost converts the relative host to DNSimple's record name, where
// the apex is the empty string.
func apiHost(host string) string {
	if host == "@" {
		return ""
	}
	return host
}

// hostFromName converts a DNSimple record name back to the relative
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

	accountID, err := p.resolveAccountID(ctx)
	if err != nil {
		return nil, err
	}

	records, err := p.client.FindRecords(ctx, accountID, p.cfg.Domain, kind, apiHost(host))
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

	accountID, err := p.resolveAccountID(ctx)
	if err != nil {
		return err
	}

	name := apiHost(host)
	existing, err := p.client.FindRecords(ctx, accountID, p.cfg.Domain, kind, name)
	if err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	if len(existing) == 0 {
		if err := p.client.CreateRecord(ctx, accountID, p.cfg.Domain, kind, name, rec.Value, rec.TTL); err != nil {
			return provider.WrapError(providerName, "set record", err)
		}
	} else {
		if err := p.client.UpdateRecord(ctx, accountID, p.cfg.Domain, existing[0].ID, kind, name, rec.Value, rec.TTL); err != nil {
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

	accountID, err := p.resolveAccountID(ctx)
	if err != nil {
		return err
	}

	records, err := p.client.FindRecords(ctx, accountID, p.cfg.Domain, kind, apiHost(host))
	if err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}
	if len(records) == 0 {
		return provider.WrapError(providerName, "delete record", provider.ErrNotFound)
	}

	if err := p.client.DeleteRecord(ctx, accountID, p.cfg.Domain, records[0].ID); err != nil {
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

// Factory returns a provider.Factory that builds DNSimple providers.
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
