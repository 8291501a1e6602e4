// Package dnsmasq implements the zonedit provider contract by editing
// a dnsmasq config file, either on local disk or on a remote host over
// SFTP.
//
// Records live in a marked block inside one config file:
//
//	# BEGIN zonedit managed records
//	address=/www.example.com/192.0.2.10
//	cname=alias.example.com,www.example.com
//	txt-record=_acme.example.com,"token"
//	# END zonedit managed records
//
// Lines outside the block are never touched, so the file can carry
// hand-written dnsmasq options next to the managed records. After each
// write the reload command runs, when one is configured, so dnsmasq
// serves the change.
//
// dnsmasq has directives for A, AAAA, CNAME, and TXT only; other kinds
// return ErrUnsupported. The backend takes no Auth variant: construct
// it with a nil credential and point it at the file with options.
package dnsmasq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
	"gitlab.bluewillows.net/root/zonedit/pkg/sshutil"
)

const providerName = "dnsmasq"

// Provider implements provider.Provider over a dnsmasq config file.
type Provider struct {
	cfg    provider.Config
	client *Client
	logger *slog.Logger
	ttl    int

	path   string
	reload string
	ssh    *sshutil.Config

	sshClient *sshutil.Client
	sshFS     *sshutil.SFTPFileSystem

	connectOnce sync.Once
	connectErr  error
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

// WithPath sets the dnsmasq config file to manage. The option is
// required unless a client is injected.
func WithPath(path string) ProviderOption {
	return func(p *Provider) {
		p.path = path
	}
}

// WithReloadCommand sets the command run after each write, typically
// "systemctl reload dnsmasq". Empty skips reloading.
func WithReloadCommand(command string) ProviderOption {
	return func(p *Provider) {
		p.reload = command
	}
}

// WithTTL sets the TTL reported on reads, since dnsmasq directives
// carry no TTL of their own. The default is 300.
func WithTTL(ttl int) ProviderOption {
	return func(p *Provider) {
		p.ttl = ttl
	}
}

// WithSSH manages the config file on a remote host: reads and writes
// go over SFTP and the reload command runs through SSH.
func WithSSH(cfg *sshutil.Config) ProviderOption {
	return func(p *Provider) {
		p.ssh = cfg
	}
}

// WithClient injects a preconfigured client, bypassing the path and
// SSH options.
func WithClient(client *Client) ProviderOption {
	return func(p *Provider) {
		p.client = client
	}
}

// New creates a dnsmasq provider for one domain and config file. The
// backend has no API credential, so auth must be nil; file location
// and SSH access come in through options.
func New(cfg provider.Config, auth provider.Auth, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if auth != nil {
		// The Auth union has no variant for this backend; SSH
		// credentials belong in the SSH config option.
		return nil, provider.ErrUnsupportedAuth(providerName, auth)
	}

	p := &Provider{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.ttl <= 0 {
		p.ttl = provider.DefaultTTL
	}

	if p.client == nil {
		if p.path == "" {
			return nil, &provider.InputError{Field: "path", Message: "dnsmasq config file path is required"}
		}

		clientOpts := []ClientOption{WithLogger(p.logger)}
		if p.ssh != nil {
			sshClient, err := sshutil.NewClient(p.ssh, sshutil.WithLogger(p.logger))
			if err != nil {
				return nil, &provider.InputError{Field: "ssh", Message: err.Error()}
			}
			p.sshClient = sshClient
			p.sshFS = sshutil.NewSFTPFileSystem(sshClient, sshutil.WithSFTPLogger(p.logger))
			clientOpts = append(clientOpts,
				WithFileSystem(p.sshFS),
				WithRunner(sshutil.NewSSHCommandRunner(sshClient, sshutil.WithCommandLogger(p.logger))),
			)
		}
		p.client = NewClient(p.path, p.reload, clientOpts...)
	}

	return p, nil
}

// Name returns "dnsmasq".
func (p *Provider) Name() string {
	return providerName
}

// Path returns the managed config file path.
func (p *Provider) Path() string {
	return p.client.Path()
}

// connect dials SSH and SFTP on first use. A failure sticks for the
// handle's lifetime; callers construct a fresh provider to retry.
// Local-file providers have nothing to dial.
func (p *Provider) connect(ctx context.Context) error {
	p.connectOnce.Do(func() {
		if p.sshClient == nil {
			return
		}
		if err := p.sshClient.Connect(ctx); err != nil {
			p.connectErr = p.mapSSHError(err)
			return
		}
		if err := p.sshFS.Connect(ctx); err != nil {
			p.connectErr = p.mapSSHError(err)
		}
	})
	return p.connectErr
}

// mapSSHError converts connection failures onto the provider taxonomy.
func (p *Provider) mapSSHError(err error) error {
	if errors.Is(err, sshutil.ErrAuthenticationFailed) {
		return provider.ErrAuthFailed
	}
	return &provider.TransportError{Op: "ssh connect " + p.ssh.Address(), Err: err}
}

// checkKind limits operations to the kinds dnsmasq has directives for.
func checkKind(kind provider.RecordKind) error {
	switch kind {
	case provider.KindA, provider.KindAAAA, provider.KindCNAME, provider.KindTXT:
		return nil
	}
	return fmt.Errorf("%w: no dnsmasq directive for %s records", provider.ErrUnsupported, kind)
}

// GetRecord reads one record from the managed block.
func (p *Provider) GetRecord(ctx context.Context, host string, kind provider.RecordKind) (*provider.Record, error) {
	if err := provider.ValidateHost(host); err != nil {
		return nil, err
	}
	if err := checkKind(kind); err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}
	if err := p.connect(ctx); err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}

	records, err := p.client.List()
	if err != nil {
		return nil, provider.WrapError(providerName, "get record", err)
	}

	fqdn := p.fqdn(host)
	for _, rec := range records {
		if strings.EqualFold(rec.FQDN, fqdn) && rec.Kind == kind {
			return &provider.Record{
				Kind:  kind,
				Host:  host,
				Value: rec.Value,
				TTL:   p.ttl,
			}, nil
		}
	}
	return nil, provider.WrapError(providerName, "get record", provider.ErrNotFound)
}

// SetRecord writes the record's directive into the managed block,
// replacing any previous line for the same name and kind, then reloads
// dnsmasq.
func (p *Provider) SetRecord(ctx context.Context, host string, kind provider.RecordKind, value string, ttl int) error {
	rec, err := provider.NewRecord(kind, host, value, ttl)
	if err != nil {
		return err
	}
	if err := checkKind(kind); err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would write record to config",
			slog.String("provider", providerName),
			slog.String("path", p.client.Path()),
			slog.String("host", host),
			slog.String("kind", string(kind)),
			slog.String("value", value),
		)
		provider.SkipDryRun(providerName, "set_record")
		return nil
	}

	if err := p.connect(ctx); err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	if err := p.client.Upsert(Record{FQDN: p.fqdn(rec.Host), Kind: kind, Value: rec.Value}); err != nil {
		return provider.WrapError(providerName, "set record", err)
	}
	if err := p.client.Reload(ctx); err != nil {
		return provider.WrapError(providerName, "set record", err)
	}

	p.logger.Info("record upserted",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
		slog.String("value", value),
	)
	return nil
}

// DeleteRecord removes the record's directive from the managed block,
// then reloads dnsmasq. A name the block does not hold returns
// ErrNotFound.
func (p *Provider) DeleteRecord(ctx context.Context, host string, kind provider.RecordKind) error {
	if err := provider.ValidateHost(host); err != nil {
		return err
	}
	if err := checkKind(kind); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	if p.cfg.DryRun {
		p.logger.Info("dry-run: would remove record from config",
			slog.String("provider", providerName),
			slog.String("path", p.client.Path()),
			slog.String("host", host),
			slog.String("kind", string(kind)),
		)
		provider.SkipDryRun(providerName, "delete_record")
		return nil
	}

	if err := p.connect(ctx); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	removed, err := p.client.Delete(p.fqdn(host), kind)
	if err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}
	if !removed {
		return provider.WrapError(providerName, "delete record", provider.ErrNotFound)
	}
	if err := p.client.Reload(ctx); err != nil {
		return provider.WrapError(providerName, "delete record", err)
	}

	p.logger.Info("record deleted",
		slog.String("provider", providerName),
		slog.String("host", host),
		slog.String("kind", string(kind)),
	)
	return nil
}

// ListRecords returns the managed records for the configured domain.
// Lines for other domains are skipped; kind "" returns all kinds.
func (p *Provider) ListRecords(ctx context.Context, kind provider.RecordKind) ([]provider.Record, error) {
	if err := p.connect(ctx); err != nil {
		return nil, provider.WrapError(providerName, "list records", err)
	}

	managed, err := p.client.List()
	if err != nil {
		return nil, provider.WrapError(providerName, "list records", err)
	}

	records := make([]provider.Record, 0, len(managed))
	for _, rec := range managed {
		host, ok := p.hostFromFQDN(rec.FQDN)
		if !ok {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		records = append(records, provider.Record{
			Kind:  rec.Kind,
			Host:  host,
			Value: rec.Value,
			TTL:   p.ttl,
		})
	}

	p.logger.Debug("listed records",
		slog.String("provider", providerName),
		slog.String("domain", p.cfg.Domain),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// fqdn qualifies a relative host against the domain. "@" is the apex.
func (p *Provider) fqdn(host string) string {
	if host == "@" {
		return p.cfg.Domain
	}
	return host + "." + p.cfg.Domain
}

// hostFromFQDN converts an absolute name back to the relative host
// convention. Names outside the domain report ok false.
func (p *Provider) hostFromFQDN(fqdn string) (string, bool) {
	if strings.EqualFold(fqdn, p.cfg.Domain) {
		return "@", true
	}
	suffix := "." + p.cfg.Domain
	if len(fqdn) > len(suffix) && strings.EqualFold(fqdn[len(fqdn)-len(suffix):], suffix) {
		return fqdn[:len(fqdn)-len(suffix)], true
	}
	return "", false
}

// Close releases the SSH connection when the provider manages a remote
// file. Local-file providers have nothing to release.
func (p *Provider) Close() error {
	if p.sshFS != nil {
		_ = p.sshFS.Close()
	}
	if p.sshClient != nil {
		return p.sshClient.Close()
	}
	return nil
}

// Factory returns a provider.Factory constructing dnsmasq handles.
// Settings the uniform factory signature cannot carry (file path,
// reload command, SSH access) are fixed into the factory through
// options.
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
