package dnsupdate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Errors returned by update and query operations.
var (
	// ErrUpdateFailed wraps server-side failures with no more
	// specific mapping.
	ErrUpdateFailed = errors.New("dns update failed")

	// ErrRecordNotFound is returned when a delete's existence
	// prerequisite fails (NXRRSET).
	ErrRecordNotFound = errors.New("record not found")

	// ErrAuthenticationFailed is returned when the server rejects the
	// transaction signature (NOTAUTH).
	ErrAuthenticationFailed = errors.New("tsig authentication failed")

	// ErrRefused is returned when the server refuses the operation
	// (REFUSED). On a signed exchange this usually means the key has
	// no grant in the update policy.
	ErrRefused = errors.New("operation refused by server")

	// ErrZoneMismatch is returned for names outside the configured
	// zone.
	ErrZoneMismatch = errors.New("record name does not match configured zone")

	// ErrAXFRFailed wraps zone transfer failures.
	ErrAXFRFailed = errors.New("zone transfer (AXFR) failed")
)

// Client performs RFC 2136 dynamic updates and plain queries against
// one authoritative server and zone. Safe for concurrent use.
type Client struct {
	config    *Config
	tsig      *TSIG
	logger    *slog.Logger
	dnsClient *dns.Client
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTSIG signs every exchange with the given key.
func WithTSIG(t *TSIG) Option {
	return func(c *Client) {
		c.tsig = t
	}
}

// NewClient creates a client for the configured server and zone.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := "udp"
	if config.UseTCP {
		transport = "tcp"
	}
	c.dnsClient = &dns.Client{
		Net:     transport,
		Timeout: config.GetTimeout(),
	}
	if c.tsig != nil {
		c.tsig.ApplyToClient(c.dnsClient)
	}

	return c, nil
}

// Zone returns the configured zone.
func (c *Client) Zone() string {
	return c.config.Zone
}

// Server returns the server address including port.
func (c *Client) Server() string {
	return c.config.GetServer()
}

// Signed reports whether exchanges carry a TSIG signature.
func (c *Client) Signed() bool {
	return c.tsig != nil
}

// Query looks up the records of one type at a name. NXDOMAIN and an
// empty answer both return an empty slice, not an error; the caller
// decides whether absence is exceptional.
func (c *Client) Query(ctx context.Context, name string, qtype uint16) ([]Record, error) {
	fqdn, err := c.zoneName(name)
	if err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, qtype)
	msg.RecursionDesired = false

	resp, err := c.exchange(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("dns query failed: %w", err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return nil, nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, rcodeError(resp.Rcode)
	}

	var records []Record
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype != qtype {
			continue
		}
		records = append(records, FromRR(rr))
	}

	c.logger.Debug("queried records",
		slog.String("name", fqdn),
		slog.String("type", dns.TypeToString[qtype]),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// Upsert replaces the RRset at the record's name and type with the
// single given record. Removal and insert travel in one update
// message, so the swap is atomic on the server.
func (c *Client) Upsert(ctx context.Context, record Record) error {
	fqdn, err := c.zoneName(record.Name)
	if err != nil {
		return err
	}
	record.Name = fqdn

	rr, err := record.RR()
	if err != nil {
		return err
	}

	msg := new(dns.Msg)
	msg.SetUpdate(c.config.Zone)
	msg.RemoveRRset([]dns.RR{rr})
	msg.Insert([]dns.RR{rr})

	resp, err := c.exchange(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if err := c.checkResponse(resp); err != nil {
		return err
	}

	c.logger.Debug("rrset replaced",
		slog.String("name", fqdn),
		slog.String("type", record.TypeString()),
		slog.Int("ttl", int(record.TTL)),
	)
	return nil
}

// Delete removes the RRset at a name and type. The update carries an
// existence prerequisite, so deleting an absent RRset fails with
// ErrRecordNotFound instead of silently succeeding.
func (c *Client) Delete(ctx context.Context, name string, qtype uint16) error {
	fqdn, err := c.zoneName(name)
	if err != nil {
		return err
	}

	probe := &dns.ANY{Hdr: dns.RR_Header{Name: fqdn, Rrtype: qtype}}
	msg := new(dns.Msg)
	msg.SetUpdate(c.config.Zone)
	msg.RRsetUsed([]dns.RR{probe})
	msg.RemoveRRset([]dns.RR{probe})

	resp, err := c.exchange(ctx, msg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	if err := c.checkResponse(resp); err != nil {
		return err
	}

	c.logger.Debug("rrset deleted",
		slog.String("name", fqdn),
		slog.String("type", dns.TypeToString[qtype]),
	)
	return nil
}

// Transfer lists the zone by AXFR. The transfer runs over TCP and is
// signed when a TSIG key is configured. Servers commonly restrict
// AXFR; a refusal surfaces as ErrAXFRFailed.
func (c *Client) Transfer(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := new(dns.Msg)
	msg.SetAxfr(c.config.Zone)

	tr := &dns.Transfer{
		DialTimeout:  c.config.GetTimeout(),
		ReadTimeout:  c.config.GetTimeout(),
		WriteTimeout: c.config.GetTimeout(),
	}
	if c.tsig != nil {
		tr.TsigSecret = c.tsig.SecretMap()
		c.tsig.ApplyToMessage(msg)
	}

	type transferResult struct {
		records []Record
		err     error
	}
	ch := make(chan transferResult, 1)
	go func() {
		records, err := c.runTransfer(tr, msg)
		ch <- transferResult{records: records, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.records, res.err
	}
}

func (c *Client) runTransfer(tr *dns.Transfer, msg *dns.Msg) ([]Record, error) {
	envelopes, err := tr.In(msg, c.config.GetServer())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAXFRFailed, err)
	}

	var records []Record
	for env := range envelopes {
		if env.Error != nil {
			return nil, fmt.Errorf("%w: %w", ErrAXFRFailed, env.Error)
		}
		for _, rr := range env.RR {
			// The SOA brackets the transfer and is not a zone record
			// callers manage.
			if rr.Header().Rrtype == dns.TypeSOA {
				continue
			}
			records = append(records, FromRR(rr))
		}
	}

	c.logger.Debug("zone transfer complete",
		slog.String("zone", c.config.Zone),
		slog.Int("records", len(records)),
	)
	return records, nil
}

// exchange runs one exchange, honoring context cancellation. The dns
// client blocks for the duration of the exchange, so the call runs on
// its own goroutine; on cancellation the in-flight exchange finishes
// there and its result is dropped.
func (c *Client) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.tsig != nil {
		c.tsig.ApplyToMessage(msg)
	}

	type exchangeResult struct {
		resp *dns.Msg
		rtt  time.Duration
		err  error
	}
	ch := make(chan exchangeResult, 1)
	go func() {
		resp, rtt, err := c.dnsClient.Exchange(msg, c.config.GetServer())
		ch <- exchangeResult{resp: resp, rtt: rtt, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		c.logger.Debug("dns exchange complete",
			slog.String("server", c.config.GetServer()),
			slog.Duration("rtt", res.rtt),
			slog.String("rcode", dns.RcodeToString[res.resp.Rcode]),
		)
		return res.resp, nil
	}
}

// checkResponse maps an update response onto the package errors.
func (c *Client) checkResponse(resp *dns.Msg) error {
	if resp == nil {
		return fmt.Errorf("%w: no response from server", ErrUpdateFailed)
	}
	return rcodeError(resp.Rcode)
}

func rcodeError(rcode int) error {
	switch rcode {
	case dns.RcodeSuccess:
		return nil
	case dns.RcodeNXRrset:
		return fmt.Errorf("%w: prerequisite failed", ErrRecordNotFound)
	case dns.RcodeNotAuth:
		return fmt.Errorf("%w: server returned NOTAUTH", ErrAuthenticationFailed)
	case dns.RcodeRefused:
		return fmt.Errorf("%w (check update policy and key grants)", ErrRefused)
	case dns.RcodeNotZone:
		return fmt.Errorf("%w: name and zone section disagree", ErrZoneMismatch)
	default:
		return fmt.Errorf("%w: server returned %s", ErrUpdateFailed, dns.RcodeToString[rcode])
	}
}

// zoneName qualifies a name against the zone and rejects names
// outside it.
func (c *Client) zoneName(name string) (string, error) {
	fqdn := dns.Fqdn(name)
	if !dns.IsSubDomain(c.config.Zone, fqdn) {
		return "", fmt.Errorf("%w: %s not in zone %s", ErrZoneMismatch, fqdn, c.config.Zone)
	}
	return fqdn, nil
}

// IsNetworkError reports whether err is a transport-level failure
// (dial, timeout, reset) rather than a DNS-level response.
func IsNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
