package provider

import (
	"context"
	"net/netip"
	"strings"
)

// Typed helpers for the two record kinds that dominate real use:
// A records for dynamic-IP maintenance and TXT records for DNS-01
// challenges. They work against any Provider.

// GetARecord fetches the A record for host and parses its address.
func GetARecord(ctx context.Context, p Provider, host string) (netip.Addr, error) {
	rec, err := p.GetRecord(ctx, host, KindA)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(rec.Value)
	if err != nil {
		return netip.Addr{}, WrapError(p.Name(), "get A record", &InputError{
			Field: "value", Value: rec.Value, Message: "provider returned a non-IPv4 value",
		})
	}
	return addr, nil
}

// SetARecord upserts the A record for host.
func SetARecord(ctx context.Context, p Provider, host string, addr netip.Addr) error {
	if !addr.Is4() {
		return &InputError{Field: "value", Value: addr.String(), Message: "not a valid IPv4 address"}
	}
	return p.SetRecord(ctx, host, KindA, addr.String(), 0)
}

// DeleteARecord removes the A record for host.
func DeleteARecord(ctx context.Context, p Provider, host string) error {
	return p.DeleteRecord(ctx, host, KindA)
}

// GetTXTRecord fetches the TXT record for host. Surrounding double
// quotes, which several vendors include on the wire, are stripped.
func GetTXTRecord(ctx context.Context, p Provider, host string) (string, error) {
	rec, err := p.GetRecord(ctx, host, KindTXT)
	if err != nil {
		return "", err
	}
	return StripQuotes(rec.Value), nil
}

// SetTXTRecord upserts the TXT record for host. The value is quoted on
// the wire if not already quoted, since some vendors require it.
func SetTXTRecord(ctx context.Context, p Provider, host, value string) error {
	return p.SetRecord(ctx, host, KindTXT, EnsureQuotes(value), 0)
}

// DeleteTXTRecord removes the TXT record for host.
func DeleteTXTRecord(ctx context.Context, p Provider, host string) error {
	return p.DeleteRecord(ctx, host, KindTXT)
}

// StripQuotes removes one pair of surrounding double quotes. The input
// is returned unchanged unless both the first and last character are
// quotes, so partially quoted values pass through untouched.
func StripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// EnsureQuotes wraps s in double quotes unless it is already wrapped.
func EnsureQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s
	}
	return `"` + s + `"`
}
