package provider

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// RecordKind identifies the type of a DNS record. The set of kinds is
// closed: callers pick a constant, adapters switch over it exhaustively.
// Unknown strings are rejected by ParseKind.
type RecordKind string

const (
	KindA     RecordKind = "A"
	KindAAAA  RecordKind = "AAAA"
	KindCAA   RecordKind = "CAA"
	KindCNAME RecordKind = "CNAME"
	KindHINFO RecordKind = "HINFO"
	KindMX    RecordKind = "MX"
	KindNAPTR RecordKind = "NAPTR"
	KindNS    RecordKind = "NS"
	KindPTR   RecordKind = "PTR"
	KindSRV   RecordKind = "SRV"
	KindSPF   RecordKind = "SPF"
	KindSSHFP RecordKind = "SSHFP"
	KindTXT   RecordKind = "TXT"
)

// DefaultTTL is the TTL applied by adapters when a record carries none.
// Providers with a higher floor (e.g. deSEC) clamp up from this.
const DefaultTTL = 300

var recordKinds = []RecordKind{
	KindA, KindAAAA, KindCAA, KindCNAME, KindHINFO, KindMX, KindNAPTR,
	KindNS, KindPTR, KindSRV, KindSPF, KindSSHFP, KindTXT,
}

// ValidKinds returns all supported record kinds.
func ValidKinds() []RecordKind {
	kinds := make([]RecordKind, len(recordKinds))
	copy(kinds, recordKinds)
	return kinds
}

// Valid reports whether k is one of the supported record kinds.
func (k RecordKind) Valid() bool {
	for _, kind := range recordKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ParseKind converts a string to a RecordKind. Matching is
// case-insensitive; unknown kinds return an InputError.
func ParseKind(s string) (RecordKind, error) {
	upper := RecordKind(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range recordKinds {
		if k == upper {
			return k, nil
		}
	}
	return "", &InputError{Field: "kind", Value: s, Message: "unknown record kind"}
}

// Record is a single DNS zone record. Host is relative to the
// configured domain ("www", not "www.example.com"). TTL is in seconds;
// zero means the adapter's default applies.
type Record struct {
	Kind  RecordKind
	Host  string
	Value string
	TTL   int
}

// NewRecord builds a Record, validating host, value, and TTL for the
// given kind. Adapters receive only values that passed this check.
func NewRecord(kind RecordKind, host, value string, ttl int) (*Record, error) {
	if err := ValidateHost(host); err != nil {
		return nil, err
	}
	if err := ValidateValue(kind, value); err != nil {
		return nil, err
	}
	if ttl < 0 {
		return nil, &InputError{Field: "ttl", Value: strconv.Itoa(ttl), Message: "must not be negative"}
	}
	return &Record{Kind: kind, Host: host, Value: value, TTL: ttl}, nil
}

func (r Record) String() string {
	if r.TTL > 0 {
		return fmt.Sprintf("%s %s %s ttl=%d", r.Kind, r.Host, r.Value, r.TTL)
	}
	return fmt.Sprintf("%s %s %s", r.Kind, r.Host, r.Value)
}

// RecordEquals returns true if two records are logically equal.
func RecordEquals(a, b Record) bool {
	return a.Kind == b.Kind &&
		a.Host == b.Host &&
		a.Value == b.Value &&
		a.TTL == b.TTL
}

// ValidateHost checks a host label. The root of the zone is "@".
func ValidateHost(host string) error {
	if host == "" {
		return &InputError{Field: "host", Message: "required but empty"}
	}
	if strings.ContainsAny(host, " \t\n") {
		return &InputError{Field: "host", Value: host, Message: "must not contain whitespace"}
	}
	return nil
}

// ValidateValue checks that a value has the shape its kind requires.
// Malformed values are rejected here, before any network activity.
func ValidateValue(kind RecordKind, value string) error {
	if value == "" {
		return &InputError{Field: "value", Message: "required but empty"}
	}

	switch kind {
	case KindA:
		addr, err := netip.ParseAddr(value)
		if err != nil || !addr.Is4() {
			return &InputError{Field: "value", Value: value, Message: "not a valid IPv4 address"}
		}

	case KindAAAA:
		addr, err := netip.ParseAddr(value)
		if err != nil || !addr.Is6() || addr.Is4In6() {
			return &InputError{Field: "value", Value: value, Message: "not a valid IPv6 address"}
		}

	case KindCNAME, KindNS, KindPTR:
		if strings.ContainsAny(value, " \t") {
			return &InputError{Field: "value", Value: value, Message: "not a valid domain name"}
		}

	case KindMX:
		fields := strings.Fields(value)
		if len(fields) != 2 {
			return &InputError{Field: "value", Value: value, Message: "expected \"preference target\""}
		}
		if _, err := strconv.ParseUint(fields[0], 10, 16); err != nil {
			return &InputError{Field: "value", Value: value, Message: "preference is not a number"}
		}

	case KindSRV:
		fields := strings.Fields(value)
		if len(fields) != 4 {
			return &InputError{Field: "value", Value: value, Message: "expected \"priority weight port target\""}
		}
		for _, f := range fields[:3] {
			if _, err := strconv.ParseUint(f, 10, 16); err != nil {
				return &InputError{Field: "value", Value: value, Message: fmt.Sprintf("%q is not a number", f)}
			}
		}

	case KindCAA:
		fields := strings.Fields(value)
		if len(fields) < 3 {
			return &InputError{Field: "value", Value: value, Message: "expected \"flags tag value\""}
		}
		if _, err := strconv.ParseUint(fields[0], 10, 8); err != nil {
			return &InputError{Field: "value", Value: value, Message: "flags is not a number"}
		}

	case KindSSHFP:
		fields := strings.Fields(value)
		if len(fields) != 3 {
			return &InputError{Field: "value", Value: value, Message: "expected \"algorithm fptype fingerprint\""}
		}
		for _, f := range fields[:2] {
			if _, err := strconv.ParseUint(f, 10, 8); err != nil {
				return &InputError{Field: "value", Value: value, Message: fmt.Sprintf("%q is not a number", f)}
			}
		}

	case KindNAPTR:
		if len(strings.Fields(value)) < 6 {
			return &InputError{Field: "value", Value: value, Message: "expected \"order preference flags service regexp replacement\""}
		}

	case KindHINFO, KindSPF, KindTXT:
		// Free-form; emptiness already checked.

	default:
		return &InputError{Field: "kind", Value: string(kind), Message: "unknown record kind"}
	}

	return nil
}
