package dnsupdate

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// Record is one resource record. Data holds the rdata in zone-file
// presentation format ("192.0.2.10", "10 mail.example.com.",
// "\"some text\""), the format both the update builder and the query
// parser speak, so every type miekg/dns knows works without per-type
// assembly.
type Record struct {
	// Name is the fully qualified owner name.
	Name string

	// Type is the wire type code (dns.TypeA, dns.TypeTXT, ...).
	Type uint16

	// TTL in seconds.
	TTL uint32

	// Data is the rdata in presentation format.
	Data string
}

// TypeString returns the type mnemonic ("A", "TXT").
func (r Record) TypeString() string {
	return dns.TypeToString[r.Type]
}

func (r Record) String() string {
	return fmt.Sprintf("%s %d IN %s %s", r.Name, r.TTL, r.TypeString(), r.Data)
}

// RR converts the record to a wire RR through the zone-file parser.
func (r Record) RR() (dns.RR, error) {
	rr, err := dns.NewRR(fmt.Sprintf("%s %d IN %s %s", dns.Fqdn(r.Name), r.TTL, r.TypeString(), r.Data))
	if err != nil {
		return nil, fmt.Errorf("invalid record %s %s: %w", r.Name, r.TypeString(), err)
	}
	if rr == nil {
		return nil, fmt.Errorf("invalid record %s %s: empty rdata", r.Name, r.TypeString())
	}
	return rr, nil
}

// FromRR converts a wire RR back to a Record. The rdata keeps its
// presentation form; TXT strings stay quoted.
func FromRR(rr dns.RR) Record {
	hdr := rr.Header()
	return Record{
		Name: hdr.Name,
		Type: hdr.Rrtype,
		TTL:  hdr.Ttl,
		Data: strings.TrimPrefix(rr.String(), hdr.String()),
	}
}
