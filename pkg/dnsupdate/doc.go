// Package dnsupdate is an RFC 2136 dynamic update client. It speaks to
// any compliant authoritative server (BIND, Knot, PowerDNS, Windows
// DNS) over UDP or TCP, signs exchanges with TSIG keys, and lists
// zones by AXFR.
//
// The client exposes four operations: Query reads the RRset at a name,
// Upsert replaces one atomically (remove-RRset plus insert in a single
// update message), Delete removes one under an existence prerequisite
// so absence is detected server-side, and Transfer walks the zone.
//
//	cfg := &dnsupdate.Config{Server: "ns1.example.com:53", Zone: "example.com."}
//	key, _ := dnsupdate.NewTSIG("zonedit", "c2VjcmV0", "")
//	client, err := dnsupdate.NewClient(cfg, dnsupdate.WithTSIG(key))
//	if err != nil {
//	    return err
//	}
//	err = client.Upsert(ctx, dnsupdate.Record{
//	    Name: "www.example.com.",
//	    Type: dns.TypeA,
//	    TTL:  300,
//	    Data: "192.0.2.10",
//	})
//
// TSIG keys are the standard RFC 2136 authentication mechanism.
// Generate one with BIND's tsig-keygen and grant it update rights on
// the server:
//
//	tsig-keygen -a hmac-sha256 zonedit > zonedit.key
package dnsupdate
