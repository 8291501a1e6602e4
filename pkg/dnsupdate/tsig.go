package dnsupdate

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// TSIG algorithm names in the form miekg/dns expects.
const (
	// AlgorithmHMACSHA256 is the recommended algorithm.
	AlgorithmHMACSHA256 = dns.HmacSHA256

	// AlgorithmHMACSHA512 for servers keyed with SHA-512.
	AlgorithmHMACSHA512 = dns.HmacSHA512

	// AlgorithmHMACMD5 exists for legacy servers only.
	AlgorithmHMACMD5 = dns.HmacMD5
)

// DefaultTSIGAlgorithm is used when no algorithm is named.
const DefaultTSIGAlgorithm = AlgorithmHMACSHA256

// tsigFudge is the permitted clock skew on signed messages, in seconds.
const tsigFudge = 300

// TSIG holds one transaction signature key (RFC 8945).
type TSIG struct {
	// Name is the key name, fully qualified.
	Name string

	// Secret is the base64-encoded shared secret.
	Secret string

	// Algorithm is the HMAC algorithm in miekg/dns form.
	Algorithm string
}

// NewTSIG builds a TSIG key. The name gains a trailing dot when
// missing, the secret must decode as base64, and an empty algorithm
// selects hmac-sha256.
func NewTSIG(name, secret, algorithm string) (*TSIG, error) {
	if name == "" {
		return nil, fmt.Errorf("tsig key name is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("tsig secret is required")
	}
	if _, err := base64.StdEncoding.DecodeString(secret); err != nil {
		return nil, fmt.Errorf("tsig secret is not valid base64: %w", err)
	}

	alg, err := normalizeAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}

	return &TSIG{
		Name:      dns.Fqdn(name),
		Secret:    secret,
		Algorithm: alg,
	}, nil
}

// normalizeAlgorithm accepts the common spellings of the supported
// algorithms and returns the canonical miekg/dns name.
func normalizeAlgorithm(algorithm string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "":
		return DefaultTSIGAlgorithm, nil
	case "hmac-sha256", "sha256", dns.HmacSHA256:
		return AlgorithmHMACSHA256, nil
	case "hmac-sha512", "sha512", dns.HmacSHA512:
		return AlgorithmHMACSHA512, nil
	case "hmac-md5", "md5", dns.HmacMD5:
		return AlgorithmHMACMD5, nil
	}
	return "", fmt.Errorf("unsupported tsig algorithm %q (supported: hmac-sha256, hmac-sha512, hmac-md5)", algorithm)
}

// SecretMap returns the key in the name-to-secret map form the
// miekg/dns client and transfer types take.
func (t *TSIG) SecretMap() map[string]string {
	return map[string]string{t.Name: t.Secret}
}

// ApplyToClient registers the key with a dns.Client so outgoing
// exchanges are signed and signed responses verified.
func (t *TSIG) ApplyToClient(c *dns.Client) {
	c.TsigSecret = t.SecretMap()
}

// ApplyToMessage appends the TSIG RR that requests signing for one
// message.
func (t *TSIG) ApplyToMessage(m *dns.Msg) {
	m.SetTsig(t.Name, t.Algorithm, tsigFudge, time.Now().Unix())
}
