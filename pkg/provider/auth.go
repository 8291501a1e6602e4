package provider

// Auth is a credential for a provider API. It is a closed union: the
// three variants below are the only implementations, and each adapter
// documents which it accepts. How a credential is placed on the wire
// (header, body field, signature, TSIG) is the adapter's business, so
// Auth itself stays provider-agnostic.
//
// Handing an adapter a variant it does not support fails at
// construction, not at first call.
type Auth interface {
	// authKind names the variant for error messages.
	authKind() string
}

// APIKey is a single API key credential (Gandi API keys, Bunny access
// keys, deSEC tokens presented as keys).
type APIKey struct {
	Key string
}

func (APIKey) authKind() string { return "api-key" }

// KeyAndSecret is a key plus secret pair (Porkbun, DNSMadeEasy, TSIG
// key name and secret).
type KeyAndSecret struct {
	Key    string
	Secret string
}

func (KeyAndSecret) authKind() string { return "key-and-secret" }

// Token is a bearer-style token (DNSimple, Cloudflare, DigitalOcean,
// Linode, Gandi personal access tokens).
type Token struct {
	Value string
}

func (Token) authKind() string { return "token" }

// AuthKind names an Auth variant, or "none" for nil. Adapters use it in
// construction-time rejection messages.
func AuthKind(a Auth) string {
	if a == nil {
		return "none"
	}
	return a.authKind()
}

// ErrUnsupportedAuth builds the construction-time error an adapter
// returns for an Auth variant it cannot place on the wire.
func ErrUnsupportedAuth(provider string, a Auth) error {
	return &InputError{
		Field:   "auth",
		Value:   AuthKind(a),
		Message: "not supported by the " + provider + " provider",
	}
}
