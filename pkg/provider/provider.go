// Package provider defines the record model, credential model, error
// taxonomy, and the contract every DNS provider adapter implements.
//
// Adapters are written once as blocking code; the Async wrapper derives
// the suspension-aware call path mechanically, so both execution modes
// share one implementation. See Async.
package provider

import "context"

// Provider is the contract every adapter satisfies. A handle binds one
// Config, one Auth, and one vendor; it is safe for concurrent reads,
// but concurrent writes to the same host and kind race at the vendor
// and the core does not serialize them.
//
// All methods take the host relative to the configured domain.
type Provider interface {
	// Name returns the vendor identifier (e.g. "gandi", "porkbun").
	Name() string

	// GetRecord fetches one record. Absent records return ErrNotFound,
	// never a nil record with a nil error.
	GetRecord(ctx context.Context, host string, kind RecordKind) (*Record, error)

	// SetRecord creates the record if absent and replaces it if present.
	// Vendor create-vs-update differences are normalized behind this one
	// verb. A ttl of zero applies the adapter default.
	SetRecord(ctx context.Context, host string, kind RecordKind, value string, ttl int) error

	// DeleteRecord removes one record. Deleting an absent record returns
	// ErrNotFound.
	DeleteRecord(ctx context.Context, host string, kind RecordKind) error
}

// Lister is implemented by adapters whose vendor can enumerate zone
// records. Absence of the capability is not an error; use List for a
// uniform call that maps absence to ErrUnsupported.
type Lister interface {
	// ListRecords returns records in the zone, filtered to one kind when
	// kind is non-empty.
	ListRecords(ctx context.Context, kind RecordKind) ([]Record, error)
}

// AccountResolver is implemented by adapters whose vendor requires an
// account, zone, or domain identifier before record operations. The
// identifier is resolved lazily, at most once per handle lifetime, and
// shared by all callers.
type AccountResolver interface {
	ResolveAccountID(ctx context.Context) (string, error)
}

// List enumerates records through p, or returns ErrUnsupported if the
// adapter has no enumeration capability.
func List(ctx context.Context, p Provider, kind RecordKind) ([]Record, error) {
	if l, ok := p.(Lister); ok {
		return l.ListRecords(ctx, kind)
	}
	return nil, WrapError(p.Name(), "list records", ErrUnsupported)
}

// ResolveAccountID resolves the vendor account identifier through p, or
// returns ErrUnsupported if the adapter needs none.
func ResolveAccountID(ctx context.Context, p Provider) (string, error) {
	if r, ok := p.(AccountResolver); ok {
		return r.ResolveAccountID(ctx)
	}
	return "", WrapError(p.Name(), "resolve account id", ErrUnsupported)
}
