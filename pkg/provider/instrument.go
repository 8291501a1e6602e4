package provider

import (
	"context"
	"time"

	"gitlab.bluewillows.net/root/zonedit/internal/metrics"
)

// Instrumented wraps a Provider and records operation counts and
// latencies to the Prometheus collectors. Composes with Async in either
// order.
type Instrumented struct {
	inner Provider
}

// Instrument wraps p with metrics recording.
func Instrument(p Provider) *Instrumented {
	return &Instrumented{inner: p}
}

var (
	_ Provider        = (*Instrumented)(nil)
	_ Lister          = (*Instrumented)(nil)
	_ AccountResolver = (*Instrumented)(nil)
)

// Name returns the wrapped adapter's vendor identifier.
func (i *Instrumented) Name() string {
	return i.inner.Name()
}

// Unwrap returns the wrapped Provider.
func (i *Instrumented) Unwrap() Provider {
	return i.inner
}

// GetRecord fetches one record and records the observation.
func (i *Instrumented) GetRecord(ctx context.Context, host string, kind RecordKind) (*Record, error) {
	start := time.Now()
	rec, err := i.inner.GetRecord(ctx, host, kind)
	metrics.ObserveOperation(i.inner.Name(), "get_record", Classify(err), time.Since(start).Seconds())
	return rec, err
}

// SetRecord upserts one record and records the observation.
func (i *Instrumented) SetRecord(ctx context.Context, host string, kind RecordKind, value string, ttl int) error {
	start := time.Now()
	err := i.inner.SetRecord(ctx, host, kind, value, ttl)
	metrics.ObserveOperation(i.inner.Name(), "set_record", Classify(err), time.Since(start).Seconds())
	return err
}

// DeleteRecord removes one record and records the observation.
func (i *Instrumented) DeleteRecord(ctx context.Context, host string, kind RecordKind) error {
	start := time.Now()
	err := i.inner.DeleteRecord(ctx, host, kind)
	metrics.ObserveOperation(i.inner.Name(), "delete_record", Classify(err), time.Since(start).Seconds())
	return err
}

// ListRecords enumerates records if the wrapped adapter can.
func (i *Instrumented) ListRecords(ctx context.Context, kind RecordKind) ([]Record, error) {
	start := time.Now()
	recs, err := List(ctx, i.inner, kind)
	metrics.ObserveOperation(i.inner.Name(), "list_records", Classify(err), time.Since(start).Seconds())
	return recs, err
}

// ResolveAccountID resolves the account identifier if the wrapped
// adapter needs one.
func (i *Instrumented) ResolveAccountID(ctx context.Context) (string, error) {
	start := time.Now()
	id, err := ResolveAccountID(ctx, i.inner)
	metrics.ObserveOperation(i.inner.Name(), "resolve_account_id", Classify(err), time.Since(start).Seconds())
	return id, err
}

// SkipDryRun counts a write suppressed by the dry-run guard. Adapters
// call it from their guard so skips are visible without instrumenting.
func SkipDryRun(provider, operation string) {
	metrics.ObserveDryRunSkip(provider, operation)
}
