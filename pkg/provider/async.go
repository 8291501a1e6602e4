package provider

import "context"

// Async wraps a Provider so that callers on a cooperative scheduler (a
// select loop, a UI tick, any single-threaded event loop) never block
// on an in-flight network call. Each operation runs the wrapped
// adapter's blocking body on its own goroutine and waits for either the
// result or ctx.Done().
//
// Cancellation abandons result delivery, not the request: the worker
// goroutine runs the operation to completion against a context detached
// from the caller's cancellation, and its result is discarded. A
// cancelled write may therefore still have reached the vendor:
// at-least-attempted-once, not exactly-once.
//
// Every method goes through the same dispatch helper, so the blocking
// path and the suspension-aware path cannot drift apart.
type Async struct {
	inner Provider
}

// NewAsync wraps p for use from cooperative callers. Async itself
// satisfies Provider, so the two call paths are interchangeable.
func NewAsync(p Provider) *Async {
	return &Async{inner: p}
}

var (
	_ Provider        = (*Async)(nil)
	_ Lister          = (*Async)(nil)
	_ AccountResolver = (*Async)(nil)
)

// Name returns the wrapped adapter's vendor identifier.
func (a *Async) Name() string {
	return a.inner.Name()
}

// Unwrap returns the wrapped Provider.
func (a *Async) Unwrap() Provider {
	return a.inner
}

// GetRecord fetches one record without blocking the caller's scheduler.
func (a *Async) GetRecord(ctx context.Context, host string, kind RecordKind) (*Record, error) {
	return dispatch(ctx, func(dctx context.Context) (*Record, error) {
		return a.inner.GetRecord(dctx, host, kind)
	})
}

// SetRecord upserts one record without blocking the caller's scheduler.
func (a *Async) SetRecord(ctx context.Context, host string, kind RecordKind, value string, ttl int) error {
	_, err := dispatch(ctx, func(dctx context.Context) (struct{}, error) {
		return struct{}{}, a.inner.SetRecord(dctx, host, kind, value, ttl)
	})
	return err
}

// DeleteRecord removes one record without blocking the caller's scheduler.
func (a *Async) DeleteRecord(ctx context.Context, host string, kind RecordKind) error {
	_, err := dispatch(ctx, func(dctx context.Context) (struct{}, error) {
		return struct{}{}, a.inner.DeleteRecord(dctx, host, kind)
	})
	return err
}

// ListRecords enumerates records if the wrapped adapter can; otherwise
// it returns ErrUnsupported.
func (a *Async) ListRecords(ctx context.Context, kind RecordKind) ([]Record, error) {
	l, ok := a.inner.(Lister)
	if !ok {
		return nil, WrapError(a.inner.Name(), "list records", ErrUnsupported)
	}
	return dispatch(ctx, func(dctx context.Context) ([]Record, error) {
		return l.ListRecords(dctx, kind)
	})
}

// ResolveAccountID resolves the vendor account identifier if the
// wrapped adapter needs one; otherwise it returns ErrUnsupported.
func (a *Async) ResolveAccountID(ctx context.Context) (string, error) {
	r, ok := a.inner.(AccountResolver)
	if !ok {
		return "", WrapError(a.inner.Name(), "resolve account id", ErrUnsupported)
	}
	return dispatch(ctx, func(dctx context.Context) (string, error) {
		return r.ResolveAccountID(dctx)
	})
}

// dispatch runs fn on its own goroutine and waits for the result or
// ctx.Done(), whichever comes first. fn receives a context that keeps
// the caller's values but not its cancellation, so an abandoned call
// still completes. The result channel is buffered; a discarded result
// does not leak the goroutine.
func dispatch[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)

	dctx := context.WithoutCancel(ctx)
	go func() {
		val, err := fn(dctx)
		ch <- result{val, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.val, r.err
	}
}
