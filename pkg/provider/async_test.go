package provider

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// blockingProvider parks every operation until release is closed, and
// counts completions. Used to observe what happens to in-flight work
// when the caller abandons a suspended call.
type blockingProvider struct {
	*fakeProvider
	started   chan struct{}
	release   chan struct{}
	completed atomic.Int32
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{
		fakeProvider: newFakeProvider(),
		started:      make(chan struct{}, 8),
		release:      make(chan struct{}),
	}
}

func (b *blockingProvider) GetRecord(ctx context.Context, host string, kind RecordKind) (*Record, error) {
	b.started <- struct{}{}
	<-b.release
	defer b.completed.Add(1)
	return b.fakeProvider.GetRecord(ctx, host, kind)
}

func (b *blockingProvider) SetRecord(ctx context.Context, host string, kind RecordKind, value string, ttl int) error {
	b.started <- struct{}{}
	<-b.release
	defer b.completed.Add(1)
	return b.fakeProvider.SetRecord(ctx, host, kind, value, ttl)
}

func TestAsync_MatchesBlockingPath(t *testing.T) {
	direct := newFakeProvider()
	wrapped := NewAsync(newFakeProvider())
	ctx := context.Background()

	// Run the same operation sequence through both paths and compare
	// every result.
	type step struct {
		op    string
		host  string
		value string
	}
	steps := []step{
		{"set", "www", "192.0.2.1"},
		{"get", "www", ""},
		{"get", "absent", ""},
		{"set", "www", "192.0.2.2"},
		{"get", "www", ""},
		{"delete", "www", ""},
		{"delete", "www", ""},
	}

	for i, s := range steps {
		var directRec, wrappedRec *Record
		var directErr, wrappedErr error

		switch s.op {
		case "set":
			directErr = direct.SetRecord(ctx, s.host, KindA, s.value, 0)
			wrappedErr = wrapped.SetRecord(ctx, s.host, KindA, s.value, 0)
		case "get":
			directRec, directErr = direct.GetRecord(ctx, s.host, KindA)
			wrappedRec, wrappedErr = wrapped.GetRecord(ctx, s.host, KindA)
		case "delete":
			directErr = direct.DeleteRecord(ctx, s.host, KindA)
			wrappedErr = wrapped.DeleteRecord(ctx, s.host, KindA)
		}

		if (directErr == nil) != (wrappedErr == nil) {
			t.Fatalf("step %d (%s): direct err %v, wrapped err %v", i, s.op, directErr, wrappedErr)
		}
		if directErr != nil && Classify(directErr) != Classify(wrappedErr) {
			t.Fatalf("step %d (%s): error classes differ: %v vs %v", i, s.op, directErr, wrappedErr)
		}
		if (directRec == nil) != (wrappedRec == nil) {
			t.Fatalf("step %d (%s): record presence differs", i, s.op)
		}
		if directRec != nil && !RecordEquals(*directRec, *wrappedRec) {
			t.Fatalf("step %d (%s): records differ: %+v vs %+v", i, s.op, directRec, wrappedRec)
		}
	}
}

func TestAsync_CancellationAbandonsDelivery(t *testing.T) {
	inner := newBlockingProvider()
	if err := inner.fakeProvider.SetRecord(context.Background(), "www", KindA, "192.0.2.1", 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := NewAsync(inner)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := a.GetRecord(ctx, "www", KindA)
		errCh <- err
	}()

	// Wait until the inner operation is in flight, then abandon it.
	select {
	case <-inner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("operation never started")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled call did not return")
	}

	// The abandoned operation still runs to completion.
	if got := inner.completed.Load(); got != 0 {
		t.Fatalf("operation completed before release: %d", got)
	}
	close(inner.release)

	deadline := time.After(5 * time.Second)
	for inner.completed.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("abandoned operation never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAsync_WriteSurvivesCancellation(t *testing.T) {
	inner := newBlockingProvider()
	a := NewAsync(inner)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.SetRecord(ctx, "www", KindA, "192.0.2.7", 0)
	}()

	select {
	case <-inner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("operation never started")
	}
	cancel()

	if err := <-errCh; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// Release the worker; the write must still land.
	close(inner.release)
	deadline := time.After(5 * time.Second)
	for inner.completed.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("abandoned write never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	rec, err := inner.fakeProvider.GetRecord(context.Background(), "www", KindA)
	if err != nil {
		t.Fatalf("get after abandoned write: %v", err)
	}
	if rec.Value != "192.0.2.7" {
		t.Errorf("abandoned write did not land: %+v", rec)
	}
}

func TestAsync_CapabilityForwarding(t *testing.T) {
	ctx := context.Background()

	// A wrapped provider without capabilities reports Unsupported.
	plain := NewAsync(newFakeProvider())
	if _, err := plain.ListRecords(ctx, ""); !IsUnsupported(err) {
		t.Errorf("expected ErrUnsupported from ListRecords, got %v", err)
	}
	if _, err := plain.ResolveAccountID(ctx); !IsUnsupported(err) {
		t.Errorf("expected ErrUnsupported from ResolveAccountID, got %v", err)
	}

	// Capabilities of the wrapped provider pass through.
	lister := &listingFake{fakeProvider: newFakeProvider()}
	if err := lister.SetRecord(ctx, "www", KindA, "192.0.2.1", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	recs, err := NewAsync(lister).ListRecords(ctx, "")
	if err != nil {
		t.Fatalf("list through async: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("expected 1 record, got %d", len(recs))
	}

	resolver := &resolvingFake{fakeProvider: newFakeProvider(), accountID: "42"}
	id, err := NewAsync(resolver).ResolveAccountID(ctx)
	if err != nil {
		t.Fatalf("resolve through async: %v", err)
	}
	if id != "42" {
		t.Errorf("expected account 42, got %q", id)
	}
}

func TestAsync_Unwrap(t *testing.T) {
	inner := newFakeProvider()
	if NewAsync(inner).Unwrap() != Provider(inner) {
		t.Error("Unwrap did not return the wrapped provider")
	}
}
