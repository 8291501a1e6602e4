package digitalocean

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

func newTestProvider(t *testing.T, serverURL string, dryRun bool) *Provider {
	t.Helper()
	cfg := provider.Config{Domain: "example.com", DryRun: dryRun}
	p, err := New(cfg, provider.Token{Value: "do-token"}, WithEndpoint(serverURL))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func TestProvider_Name(t *testing.T) {
	p := newTestProvider(t, "http://unused", false)

	if p.Name() != "digitalocean" {
		t.Errorf("expected name digitalocean, got %s", p.Name())
	}
}

func TestProvider_New_UnsupportedAuth(t *testing.T) {
	cfg := provider.Config{Domain: "example.com"}

	if _, err := New(cfg, provider.APIKey{Key: "k"}); !provider.IsInvalidInput(err) {
		t.Errorf("expected invalid-input error for api-key auth, got %v", err)
	}
	if _, err := New(cfg, provider.KeyAndSecret{Key: "k", Secret: "s"}); !provider.IsInvalidInput(err) {
		t.Errorf("expected invalid-input error for key+secret auth, got %v", err)
	}
}

func TestProvider_GetRecord_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "www.example.com" {
			t.Errorf("expected FQDN name filter, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody(map[string]interface{}{
			"id": 42, "type": "A", "name": "www", "data": "192.0.2.1", "ttl": 1800,
		}))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	rec, err := p.GetRecord(context.Background(), "www", provider.KindA)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Value != "192.0.2.1" || rec.TTL != 1800 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestProvider_GetRecord_ApexFQDN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "example.com" {
			t.Errorf("expected bare domain for apex, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody(map[string]interface{}{
			"id": 7, "type": "TXT", "name": "@", "data": "v=spf1 -all", "ttl": 1800,
		}))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	rec, err := p.GetRecord(context.Background(), "@", provider.KindTXT)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Host != "@" {
		t.Errorf("expected apex host @, got %s", rec.Host)
	}
}

func TestProvider_GetRecord_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody())
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	_, err := p.GetRecord(context.Background(), "missing", provider.KindA)

	if !provider.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestProvider_GetRecord_AmbiguousMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody(
			map[string]interface{}{"id": 1, "type": "A", "name": "www", "data": "192.0.2.1", "ttl": 1800},
			map[string]interface{}{"id": 2, "type": "A", "name": "www", "data": "192.0.2.2", "ttl": 1800},
		))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	_, err := p.GetRecord(context.Background(), "www", provider.KindA)

	if !provider.IsProviderError(err) {
		t.Errorf("expected provider error for ambiguous matches, got %v", err)
	}
}

func TestProvider_SetRecord_CreatesWhenAbsent(t *testing.T) {
	var createBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(recordsBody())
		case http.MethodPost:
			_ = json.NewDecoder(r.Body).Decode(&createBody)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"domain_record": map[string]interface{}{"id": 99},
			})
		default:
			t.Errorf("unexpected method: %s", r.Method)
		}
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	err := p.SetRecord(context.Background(), "www", provider.KindA, "192.0.2.1", 0)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createBody["ttl"] != float64(provider.DefaultTTL) {
		t.Errorf("expected default ttl, got %v", createBody["ttl"])
	}
}

func TestProvider_SetRecord_UpdatesWhenPresent(t *testing.T) {
	var updatePath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(recordsBody(map[string]interface{}{
				"id": 42, "type": "A", "name": "www", "data": "192.0.2.1", "ttl": 1800,
			}))
		case http.MethodPut:
			updatePath = r.URL.Path
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"domain_record": map[string]interface{}{"id": 42},
			})
		default:
			t.Errorf("unexpected method: %s", r.Method)
		}
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	err := p.SetRecord(context.Background(), "www", provider.KindA, "192.0.2.9", 1800)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updatePath != "/domains/example.com/records/42" {
		t.Errorf("expected update of record 42, got %s", updatePath)
	}
}

func TestProvider_DeleteRecord_Absent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody())
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	err := p.DeleteRecord(context.Background(), "ghost", provider.KindA)

	if !provider.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestProvider_ListRecords_MapsKinds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody(
			map[string]interface{}{"id": 1, "type": "A", "name": "www", "data": "192.0.2.1", "ttl": 1800},
			map[string]interface{}{"id": 2, "type": "NS", "name": "@", "data": "ns1.digitalocean.com", "ttl": 1800},
			map[string]interface{}{"id": 3, "type": "SOA", "name": "@", "data": "1800", "ttl": 1800},
		))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	records, err := p.ListRecords(context.Background(), "")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// SOA is outside the supported kinds and dropped.
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestProvider_DryRun_NoRequests(t *testing.T) {
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody())
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, true)

	if err := p.SetRecord(context.Background(), "www", provider.KindA, "192.0.2.1", 1800); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.DeleteRecord(context.Background(), "www", provider.KindA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count.Load() != 0 {
		t.Errorf("expected zero requests in dry-run, got %d", count.Load())
	}
}

func TestProvider_Factory(t *testing.T) {
	factory := Factory()

	p, err := factory(provider.Config{Domain: "example.com"}, provider.Token{Value: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "digitalocean" {
		t.Errorf("expected name digitalocean, got %s", p.Name())
	}
}

func TestProvider_ImplementsInterfaces(t *testing.T) {
	p := newTestProvider(t, "http://unused", false)

	var _ provider.Provider = p
	var _ provider.Lister = p
}
