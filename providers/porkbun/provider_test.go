package porkbun

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
	p, err := New(cfg, provider.KeyAndSecret{Key: "pk-key", Secret: "sk-secret"}, WithEndpoint(serverURL))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func recordsResponse(records ...map[string]interface{}) map[string]interface{} {
	if records == nil {
		records = []map[string]interface{}{}
	}
	return map[string]interface{}{"status": "SUCCESS", "records": records}
}

func TestProvider_Name(t *testing.T) {
	p := newTestProvider(t, "http://unused", false)

	if p.Name() != "porkbun" {
		t.Errorf("expected name porkbun, got %s", p.Name())
	}
}

func TestProvider_New_UnsupportedAuth(t *testing.T) {
	cfg := provider.Config{Domain: "example.com"}

	if _, err := New(cfg, provider.Token{Value: "tok"}); !provider.IsInvalidInput(err) {
		t.Errorf("expected invalid-input error for token auth, got %v", err)
	}
	if _, err := New(cfg, nil); !provider.IsInvalidInput(err) {
		t.Errorf("expected invalid-input error for nil auth, got %v", err)
	}
}

func TestProvider_GetRecord_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsResponse(map[string]interface{}{
			"id": "42", "name": "www.example.com", "type": "A", "content": "192.0.2.1", "ttl": "600",
		}))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	rec, err := p.GetRecord(context.Background(), "www", provider.KindA)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Host != "www" {
		t.Errorf("expected relative host www, got %s", rec.Host)
	}
	if rec.Value != "192.0.2.1" {
		t.Errorf("expected value 192.0.2.1, got %s", rec.Value)
	}
	if rec.TTL != 600 {
		t.Errorf("expected TTL 600 parsed from string, got %d", rec.TTL)
	}
}

func TestProvider_GetRecord_Apex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/retrieveByNameType/example.com/TXT" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsResponse(map[string]interface{}{
			"id": "7", "name": "example.com", "type": "TXT", "content": "\"v=spf1 -all\"", "ttl": "300",
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
		_ = json.NewEncoder(w).Encode(recordsResponse())
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	_, err := p.GetRecord(context.Background(), "missing", provider.KindA)

	if !provider.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestProvider_SetRecord_CreatesWhenAbsent(t *testing.T) {
	var createBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/retrieveByNameType/example.com/A/www":
			_ = json.NewEncoder(w).Encode(recordsResponse())
		case r.URL.Path == "/create/example.com":
			_ = json.NewDecoder(r.Body).Decode(&createBody)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "SUCCESS", "id": 99})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	err := p.SetRecord(context.Background(), "www", provider.KindA, "192.0.2.1", 0)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createBody["content"] != "192.0.2.1" {
		t.Errorf("expected create with content, got %v", createBody)
	}
	if createBody["ttl"] != "300" {
		t.Errorf("expected default ttl 300, got %q", createBody["ttl"])
	}
}

func TestProvider_SetRecord_EditsWhenPresent(t *testing.T) {
	var editPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/retrieveByNameType/example.com/A/www":
			_ = json.NewEncoder(w).Encode(recordsResponse(map[string]interface{}{
				"id": "42", "name": "www.example.com", "type": "A", "content": "192.0.2.1", "ttl": "300",
			}))
		case r.URL.Path == "/edit/example.com/42":
			editPath = r.URL.Path
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "SUCCESS"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	err := p.SetRecord(context.Background(), "www", provider.KindA, "192.0.2.9", 300)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if editPath == "" {
		t.Error("expected edit request for existing record")
	}
}

func TestProvider_DeleteRecord_Success(t *testing.T) {
	deleteCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/retrieveByNameType/example.com/TXT/challenge":
			_ = json.NewEncoder(w).Encode(recordsResponse(map[string]interface{}{
				"id": "55", "name": "challenge.example.com", "type": "TXT", "content": "\"token\"", "ttl": "300",
			}))
		case r.URL.Path == "/delete/example.com/55":
			deleteCalled = true
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "SUCCESS"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	err := p.DeleteRecord(context.Background(), "challenge", provider.KindTXT)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleteCalled {
		t.Error("expected delete endpoint to be called")
	}
}

func TestProvider_DeleteRecord_Absent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsResponse())
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, false)
	err := p.DeleteRecord(context.Background(), "ghost", provider.KindA)

	if !provider.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestProvider_DryRun_NoRequests(t *testing.T) {
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsResponse())
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, true)

	if err := p.SetRecord(context.Background(), "www", provider.KindA, "192.0.2.1", 300); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.DeleteRecord(context.Background(), "www", provider.KindA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count.Load() != 0 {
		t.Errorf("expected zero requests in dry-run, got %d", count.Load())
	}
}

func TestProvider_DryRun_GetRecord_StillFetches(t *testing.T) {
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsResponse(map[string]interface{}{
			"id": "1", "name": "www.example.com", "type": "A", "content": "192.0.2.1", "ttl": "300",
		}))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, true)
	if _, err := p.GetRecord(context.Background(), "www", provider.KindA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count.Load() != 1 {
		t.Errorf("expected read to reach the network in dry-run, got %d requests", count.Load())
	}
}

func TestProvider_Factory(t *testing.T) {
	factory := Factory()

	p, err := factory(provider.Config{Domain: "example.com"}, provider.KeyAndSecret{Key: "k", Secret: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "porkbun" {
		t.Errorf("expected name porkbun, got %s", p.Name())
	}
}

func TestProvider_ImplementsInterface(t *testing.T) {
	p := newTestProvider(t, "http://unused", false)

	var _ provider.Provider = p
}
