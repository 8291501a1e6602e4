package digitalocean

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

func recordsBody(records ...map[string]interface{}) map[string]interface{} {
	if records == nil {
		records = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"domain_records": records,
		"links":          map[string]interface{}{},
		"meta":           map[string]interface{}{"total": len(records)},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("do-token")

	if client.apiEndpoint != DefaultAPIEndpoint {
		t.Errorf("expected apiEndpoint %s, got %s", DefaultAPIEndpoint, client.apiEndpoint)
	}
	if client.token != "do-token" {
		t.Errorf("expected token do-token, got %s", client.token)
	}
}

func TestClient_FindRecords_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/domains/example.com/records" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		query := r.URL.Query()
		if query.Get("type") != "A" || query.Get("name") != "www.example.com" {
			t.Errorf("unexpected query params: %v", query)
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader != "Bearer do-token" {
			t.Errorf("unexpected Authorization header: %s", authHeader)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody(map[string]interface{}{
			"id": 3352896, "type": "A", "name": "www", "data": "192.0.2.1", "ttl": 1800,
		}))
	}))
	defer server.Close()

	client := NewClient("do-token", WithAPIEndpoint(server.URL))
	records, err := client.FindRecords(context.Background(), "example.com", "www.example.com", provider.KindA)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != 3352896 {
		t.Errorf("expected numeric id 3352896, got %d", records[0].ID)
	}
	if records[0].Name != "www" {
		t.Errorf("expected relative name www, got %s", records[0].Name)
	}
}

func TestClient_FindRecords_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "unauthorized", "message": "Unable to authenticate you",
		})
	}))
	defer server.Close()

	client := NewClient("bad-token", WithAPIEndpoint(server.URL))
	_, err := client.FindRecords(context.Background(), "example.com", "www.example.com", provider.KindA)

	if !provider.IsAuthFailed(err) {
		t.Errorf("expected auth-failed error, got %v", err)
	}
}

func TestClient_FindRecords_DomainMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "not_found", "message": "The resource you requested could not be found.",
		})
	}))
	defer server.Close()

	client := NewClient("do-token", WithAPIEndpoint(server.URL))
	_, err := client.FindRecords(context.Background(), "missing.com", "www.missing.com", provider.KindA)

	if !provider.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestClient_CreateRecord_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/domains/example.com/records" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["type"] != "A" || body["name"] != "www" || body["data"] != "192.0.2.1" {
			t.Errorf("unexpected body: %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"domain_record": map[string]interface{}{"id": 3352897, "type": "A", "name": "www"},
		})
	}))
	defer server.Close()

	client := NewClient("do-token", WithAPIEndpoint(server.URL))
	err := client.CreateRecord(context.Background(), "example.com", "www", provider.KindA, "192.0.2.1", 1800)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_UpdateRecord_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}
		if r.URL.Path != "/domains/example.com/records/3352896" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"domain_record": map[string]interface{}{"id": 3352896},
		})
	}))
	defer server.Close()

	client := NewClient("do-token", WithAPIEndpoint(server.URL))
	err := client.UpdateRecord(context.Background(), "example.com", 3352896, "www", provider.KindA, "192.0.2.9", 1800)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_DeleteRecord_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE method, got %s", r.Method)
		}
		if r.URL.Path != "/domains/example.com/records/3352896" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient("do-token", WithAPIEndpoint(server.URL))
	err := client.DeleteRecord(context.Background(), "example.com", 3352896)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_ListRecords_TypeFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("type") != "TXT" {
			t.Errorf("expected type filter TXT, got %q", query.Get("type"))
		}
		if query.Get("per_page") != "200" {
			t.Errorf("expected per_page 200, got %q", query.Get("per_page"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(recordsBody(map[string]interface{}{
			"id": 1, "type": "TXT", "name": "@", "data": "v=spf1 -all", "ttl": 1800,
		}))
	}))
	defer server.Close()

	client := NewClient("do-token", WithAPIEndpoint(server.URL))
	records, err := client.ListRecords(context.Background(), "example.com", provider.KindTXT)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient("do-token", WithAPIEndpoint(server.URL))
	_, err := client.FindRecords(context.Background(), "example.com", "www.example.com", provider.KindA)

	if !provider.IsTransportFailure(err) {
		t.Errorf("expected transport failure, got %v", err)
	}
}
