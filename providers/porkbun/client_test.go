package porkbun

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gitlab.bluewillows.net/root/zonedit/pkg/provider"
)

// successResponse creates a successful Porkbun API response.
func successResponse(extra map[string]interface{}) map[string]interface{} {
	resp := map[string]interface{}{"status": "SUCCESS"}
	for k, v := range extra {
		resp[k] = v
	}
	return resp
}

// errorResponse creates an error Porkbun API response.
func errorResponse(message string) map[string]interface{} {
	return map[string]interface{}{
		"status":  "ERROR",
		"message": message,
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("pk-key", "sk-secret")

	if client.apiEndpoint != DefaultAPIEndpoint {
		t.Errorf("expected apiEndpoint %s, got %s", DefaultAPIEndpoint, client.apiEndpoint)
	}
	if client.apiKey != "pk-key" || client.secretKey != "sk-secret" {
		t.Error("expected credentials to be set")
	}
	if client.httpClient == nil {
		t.Error("expected httpClient to be initialized")
	}
}

func TestClient_RetrieveRecords_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/retrieveByNameType/example.com/A/www" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["apikey"] != "pk-key" || body["secretapikey"] != "sk-secret" {
			t.Errorf("expected credentials in body, got %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(map[string]interface{}{
			"records": []map[string]interface{}{
				{"id": "106926652", "name": "www.example.com", "type": "A", "content": "192.0.2.1", "ttl": "600", "prio": "0"},
			},
		}))
	}))
	defer server.Close()

	client := NewClient("pk-key", "sk-secret", WithAPIEndpoint(server.URL))
	records, err := client.RetrieveRecords(context.Background(), "example.com", "www", provider.KindA)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != "106926652" {
		t.Errorf("expected string record id, got %s", records[0].ID)
	}
	if records[0].Content != "192.0.2.1" {
		t.Errorf("expected content 192.0.2.1, got %s", records[0].Content)
	}
}

func TestClient_RetrieveRecords_ApexPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Apex lookups omit the trailing subdomain segment.
		if r.URL.Path != "/retrieveByNameType/example.com/TXT" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(map[string]interface{}{
			"records": []map[string]interface{}{},
		}))
	}))
	defer server.Close()

	client := NewClient("pk-key", "sk-secret", WithAPIEndpoint(server.URL))
	records, err := client.RetrieveRecords(context.Background(), "example.com", "", provider.KindTXT)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestClient_RetrieveRecords_InvalidKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse("Invalid API key. (002)"))
	}))
	defer server.Close()

	client := NewClient("bad", "worse", WithAPIEndpoint(server.URL))
	_, err := client.RetrieveRecords(context.Background(), "example.com", "www", provider.KindA)

	if !provider.IsAuthFailed(err) {
		t.Errorf("expected auth-failed error, got %v", err)
	}
}

func TestClient_CreateRecord_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create/example.com" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "www" || body["type"] != "A" || body["content"] != "192.0.2.1" {
			t.Errorf("unexpected body: %v", body)
		}
		if body["ttl"] != "600" {
			t.Errorf("expected ttl as string 600, got %q", body["ttl"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(map[string]interface{}{"id": 106926659}))
	}))
	defer server.Close()

	client := NewClient("pk-key", "sk-secret", WithAPIEndpoint(server.URL))
	err := client.CreateRecord(context.Background(), "example.com", "www", provider.KindA, "192.0.2.1", 600)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_EditRecord_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/edit/example.com/106926652" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(nil))
	}))
	defer server.Close()

	client := NewClient("pk-key", "sk-secret", WithAPIEndpoint(server.URL))
	err := client.EditRecord(context.Background(), "example.com", "106926652", "www", provider.KindA, "192.0.2.9", 300)

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_DeleteRecord_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/delete/example.com/106926652" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(successResponse(nil))
	}))
	defer server.Close()

	client := NewClient("pk-key", "sk-secret", WithAPIEndpoint(server.URL))
	err := client.DeleteRecord(context.Background(), "example.com", "106926652")

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_APIError_MessageVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse("Edit error: We were unable to edit the DNS record."))
	}))
	defer server.Close()

	client := NewClient("pk-key", "sk-secret", WithAPIEndpoint(server.URL))
	err := client.EditRecord(context.Background(), "example.com", "1", "www", provider.KindA, "192.0.2.1", 300)

	if !provider.IsProviderError(err) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unable to edit the DNS record") {
		t.Errorf("expected vendor message in error, got %v", err)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient("pk-key", "sk-secret", WithAPIEndpoint(server.URL))
	_, err := client.RetrieveRecords(context.Background(), "example.com", "www", provider.KindA)

	if !provider.IsTransportFailure(err) {
		t.Errorf("expected transport failure, got %v", err)
	}
}
