package email

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendWelcome(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@streamhub.live", WithAPIURL(server.URL))

	if err := client.SendWelcome("alice@example.com", "Alice"); err != nil {
		t.Fatalf("send welcome: %v", err)
	}
	if gotToken != "test-token" {
		t.Errorf("server token = %q", gotToken)
	}
	if received.To != "alice@example.com" || received.From != "noreply@streamhub.live" {
		t.Errorf("addressing = %+v", received)
	}
	if !strings.Contains(received.TextBody, "Alice") {
		t.Errorf("text body missing name: %q", received.TextBody)
	}
}

func TestSendGiftCardReceipt(t *testing.T) {
	var received postmarkEmail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@streamhub.live", WithAPIURL(server.URL))

	if err := client.SendGiftCardReceipt("bob@example.com", "GC-ABC123", 2500, "USD"); err != nil {
		t.Fatalf("send receipt: %v", err)
	}
	if !strings.Contains(received.TextBody, "GC-ABC123") {
		t.Errorf("text body missing code: %q", received.TextBody)
	}
	if !strings.Contains(received.TextBody, "25.00 USD") {
		t.Errorf("text body missing amount: %q", received.TextBody)
	}
}

func TestSendUnconfigured(t *testing.T) {
	client := NewClient("", "noreply@streamhub.live")
	if client.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if err := client.SendWelcome("alice@example.com", "Alice"); err == nil {
		t.Fatal("expected error when token is missing")
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@streamhub.live", WithAPIURL(server.URL))
	if err := client.SendWelcome("alice@example.com", "Alice"); err == nil {
		t.Fatal("expected error for 4xx response")
	}
}
