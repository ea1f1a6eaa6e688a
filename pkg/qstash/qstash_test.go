package qstash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPublishPostsEvent(t *testing.T) {
	t.Parallel()

	var (
		gotPath   string
		gotAuth   string
		gotHeader string
		gotMsg    Message
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotHeader = r.Header.Get("Upstash-Forward-X-Event-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotMsg); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"msg_1"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Token: "tok", Destination: "https://hooks.example.com/events"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	err = client.Publish(context.Background(), "order.placed", map[string]any{"order_number": "ORD-1"})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if gotPath != "/v2/publish/https://hooks.example.com/events" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" || gotHeader != "order.placed" {
		t.Fatalf("headers: auth=%q event=%q", gotAuth, gotHeader)
	}
	if gotMsg.Event != "order.placed" || gotMsg.ID == "" || gotMsg.Payload["order_number"] != "ORD-1" {
		t.Fatalf("message = %+v", gotMsg)
	}
}

func TestPublishReportsRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := MustNew(Config{URL: srv.URL, Token: "bad", Destination: "https://hooks.example.com/events"})
	err := client.Publish(context.Background(), "return.created", nil)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("Publish() error = %v, want status 401", err)
	}
}

func TestNewClientValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{Destination: "https://hooks.example.com"}); err == nil {
		t.Fatal("expected missing token error")
	}
	if _, err := NewClient(Config{Token: "tok", Destination: "not a url"}); err == nil {
		t.Fatal("expected invalid destination error")
	}
	if (Config{Token: "tok"}).Enabled() {
		t.Fatal("config without destination must be disabled")
	}
	if err := (Noop{}).Publish(context.Background(), "order.placed", nil); err != nil {
		t.Fatalf("Noop.Publish() error = %v", err)
	}
}
