package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/internationalcrisis/tgbridge/config"
	"github.com/internationalcrisis/tgbridge/internal/domain"
)

func newTestClient() domain.WebhookSender {
	return NewClient(&config.BridgeConfig{WebhookTimeout: 5 * time.Second}, zerolog.Nop())
}

func TestSend(t *testing.T) {
	var gotParams domain.SendParams
	var gotWait string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWait = r.URL.Query().Get("wait")
		if err := json.NewDecoder(r.Body).Decode(&gotParams); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"123456789"}`))
	}))
	defer server.Close()

	client := newTestClient()
	params := domain.SendParams{
		Content:   "**hello**",
		Username:  "Some Channel",
		AvatarURL: "https://files.example.com/42.jpg",
	}

	id, err := client.Send(context.Background(), server.URL, params)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if id != "123456789" {
		t.Errorf("Send() id = %q, want %q", id, "123456789")
	}
	if gotWait != "true" {
		t.Errorf("wait query = %q, want %q", gotWait, "true")
	}
	if gotParams.Content != params.Content || gotParams.Username != params.Username {
		t.Errorf("received params = %+v, want %+v", gotParams, params)
	}
}

func TestSendRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid payload"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient()

	if _, err := client.Send(context.Background(), server.URL, domain.SendParams{Content: "x"}); err == nil {
		t.Fatal("Send() expected error for 400 response, got nil")
	}
}

func TestSendServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient()

	if _, err := client.Send(context.Background(), server.URL, domain.SendParams{Content: "x"}); err == nil {
		t.Fatal("Send() expected error for unreachable server, got nil")
	}
}
