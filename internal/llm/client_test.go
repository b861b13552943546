package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientOptions{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestChatReturnsFirstChoice(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Temperature != 0.3 {
			t.Fatalf("temperature mismatch: got %v want 0.3", body.Temperature)
		}
		if len(body.Messages) != 2 {
			t.Fatalf("message count mismatch: got %d want 2", len(body.Messages))
		}
		if body.Messages[0].Role != "system" {
			t.Fatalf("first role mismatch: got %q want system", body.Messages[0].Role)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Go to settings > reset."}}]}`)
	}))

	got, err := client.Chat(context.Background(), "you are helpful", "how do I reset?", 0.3)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "Go to settings > reset." {
		t.Fatalf("chat text mismatch: got %q", got)
	}
}

func TestChatEmptyChoicesYieldsEmptyString(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	}))

	got, err := client.Chat(context.Background(), "sys", "user", 0.3)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "" {
		t.Fatalf("chat text mismatch: got %q want empty", got)
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Indexes intentionally out of order.
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[
			{"index":1,"embedding":[0.3,0.4]},
			{"index":0,"embedding":[0.1,0.2]}
		]}`)
	}))

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("vector count mismatch: got %d want 2", len(vectors))
	}
	if vectors[0][0] != 0.1 {
		t.Fatalf("first vector mismatch: got %v", vectors[0])
	}
	if vectors[1][1] != 0.4 {
		t.Fatalf("second vector mismatch: got %v", vectors[1])
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request for empty input")
	}))

	vectors, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if vectors != nil {
		t.Fatalf("vectors mismatch: got %v want nil", vectors)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(ClientOptions{}); err == nil {
		t.Fatalf("NewClient() expected error for missing api key")
	}
}
