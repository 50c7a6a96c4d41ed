package quizbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	api "github.com/ollama/ollama/api"
)

func TestOllamaBackendKeepsHistory(t *testing.T) {
	var (
		mu   sync.Mutex
		seen [][]api.Message
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen = append(seen, req.Messages)
		turn := len(seen)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/x-ndjson")
		json.NewEncoder(w).Encode(api.ChatResponse{
			Model:   req.Model,
			Message: api.Message{Role: "assistant", Content: map[int]string{1: "first", 2: "second"}[turn]},
			Done:    true,
		})
	}))
	defer server.Close()

	backend, err := NewOllamaBackend(server.URL, "gemma3")
	if err != nil {
		t.Fatalf("NewOllamaBackend: %v", err)
	}
	conv := NewConversation(backend, time.Millisecond, 5*time.Second)
	ctx := context.Background()

	handle, err := conv.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i, want := range []string{"first", "second"} {
		text, err := conv.Ask(ctx, handle, "question")
		if err != nil {
			t.Fatalf("Ask %d: %v", i+1, err)
		}
		if text != want {
			t.Errorf("Ask %d = %q, want %q", i+1, text, want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("server saw %d chats, want 2", len(seen))
	}
	// system, user, assistant, user
	if n := len(seen[1]); n != 4 {
		t.Errorf("second chat carried %d messages, want 4", n)
	}
	if seen[1][0].Role != "system" || seen[1][2].Content != "first" {
		t.Errorf("second chat history = %+v", seen[1])
	}

	if err := backend.CloseSession(ctx, handle); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := backend.Send(ctx, handle, "again"); err == nil {
		t.Error("Send on a closed conversation succeeded")
	}
}

func TestOllamaBackendCancelDropsRun(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode(api.ChatResponse{Message: api.Message{Role: "assistant", Content: "late"}, Done: true})
	}))
	defer server.Close()
	defer close(release)

	backend, err := NewOllamaBackend(server.URL, "gemma3")
	if err != nil {
		t.Fatalf("NewOllamaBackend: %v", err)
	}
	conv := NewConversation(backend, time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	handle, err := conv.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := conv.Ask(ctx, handle, "question"); !errors.Is(err, ErrServiceTimeout) {
		t.Fatalf("err = %v, want SERVICE_TIMEOUT", err)
	}

	backend.mu.Lock()
	runs := len(backend.runs)
	backend.mu.Unlock()
	if runs != 0 {
		t.Errorf("%d runs still tracked after timeout", runs)
	}
}
