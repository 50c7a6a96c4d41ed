package quizbot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	api "github.com/ollama/ollama/api"
)

// OllamaBackend runs quiz conversations against a local Ollama model.
// Ollama answers synchronously, so each Send runs the chat in its own goroutine
// and Poll reads the finished result.
type OllamaBackend struct {
	client *api.Client
	model  string

	mu      sync.Mutex
	history map[string][]api.Message
	runs    map[string]*ollamaRun
}

type ollamaRun struct {
	cancel context.CancelFunc
	done   bool
	text   string
	err    error
}

// NewOllamaBackend creates a backend for the Ollama server at baseURL
func NewOllamaBackend(baseURL, model string) (*OllamaBackend, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	httpClient := &http.Client{Timeout: 120 * time.Second}

	return &OllamaBackend{
		client:  api.NewClient(base, httpClient),
		model:   model,
		history: make(map[string][]api.Message),
		runs:    make(map[string]*ollamaRun),
	}, nil
}

// OpenSession starts an empty conversation seeded with the system instructions
func (b *OllamaBackend) OpenSession(ctx context.Context) (string, error) {
	handle := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.history[handle] = []api.Message{{Role: "system", Content: SystemInstructions}}
	return handle, nil
}

// Send appends the user message and starts the chat in the background
func (b *OllamaBackend) Send(ctx context.Context, handle, text string) (Pending, error) {
	b.mu.Lock()
	msgs, ok := b.history[handle]
	if !ok {
		b.mu.Unlock()
		return Pending{}, fmt.Errorf("unknown conversation %s", handle)
	}
	msgs = append(msgs, api.Message{Role: "user", Content: text})
	b.history[handle] = msgs

	// the run outlives the caller's context; Cancel stops it
	runCtx, cancel := context.WithCancel(context.Background())
	run := &ollamaRun{cancel: cancel}
	id := uuid.NewString()
	b.runs[id] = run
	snapshot := append([]api.Message(nil), msgs...)
	b.mu.Unlock()

	go b.chat(runCtx, handle, id, run, snapshot)

	return Pending{Handle: handle, ID: id}, nil
}

func (b *OllamaBackend) chat(ctx context.Context, handle, id string, run *ollamaRun, msgs []api.Message) {
	stream := false
	req := &api.ChatRequest{
		Model:    b.model,
		Messages: msgs,
		Stream:   &stream,
	}

	var sb strings.Builder
	err := b.client.Chat(ctx, req, func(cr api.ChatResponse) error {
		sb.WriteString(cr.Message.Content)
		return nil
	})

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, live := b.runs[id]; !live {
		// cancelled while running; drop the late result
		return
	}
	run.done = true
	run.text = sb.String()
	run.err = err
	if err == nil {
		b.history[handle] = append(b.history[handle], api.Message{Role: "assistant", Content: run.text})
	}
}

// Poll reports whether the chat for p has finished
func (b *OllamaBackend) Poll(ctx context.Context, p Pending) (PollResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	run, ok := b.runs[p.ID]
	if !ok {
		return PollResult{}, fmt.Errorf("unknown run %s", p.ID)
	}
	if !run.done {
		return PollResult{Status: StatusRunning}, nil
	}

	delete(b.runs, p.ID)
	run.cancel()
	if run.err != nil {
		return PollResult{Status: StatusFailed, Err: run.err.Error()}, nil
	}
	return PollResult{Status: StatusDone, Text: run.text}, nil
}

// Cancel stops the chat for p and forgets it
func (b *OllamaBackend) Cancel(ctx context.Context, p Pending) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	run, ok := b.runs[p.ID]
	if !ok {
		return nil
	}
	run.cancel()
	delete(b.runs, p.ID)
	return nil
}

// CloseSession forgets the conversation history for handle
func (b *OllamaBackend) CloseSession(ctx context.Context, handle string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.history, handle)
	return nil
}
