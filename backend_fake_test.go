package quizbot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeReply scripts how one sent message resolves
type fakeReply struct {
	text  string
	fail  string
	hang  bool
	after int // polls that report running before the reply is ready
}

// fakeBackend is an in-memory Backend driven by a responder func
type fakeBackend struct {
	mu        sync.Mutex
	respond   func(prompt string) fakeReply
	opened    int
	nextID    int
	runs      map[string]fakeReply
	polls     map[string]int
	prompts   []string
	cancelled []string
	closed    []string

	// round trips open per conversation, and the most ever open at once on one
	inflight    map[string]int
	finished    map[string]bool
	maxInflight int
}

func newFakeBackend(respond func(prompt string) fakeReply) *fakeBackend {
	return &fakeBackend{
		respond:  respond,
		runs:     make(map[string]fakeReply),
		polls:    make(map[string]int),
		inflight: make(map[string]int),
		finished: make(map[string]bool),
	}
}

func (f *fakeBackend) OpenSession(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return fmt.Sprintf("conv-%d", f.opened), nil
}

func (f *fakeBackend) Send(ctx context.Context, handle, text string) (Pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("run-%d", f.nextID)
	f.runs[id] = f.respond(text)
	f.prompts = append(f.prompts, text)
	f.inflight[handle]++
	if f.inflight[handle] > f.maxInflight {
		f.maxInflight = f.inflight[handle]
	}
	return Pending{Handle: handle, ID: id}, nil
}

func (f *fakeBackend) Poll(ctx context.Context, p Pending) (PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[p.ID]
	if !ok {
		return PollResult{}, fmt.Errorf("unknown run %s", p.ID)
	}
	f.polls[p.ID]++
	switch {
	case r.hang || f.polls[p.ID] <= r.after:
		return PollResult{Status: StatusRunning}, nil
	case r.fail != "":
		f.finish(p)
		return PollResult{Status: StatusFailed, Err: r.fail}, nil
	default:
		f.finish(p)
		return PollResult{Status: StatusDone, Text: r.text}, nil
	}
}

// finish closes the round trip of p; callers hold f.mu
func (f *fakeBackend) finish(p Pending) {
	if f.finished[p.ID] {
		return
	}
	f.finished[p.ID] = true
	f.inflight[p.Handle]--
}

func (f *fakeBackend) Cancel(ctx context.Context, p Pending) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, p.ID)
	f.finish(p)
	return nil
}

func (f *fakeBackend) CloseSession(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, handle)
	return nil
}

func (f *fakeBackend) sentPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func (f *fakeBackend) peakInflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

func (f *fakeBackend) counts() (cancelled, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled), len(f.closed)
}

var testFilters = Filters{Subject: "Science", Grade: "8", Unit: "Forces"}

func sampleQuestion(i int, f Filters) Question {
	options := []string{"① newton", "② joule", "③ watt", "④ pascal", "⑤ volt"}
	return Question{
		Subject:       f.Subject,
		Grade:         f.Grade,
		Unit:          f.Unit,
		Text:          fmt.Sprintf("Question %d: which unit measures energy?", i),
		Options:       options,
		CorrectAnswer: options[1],
		Explanation:   "Energy is measured in joules.",
		Type:          TypeMultipleChoice,
	}
}

func sampleBatch(n int, f Filters) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = sampleQuestion(i+1, f)
	}
	return qs
}

func batchJSON(t testing.TB, qs []Question) string {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{"type": "QUIZ", "questions": qs})
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	return string(b)
}

func isGradingPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "Judge the student's answer")
}

// quizResponder serves valid n-question batches and grades by exact match on the correct option
func quizResponder(t testing.TB, n int, f Filters) func(string) fakeReply {
	batch := batchJSON(t, sampleBatch(n, f))
	correct := sampleQuestion(1, f).CorrectAnswer
	return func(prompt string) fakeReply {
		if !isGradingPrompt(prompt) {
			return fakeReply{text: "```json\n" + batch + "\n```"}
		}
		if strings.Contains(prompt, "Student Answer: "+correct+"\n") {
			return fakeReply{text: `{"type":"ANSWER","answer":{"correct":true,"explanation":"Right."}}`}
		}
		return fakeReply{text: `{"type":"ANSWER","answer":{"correct":false,"explanation":"Not quite."}}`}
	}
}

func newTestEngine(backend Backend, ceiling time.Duration) (*Engine, *MemoryStore) {
	store := NewMemoryStore(time.Hour)
	engine := NewEngine(backend, store, EngineOptions{
		PollInterval: time.Millisecond,
		WaitCeiling:  ceiling,
	})
	return engine, store
}
