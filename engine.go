package quizbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EngineOptions tunes an Engine; zero values use the package defaults
type EngineOptions struct {
	PollInterval time.Duration
	WaitCeiling  time.Duration
	MaxAttempts  int
	Transcripts  *TranscriptLog
}

// Engine runs the quiz session protocol: RequestQuiz creates an ACTIVE session,
// SubmitAnswer grades and advances it until it is COMPLETED.
type Engine struct {
	backend   Backend
	conv      *Conversation
	store     SessionStore
	generator *QuizGenerator
	evaluator *AnswerEvaluator
	logs      *TranscriptLog
	locks     keyedMutex
}

// NewEngine wires an engine around a backend and a session store
func NewEngine(backend Backend, store SessionStore, opts EngineOptions) *Engine {
	conv := NewConversation(backend, opts.PollInterval, opts.WaitCeiling)
	return &Engine{
		backend:   backend,
		conv:      conv,
		store:     store,
		generator: NewQuizGenerator(conv, opts.MaxAttempts, opts.Transcripts),
		evaluator: NewAnswerEvaluator(conv, opts.Transcripts),
		logs:      opts.Transcripts,
		locks:     keyedMutex{locks: make(map[string]*refMutex)},
	}
}

// RequestQuiz generates a validated batch and creates a session for it.
// No session exists unless the whole batch was accepted.
func (e *Engine) RequestQuiz(ctx context.Context, req GenerationRequest) (*QuizStart, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	conv, err := e.conv.Open(ctx)
	if err != nil {
		return nil, err
	}

	batch, err := e.generator.Generate(ctx, conv, req)
	if err != nil {
		e.closeConversation(conv)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// the caller stopped waiting; drop the late batch
		e.closeConversation(conv)
		return nil, err
	}

	sess := &QuizSession{
		Handle:       uuid.NewString(),
		Conversation: conv,
		Request:      req,
		Batch:        batch,
	}
	if err := e.store.Create(sess); err != nil {
		e.closeConversation(conv)
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	log.Printf("Session %s started: %d questions", sess.Handle, len(batch))
	return &QuizStart{
		Session:  sess.Handle,
		Question: batch[0].clone(),
		Progress: Progress{Current: 1, Total: len(batch)},
	}, nil
}

// SubmitAnswer grades answer against the session's current question and advances the session.
// Submissions on one session are serialized. An ungraded (conversational) outcome does not advance.
func (e *Engine) SubmitAnswer(ctx context.Context, handle, answer string) (*SubmitResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, newError(KindInvalidRequest, "answer is empty", nil)
	}

	unlock := e.locks.Lock(handle)
	defer unlock()

	sess, err := e.store.Get(handle)
	if err != nil {
		return nil, err
	}
	from := sess.Index
	question := sess.Batch[from]
	progress := sess.Progress()

	outcome, err := e.evaluator.Evaluate(ctx, sess.Conversation, question, answer)
	if err != nil {
		return nil, err
	}
	e.logs.For(sess.Conversation).LogGrade(progress, answer, outcome)

	result := &SubmitResult{
		Outcome:  outcome,
		Answered: question,
		Answer:   answer,
		Progress: progress,
	}
	if !outcome.Graded() {
		return result, nil
	}

	adv, err := e.store.Advance(handle, from)
	if err != nil {
		return nil, fmt.Errorf("failed to advance session: %w", err)
	}

	result.Progress = adv.Progress
	if adv.Completed {
		result.Completed = true
		log.Printf("Session %s completed", handle)
		e.closeConversation(sess.Conversation)
		return result, nil
	}
	result.NextQuestion = adv.Next
	return result, nil
}

// RegenerateQuiz replaces an active session's batch with a fresh one built from the same request.
// It holds the session lock for the whole round trip so it never shares the conversation with a grading call.
func (e *Engine) RegenerateQuiz(ctx context.Context, handle string) (*QuizStart, error) {
	unlock := e.locks.Lock(handle)
	defer unlock()

	sess, err := e.store.Get(handle)
	if err != nil {
		return nil, err
	}

	batch, err := e.generator.Generate(ctx, sess.Conversation, sess.Request)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	updated, err := e.store.Replace(handle, batch, sess.Version)
	if err != nil {
		if errors.Is(err, ErrStaleVersion) {
			log.Printf("Discarding regenerated batch for %s: %v", handle, err)
		}
		return nil, err
	}

	log.Printf("Session %s regenerated (version %d)", handle, updated.Version)
	return &QuizStart{
		Session:  handle,
		Question: updated.Batch[0],
		Progress: updated.Progress(),
	}, nil
}

// CurrentQuestion returns the question a session is waiting on
func (e *Engine) CurrentQuestion(ctx context.Context, handle string) (*QuizStart, error) {
	q, progress, err := e.store.Current(handle)
	if err != nil {
		return nil, err
	}
	return &QuizStart{Session: handle, Question: q, Progress: progress}, nil
}

func (e *Engine) closeConversation(conv string) {
	e.logs.Close(conv)

	closer, ok := e.backend.(SessionCloser)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := closer.CloseSession(ctx, conv); err != nil {
		VerboseLog("Failed to close conversation %s: %v", conv, err)
	}
}

// keyedMutex serializes work per key and forgets keys nobody holds
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
