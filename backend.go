package quizbot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RunStatus is the state of a pending backend request
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

// Pending identifies a request that the backend is still working on
type Pending struct {
	Handle string
	ID     string
}

// PollResult is one observation of a pending request
type PollResult struct {
	Status RunStatus
	Text   string
	Err    string
}

// Backend is the conversational generation service. It executes asynchronously:
// Send only queues the message and Poll reports on it.
type Backend interface {
	OpenSession(ctx context.Context) (string, error)
	Send(ctx context.Context, handle, text string) (Pending, error)
	Poll(ctx context.Context, p Pending) (PollResult, error)
}

// Canceler is implemented by backends that can abandon a pending request
type Canceler interface {
	Cancel(ctx context.Context, p Pending) error
}

// SessionCloser is implemented by backends that hold per-conversation resources
type SessionCloser interface {
	CloseSession(ctx context.Context, handle string) error
}

// Default wait parameters
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultWaitCeiling  = 30 * time.Second
)

// Conversation wraps a Backend with a bounded wait for each round trip
type Conversation struct {
	backend  Backend
	interval time.Duration
	ceiling  time.Duration
}

// NewConversation creates a conversation client; zero durations use the defaults
func NewConversation(backend Backend, interval, ceiling time.Duration) *Conversation {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if ceiling <= 0 {
		ceiling = DefaultWaitCeiling
	}
	return &Conversation{backend: backend, interval: interval, ceiling: ceiling}
}

// Open starts a new backend conversation
func (c *Conversation) Open(ctx context.Context) (string, error) {
	handle, err := c.backend.OpenSession(ctx)
	if err != nil {
		return "", newError(KindBackendFailed, "open conversation", err)
	}
	return handle, nil
}

// Ask sends text and waits for the reply, polling at a fixed interval until the ceiling.
// A request still running at the ceiling is cancelled if possible and its result is never read.
func (c *Conversation) Ask(ctx context.Context, handle, text string) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.ceiling)
	defer cancel()

	pending, err := c.backend.Send(waitCtx, handle, text)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return "", newError(KindServiceTimeout, fmt.Sprintf("no reply within %s", c.ceiling), err)
		}
		return "", newError(KindBackendFailed, "send message", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		res, err := c.backend.Poll(waitCtx, pending)
		if err != nil && waitCtx.Err() == nil {
			return "", newError(KindBackendFailed, "poll reply", err)
		}
		if err == nil {
			switch res.Status {
			case StatusDone:
				return res.Text, nil
			case StatusFailed:
				return "", newError(KindBackendFailed, "run failed", errors.New(firstNonEmpty(res.Err, "unknown error")))
			}
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			c.abandon(pending)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			VerboseLog("Gave up on %s/%s after %s", pending.Handle, pending.ID, c.ceiling)
			return "", newError(KindServiceTimeout, fmt.Sprintf("no reply within %s", c.ceiling), waitCtx.Err())
		}
	}
}

func (c *Conversation) abandon(p Pending) {
	canceler, ok := c.backend.(Canceler)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := canceler.Cancel(ctx, p); err != nil {
		VerboseLog("Failed to cancel %s/%s: %v", p.Handle, p.ID, err)
	}
}
