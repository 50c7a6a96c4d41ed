package quizbot

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// AssistantsBackend runs quiz conversations on OpenAI assistant threads
type AssistantsBackend struct {
	client      *openai.Client
	assistantID string
}

// NewAssistantsBackend creates a backend bound to an existing assistant
func NewAssistantsBackend(apiKey, assistantID string) *AssistantsBackend {
	return NewAssistantsBackendWithConfig(openai.DefaultConfig(apiKey), assistantID)
}

// NewAssistantsBackendWithConfig creates a backend from a full client config,
// e.g. to point it at a proxy with a different BaseURL
func NewAssistantsBackendWithConfig(cfg openai.ClientConfig, assistantID string) *AssistantsBackend {
	return &AssistantsBackend{
		client:      openai.NewClientWithConfig(cfg),
		assistantID: assistantID,
	}
}

// EnsureAssistant creates the quiz assistant when no assistant ID was configured
func (b *AssistantsBackend) EnsureAssistant(ctx context.Context, model string) (string, error) {
	if b.assistantID != "" {
		return b.assistantID, nil
	}
	if model == "" {
		model = openai.GPT4o
	}

	name := "Quiz Teacher"
	instructions := SystemInstructions
	assistant, err := b.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        model,
		Name:         &name,
		Instructions: &instructions,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}

	log.Printf("Created assistant %s (model %s)", assistant.ID, model)
	b.assistantID = assistant.ID
	return assistant.ID, nil
}

// OpenSession creates a new thread
func (b *AssistantsBackend) OpenSession(ctx context.Context) (string, error) {
	thread, err := b.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	VerboseLog("Opened thread %s", thread.ID)
	return thread.ID, nil
}

// Send adds a user message to the thread and starts a run
func (b *AssistantsBackend) Send(ctx context.Context, handle, text string) (Pending, error) {
	if b.assistantID == "" {
		return Pending{}, fmt.Errorf("no assistant configured")
	}

	_, err := b.client.CreateMessage(ctx, handle, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return Pending{}, fmt.Errorf("failed to create message: %w", err)
	}

	run, err := b.client.CreateRun(ctx, handle, openai.RunRequest{AssistantID: b.assistantID})
	if err != nil {
		return Pending{}, fmt.Errorf("failed to create run: %w", err)
	}

	return Pending{Handle: handle, ID: run.ID}, nil
}

// Poll retrieves the run and, once it completed, the assistant message it produced
func (b *AssistantsBackend) Poll(ctx context.Context, p Pending) (PollResult, error) {
	run, err := b.client.RetrieveRun(ctx, p.Handle, p.ID)
	if err != nil {
		return PollResult{}, fmt.Errorf("failed to retrieve run: %w", err)
	}

	switch run.Status {
	case openai.RunStatusCompleted:
	case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired,
		openai.RunStatusIncomplete, openai.RunStatusRequiresAction:
		reason := string(run.Status)
		if run.LastError != nil {
			reason = fmt.Sprintf("%s: %s", run.Status, run.LastError.Message)
		}
		return PollResult{Status: StatusFailed, Err: reason}, nil
	default:
		return PollResult{Status: StatusRunning}, nil
	}

	limit := 1
	order := "desc"
	runID := p.ID
	messages, err := b.client.ListMessage(ctx, p.Handle, &limit, &order, nil, nil, &runID)
	if err != nil {
		return PollResult{}, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(messages.Messages) == 0 {
		return PollResult{Status: StatusFailed, Err: "run completed without a message"}, nil
	}

	var sb strings.Builder
	for _, content := range messages.Messages[0].Content {
		if content.Text != nil {
			sb.WriteString(content.Text.Value)
		}
	}
	return PollResult{Status: StatusDone, Text: sb.String()}, nil
}

// Cancel stops a run that is no longer awaited
func (b *AssistantsBackend) Cancel(ctx context.Context, p Pending) error {
	if _, err := b.client.CancelRun(ctx, p.Handle, p.ID); err != nil {
		return fmt.Errorf("failed to cancel run: %w", err)
	}
	return nil
}

// CloseSession deletes the thread of a finished quiz
func (b *AssistantsBackend) CloseSession(ctx context.Context, handle string) error {
	if _, err := b.client.DeleteThread(ctx, handle); err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}
