package quizbot

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// DefaultMaxAttempts bounds how many times a batch is requested before giving up
const DefaultMaxAttempts = 3

// QuizGenerator requests quiz batches and regenerates rejected ones
type QuizGenerator struct {
	conv        *Conversation
	maxAttempts int
	transcripts *TranscriptLog
}

// NewQuizGenerator creates a generator; maxAttempts <= 0 uses the default
func NewQuizGenerator(conv *Conversation, maxAttempts int, transcripts *TranscriptLog) *QuizGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &QuizGenerator{conv: conv, maxAttempts: maxAttempts, transcripts: transcripts}
}

// Generate asks the backend for a batch on the given conversation until one passes
// validation or the attempt ceiling is reached
func (qg *QuizGenerator) Generate(ctx context.Context, handle string, req GenerationRequest) ([]Question, error) {
	log.Printf("Starting quiz generation on %s: %d questions, filters %+v", handle, req.Count, req.Filters)
	logger := qg.transcripts.For(handle)

	var lastErr error
	for attempt := 1; attempt <= qg.maxAttempts; attempt++ {
		prompt := BuildQuizPrompt(req)
		if lastErr != nil {
			prompt = BuildRetryPrompt(req, lastErr)
		}

		logger.LogLLMRequest("QuizGenerator", prompt)
		text, err := qg.conv.Ask(ctx, handle, prompt)
		if err != nil {
			if errors.Is(err, ErrServiceTimeout) || ctx.Err() != nil {
				return nil, err
			}
			return nil, fmt.Errorf("failed to generate questions: %w", err)
		}
		logger.LogLLMResponse("QuizGenerator", text)

		batch, err := parseBatch(text, req)
		if err == nil {
			logger.Logf("Attempt %d accepted: %d questions\n", attempt, len(batch))
			log.Printf("Quiz generation complete on %s after %d attempt(s)", handle, attempt)
			return batch, nil
		}

		lastErr = err
		logger.Logf("Attempt %d rejected: %v\n", attempt, err)
		VerboseLog("Attempt %d/%d on %s rejected: %v", attempt, qg.maxAttempts, handle, err)
	}

	return nil, newError(KindGenerationFailed, fmt.Sprintf("no valid batch after %d attempts", qg.maxAttempts), lastErr)
}

func parseBatch(text string, req GenerationRequest) ([]Question, error) {
	reply, err := ParseReply(text)
	if err != nil {
		return nil, err
	}
	if err := ValidateBatch(reply, req); err != nil {
		return nil, err
	}
	batch := make([]Question, len(reply.Questions))
	for i, q := range reply.Questions {
		batch[i] = q.clone()
	}
	return batch, nil
}
