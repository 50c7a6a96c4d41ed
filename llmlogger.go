package quizbot

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TranscriptLog hands out one LLMLogger per backend conversation, all writing under dir.
// A nil *TranscriptLog disables transcripts.
type TranscriptLog struct {
	dir     string
	mu      sync.Mutex
	loggers map[string]*LLMLogger
}

// NewTranscriptLog creates the transcript directory
func NewTranscriptLog(dir string) (*TranscriptLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &TranscriptLog{dir: dir, loggers: make(map[string]*LLMLogger)}, nil
}

// For returns the logger of a conversation, opening its file on first use
func (tl *TranscriptLog) For(handle string) *LLMLogger {
	if tl == nil {
		return nil
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()

	if logger, ok := tl.loggers[handle]; ok {
		return logger
	}
	logger, err := newLLMLogger(filepath.Join(tl.dir, fmt.Sprintf("%s.log", handle)), handle)
	if err != nil {
		// continue without a transcript rather than failing the quiz
		log.Printf("Failed to create transcript for %s: %v", handle, err)
		return nil
	}
	tl.loggers[handle] = logger
	return logger
}

// Close closes and forgets the logger of a conversation
func (tl *TranscriptLog) Close(handle string) {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	logger, ok := tl.loggers[handle]
	delete(tl.loggers, handle)
	tl.mu.Unlock()

	if ok {
		logger.Close()
	}
}

// LLMLogger writes every exchange of one conversation to a file.
// All methods are no-ops on a nil logger.
type LLMLogger struct {
	file   *os.File
	mu     sync.Mutex
	handle string
}

func newLLMLogger(filename, handle string) (*LLMLogger, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{file: file, handle: handle}
	logger.Logf("=== Quiz Conversation Log ===\n")
	logger.Logf("Conversation: %s\n", handle)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("=============================\n\n")
	return logger, nil
}

// Logf writes a formatted log entry with timestamp
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	if ll == nil {
		return
	}
	ll.mu.Lock()
	defer ll.mu.Unlock()
	if ll.file == nil {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

// LogLLMRequest logs a prompt sent to the backend
func (ll *LLMLogger) LogLLMRequest(module, prompt string) {
	ll.Logf("=== LLM REQUEST (%s) ===\n", module)
	ll.Logf("Prompt:\n%s\n", prompt)
	ll.Logf("=====================\n\n")
}

// LogLLMResponse logs a backend reply
func (ll *LLMLogger) LogLLMResponse(module, response string) {
	ll.Logf("=== LLM RESPONSE (%s) ===\n", module)
	ll.Logf("Response:\n%s\n", response)
	ll.Logf("======================\n\n")
}

// LogGrade logs the outcome of grading one answer
func (ll *LLMLogger) LogGrade(progress Progress, answer string, outcome GradingOutcome) {
	path := "model"
	if outcome.Fallback {
		path = "fallback"
	}
	ll.Logf("Question %d/%d: answer %q -> %s (%s)\n", progress.Current, progress.Total, answer, outcome.Verdict, path)
}

// Close closes the log file
func (ll *LLMLogger) Close() error {
	if ll == nil {
		return nil
	}
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return nil
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] === Conversation Closed %s ===\n", timestamp, time.Now().Format(time.RFC3339))
	err := ll.file.Close()
	ll.file = nil
	return err
}
