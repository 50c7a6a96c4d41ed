package quizbot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTranscriptLogWritesPerConversation(t *testing.T) {
	dir := t.TempDir()
	logs, err := NewTranscriptLog(dir)
	if err != nil {
		t.Fatalf("NewTranscriptLog: %v", err)
	}

	logger := logs.For("conv-1")
	if logs.For("conv-1") != logger {
		t.Error("For opened a second logger for the same conversation")
	}
	logger.LogLLMRequest("QuizGenerator", "Generate exactly 2 new quiz questions.")
	logger.LogGrade(Progress{Current: 1, Total: 2}, "②", GradingOutcome{Verdict: VerdictCorrect, Fallback: true})
	logs.Close("conv-1")

	data, err := os.ReadFile(filepath.Join(dir, "conv-1.log"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	for _, want := range []string{
		"Conversation: conv-1",
		"LLM REQUEST (QuizGenerator)",
		`Question 1/2: answer "②" -> correct (fallback)`,
		"Conversation Closed",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("transcript is missing %q", want)
		}
	}
}

func TestNilTranscriptLog(t *testing.T) {
	var logs *TranscriptLog
	logger := logs.For("conv-1")
	logger.Logf("ignored %d\n", 1)
	logger.LogGrade(Progress{}, "x", GradingOutcome{})
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
	logs.Close("conv-1")
}
