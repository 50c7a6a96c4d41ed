package quizbot

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildQuizPrompt(t *testing.T) {
	req := GenerationRequest{Count: 4, Filters: testFilters}.Normalize()
	prompt := BuildQuizPrompt(req)

	for _, want := range []string{
		"Generate exactly 4 new quiz questions",
		`- subject: "Science"`,
		`- grade: "8"`,
		`- unit: "Forces"`,
		`"type":"QUIZ"`,
		"exactly 5 options",
		"correct_answer must be copied verbatim",
		"Allowed question types: multiple-choice",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt is missing %q", want)
		}
	}
}

func TestBuildQuizPromptWithoutFilters(t *testing.T) {
	req := GenerationRequest{Count: 2, Types: []QuestionType{TypeFillIn}}.Normalize()
	prompt := BuildQuizPrompt(req)

	if strings.Contains(prompt, "MUST match") {
		t.Error("unfiltered prompt restates filters")
	}
	if strings.Contains(prompt, "exactly 5 options") {
		t.Error("fill-in only prompt asks for options")
	}
	if !strings.Contains(prompt, "fill-in questions have an empty options list") {
		t.Error("prompt does not describe fill-in questions")
	}
}

func TestBuildRetryPrompt(t *testing.T) {
	req := GenerationRequest{Count: 1}.Normalize()
	prompt := BuildRetryPrompt(req, errors.New("expected 1 questions, got 3"))

	if !strings.HasPrefix(prompt, "Your previous reply was rejected (expected 1 questions, got 3)") {
		t.Errorf("retry prompt does not lead with the rejection: %q", prompt[:60])
	}
	if !strings.Contains(prompt, BuildQuizPrompt(req)) {
		t.Error("retry prompt does not restate the request")
	}
}

func TestBuildGradingPrompt(t *testing.T) {
	q := sampleQuestion(1, testFilters)
	prompt := BuildGradingPrompt(q, "③")

	for _, want := range []string{
		q.Text,
		"*2. ② joule",
		" 1. ① newton",
		"Student Answer: ③",
		`{"type":"ANSWER"`,
		`{"type":"CHAT"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("grading prompt is missing %q", want)
		}
	}
}
