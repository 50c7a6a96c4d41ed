package quizbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// OptionCount is the number of options every choice-type question carries
const OptionCount = 5

// QuestionType tags the kind of question a batch may contain
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeDefinition     QuestionType = "definition"
	TypeFillIn         QuestionType = "fill-in"
)

// DefaultQuestionType is used when a request names no types
const DefaultQuestionType = TypeMultipleChoice

var knownTypes = []QuestionType{TypeMultipleChoice, TypeDefinition, TypeFillIn}

// IsChoice reports whether answers to this type are picked from options
func (t QuestionType) IsChoice() bool {
	return t == TypeMultipleChoice
}

// Question represents a single generated quiz question
type Question struct {
	Subject       string       `json:"subject"`
	Grade         string       `json:"grade"`
	Unit          string       `json:"unit"`
	Text          string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation"`
	Type          QuestionType `json:"question_type"`
}

// CorrectPosition returns the 1-based position of the correct answer among the options, or 0
func (q Question) CorrectPosition() int {
	return lo.IndexOf(q.Options, q.CorrectAnswer) + 1
}

func (q Question) clone() Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

// Filters narrows which questions a generation request may return
type Filters struct {
	Subject string `json:"subject,omitempty"`
	Grade   string `json:"grade,omitempty"`
	Unit    string `json:"unit,omitempty"`
}

// IsZero reports whether no filter is set
func (f Filters) IsZero() bool {
	return f.Subject == "" && f.Grade == "" && f.Unit == ""
}

// GenerationRequest represents a request to generate a quiz batch
type GenerationRequest struct {
	Count   int            `json:"count"`
	Filters Filters        `json:"filters"`
	Types   []QuestionType `json:"types,omitempty"`
}

// Normalize trims filters and fills in the default question type
func (r GenerationRequest) Normalize() GenerationRequest {
	r.Filters = Filters{
		Subject: strings.TrimSpace(r.Filters.Subject),
		Grade:   strings.TrimSpace(r.Filters.Grade),
		Unit:    strings.TrimSpace(r.Filters.Unit),
	}
	types := lo.Uniq(lo.Map(r.Types, func(t QuestionType, _ int) QuestionType {
		return QuestionType(strings.ToLower(strings.TrimSpace(string(t))))
	}))
	types = lo.Compact(types)
	if len(types) == 0 {
		types = []QuestionType{DefaultQuestionType}
	}
	r.Types = types
	return r
}

// Validate checks the request before any backend call is made
func (r GenerationRequest) Validate() error {
	if r.Count <= 0 {
		return newError(KindInvalidRequest, fmt.Sprintf("question count must be positive, got %d", r.Count), nil)
	}
	for _, t := range r.Types {
		if !lo.Contains(knownTypes, t) {
			return newError(KindInvalidRequest, fmt.Sprintf("unknown question type %q", t), nil)
		}
	}
	return nil
}

// AllowsType reports whether the request asked for questions of type t
func (r GenerationRequest) AllowsType(t QuestionType) bool {
	return lo.Contains(r.Types, t)
}

// Progress is a 1-based position within a batch
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// QuizSession holds the state of one quiz attempt
type QuizSession struct {
	Handle       string            `json:"handle"`
	Conversation string            `json:"conversation"`
	Request      GenerationRequest `json:"request"`
	Batch        []Question        `json:"batch"`
	Index        int               `json:"index"`
	Version      int               `json:"version"`
	Completed    bool              `json:"completed"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Progress returns the current position in the batch
func (s *QuizSession) Progress() Progress {
	return Progress{Current: s.Index + 1, Total: len(s.Batch)}
}

func (s *QuizSession) clone() *QuizSession {
	c := *s
	c.Batch = make([]Question, len(s.Batch))
	for i, q := range s.Batch {
		c.Batch[i] = q.clone()
	}
	c.Request.Types = append([]QuestionType(nil), s.Request.Types...)
	return &c
}

// Verdict is the grading decision for one answer
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	// VerdictUngraded means the backend replied conversationally instead of judging
	VerdictUngraded Verdict = "ungraded"
)

// GradingOutcome represents the result of grading one submitted answer
type GradingOutcome struct {
	Verdict       Verdict `json:"verdict"`
	Explanation   string  `json:"explanation"`
	CorrectAnswer string  `json:"correct_answer,omitempty"`
	Fallback      bool    `json:"fallback"`
}

// Graded reports whether the outcome is a scoreable verdict
func (o GradingOutcome) Graded() bool {
	return o.Verdict != VerdictUngraded
}

// Correct reports whether the answer was judged correct
func (o GradingOutcome) Correct() bool {
	return o.Verdict == VerdictCorrect
}

// QuizStart is returned when a quiz is created or regenerated
type QuizStart struct {
	Session  string   `json:"session"`
	Question Question `json:"question"`
	Progress Progress `json:"progress"`
}

// SubmitResult is returned for every accepted answer submission
type SubmitResult struct {
	Outcome      GradingOutcome `json:"outcome"`
	Answered     Question       `json:"answered"`
	Answer       string         `json:"answer"`
	NextQuestion *Question      `json:"next_question,omitempty"`
	Progress     Progress       `json:"progress"`
	Completed    bool           `json:"completed"`
}

// Record builds the persistence record for a graded answer, or nil when ungraded
func (r *SubmitResult) Record(user string) *AnswerRecord {
	if !r.Outcome.Graded() {
		return nil
	}
	return &AnswerRecord{
		User:     user,
		Subject:  r.Answered.Subject,
		Grade:    r.Answered.Grade,
		Unit:     r.Answered.Unit,
		Question: r.Answered.Text,
		Answer:   r.Answer,
		Correct:  r.Outcome.Correct(),
	}
}
