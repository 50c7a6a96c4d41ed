package quizbot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/xeipuuv/gojsonschema"
)

// questionSchemaJSON lists the fields every generated question must carry
const questionSchemaJSON = `{
	"type": "object",
	"properties": {
		"subject": {"type": "string", "minLength": 1},
		"grade": {"type": "string", "minLength": 1},
		"unit": {"type": "string", "minLength": 1},
		"question": {"type": "string", "minLength": 1},
		"options": {"type": ["array", "null"], "items": {"type": "string", "minLength": 1}},
		"correct_answer": {"type": "string", "minLength": 1},
		"explanation": {"type": "string", "minLength": 1},
		"question_type": {"type": "string", "minLength": 1}
	},
	"required": ["subject", "grade", "unit", "question", "correct_answer", "explanation", "question_type"]
}`

var questionSchema = mustCompileSchema(questionSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid question schema: %v", err))
	}
	return schema
}

// ValidateBatch checks a parsed reply against the request that produced it.
// Checks run in order and the first failure is returned.
func ValidateBatch(reply *Reply, req GenerationRequest) error {
	if reply == nil || reply.Kind != ReplyQuiz {
		kind := "empty"
		if reply != nil {
			kind = firstNonEmpty(string(reply.Kind), "untagged")
		}
		return newError(KindShapeMismatch, fmt.Sprintf("expected a QUIZ reply, got %s", kind), nil)
	}
	if reply.Questions == nil {
		return newError(KindShapeMismatch, "reply carries no questions", nil)
	}

	if len(reply.Questions) != req.Count {
		return newError(KindShapeMismatch, fmt.Sprintf("expected %d questions, got %d", req.Count, len(reply.Questions)), nil)
	}

	for i, q := range reply.Questions {
		if err := checkRequiredFields(q); err != nil {
			return newError(KindShapeMismatch, fmt.Sprintf("question %d", i+1), err)
		}
	}

	for i, q := range reply.Questions {
		if err := checkOptions(q, req); err != nil {
			return newError(KindShapeMismatch, fmt.Sprintf("question %d", i+1), err)
		}
	}

	if err := checkDuplicates(reply.Questions); err != nil {
		return newError(KindShapeMismatch, "duplicate questions", err)
	}

	for i, q := range reply.Questions {
		if err := checkFilters(q, req.Filters); err != nil {
			return newError(KindFilterMismatch, fmt.Sprintf("question %d", i+1), err)
		}
	}

	return nil
}

func checkRequiredFields(q Question) error {
	doc, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal question: %w", err)
	}

	result, err := questionSchema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := lo.Map(result.Errors(), func(e gojsonschema.ResultError, _ int) string {
			return e.String()
		})
		return fmt.Errorf("missing or empty fields: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func checkOptions(q Question, req GenerationRequest) error {
	if !req.AllowsType(q.Type) {
		return fmt.Errorf("question type %q was not requested", q.Type)
	}
	if !q.Type.IsChoice() {
		return nil
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%s question needs %d options, got %d", q.Type, OptionCount, len(q.Options))
	}
	if len(lo.Uniq(q.Options)) != len(q.Options) {
		return fmt.Errorf("options are not distinct")
	}
	if !lo.Contains(q.Options, q.CorrectAnswer) {
		return fmt.Errorf("correct answer %q is not one of the options", q.CorrectAnswer)
	}
	return nil
}

func checkFilters(q Question, f Filters) error {
	if f.Subject != "" && q.Subject != f.Subject {
		return fmt.Errorf("subject %q does not match filter %q", q.Subject, f.Subject)
	}
	if f.Grade != "" && q.Grade != f.Grade {
		return fmt.Errorf("grade %q does not match filter %q", q.Grade, f.Grade)
	}
	if f.Unit != "" && q.Unit != f.Unit {
		return fmt.Errorf("unit %q does not match filter %q", q.Unit, f.Unit)
	}
	return nil
}
