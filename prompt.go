package quizbot

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// SystemInstructions is installed on the assistant that serves quiz conversations
const SystemInstructions = `You are a quiz teacher. You write quiz questions and judge student answers.
Always answer with a single JSON object and nothing else when asked for questions or a verdict.
When the student chats instead of answering, reply with {"type":"CHAT","message":"..."}.`

// BuildQuizPrompt renders the generation request for a batch
func BuildQuizPrompt(req GenerationRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Generate exactly %d new quiz questions.\n\n", req.Count))
	writeFilters(&sb, req.Filters)

	types := lo.Map(req.Types, func(t QuestionType, _ int) string { return string(t) })
	sb.WriteString(fmt.Sprintf("Allowed question types: %s\n\n", strings.Join(types, ", ")))

	sb.WriteString("Reply with ONLY this JSON object, no markdown and no other text:\n")
	sb.WriteString(`{"type":"QUIZ","questions":[{"subject":"string","grade":"string","unit":"string",`)
	sb.WriteString(`"question":"string","options":["string"],"correct_answer":"string",`)
	sb.WriteString(`"explanation":"string","question_type":"string"}]}`)
	sb.WriteString("\n\n")

	sb.WriteString("Requirements:\n")
	sb.WriteString(fmt.Sprintf("- The \"questions\" list must contain exactly %d items\n", req.Count))
	sb.WriteString("- Every field above is required and must not be empty, except options for non-choice questions\n")
	if req.AllowsType(TypeMultipleChoice) {
		sb.WriteString(fmt.Sprintf("- %s questions must have exactly %d options, numbered ① to ⑤\n", TypeMultipleChoice, OptionCount))
		sb.WriteString("- correct_answer must be copied verbatim from one of the options\n")
	}
	if req.AllowsType(TypeDefinition) || req.AllowsType(TypeFillIn) {
		sb.WriteString("- definition and fill-in questions have an empty options list and a short correct_answer\n")
	}
	sb.WriteString("- question_type must be one of the allowed question types\n")
	sb.WriteString("- Provide a brief explanation for why the correct answer is right\n")
	sb.WriteString("- Do not repeat questions you have already asked in this conversation\n")

	return sb.String()
}

// BuildRetryPrompt asks again after a rejected reply, stating why it was rejected
func BuildRetryPrompt(req GenerationRequest, cause error) string {
	var sb strings.Builder

	sb.WriteString("Your previous reply was rejected")
	if cause != nil {
		sb.WriteString(fmt.Sprintf(" (%s)", cause))
	}
	sb.WriteString(". Follow the format exactly this time.\n\n")
	sb.WriteString(BuildQuizPrompt(req))

	return sb.String()
}

func writeFilters(sb *strings.Builder, f Filters) {
	if f.IsZero() {
		return
	}
	sb.WriteString("Every question MUST match these values exactly, copied into the matching fields:\n")
	if f.Subject != "" {
		sb.WriteString(fmt.Sprintf("- subject: %q\n", f.Subject))
	}
	if f.Grade != "" {
		sb.WriteString(fmt.Sprintf("- grade: %q\n", f.Grade))
	}
	if f.Unit != "" {
		sb.WriteString(fmt.Sprintf("- unit: %q\n", f.Unit))
	}
	sb.WriteString("\n")
}

// BuildGradingPrompt asks the backend for a verdict on one submitted answer
func BuildGradingPrompt(q Question, answer string) string {
	var sb strings.Builder

	sb.WriteString("Judge the student's answer to the following quiz question:\n\n")
	sb.WriteString(fmt.Sprintf("Subject: %s, Grade: %s, Unit: %s\n", q.Subject, q.Grade, q.Unit))
	sb.WriteString(fmt.Sprintf("Question type: %s\n", q.Type))
	sb.WriteString(fmt.Sprintf("Question: %s\n\n", q.Text))

	if len(q.Options) > 0 {
		sb.WriteString("Options:\n")
		for i, option := range q.Options {
			marker := " "
			if option == q.CorrectAnswer {
				marker = "*"
			}
			sb.WriteString(fmt.Sprintf("%s%d. %s\n", marker, i+1, option))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Correct Answer: %s\n", q.CorrectAnswer))
	sb.WriteString(fmt.Sprintf("Student Answer: %s\n\n", answer))

	sb.WriteString("A student may answer a choice question with the option number, the circled number, or the option text.\n")
	sb.WriteString("Reply with ONLY this JSON object:\n")
	sb.WriteString(`{"type":"ANSWER","answer":{"correct":true,"explanation":"string","correct_answer":"string"}}`)
	sb.WriteString("\n")
	sb.WriteString("Set correct_answer only when the student is wrong.\n")
	sb.WriteString("If the student asked a question instead of answering, reply with {\"type\":\"CHAT\",\"message\":\"...\"}.")

	return sb.String()
}
