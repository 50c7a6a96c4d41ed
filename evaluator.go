package quizbot

import (
	"context"
	"strings"
)

// AnswerEvaluator grades submitted answers with the backend, falling back to local grading
type AnswerEvaluator struct {
	conv        *Conversation
	transcripts *TranscriptLog
}

// NewAnswerEvaluator creates an evaluator; conv may be nil to always grade locally
func NewAnswerEvaluator(conv *Conversation, transcripts *TranscriptLog) *AnswerEvaluator {
	return &AnswerEvaluator{conv: conv, transcripts: transcripts}
}

// Evaluate grades answer against q on the given conversation. It only returns an error
// when the caller's context is done; every backend failure degrades to local grading.
func (ae *AnswerEvaluator) Evaluate(ctx context.Context, handle string, q Question, answer string) (GradingOutcome, error) {
	if ae.conv == nil || handle == "" {
		return GradeLocally(q, answer), nil
	}

	logger := ae.transcripts.For(handle)
	prompt := BuildGradingPrompt(q, answer)
	logger.LogLLMRequest("AnswerEvaluator", prompt)

	text, err := ae.conv.Ask(ctx, handle, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return GradingOutcome{}, ctx.Err()
		}
		VerboseLog("Grading on %s failed, using local grading: %v", handle, err)
		logger.Logf("Backend grading failed (%v), using local grading\n", err)
		return GradeLocally(q, answer), nil
	}
	logger.LogLLMResponse("AnswerEvaluator", text)

	reply, err := ParseReply(text)
	if err != nil {
		VerboseLog("Grading reply on %s unparseable, using local grading: %v", handle, err)
		return GradeLocally(q, answer), nil
	}

	switch reply.Kind {
	case ReplyAnswer:
		return verdictOutcome(q, reply.Verdict), nil
	case ReplyChat:
		return GradingOutcome{Verdict: VerdictUngraded, Explanation: reply.Message}, nil
	default:
		VerboseLog("Grading reply on %s has type %q, using local grading", handle, reply.Kind)
		return GradeLocally(q, answer), nil
	}
}

func verdictOutcome(q Question, v *AnswerVerdict) GradingOutcome {
	outcome := GradingOutcome{
		Verdict:     VerdictIncorrect,
		Explanation: strings.TrimSpace(v.Explanation),
	}
	if outcome.Explanation == "" {
		outcome.Explanation = q.Explanation
	}
	if *v.Correct {
		outcome.Verdict = VerdictCorrect
		return outcome
	}
	outcome.CorrectAnswer = firstNonEmpty(strings.TrimSpace(v.CorrectAnswer), q.CorrectAnswer)
	return outcome
}
