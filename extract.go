package quizbot

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ReplyKind discriminates the shapes a backend reply can take
type ReplyKind string

const (
	ReplyQuiz   ReplyKind = "QUIZ"
	ReplyAnswer ReplyKind = "ANSWER"
	ReplyChat   ReplyKind = "CHAT"
	ReplyError  ReplyKind = "ERROR"
)

// Reply is a backend reply validated once at the boundary
type Reply struct {
	Kind ReplyKind
	// Questions is set for ReplyQuiz; Single marks the one-question form
	Questions []Question
	Single    bool
	// Verdict is set for ReplyAnswer
	Verdict *AnswerVerdict
	// Message carries conversational text for ReplyChat and ReplyError
	Message string
	Raw     string
}

// AnswerVerdict is the model's judgment of a submitted answer; Correct is never nil once parsed
type AnswerVerdict struct {
	Correct       *bool  `json:"correct"`
	Explanation   string `json:"explanation"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// wireReply is the loose shape replies arrive in before they are tagged
type wireReply struct {
	Type      string          `json:"type"`
	Questions json.RawMessage `json:"questions"`
	Quiz      json.RawMessage `json:"quiz"`
	Answer    json.RawMessage `json:"answer"`
	Message   string          `json:"message"`
	Error     string          `json:"error"`
}

// stripFence removes a surrounding ``` block, with or without a format hint
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	// drop the format hint on the opening line, e.g. ```json
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		hint := strings.TrimSpace(t[:nl])
		if !strings.ContainsAny(hint, "{}") {
			t = t[nl+1:]
		}
	}
	if end := strings.LastIndex(t, "```"); end >= 0 {
		t = t[:end]
	}
	return strings.TrimSpace(t)
}

// ExtractPayload isolates the outermost {...} span of a reply. ok is false when the
// reply holds no brace pair and should be read as conversation.
func ExtractPayload(text string) (payload json.RawMessage, ok bool, err error) {
	body := stripFence(text)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return nil, false, nil
	}
	span := []byte(body[start : end+1])
	if !json.Valid(span) {
		return nil, true, newError(KindMalformedPayload, "reply contains an unparseable payload", nil)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, span); err != nil {
		return nil, true, newError(KindMalformedPayload, "compact payload", err)
	}
	return buf.Bytes(), true, nil
}

// ParseReply turns raw backend text into a tagged Reply
func ParseReply(text string) (*Reply, error) {
	payload, ok, err := ExtractPayload(text)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Reply{Kind: ReplyChat, Message: strings.TrimSpace(text), Raw: text}, nil
	}

	var w wireReply
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, newError(KindMalformedPayload, "decode reply", err)
	}

	reply := &Reply{Raw: text}
	kind := ReplyKind(strings.ToUpper(strings.TrimSpace(w.Type)))

	switch {
	case kind == ReplyError:
		reply.Kind = ReplyError
		reply.Message = firstNonEmpty(w.Error, w.Message)
		return reply, nil

	case kind == ReplyChat:
		reply.Kind = ReplyChat
		reply.Message = w.Message
		return reply, nil

	case hasValue(w.Questions) || hasValue(w.Quiz):
		if kind != ReplyQuiz && kind != "" {
			return nil, newError(KindMalformedPayload, "reply of type "+w.Type+" carries questions", nil)
		}
		// an untagged batch keeps Kind "" so the validator can report the missing tag
		reply.Kind = kind
		if hasValue(w.Questions) {
			if err := json.Unmarshal(w.Questions, &reply.Questions); err != nil {
				return nil, newError(KindMalformedPayload, "decode questions", err)
			}
		} else {
			var q Question
			if err := json.Unmarshal(w.Quiz, &q); err != nil {
				return nil, newError(KindMalformedPayload, "decode quiz", err)
			}
			reply.Questions = []Question{q}
			reply.Single = true
		}
		return reply, nil

	case hasValue(w.Answer):
		var v AnswerVerdict
		if err := json.Unmarshal(w.Answer, &v); err != nil {
			return nil, newError(KindMalformedPayload, "decode answer verdict", err)
		}
		if v.Correct == nil {
			return nil, newError(KindMalformedPayload, "answer verdict has no correct field", nil)
		}
		reply.Kind = ReplyAnswer
		reply.Verdict = &v
		return reply, nil

	case w.Message != "":
		reply.Kind = ReplyChat
		reply.Message = w.Message
		return reply, nil
	}

	return nil, newError(KindMalformedPayload, "reply has no recognizable type", nil)
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
