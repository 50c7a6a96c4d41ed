package quizbot

import (
	"bytes"
	"errors"
	"testing"
)

func TestExtractPayload(t *testing.T) {
	const clean = `{"type":"QUIZ","questions":[]}`

	tests := []struct {
		name    string
		text    string
		wantOK  bool
		wantErr bool
	}{
		{name: "clean", text: clean, wantOK: true},
		{name: "fenced with hint", text: "```json\n" + clean + "\n```", wantOK: true},
		{name: "fenced without hint", text: "```\n" + clean + "\n```", wantOK: true},
		{name: "surrounding prose", text: "Here you go:\n" + clean + "\nGood luck!", wantOK: true},
		{name: "conversational", text: "Sure, what unit would you like?", wantOK: false},
		{name: "only an opening brace", text: "use { for blocks", wantOK: false},
		{name: "broken json", text: `{"type":"QUIZ","questions":[}`, wantOK: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, ok, err := ExtractPayload(tt.text)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("err = %v, want MALFORMED_PAYLOAD", err)
			}
			if tt.wantOK && !tt.wantErr && string(payload) != clean {
				t.Errorf("payload = %s, want %s", payload, clean)
			}
		})
	}
}

func TestExtractPayloadIsIdempotent(t *testing.T) {
	text := "```json\n{\n  \"type\": \"ANSWER\",\n  \"answer\": {\"correct\": true}\n}\n```"

	first, ok, err := ExtractPayload(text)
	if err != nil || !ok {
		t.Fatalf("ExtractPayload: ok=%v err=%v", ok, err)
	}
	second, ok, err := ExtractPayload(string(first))
	if err != nil || !ok {
		t.Fatalf("ExtractPayload on its own output: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("extraction changed a clean payload: %s vs %s", first, second)
	}
}

func TestParseReply(t *testing.T) {
	batch := batchJSON(t, sampleBatch(2, testFilters))

	reply, err := ParseReply(batch)
	if err != nil {
		t.Fatalf("ParseReply batch: %v", err)
	}
	if reply.Kind != ReplyQuiz || len(reply.Questions) != 2 || reply.Single {
		t.Errorf("batch reply = kind %s, %d questions, single %v", reply.Kind, len(reply.Questions), reply.Single)
	}

	reply, err = ParseReply(`{"type":"quiz","quiz":{"question":"What is 2+2?","correct_answer":"4"}}`)
	if err != nil {
		t.Fatalf("ParseReply single: %v", err)
	}
	if reply.Kind != ReplyQuiz || !reply.Single || len(reply.Questions) != 1 {
		t.Errorf("single reply = %+v", reply)
	}

	reply, err = ParseReply(`{"answer":{"correct":false,"explanation":"No.","correct_answer":"② joule"}}`)
	if err != nil {
		t.Fatalf("ParseReply answer: %v", err)
	}
	if reply.Kind != ReplyAnswer || reply.Verdict == nil || reply.Verdict.Correct == nil || *reply.Verdict.Correct || reply.Verdict.CorrectAnswer != "② joule" {
		t.Errorf("answer reply = %+v", reply)
	}

	reply, err = ParseReply(`{"type":"ERROR","error":"content filtered"}`)
	if err != nil {
		t.Fatalf("ParseReply error: %v", err)
	}
	if reply.Kind != ReplyError || reply.Message != "content filtered" {
		t.Errorf("error reply = %+v", reply)
	}

	reply, err = ParseReply("  Happy to help!  ")
	if err != nil {
		t.Fatalf("ParseReply chat: %v", err)
	}
	if reply.Kind != ReplyChat || reply.Message != "Happy to help!" {
		t.Errorf("chat reply = %+v", reply)
	}

	reply, err = ParseReply(`{"questions":[]}`)
	if err != nil {
		t.Fatalf("ParseReply untagged: %v", err)
	}
	if reply.Kind != "" {
		t.Errorf("untagged batch kind = %q, want empty", reply.Kind)
	}
}

func TestParseReplyMalformed(t *testing.T) {
	for _, text := range []string{
		`{"type":"SOMETHING"}`,
		`{"type":"ANSWER","questions":[{"question":"x"}]}`,
		`{"type":"QUIZ","questions":"not a list"}`,
		`{"answer":"yes"}`,
		`{"type":"QUIZ",}`,
		`{"type":"ANSWER","answer":{"explanation":"Nice work, that is right."}}`,
		`{"type":"ANSWER","answer":{"correct":null,"explanation":"Hmm."}}`,
		`{"type":"ANSWER","answer":{}}`,
	} {
		if _, err := ParseReply(text); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("ParseReply(%s): err = %v, want MALFORMED_PAYLOAD", text, err)
		}
	}
}
