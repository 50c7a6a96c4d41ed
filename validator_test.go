package quizbot

import (
	"errors"
	"testing"
)

func quizReply(qs []Question) *Reply {
	return &Reply{Kind: ReplyQuiz, Questions: qs}
}

func TestValidateBatchAccepts(t *testing.T) {
	req := GenerationRequest{Count: 3, Filters: testFilters}.Normalize()
	if err := ValidateBatch(quizReply(sampleBatch(3, testFilters)), req); err != nil {
		t.Errorf("ValidateBatch: %v", err)
	}

	mixed := GenerationRequest{Count: 2, Types: []QuestionType{TypeMultipleChoice, TypeFillIn}}.Normalize()
	fill := Question{
		Subject: "Science", Grade: "8", Unit: "Forces",
		Text:          "The rate of doing work is called ____.",
		CorrectAnswer: "power",
		Explanation:   "Power is work per unit time.",
		Type:          TypeFillIn,
	}
	if err := ValidateBatch(quizReply([]Question{sampleQuestion(1, testFilters), fill}), mixed); err != nil {
		t.Errorf("ValidateBatch mixed types: %v", err)
	}
}

func TestValidateBatchRejects(t *testing.T) {
	req := GenerationRequest{Count: 2, Filters: testFilters}.Normalize()

	tests := []struct {
		name   string
		reply  *Reply
		mutate func(qs []Question) []Question
		want   error
	}{
		{name: "nil reply", reply: nil, want: ErrShapeMismatch},
		{name: "chat reply", reply: &Reply{Kind: ReplyChat, Message: "hi"}, want: ErrShapeMismatch},
		{name: "untagged batch", reply: &Reply{Questions: sampleBatch(2, testFilters)}, want: ErrShapeMismatch},
		{name: "no questions", reply: &Reply{Kind: ReplyQuiz}, want: ErrShapeMismatch},
		{
			name:   "too few",
			mutate: func(qs []Question) []Question { return qs[:1] },
			want:   ErrShapeMismatch,
		},
		{
			name:   "too many",
			mutate: func(qs []Question) []Question { return append(qs, sampleQuestion(9, testFilters)) },
			want:   ErrShapeMismatch,
		},
		{
			name:   "missing explanation",
			mutate: func(qs []Question) []Question { qs[1].Explanation = ""; return qs },
			want:   ErrShapeMismatch,
		},
		{
			name:   "missing question text",
			mutate: func(qs []Question) []Question { qs[0].Text = ""; return qs },
			want:   ErrShapeMismatch,
		},
		{
			name:   "four options",
			mutate: func(qs []Question) []Question { qs[0].Options = qs[0].Options[:4]; return qs },
			want:   ErrShapeMismatch,
		},
		{
			name:   "correct answer not an option",
			mutate: func(qs []Question) []Question { qs[0].CorrectAnswer = "joule"; return qs },
			want:   ErrShapeMismatch,
		},
		{
			name: "repeated option",
			mutate: func(qs []Question) []Question {
				qs[0].Options = []string{"① newton", "② joule", "② joule", "④ pascal", "⑤ volt"}
				return qs
			},
			want: ErrShapeMismatch,
		},
		{
			name:   "type not requested",
			mutate: func(qs []Question) []Question { qs[1].Type = TypeDefinition; qs[1].Options = nil; return qs },
			want:   ErrShapeMismatch,
		},
		{
			name:   "duplicate question",
			mutate: func(qs []Question) []Question { qs[1].Text = "  question 1 - WHICH unit measures energy "; return qs },
			want:   ErrShapeMismatch,
		},
		{
			name:   "wrong unit",
			mutate: func(qs []Question) []Question { qs[1].Unit = "Light"; return qs },
			want:   ErrFilterMismatch,
		},
		{
			name:   "wrong grade",
			mutate: func(qs []Question) []Question { qs[0].Grade = "9"; return qs },
			want:   ErrFilterMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := tt.reply
			if tt.mutate != nil {
				reply = quizReply(tt.mutate(sampleBatch(2, testFilters)))
			}
			err := ValidateBatch(reply, req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateBatchChecksShapeBeforeFilters(t *testing.T) {
	req := GenerationRequest{Count: 2, Filters: testFilters}.Normalize()
	qs := sampleBatch(2, testFilters)
	qs[0].Unit = "Light"
	qs[1].Options = qs[1].Options[:3]

	if err := ValidateBatch(quizReply(qs), req); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("err = %v, want SHAPE_MISMATCH", err)
	}
}

func TestValidateBatchWithoutFilters(t *testing.T) {
	req := GenerationRequest{Count: 2}.Normalize()
	qs := sampleBatch(2, Filters{Subject: "History", Grade: "5", Unit: "Joseon"})
	if err := ValidateBatch(quizReply(qs), req); err != nil {
		t.Errorf("unfiltered request rejected a batch: %v", err)
	}
}

func TestDedupKey(t *testing.T) {
	if a, b := dedupKey("What is  a Joule?"), dedupKey("what is a joule"); a != b {
		t.Errorf("dedupKey differs: %q vs %q", a, b)
	}
	if a, b := dedupKey("What is a joule?"), dedupKey("What is a watt?"); a == b {
		t.Errorf("distinct questions collide on %q", a)
	}
}
