package quizbot

import (
	"fmt"
	"strings"
	"unicode"
)

// dedupKey folds question text so trivially reworded copies collide:
// case, punctuation and runs of whitespace are ignored
func dedupKey(text string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return sb.String()
}

// checkDuplicates rejects a batch that asks the same question twice
func checkDuplicates(questions []Question) error {
	seen := make(map[string]int, len(questions))
	for i, q := range questions {
		key := dedupKey(q.Text)
		if first, ok := seen[key]; ok {
			return fmt.Errorf("question %d repeats question %d", i+1, first+1)
		}
		seen[key] = i
	}
	return nil
}
