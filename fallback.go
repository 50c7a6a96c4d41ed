package quizbot

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// a leading ①..⑳, or 1-2 digits followed by punctuation or whitespace
	reLeadingMarker = regexp.MustCompile(`^\s*(?:([\x{2460}-\x{2473}])|\(?(\d{1,2})(?:[.):\]]|\s))\s*`)
	// a leading ①..⑳ only
	reLeadingCircled = regexp.MustCompile(`^\s*[\x{2460}-\x{2473}]\s*`)
	// an answer that is nothing but a marker: "2", "2.", "(2)", "②"
	reLoneMarker = regexp.MustCompile(`^\s*(?:([\x{2460}-\x{2473}])|\(?(\d{1,2})[.):\]]?)\s*$`)
)

// GradeLocally grades an answer without the backend
func GradeLocally(q Question, answer string) GradingOutcome {
	var correct bool
	if q.Type.IsChoice() {
		correct = matchChoice(q, answer)
	} else {
		correct = strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
	}

	outcome := GradingOutcome{
		Verdict:     VerdictIncorrect,
		Explanation: q.Explanation,
		Fallback:    true,
	}
	if correct {
		outcome.Verdict = VerdictCorrect
	} else {
		outcome.CorrectAnswer = q.CorrectAnswer
	}
	return outcome
}

// matchChoice resolves the answer to an option and reports whether it is the correct one.
// Option text wins over option numbers: "8" picks the option "8" before the eighth option.
func matchChoice(q Question, answer string) bool {
	if i := findOption(q.Options, answer, strings.TrimSpace); i >= 0 {
		return q.Options[i] == q.CorrectAnswer
	}

	strip := stripCircled
	if numberedOptions(q.Options) {
		strip = stripMarker
	}
	if i := findOption(q.Options, answer, strip); i >= 0 {
		return q.Options[i] == q.CorrectAnswer
	}

	if ordinal, ok := markerOrdinal(answer); ok && ordinal >= 1 && ordinal <= len(q.Options) {
		return ordinal == q.CorrectPosition()
	}
	return false
}

// findOption returns the index of the option equal to answer after normalize, or -1
func findOption(options []string, answer string, normalize func(string) string) int {
	want := normalize(answer)
	if want == "" {
		return -1
	}
	for i, option := range options {
		if strings.EqualFold(normalize(option), want) {
			return i
		}
	}
	return -1
}

// numberedOptions reports whether every option starts with its own 1-based marker
func numberedOptions(options []string) bool {
	if len(options) == 0 {
		return false
	}
	for i, option := range options {
		m := reLeadingMarker.FindStringSubmatch(option)
		if m == nil {
			return false
		}
		n, ok := ordinalOf(m[1], m[2])
		if !ok || n != i+1 {
			return false
		}
	}
	return true
}

// markerOrdinal returns the position named by an answer consisting of a single enumeration marker
func markerOrdinal(answer string) (int, bool) {
	m := reLoneMarker.FindStringSubmatch(answer)
	if m == nil {
		return 0, false
	}
	return ordinalOf(m[1], m[2])
}

func ordinalOf(circled, digits string) (int, bool) {
	if circled != "" {
		r, _ := utf8.DecodeRuneInString(circled)
		return int(r-'①') + 1, true
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func stripMarker(s string) string {
	return strings.TrimSpace(reLeadingMarker.ReplaceAllString(s, ""))
}

func stripCircled(s string) string {
	return strings.TrimSpace(reLeadingCircled.ReplaceAllString(s, ""))
}
