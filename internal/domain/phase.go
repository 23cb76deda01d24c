package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Phase is a read-only quiz unit belonging to a trail: an ordered question
// list with canonical zero-based correct indices.
type Phase struct {
	ID        string     `json:"id"`
	TrailID   string     `json:"trailId"`
	Questions []Question `json:"questions"`
}

// TotalQuestions returns the number of questions in the phase.
func (p Phase) TotalQuestions() int {
	return len(p.Questions)
}

// CorrectAnswerOf returns the correct alternative index for a question, and
// false when the question index is out of range.
func (p Phase) CorrectAnswerOf(questionIndex int) (int, bool) {
	if questionIndex < 0 || questionIndex >= len(p.Questions) {
		return 0, false
	}
	return p.Questions[questionIndex].Correct, true
}

// Question is a single MCQ with its correct alternative already normalized to
// a zero-based index.
type Question struct {
	Statement    string   `json:"statement"`
	Alternatives []string `json:"alternatives"`
	Correct      int      `json:"correctAnswer"`
}

// UnmarshalJSON normalizes the correct-answer marker at the decode boundary,
// so the rest of the system only ever sees a canonical index.
func (q *Question) UnmarshalJSON(data []byte) error {
	var raw struct {
		Statement    string          `json:"statement"`
		Alternatives []string        `json:"alternatives"`
		Correct      json.RawMessage `json:"correctAnswer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.Statement = raw.Statement
	q.Alternatives = raw.Alternatives
	q.Correct = NormalizeCorrectAnswer(raw.Correct, raw.Alternatives)
	return nil
}

// NormalizeCorrectAnswer resolves a correct-answer marker to a zero-based
// index. Authored content marks the answer as a numeric index, a numeric
// string, or the literal text of one of the alternatives. Unresolvable
// markers fall back to index 0; content linting is expected to catch those
// before they reach players.
func NormalizeCorrectAnswer(raw json.RawMessage, alternatives []string) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		if n >= 0 {
			return n
		}
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
		for i, alt := range alternatives {
			if strings.EqualFold(strings.TrimSpace(alt), s) {
				return i
			}
		}
	}
	return 0
}
