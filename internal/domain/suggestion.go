package domain

// Suggestion is one AI feedback response. The JSON field names are part of
// the durable log format and of the chat grounding payload.
type Suggestion struct {
	Answer string   `json:"answer"`
	Hints  []string `json:"hints"`
	Score  int      `json:"score"`
}

// Feedback is the displayable part of a Suggestion
type Feedback struct {
	Answer string
	Hints  []string
}

// Feedback strips the score from a suggestion
func (s Suggestion) Feedback() Feedback {
	hints := s.Hints
	if hints == nil {
		hints = []string{}
	}
	return Feedback{Answer: s.Answer, Hints: hints}
}

// ValidScore reports whether the score is within the 0-100 range
func (s Suggestion) ValidScore() bool {
	return s.Score >= 0 && s.Score <= 100
}
