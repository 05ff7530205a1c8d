package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultThreshold is the minimum score a threshold-style verdict needs
// to be accepted.
const DefaultThreshold = 70

// Verdict is a verifier judgement in either of the two shapes the
// verifier contracts produce: a numeric overall score, or a correctness
// flag with correction text for the next draft.
type Verdict struct {
	Score      *int
	Correct    *bool
	Correction string
}

// ParseVerdict reads a verdict from a validated verifier payload. The
// payload must carry either an overall score or a correctness flag.
func ParseVerdict(payload []byte) (*Verdict, error) {
	var raw struct {
		Score       *int   `json:"overall_score"`
		Correctness *bool  `json:"correctness"`
		IsCorrect   *bool  `json:"isCorrect"`
		Correction  string `json:"correction"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("cannot parse verdict payload: %w", err)
	}

	v := &Verdict{Score: raw.Score, Correction: raw.Correction}
	switch {
	case raw.Correctness != nil:
		v.Correct = raw.Correctness
	case raw.IsCorrect != nil:
		v.Correct = raw.IsCorrect
	}
	if v.Score == nil && v.Correct == nil {
		return nil, errors.New("verdict payload carries neither a score nor a correctness flag")
	}
	return v, nil
}

// Accepted reports whether the verdict passes: score at or above the
// threshold, or an affirmative correctness flag.
func (v *Verdict) Accepted(threshold int) bool {
	if v.Score != nil {
		return *v.Score >= threshold
	}
	return v.Correct != nil && *v.Correct
}

// Feedback returns correction text to fold into the next draft prompt.
// Threshold-style verdicts carry no usable correction, so feedback is
// only produced by an explicit negative correctness flag.
func (v *Verdict) Feedback() string {
	if v.Correct != nil && !*v.Correct {
		return v.Correction
	}
	return ""
}

func (v *Verdict) String() string {
	if v.Score != nil {
		return fmt.Sprintf("score=%d", *v.Score)
	}
	if v.Correct != nil {
		return fmt.Sprintf("correct=%t", *v.Correct)
	}
	return "empty verdict"
}
