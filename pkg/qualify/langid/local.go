package langid

import (
	"context"

	"github.com/abadojack/whatlanggo"
)

// DefaultMinLetters is the shortest text, in letters, the local detector
// will try to classify.
const DefaultMinLetters = 20

// Local is an in-process trigram detector.
type Local struct {
	// MinLetters below which text is reported as undetermined.
	MinLetters int
	// MinConfidence below which a detection is reported as undetermined.
	MinConfidence float64
}

// NewLocal creates a local detector with default thresholds.
func NewLocal() *Local {
	return &Local{MinLetters: DefaultMinLetters}
}

// Identify detects the language of text. It never returns an error.
func (l *Local) Identify(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	clean := Prepare(text)
	if countLetters(clean) < l.MinLetters {
		return Undetected(), nil
	}

	info := whatlanggo.Detect(clean)
	if info.Lang < 0 {
		return Undetected(), nil
	}
	code := info.Lang.Iso6391()
	if code == "" || info.Confidence < l.MinConfidence {
		return Undetected(), nil
	}
	return Result{Code: code, Outcome: Detected, Confidence: info.Confidence}, nil
}
