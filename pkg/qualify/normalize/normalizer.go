// Package normalize turns the qualified records into the published schema.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
	"github.com/cognicore/qualify/pkg/qualify/record"
)

// Validation errors.
var (
	ErrMissingURL     = errors.New("missing url")
	ErrMissingDomain  = errors.New("missing domain")
	ErrInvalidPaywall = errors.New("unrecognized paywall value")
	ErrDuplicateURL   = errors.New("duplicate url")
)

// Normalizer assigns identity, coerces types, computes derived fields and
// projects records onto the published columns.
type Normalizer struct{}

// New creates a normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize returns normalized copies of in, in the same order.
func (n *Normalizer) Normalize(in []record.Record) ([]record.Record, error) {
	out := make([]record.Record, 0, len(in))
	urls := make(map[string]struct{}, len(in))
	for i, r := range in {
		if err := Validate(r); err != nil {
			return nil, fmt.Errorf("%w: row %d (%s): %v", internalerr.ErrSchemaViolation, i+1, r.URL, err)
		}
		if _, dup := urls[r.URL]; dup {
			return nil, fmt.Errorf("%w: row %d (%s): %v", internalerr.ErrSchemaViolation, i+1, r.URL, ErrDuplicateURL)
		}
		urls[r.URL] = struct{}{}
		paywall, err := CoercePaywall(r.Paywall)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d (%s): %v", internalerr.ErrSchemaViolation, i+1, r.URL, err)
		}

		length := 0
		if r.Text != nil {
			length = WordCount(*r.Text)
		}

		out = append(out, record.Record{
			Position:   r.Position,
			ID:         i + 1,
			Domain:     r.Domain,
			URL:        r.URL,
			DateTime:   r.DateTime,
			RawDate:    r.RawDate,
			Headline:   r.Headline,
			Author:     r.Author,
			Text:       r.Text,
			Paywall:    paywall,
			TextLength: &length,
		})
	}
	return out, nil
}

// Validate checks the values every published record must carry.
func Validate(r record.Record) error {
	if strings.TrimSpace(r.URL) == "" {
		return ErrMissingURL
	}
	if strings.TrimSpace(r.Domain) == "" {
		return ErrMissingDomain
	}
	return nil
}

// CoercePaywall maps the two recognized boolean forms to "1" or "0".
func CoercePaywall(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "1.0":
		return "1", nil
	case "false", "0", "0.0":
		return "0", nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidPaywall, v)
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
