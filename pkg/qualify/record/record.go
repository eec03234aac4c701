package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
)

// Column names of the input and published schemas
const (
	ColID         = "id"
	ColDomain     = "domain"
	ColURL        = "url"
	ColDateTime   = "date_time"
	ColHeadline   = "headline"
	ColAuthor     = "author"
	ColText       = "text"
	ColPaywall    = "paywall"
	ColTextLength = "text_length"
	ColReason     = "exclusion_reason"

	// ColInputPosition is the ledger column holding a row's input position
	ColInputPosition = "input_position"
)

// RequiredColumns must all be present in a loaded dataset
var RequiredColumns = []string{ColURL, ColDateTime, ColDomain, ColAuthor, ColHeadline, ColText, ColPaywall}

// PublishedColumns is the fixed column order of the final dataset
var PublishedColumns = []string{ColID, ColDomain, ColURL, ColDateTime, ColHeadline, ColAuthor, ColText, ColPaywall, ColTextLength}

// Reason labels why a record was excluded
type Reason string

// Built-in exclusion reasons. Language reasons are built with LanguageReason.
const (
	ReasonDuplicate      Reason = "duplicate"
	ReasonOutOfDateRange Reason = "out_of_date_range"
)

var languageNames = map[string]string{
	"de": "german",
	"en": "english",
	"fr": "french",
	"es": "spanish",
	"it": "italian",
	"nl": "dutch",
	"pl": "polish",
	"pt": "portuguese",
	"da": "danish",
	"sv": "swedish",
}

// LanguageReason returns the exclusion reason for records not written in
// the target language, e.g. "non_german" for "de".
func LanguageReason(target string) Reason {
	code := strings.ToLower(strings.TrimSpace(target))
	if name, ok := languageNames[code]; ok {
		return Reason("non_" + name)
	}
	return Reason("non_" + code)
}

// Record is one article. Pointer fields are nil when the value is missing.
type Record struct {
	Position   int // input order, assigned by the loader
	ID         int // 0 until normalization
	Domain     string
	URL        string
	DateTime   *time.Time
	RawDate    *string // cell text when DateTime could not be parsed
	Headline   *string
	Author     *string
	Text       *string
	Paywall    string
	TextLength *int
	Extra      map[string]*string
}

// Key identifies a record across the final dataset and the ledger.
func (r Record) Key() string {
	return fmt.Sprintf("%d|%s", r.Position, r.URL)
}

// Value returns the cell for a column as text. ok is false when the value is missing.
func (r Record) Value(column string) (string, bool) {
	switch column {
	case ColID:
		if r.ID == 0 {
			return "", false
		}
		return fmt.Sprintf("%d", r.ID), true
	case ColDomain:
		return r.Domain, true
	case ColURL:
		return r.URL, true
	case ColDateTime:
		if r.DateTime == nil {
			return deref(r.RawDate)
		}
		return FormatTime(*r.DateTime), true
	case ColHeadline:
		return deref(r.Headline)
	case ColAuthor:
		return deref(r.Author)
	case ColText:
		return deref(r.Text)
	case ColPaywall:
		return r.Paywall, r.Paywall != ""
	case ColTextLength:
		if r.TextLength == nil {
			return "", false
		}
		return fmt.Sprintf("%d", *r.TextLength), true
	}
	if v, ok := r.Extra[column]; ok {
		return deref(v)
	}
	return "", false
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}

// Excluded is a record removed by a stage, with the reason for removal.
type Excluded struct {
	Record
	Reason Reason
	Detail map[string]string
}

// Dataset is an ordered record collection plus the columns it was loaded with.
type Dataset struct {
	Columns []string
	Records []Record
}

// ValidateColumns checks that every required column is present.
func (d Dataset) ValidateColumns() error {
	have := make(map[string]struct{}, len(d.Columns))
	for _, c := range d.Columns {
		have[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required columns %s", internalerr.ErrSchemaViolation, strings.Join(missing, ", "))
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp cell. Values without a zone are taken as UTC.
// The result is always in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTime renders a timestamp the way it is published.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
