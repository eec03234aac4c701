package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/cognicore/qualify/pkg/qualify/record"
)

// MissingDatePolicy decides what happens to records without a usable date_time.
type MissingDatePolicy string

const (
	MissingExclude MissingDatePolicy = "exclude"
	MissingKeep    MissingDatePolicy = "keep"
)

// ParseMissingDatePolicy validates a policy name. Empty means MissingExclude.
func ParseMissingDatePolicy(s string) (MissingDatePolicy, error) {
	switch MissingDatePolicy(s) {
	case "", MissingExclude:
		return MissingExclude, nil
	case MissingKeep:
		return MissingKeep, nil
	}
	return "", fmt.Errorf("unknown missing date policy %q", s)
}

// DateRange excludes records published outside [Start, End]. Both bounds
// are inclusive.
type DateRange struct {
	Start   time.Time
	End     time.Time
	Missing MissingDatePolicy
}

// Name returns the stage name.
func (DateRange) Name() string { return "date-range" }

// Reason returns the exclusion reason.
func (DateRange) Reason() record.Reason { return record.ReasonOutOfDateRange }

// Apply partitions in by publication date.
func (d DateRange) Apply(_ context.Context, in []record.Record) (Result, error) {
	return partition(in, d.Reason(), d.inRange), nil
}

func (d DateRange) inRange(r record.Record) bool {
	if r.DateTime == nil {
		return d.Missing == MissingKeep
	}
	t := *r.DateTime
	return !t.Before(d.Start) && !t.After(d.End)
}
