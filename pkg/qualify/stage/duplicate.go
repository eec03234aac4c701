package stage

import (
	"context"

	"github.com/cognicore/qualify/pkg/qualify/record"
)

// Duplicate keeps the first record for each URL and excludes the rest.
type Duplicate struct{}

// Name returns the stage name.
func (Duplicate) Name() string { return "duplicate-url" }

// Reason returns the exclusion reason.
func (Duplicate) Reason() record.Reason { return record.ReasonDuplicate }

// Apply partitions in by first URL occurrence.
func (d Duplicate) Apply(_ context.Context, in []record.Record) (Result, error) {
	seen := make(map[string]struct{}, len(in))
	return partition(in, d.Reason(), func(r record.Record) bool {
		if _, dup := seen[r.URL]; dup {
			return false
		}
		seen[r.URL] = struct{}{}
		return true
	}), nil
}
