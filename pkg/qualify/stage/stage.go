// Package stage holds the filter stages of the qualification pipeline.
//
// A stage partitions its input into kept and excluded records. Both
// partitions preserve input order, together they contain every input
// record exactly once, and the input slice is never modified.
package stage

import (
	"context"

	"github.com/cognicore/qualify/pkg/qualify/record"
)

// Stage is a single qualification rule.
type Stage interface {
	Name() string
	Reason() record.Reason
	Apply(ctx context.Context, in []record.Record) (Result, error)
}

// Result is the partition produced by a stage.
type Result struct {
	Kept     []record.Record
	Excluded []record.Excluded
	// Columns lists Detail keys the stage attaches to excluded rows.
	Columns []string
}

// partition splits in by keep, tagging rejected records with reason.
func partition(in []record.Record, reason record.Reason, keep func(record.Record) bool) Result {
	res := Result{
		Kept:     make([]record.Record, 0, len(in)),
		Excluded: []record.Excluded{},
	}
	for _, r := range in {
		if keep(r) {
			res.Kept = append(res.Kept, r)
			continue
		}
		res.Excluded = append(res.Excluded, record.Excluded{Record: r, Reason: reason})
	}
	return res
}
