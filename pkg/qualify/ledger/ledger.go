// Package ledger accumulates excluded records across pipeline stages.
package ledger

import (
	"github.com/cognicore/qualify/pkg/qualify/record"
)

// Chunk is the excluded partition of one stage.
type Chunk struct {
	Stage   string
	Reason  record.Reason
	Columns []string // record columns followed by stage detail columns
	Rows    []record.Excluded
}

// Ledger is the merged table of all excluded records.
type Ledger struct {
	Columns []string // union of chunk columns, exclusion_reason last
	Rows    []record.Excluded
}

// Merge folds chunks into one ledger. Columns are unioned in first-seen
// order, rows keep chunk order and then within-chunk order. Inputs are
// not modified.
func Merge(chunks ...Chunk) Ledger {
	var out Ledger
	seen := make(map[string]struct{})
	total := 0
	for _, c := range chunks {
		total += len(c.Rows)
		for _, col := range c.Columns {
			if col == record.ColReason {
				continue
			}
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			out.Columns = append(out.Columns, col)
		}
	}
	out.Columns = append(out.Columns, record.ColReason)

	out.Rows = make([]record.Excluded, 0, total)
	for _, c := range chunks {
		out.Rows = append(out.Rows, c.Rows...)
	}
	return out
}

// PositionColumn names the column that stores each row's input position
// when the ledger is persisted. It is "input_position" unless an input
// column already uses that name, in which case underscores are prepended
// until the name is free.
func (l Ledger) PositionColumn() string {
	taken := make(map[string]struct{}, len(l.Columns))
	for _, c := range l.Columns {
		taken[c] = struct{}{}
	}
	name := record.ColInputPosition
	for {
		if _, ok := taken[name]; !ok {
			return name
		}
		name = "_" + name
	}
}

// Empty reports whether nothing was excluded.
func (l Ledger) Empty() bool {
	return len(l.Rows) == 0
}

// Len returns the number of excluded records.
func (l Ledger) Len() int {
	return len(l.Rows)
}

// Value returns a cell of the ledger. ok is false when the row has no value
// for the column, which is how union-filled cells are represented.
func (l Ledger) Value(row int, column string) (string, bool) {
	ex := l.Rows[row]
	if column == record.ColReason {
		return string(ex.Reason), true
	}
	if v, ok := ex.Detail[column]; ok {
		return v, true
	}
	return ex.Record.Value(column)
}

// Counts returns the number of excluded records per reason.
func (l Ledger) Counts() map[record.Reason]int {
	counts := make(map[record.Reason]int)
	for _, r := range l.Rows {
		counts[r.Reason]++
	}
	return counts
}
