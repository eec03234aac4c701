package qualify

import (
	"context"
	"fmt"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
	"github.com/cognicore/qualify/pkg/qualify/ledger"
	"github.com/cognicore/qualify/pkg/qualify/normalize"
	"github.com/cognicore/qualify/pkg/qualify/record"
	"github.com/cognicore/qualify/pkg/qualify/stage"
	"github.com/cognicore/qualify/pkg/qualify/summary"
)

// Qualifier runs the filter stages, the normalizer and the summarizer
// over one dataset snapshot.
type Qualifier struct {
	stages     []stage.Stage
	normalizer *normalize.Normalizer
	logf       func(format string, args ...any)
}

// Options configures a Qualifier
type Options struct {
	// Stages run in order; each sees only what the previous one kept.
	Stages     []stage.Stage
	Normalizer *normalize.Normalizer
	// Logf receives per-stage progress lines. Optional.
	Logf func(format string, args ...any)
}

// New creates a Qualifier with the given stages
func New(opts Options) *Qualifier {
	n := opts.Normalizer
	if n == nil {
		n = normalize.New()
	}
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Qualifier{
		stages:     opts.Stages,
		normalizer: n,
		logf:       logf,
	}
}

// StageStat counts what one stage did.
type StageStat struct {
	Stage    string        `json:"stage"`
	Reason   record.Reason `json:"reason"`
	In       int           `json:"in"`
	Kept     int           `json:"kept"`
	Excluded int           `json:"excluded"`
}

// Result is the outcome of a run.
type Result struct {
	Final   record.Dataset
	Ledger  ledger.Ledger
	Summary []summary.Row
	Stats   []StageStat
}

// Run qualifies ds. Record positions are reset to input order so that the
// final dataset and the ledger can be audited against the input.
func (q *Qualifier) Run(ctx context.Context, ds record.Dataset) (Result, error) {
	if err := ds.ValidateColumns(); err != nil {
		return Result{}, err
	}

	input := make([]record.Record, len(ds.Records))
	for i, r := range ds.Records {
		r.Position = i
		input[i] = r
	}

	kept := input
	chunks := make([]ledger.Chunk, 0, len(q.stages))
	stats := make([]StageStat, 0, len(q.stages))
	for _, s := range q.stages {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := s.Apply(ctx, kept)
		if err != nil {
			return Result{}, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
		if len(res.Kept)+len(res.Excluded) != len(kept) {
			return Result{}, fmt.Errorf("%w: stage %s returned %d+%d records for %d", internalerr.ErrConservation,
				s.Name(), len(res.Kept), len(res.Excluded), len(kept))
		}

		chunks = append(chunks, ledger.Chunk{
			Stage:   s.Name(),
			Reason:  s.Reason(),
			Columns: append(append([]string{}, ds.Columns...), res.Columns...),
			Rows:    res.Excluded,
		})
		stats = append(stats, StageStat{
			Stage:    s.Name(),
			Reason:   s.Reason(),
			In:       len(kept),
			Kept:     len(res.Kept),
			Excluded: len(res.Excluded),
		})
		q.logf("stage %s: %d in, %d kept, %d excluded as %s", s.Name(), len(kept), len(res.Kept), len(res.Excluded), s.Reason())
		kept = res.Kept
	}

	led := ledger.Merge(chunks...)

	final, err := q.normalizer.Normalize(kept)
	if err != nil {
		return Result{}, err
	}

	if err := checkConservation(input, final, led); err != nil {
		return Result{}, err
	}

	return Result{
		Final:   record.Dataset{Columns: record.PublishedColumns, Records: final},
		Ledger:  led,
		Summary: summary.Summarize(final),
		Stats:   stats,
	}, nil
}

// checkConservation verifies that every input record ended up in exactly
// one of the final dataset and the ledger.
func checkConservation(input, final []record.Record, led ledger.Ledger) error {
	if len(input) != len(final)+led.Len() {
		return fmt.Errorf("%w: %d in, %d final, %d excluded", internalerr.ErrConservation, len(input), len(final), led.Len())
	}
	seen := make(map[string]struct{}, len(input))
	mark := func(key string) error {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: record %s classified twice", internalerr.ErrConservation, key)
		}
		seen[key] = struct{}{}
		return nil
	}
	for _, r := range final {
		if err := mark(r.Key()); err != nil {
			return err
		}
	}
	for _, r := range led.Rows {
		if err := mark(r.Key()); err != nil {
			return err
		}
	}
	for _, r := range input {
		if _, ok := seen[r.Key()]; !ok {
			return fmt.Errorf("%w: record %s lost", internalerr.ErrConservation, r.Key())
		}
	}
	return nil
}
