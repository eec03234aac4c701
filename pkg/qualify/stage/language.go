package stage

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
	"github.com/cognicore/qualify/pkg/qualify/langid"
	"github.com/cognicore/qualify/pkg/qualify/record"
)

// DetailDetectedLanguage is the ledger column holding the detector's answer.
const DetailDetectedLanguage = "detected_language"

// Language excludes records whose text is not identified as Target.
// Undetermined text is excluded too.
type Language struct {
	Identifier langid.Identifier
	Target     string
	// Workers bounds concurrent identifier calls. Zero means runtime.NumCPU().
	Workers int
}

// Name returns the stage name.
func (l Language) Name() string { return "language" }

// Reason returns the exclusion reason for the target language.
func (l Language) Reason() record.Reason { return record.LanguageReason(l.Target) }

// Apply identifies every record's text and partitions by the result. Any
// identifier error fails the whole stage.
func (l Language) Apply(ctx context.Context, in []record.Record) (Result, error) {
	if l.Identifier == nil {
		return Result{}, fmt.Errorf("%w: no identifier configured", internalerr.ErrClassificationUnavailable)
	}

	results := make([]langid.Result, len(in))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers())
	for i := range in {
		i := i
		g.Go(func() error {
			text := ""
			if in[i].Text != nil {
				text = *in[i].Text
			}
			res, err := l.Identifier.Identify(gCtx, text)
			if err != nil {
				return fmt.Errorf("identify %s: %w", in[i].URL, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, internalerr.ErrClassificationUnavailable) {
			err = fmt.Errorf("%w: %v", internalerr.ErrClassificationUnavailable, err)
		}
		return Result{}, err
	}

	reason := l.Reason()
	out := Result{
		Kept:     make([]record.Record, 0, len(in)),
		Excluded: []record.Excluded{},
		Columns:  []string{DetailDetectedLanguage},
	}
	for i, r := range in {
		res := results[i]
		if res.Outcome == langid.Detected && strings.EqualFold(res.Code, l.Target) {
			out.Kept = append(out.Kept, r)
			continue
		}
		code := res.Code
		if res.Outcome == langid.Undetermined || code == "" {
			code = langid.Unknown
		}
		out.Excluded = append(out.Excluded, record.Excluded{
			Record: r,
			Reason: reason,
			Detail: map[string]string{DetailDetectedLanguage: code},
		})
	}
	return out, nil
}

func (l Language) workers() int {
	if l.Workers > 0 {
		return l.Workers
	}
	return runtime.NumCPU()
}
