package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
	"github.com/cognicore/qualify/pkg/qualify/ledger"
	"github.com/cognicore/qualify/pkg/qualify/record"
	"github.com/cognicore/qualify/pkg/qualify/store"
)

// Store is an in-memory implementation of store.Store, used for dry runs
// and tests.
type Store struct {
	mu       sync.RWMutex
	articles []record.Record
	saved    bool
	ledger   []map[string]*string
	runs     map[string]store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]store.Run)}
}

// Open has the signature of sqlite.OpenSQLite. The path is ignored.
func Open(ctx context.Context, path string) (store.Store, error) {
	return New(), nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveArticles replaces the stored dataset.
func (s *Store) SaveArticles(ctx context.Context, articles []record.Record) error {
	out := make([]record.Record, 0, len(articles))
	for _, a := range articles {
		if a.TextLength == nil {
			return fmt.Errorf("%w: article %s is not normalized", internalerr.ErrSchemaViolation, a.URL)
		}
		out = append(out, copyRecord(a))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles = out
	s.saved = true
	return nil
}

// LoadArticles returns the stored dataset in id order.
func (s *Store) LoadArticles(ctx context.Context) (record.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.saved {
		return record.Dataset{}, fmt.Errorf("%w: no articles saved", internalerr.ErrSchemaViolation)
	}
	ds := record.Dataset{
		Columns: append([]string{}, record.PublishedColumns...),
		Records: make([]record.Record, len(s.articles)),
	}
	for i, a := range s.articles {
		r := copyRecord(a)
		r.Position = i
		ds.Records[i] = r
	}
	sort.SliceStable(ds.Records, func(i, j int) bool { return ds.Records[i].ID < ds.Records[j].ID })
	return ds, nil
}

// SaveLedger replaces the stored ledger with its flattened rows.
func (s *Store) SaveLedger(ctx context.Context, l ledger.Ledger) error {
	pos := l.PositionColumn()
	rows := make([]map[string]*string, len(l.Rows))
	for i, ex := range l.Rows {
		row := make(map[string]*string, len(l.Columns)+1)
		row[pos] = record.StringPtr(strconv.Itoa(ex.Position))
		for _, c := range l.Columns {
			if v, ok := l.Value(i, c); ok {
				row[c] = record.StringPtr(v)
			} else {
				row[c] = nil
			}
		}
		rows[i] = row
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = rows
	return nil
}

// LoadLedger returns the stored ledger rows.
func (s *Store) LoadLedger(ctx context.Context) ([]map[string]*string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]map[string]*string, len(s.ledger))
	for i, row := range s.ledger {
		cp := make(map[string]*string, len(row))
		for k, v := range row {
			cp[k] = copyString(v)
		}
		out[i] = cp
	}
	return out, nil
}

// SaveRun inserts or updates run metadata, keyed by run ID.
func (s *Store) SaveRun(ctx context.Context, r store.Run) error {
	reasons := make(map[string]int, len(r.Reasons))
	for k, v := range r.Reasons {
		reasons[k] = v
	}
	r.Reasons = reasons

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return nil
}

// Runs lists recorded runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyRecord(r record.Record) record.Record {
	out := r
	if r.DateTime != nil {
		t := *r.DateTime
		out.DateTime = &t
	}
	out.RawDate = copyString(r.RawDate)
	out.Headline = copyString(r.Headline)
	out.Author = copyString(r.Author)
	out.Text = copyString(r.Text)
	if r.TextLength != nil {
		n := *r.TextLength
		out.TextLength = &n
	}
	out.Extra = nil
	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
