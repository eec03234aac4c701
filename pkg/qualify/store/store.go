package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/qualify/pkg/qualify/ledger"
	"github.com/cognicore/qualify/pkg/qualify/record"
)

// Store persists the outputs of a qualification run
type Store interface {
	Close() error

	// Final dataset
	SaveArticles(ctx context.Context, articles []record.Record) error
	LoadArticles(ctx context.Context) (record.Dataset, error)

	// Exclusion ledger
	SaveLedger(ctx context.Context, l ledger.Ledger) error
	LoadLedger(ctx context.Context) ([]map[string]*string, error)

	// Run metadata
	SaveRun(ctx context.Context, r Run) error
	Runs(ctx context.Context) ([]Run, error)
}

// Run describes one execution of the pipeline
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	InputPath  string
	Input      int
	Final      int
	Excluded   int
	Reasons    map[string]int
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a lexically sortable run identifier for t
func NewRunID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
