package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
	"github.com/cognicore/qualify/pkg/qualify/ledger"
	"github.com/cognicore/qualify/pkg/qualify/record"
	"github.com/cognicore/qualify/pkg/qualify/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled. Tables are
// created by the first write that needs them, so a ledger database holds
// only the ledger.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

const articlesSchema = `
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY,
	domain TEXT NOT NULL,
	url TEXT UNIQUE NOT NULL,
	date_time TEXT,
	headline TEXT,
	author TEXT,
	text TEXT,
	paywall INTEGER NOT NULL CHECK (paywall IN (0, 1)),
	text_length INTEGER NOT NULL
);
`

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	input_path TEXT,
	input_count INTEGER NOT NULL,
	final_count INTEGER NOT NULL,
	excluded_count INTEGER NOT NULL,
	reasons TEXT
);
`

// SaveArticles replaces the articles table with the normalized dataset
func (s *sqliteStore) SaveArticles(ctx context.Context, articles []record.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, articlesSchema); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO articles (id, domain, url, date_time, headline, author, text, paywall, text_length)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range articles {
		if a.TextLength == nil {
			return fmt.Errorf("%w: article %s is not normalized", internalerr.ErrSchemaViolation, a.URL)
		}
		paywall := 0
		if a.Paywall == "1" {
			paywall = 1
		}
		if _, err := stmt.ExecContext(ctx,
			a.ID,
			a.Domain,
			a.URL,
			nullable(a.Value(record.ColDateTime)),
			nullable(a.Value(record.ColHeadline)),
			nullable(a.Value(record.ColAuthor)),
			nullable(a.Value(record.ColText)),
			paywall,
			*a.TextLength,
		); err != nil {
			return fmt.Errorf("insert %s: %w", a.URL, err)
		}
	}

	return tx.Commit()
}

// LoadArticles reads a previously published dataset in id order
func (s *sqliteStore) LoadArticles(ctx context.Context) (record.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, domain, url, date_time, headline, author, text, paywall, text_length
FROM articles
ORDER BY id`)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return record.Dataset{}, fmt.Errorf("%w: no articles table", internalerr.ErrSchemaViolation)
		}
		return record.Dataset{}, err
	}
	defer rows.Close()

	ds := record.Dataset{Columns: append([]string{}, record.PublishedColumns...)}
	for rows.Next() {
		var (
			r                      record.Record
			dateTime, author, text sql.NullString
			headline               sql.NullString
			paywall, length        int
		)
		if err := rows.Scan(&r.ID, &r.Domain, &r.URL, &dateTime, &headline, &author, &text, &paywall, &length); err != nil {
			return record.Dataset{}, err
		}
		if dateTime.Valid {
			if t, err := record.ParseTime(dateTime.String); err == nil {
				r.DateTime = &t
			} else {
				r.RawDate = record.StringPtr(dateTime.String)
			}
		}
		if headline.Valid {
			r.Headline = record.StringPtr(headline.String)
		}
		if author.Valid {
			r.Author = record.StringPtr(author.String)
		}
		if text.Valid {
			r.Text = record.StringPtr(text.String)
		}
		r.Paywall = fmt.Sprintf("%d", paywall)
		r.TextLength = &length
		r.Position = len(ds.Records)
		ds.Records = append(ds.Records, r)
	}
	return ds, rows.Err()
}

// SaveLedger replaces the excluded table. Its columns are the input
// position followed by the ledger's column union; cells a row has no value
// for are stored as NULL.
func (s *sqliteStore) SaveLedger(ctx context.Context, l ledger.Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cols := make([]string, 0, len(l.Columns)+1)
	defs := make([]string, 0, len(l.Columns)+1)
	pos := l.PositionColumn()
	cols = append(cols, quoteIdent(pos))
	defs = append(defs, quoteIdent(pos)+" INTEGER NOT NULL")
	for _, c := range l.Columns {
		cols = append(cols, quoteIdent(c))
		defs = append(defs, quoteIdent(c)+" TEXT")
	}

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS excluded`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE excluded (\n\t%s\n)", strings.Join(defs, ",\n\t"))); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO excluded (%s) VALUES (%s)", strings.Join(cols, ", "), placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range l.Rows {
		args := make([]interface{}, 0, len(cols))
		args = append(args, row.Position)
		for _, c := range l.Columns {
			args = append(args, nullable(l.Value(i, c)))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert excluded %s: %w", row.URL, err)
		}
	}

	return tx.Commit()
}

// LoadLedger reads the excluded table in stored order. A nil value is a
// missing cell.
func (s *sqliteStore) LoadLedger(ctx context.Context) ([]map[string]*string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM excluded ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]*string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]*string, len(cols))
		for i, c := range cols {
			if vals[i].Valid {
				row[c] = record.StringPtr(vals[i].String)
			} else {
				row[c] = nil
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// SaveRun records run metadata
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if _, err := s.db.ExecContext(ctx, runsSchema); err != nil {
		return err
	}
	reasons, err := json.Marshal(r.Reasons)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (run_id, started_at, finished_at, input_path, input_count, final_count, excluded_count, reasons)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
	finished_at=excluded.finished_at,
	final_count=excluded.final_count,
	excluded_count=excluded.excluded_count,
	reasons=excluded.reasons;
`,
		r.ID,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.InputPath,
		r.Input,
		r.Final,
		r.Excluded,
		string(reasons),
	)
	return err
}

// Runs lists recorded runs, oldest first
func (s *sqliteStore) Runs(ctx context.Context) ([]store.Run, error) {
	if _, err := s.db.ExecContext(ctx, runsSchema); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, started_at, finished_at, input_path, input_count, final_count, excluded_count, reasons
FROM runs
ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var (
			r                 store.Run
			started, finished string
			reasons           sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.InputPath, &r.Input, &r.Final, &r.Excluded, &reasons); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if reasons.Valid && reasons.String != "" {
			if err := json.Unmarshal([]byte(reasons.String), &r.Reasons); err != nil {
				return nil, err
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullable(v string, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
