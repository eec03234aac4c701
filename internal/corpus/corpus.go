// Package corpus reads article datasets from disk and writes the published
// CSV export.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
	"github.com/cognicore/qualify/pkg/qualify/record"
	"github.com/cognicore/qualify/pkg/qualify/store/sqlite"
)

// maxLineSize bounds a single JSONL line. Article bodies can be long.
const maxLineSize = 64 * 1024 * 1024

// derived columns are recomputed by normalization and not read back
var derived = map[string]bool{
	record.ColID:         true,
	record.ColTextLength: true,
}

// Load reads a dataset from a .jsonl/.ndjson, .csv or .db file. Records
// keep input order and Position is their index. Columns lists the required
// columns first, then any extra columns in name order.
func Load(ctx context.Context, path string) (record.Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return record.Dataset{}, fmt.Errorf("%w: %s", internalerr.ErrMissingInput, path)
		}
		return record.Dataset{}, fmt.Errorf("read file %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return record.Dataset{}, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson":
		return loadJSONL(path)
	case ".csv":
		return loadCSV(path)
	case ".db", ".sqlite", ".sqlite3":
		return loadDB(ctx, path)
	default:
		return record.Dataset{}, fmt.Errorf("%w: unsupported input format %q", internalerr.ErrMissingInput, ext)
	}
}

func loadJSONL(path string) (record.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return record.Dataset{}, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()

	var (
		rows []map[string]*string
		seen = map[string]bool{}
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var obj map[string]interface{}
		if err := dec.Decode(&obj); err != nil {
			return record.Dataset{}, fmt.Errorf("%w: %s line %d: %v", internalerr.ErrSchemaViolation, path, line, err)
		}

		row := make(map[string]*string, len(obj))
		for k, v := range obj {
			col := canonical(k)
			if derived[col] {
				continue
			}
			row[col] = jsonCell(v)
			seen[col] = true
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return record.Dataset{}, fmt.Errorf("read file %s: %w", path, err)
	}

	return build(columnOrder(seen), rows)
}

func loadCSV(path string) (record.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return record.Dataset{}, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return record.Dataset{}, fmt.Errorf("%w: %s has no header row", internalerr.ErrSchemaViolation, path)
	}
	if err != nil {
		return record.Dataset{}, fmt.Errorf("%w: %s: %v", internalerr.ErrSchemaViolation, path, err)
	}

	cols := make([]string, len(header))
	seen := map[string]bool{}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		cols[i] = canonical(h)
		if seen[cols[i]] {
			return record.Dataset{}, fmt.Errorf("%w: duplicate column %q", internalerr.ErrSchemaViolation, cols[i])
		}
		seen[cols[i]] = true
	}
	for c := range derived {
		delete(seen, c)
	}

	var rows []map[string]*string
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return record.Dataset{}, fmt.Errorf("%w: %s: %v", internalerr.ErrSchemaViolation, path, err)
		}
		row := make(map[string]*string, len(cols))
		for i, c := range cols {
			// CSV has no null: an empty or absent field is a missing value
			if derived[c] || i >= len(fields) || fields[i] == "" {
				continue
			}
			row[c] = record.StringPtr(fields[i])
		}
		rows = append(rows, row)
	}

	return build(columnOrder(seen), rows)
}

func loadDB(ctx context.Context, path string) (record.Dataset, error) {
	st, err := sqlite.OpenSQLite(ctx, path)
	if err != nil {
		return record.Dataset{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer st.Close()

	ds, err := st.LoadArticles(ctx)
	if err != nil {
		return record.Dataset{}, err
	}
	// reload as raw input: derived values are recomputed downstream
	cols := make([]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		if !derived[c] {
			cols = append(cols, c)
		}
	}
	ds.Columns = columnOrder(toSet(cols))
	for i := range ds.Records {
		ds.Records[i].ID = 0
		ds.Records[i].TextLength = nil
	}
	return ds, nil
}

// build validates the column set and converts raw rows into records.
func build(cols []string, rows []map[string]*string) (record.Dataset, error) {
	ds := record.Dataset{Columns: cols}
	if err := ds.ValidateColumns(); err != nil {
		return record.Dataset{}, err
	}

	ds.Records = make([]record.Record, 0, len(rows))
	for i, row := range rows {
		r := record.Record{
			Position: i,
			Domain:   text(row[record.ColDomain]),
			URL:      text(row[record.ColURL]),
			Headline: row[record.ColHeadline],
			Author:   row[record.ColAuthor],
			Text:     row[record.ColText],
			Paywall:  text(row[record.ColPaywall]),
		}
		if v := row[record.ColDateTime]; v != nil {
			// unparseable timestamps count as missing but keep their text
			if t, err := record.ParseTime(*v); err == nil {
				r.DateTime = &t
			} else {
				r.RawDate = v
			}
		}
		for c, v := range row {
			if isCore(c) {
				continue
			}
			if r.Extra == nil {
				r.Extra = make(map[string]*string)
			}
			r.Extra[c] = v
		}
		ds.Records = append(ds.Records, r)
	}
	return ds, nil
}

// jsonCell renders a decoded JSON value as cell text. null is missing.
func jsonCell(v interface{}) *string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return record.StringPtr(x)
	case bool:
		if x {
			return record.StringPtr("true")
		}
		return record.StringPtr("false")
	case json.Number:
		return record.StringPtr(x.String())
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return record.StringPtr(fmt.Sprint(x))
		}
		return record.StringPtr(string(b))
	}
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func text(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func isCore(col string) bool {
	for _, c := range record.RequiredColumns {
		if c == col {
			return true
		}
	}
	return false
}

func toSet(cols []string) map[string]bool {
	out := make(map[string]bool, len(cols))
	for _, c := range cols {
		out[c] = true
	}
	return out
}

// columnOrder puts present required columns first, then extras by name.
func columnOrder(seen map[string]bool) []string {
	var cols, extra []string
	for _, c := range record.RequiredColumns {
		if seen[c] {
			cols = append(cols, c)
		}
	}
	for c := range seen {
		if !isCore(c) {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}
