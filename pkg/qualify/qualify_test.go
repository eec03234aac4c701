package qualify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cognicore/qualify/pkg/qualify/config"
	"github.com/cognicore/qualify/pkg/qualify/internalerr"
	"github.com/cognicore/qualify/pkg/qualify/langid"
	"github.com/cognicore/qualify/pkg/qualify/record"
	"github.com/cognicore/qualify/pkg/qualify/stage"
)

func day(s string) *time.Time {
	t, err := record.ParseTime(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func article(url, domain string, at *time.Time, text, paywall string) record.Record {
	return record.Record{
		Domain:   domain,
		URL:      url,
		DateTime: at,
		Headline: record.StringPtr("headline " + url),
		Text:     record.StringPtr(text),
		Paywall:  paywall,
	}
}

func dataset(records ...record.Record) record.Dataset {
	return record.Dataset{Columns: append([]string{}, record.RequiredColumns...), Records: records}
}

// prefixIdentifier reports the language named before the first colon.
func prefixIdentifier() langid.Identifier {
	return langid.Func(func(ctx context.Context, text string) (langid.Result, error) {
		code, _, ok := strings.Cut(text, ":")
		if !ok {
			return langid.Undetected(), nil
		}
		return langid.Result{Code: code, Outcome: langid.Detected, Confidence: 1}, nil
	})
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.InputPath = "in.jsonl"
	cfg.RangeStart = "2025-01-01"
	cfg.RangeEnd = "2025-02-23"
	return cfg
}

func newQualifier(t *testing.T, cfg config.Config, ident langid.Identifier) *Qualifier {
	t.Helper()
	stages, err := DefaultStages(cfg, ident)
	if err != nil {
		t.Fatalf("DefaultStages: %v", err)
	}
	return New(Options{Stages: stages})
}

func urls(records []record.Record) string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.URL
	}
	return strings.Join(out, ",")
}

func TestDuplicateBeatsDateRange(t *testing.T) {
	q := newQualifier(t, testConfig(), prefixIdentifier())
	res, err := q.Run(context.Background(), dataset(
		article("A", "a.de", day("2025-02-01"), "de: eins", "0"),
		article("A", "a.de", day("2099-01-01"), "de: zwei", "0"),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Final.Records) != 1 || !res.Final.Records[0].DateTime.Equal(*day("2025-02-01")) {
		t.Fatalf("final = %+v", res.Final.Records)
	}
	if res.Ledger.Len() != 1 {
		t.Fatalf("ledger has %d rows", res.Ledger.Len())
	}
	row := res.Ledger.Rows[0]
	if row.Reason != record.ReasonDuplicate || !row.DateTime.Equal(*day("2099-01-01")) {
		t.Errorf("ledger row = %s %v, want duplicate dated 2099", row.Reason, row.DateTime)
	}
}

func TestRunEndToEnd(t *testing.T) {
	q := newQualifier(t, testConfig(), prefixIdentifier())
	in := dataset(
		article("a1", "a.de", day("2025-01-01"), "de: erster", "true"),
		article("a1", "a.de", day("2025-01-02"), "de: doppelt", "false"),
		article("a2", "a.de", day("2025-02-23T23:59:59Z"), "de: letzter", "0"),
		article("b1", "b.de", day("2024-12-31T23:59:59Z"), "de: zu früh", "0"),
		article("b2", "b.de", nil, "de: ohne datum", "0"),
		article("c1", "c.com", day("2025-01-15"), "en: english", "1"),
		article("c2", "c.com", day("2025-01-16"), "kurz", "1"),
		article("d1", "d.de", day("2025-01-20"), "de: hinter der schranke", "1.0"),
	)

	res, err := q.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := urls(res.Final.Records); got != "a1,a2,d1" {
		t.Errorf("final = %s", got)
	}
	for i, r := range res.Final.Records {
		if r.ID != i+1 {
			t.Errorf("record %s has id %d, want %d", r.URL, r.ID, i+1)
		}
	}

	counts := res.Ledger.Counts()
	want := map[record.Reason]int{
		record.ReasonDuplicate:      1,
		record.ReasonOutOfDateRange: 2,
		"non_german":                2,
	}
	for reason, n := range want {
		if counts[reason] != n {
			t.Errorf("%s: %d, want %d", reason, counts[reason], n)
		}
	}

	// union: detected_language exists only for language exclusions
	for i, row := range res.Ledger.Rows {
		v, ok := res.Ledger.Value(i, stage.DetailDetectedLanguage)
		if row.Reason == "non_german" {
			if !ok {
				t.Errorf("%s: missing detected_language", row.URL)
			}
			if row.URL == "c2" && v != langid.Unknown {
				t.Errorf("undetermined text should be recorded as unknown, got %q", v)
			}
		} else if ok {
			t.Errorf("%s: detected_language should be missing for %s", row.URL, row.Reason)
		}
	}
	if cols := res.Ledger.Columns; cols[len(cols)-1] != record.ColReason {
		t.Errorf("exclusion_reason should be the last ledger column: %v", cols)
	}

	if len(res.Summary) != 2 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if s := res.Summary[0]; s.Domain != "a.de" || s.Total != 2 || s.Paywalled != 1 || s.PctFree != "50.00%" {
		t.Errorf("a.de summary = %+v", s)
	}
	if s := res.Summary[1]; s.Domain != "d.de" || s.HasPaywalled != "Yes" || s.PctFree != "0.00%" {
		t.Errorf("d.de summary = %+v", s)
	}

	wantStats := []string{"duplicate-url:8/7/1", "date-range:7/5/2", "language:5/3/2"}
	for i, s := range res.Stats {
		if got := fmt.Sprintf("%s:%d/%d/%d", s.Stage, s.In, s.Kept, s.Excluded); got != wantStats[i] {
			t.Errorf("stat %d = %s, want %s", i, got, wantStats[i])
		}
	}
}

func TestRunConservation(t *testing.T) {
	q := newQualifier(t, testConfig(), prefixIdentifier())
	var records []record.Record
	for i := 0; i < 60; i++ {
		text := "de: text"
		if i%4 == 0 {
			text = "fr: texte"
		}
		at := day("2025-01-10")
		if i%5 == 0 {
			at = day("2026-01-10")
		}
		records = append(records, article(fmt.Sprintf("u%d", i%45), "x.de", at, text, "0"))
	}

	res, err := q.Run(context.Background(), dataset(records...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Final.Records)+res.Ledger.Len() != len(records) {
		t.Errorf("%d final + %d excluded != %d input", len(res.Final.Records), res.Ledger.Len(), len(records))
	}

	seen := make(map[int]bool)
	for _, r := range res.Final.Records {
		seen[r.Position] = true
	}
	for _, r := range res.Ledger.Rows {
		if seen[r.Position] {
			t.Errorf("position %d in both final dataset and ledger", r.Position)
		}
		seen[r.Position] = true
	}
	if len(seen) != len(records) {
		t.Errorf("%d positions accounted for, want %d", len(seen), len(records))
	}
}

func TestRunEmptyResult(t *testing.T) {
	q := newQualifier(t, testConfig(), prefixIdentifier())
	res, err := q.Run(context.Background(), dataset(
		article("a", "a.de", day("2030-01-01"), "de: später", "0"),
	))
	if err != nil {
		t.Fatalf("empty result is not an error: %v", err)
	}
	if len(res.Final.Records) != 0 || len(res.Summary) != 0 {
		t.Errorf("expected empty output, got %+v", res)
	}
	if strings.Join(res.Final.Columns, ",") != strings.Join(record.PublishedColumns, ",") {
		t.Errorf("final columns = %v", res.Final.Columns)
	}
}

func TestRunNoExclusions(t *testing.T) {
	q := newQualifier(t, testConfig(), prefixIdentifier())
	res, err := q.Run(context.Background(), dataset(
		article("a", "a.de", day("2025-01-05"), "de: gut", "0"),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Ledger.Empty() {
		t.Errorf("ledger should be empty, got %d rows", res.Ledger.Len())
	}
}

func TestRunSchemaViolation(t *testing.T) {
	called := false
	ident := langid.Func(func(ctx context.Context, text string) (langid.Result, error) {
		called = true
		return langid.Result{Code: "de"}, nil
	})
	q := newQualifier(t, testConfig(), ident)

	ds := dataset(article("a", "a.de", day("2025-01-05"), "de: gut", "0"))
	ds.Columns = []string{record.ColURL, record.ColDomain}
	_, err := q.Run(context.Background(), ds)
	if !errors.Is(err, internalerr.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
	if called {
		t.Error("no stage should run on a schema violation")
	}
}

func TestRunClassificationUnavailable(t *testing.T) {
	ident := langid.Func(func(ctx context.Context, text string) (langid.Result, error) {
		return langid.Result{}, errors.New("connection refused")
	})
	q := newQualifier(t, testConfig(), ident)

	_, err := q.Run(context.Background(), dataset(
		article("a", "a.de", day("2025-01-05"), "de: gut", "0"),
	))
	if !errors.Is(err, internalerr.ErrClassificationUnavailable) {
		t.Fatalf("expected ErrClassificationUnavailable, got %v", err)
	}
}

func TestRunInvalidPaywall(t *testing.T) {
	q := newQualifier(t, testConfig(), prefixIdentifier())
	_, err := q.Run(context.Background(), dataset(
		article("a", "a.de", day("2025-01-05"), "de: gut", "maybe"),
	))
	if !errors.Is(err, internalerr.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestRunMissingDateKeep(t *testing.T) {
	cfg := testConfig()
	cfg.MissingDate = string(stage.MissingKeep)
	q := newQualifier(t, cfg, prefixIdentifier())

	res, err := q.Run(context.Background(), dataset(
		article("a", "a.de", nil, "de: ohne datum", "0"),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Final.Records) != 1 {
		t.Errorf("record without date should be kept, ledger: %+v", res.Ledger.Rows)
	}
}

func TestRunKeepsUnparsedDateText(t *testing.T) {
	unparsed := func(url string) record.Record {
		r := article(url, "a.de", nil, "de: datum", "0")
		r.RawDate = record.StringPtr("01.02.2025 10:00")
		return r
	}

	res, err := newQualifier(t, testConfig(), prefixIdentifier()).Run(context.Background(), dataset(unparsed("A")))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Ledger.Len() != 1 || res.Ledger.Rows[0].Reason != record.ReasonOutOfDateRange {
		t.Fatalf("ledger = %+v", res.Ledger.Rows)
	}
	if v, ok := res.Ledger.Value(0, record.ColDateTime); !ok || v != "01.02.2025 10:00" {
		t.Errorf("ledger date_time = %q, %v", v, ok)
	}

	cfg := testConfig()
	cfg.MissingDate = string(stage.MissingKeep)
	res, err = newQualifier(t, cfg, prefixIdentifier()).Run(context.Background(), dataset(unparsed("B")))
	if err != nil {
		t.Fatalf("Run keep: %v", err)
	}
	if len(res.Final.Records) != 1 {
		t.Fatalf("final = %+v", res.Final.Records)
	}
	if v, ok := res.Final.Records[0].Value(record.ColDateTime); !ok || v != "01.02.2025 10:00" {
		t.Errorf("published date_time = %q, %v", v, ok)
	}
}

// leakyStage drops records instead of excluding them.
type leakyStage struct{}

func (leakyStage) Name() string          { return "leaky" }
func (leakyStage) Reason() record.Reason { return "leaked" }
func (leakyStage) Apply(_ context.Context, in []record.Record) (stage.Result, error) {
	return stage.Result{Kept: in[1:]}, nil
}

func TestRunDetectsLostRecords(t *testing.T) {
	q := New(Options{Stages: []stage.Stage{leakyStage{}}})
	_, err := q.Run(context.Background(), dataset(
		article("a", "a.de", day("2025-01-05"), "x", "0"),
		article("b", "a.de", day("2025-01-05"), "x", "0"),
	))
	if !errors.Is(err, internalerr.ErrConservation) {
		t.Fatalf("expected ErrConservation, got %v", err)
	}
}

func TestRunLogsStages(t *testing.T) {
	stages, err := DefaultStages(testConfig(), prefixIdentifier())
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	q := New(Options{
		Stages: stages,
		Logf: func(format string, args ...any) {
			lines = append(lines, fmt.Sprintf(format, args...))
		},
	})
	if _, err := q.Run(context.Background(), dataset(article("a", "a.de", day("2025-01-05"), "de: gut", "0"))); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 3 || !strings.Contains(lines[2], "non_german") {
		t.Errorf("log lines = %q", lines)
	}
}

func TestNewIdentifier(t *testing.T) {
	if _, ok := NewIdentifier(config.Language{}).(*langid.Local); !ok {
		t.Error("empty service URL should select the local detector")
	}
	local := NewIdentifier(config.Language{MinLetters: 5}).(*langid.Local)
	if local.MinLetters != 5 {
		t.Errorf("MinLetters = %d", local.MinLetters)
	}
	client, ok := NewIdentifier(config.Language{ServiceURL: "http://lang.test", Timeout: time.Second}).(*langid.Client)
	if !ok || client.BaseURL != "http://lang.test" || client.Timeout != time.Second {
		t.Errorf("expected configured client, got %#v", client)
	}
}
