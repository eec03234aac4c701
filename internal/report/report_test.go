package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/cognicore/qualify/pkg/qualify"
	"github.com/cognicore/qualify/pkg/qualify/ledger"
	"github.com/cognicore/qualify/pkg/qualify/record"
	"github.com/cognicore/qualify/pkg/qualify/summary"
)

func TestWriteTableAligned(t *testing.T) {
	rows := []summary.Row{
		{Domain: "a.de", Total: 2, HasPaywalled: "Yes", Paywalled: 1, PctFree: "50.00%"},
		{Domain: "münchen.de", Total: 10, HasPaywalled: "No", Paywalled: 0, PctFree: "100.00%"},
		{Domain: "東京.jp", Total: 1, HasPaywalled: "No", Paywalled: 0, PctFree: "100.00%"},
	}

	var buf bytes.Buffer
	if err := WriteTable(&buf, rows); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected header, separator and 3 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "| Domain ") {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Trim(lines[1], "|- ") != "" {
		t.Errorf("separator = %q", lines[1])
	}

	want := runewidth.StringWidth(lines[0])
	for i, l := range lines {
		if got := runewidth.StringWidth(l); got != want {
			t.Errorf("line %d width %d, want %d: %q", i, got, want, l)
		}
	}
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, nil); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Errorf("empty summary should print header and separator, got %d lines", n)
	}
}

func TestWriteJSON(t *testing.T) {
	res := qualify.Result{
		Ledger: ledger.Merge(ledger.Chunk{Rows: []record.Excluded{
			{Record: record.Record{URL: "u1"}, Reason: record.ReasonDuplicate},
			{Record: record.Record{URL: "u2", Position: 1}, Reason: record.ReasonDuplicate},
		}}),
		Stats: []qualify.StageStat{{Stage: "duplicate-url", Reason: record.ReasonDuplicate, In: 3, Kept: 1, Excluded: 2}},
		Final: record.Dataset{Records: []record.Record{{URL: "u0", Domain: "a.de", Paywall: "0"}}},
	}
	res.Summary = summary.Summarize(res.Final.Records)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rep := New("01RUN", "in.jsonl", 3, res, at)
	if rep.Final != 1 || rep.Excluded != 2 || rep.Reasons["duplicate"] != 2 {
		t.Errorf("Unexpected report: %+v", rep)
	}

	path := filepath.Join(t.TempDir(), "run-report.json")
	if err := WriteJSON(path, rep); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.RunID != "01RUN" || !back.GeneratedAt.Equal(at) || len(back.Stages) != 1 || back.Summary[0].PctFree != "100.00%" {
		t.Errorf("Report did not survive JSON: %+v", back)
	}
}

func TestNewEmptySummary(t *testing.T) {
	rep := New("id", "in.csv", 0, qualify.Result{}, time.Now())
	data, err := json.Marshal(rep)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"summary":[]`) {
		t.Errorf("empty summary should marshal as an empty list: %s", data)
	}
}
