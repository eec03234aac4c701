// Package report renders the domain summary and writes the run report.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/cognicore/qualify/pkg/qualify"
	"github.com/cognicore/qualify/pkg/qualify/summary"
)

// WriteTable writes the summary as an aligned pipe table. Widths use
// display width so domains with wide runes stay aligned.
func WriteTable(w io.Writer, rows []summary.Row) error {
	table := make([][]string, 0, len(rows)+1)
	table = append(table, summary.Headers)
	for _, r := range rows {
		table = append(table, r.Cells())
	}

	widths := make([]int, len(summary.Headers))
	for _, row := range table {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	for i, row := range table {
		if _, err := io.WriteString(w, line(row, widths)); err != nil {
			return err
		}
		if i == 0 {
			sep := make([]string, len(widths))
			for j, cw := range widths {
				sep[j] = strings.Repeat("-", cw)
			}
			if _, err := io.WriteString(w, line(sep, widths)); err != nil {
				return err
			}
		}
	}
	return nil
}

func line(cells []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for i, cell := range cells {
		sb.WriteString(" ")
		sb.WriteString(cell)
		if pad := widths[i] - runewidth.StringWidth(cell); pad > 0 {
			sb.WriteString(strings.Repeat(" ", pad))
		}
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
	return sb.String()
}

// Report is the machine-readable record of one run.
type Report struct {
	RunID       string              `json:"run_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	InputPath   string              `json:"input_path"`
	Input       int                 `json:"input"`
	Final       int                 `json:"final"`
	Excluded    int                 `json:"excluded"`
	Reasons     map[string]int      `json:"reasons"`
	Stages      []qualify.StageStat `json:"stages"`
	Summary     []summary.Row       `json:"summary"`
	Outputs     map[string]string   `json:"outputs,omitempty"`
}

// New builds a report from a finished run.
func New(runID, inputPath string, input int, res qualify.Result, at time.Time) Report {
	reasons := make(map[string]int)
	for reason, n := range res.Ledger.Counts() {
		reasons[string(reason)] = n
	}
	rows := res.Summary
	if rows == nil {
		rows = []summary.Row{}
	}
	return Report{
		RunID:       runID,
		GeneratedAt: at.UTC(),
		InputPath:   inputPath,
		Input:       input,
		Final:       len(res.Final.Records),
		Excluded:    res.Ledger.Len(),
		Reasons:     reasons,
		Stages:      res.Stats,
		Summary:     rows,
	}
}

// WriteJSON writes the report as indented JSON to path.
func WriteJSON(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
