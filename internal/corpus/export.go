package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/cognicore/qualify/pkg/qualify/record"
)

// WriteCSV writes normalized records with the published header. Missing
// values are written as empty fields.
func WriteCSV(w io.Writer, records []record.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(record.PublishedColumns); err != nil {
		return err
	}
	row := make([]string, len(record.PublishedColumns))
	for _, r := range records {
		for i, c := range record.PublishedColumns {
			v, _ := r.Value(c)
			row[i] = v
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the CSV export to path, replacing any existing file.
func WriteCSVFile(path string, records []record.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
