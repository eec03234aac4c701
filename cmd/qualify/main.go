package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cognicore/qualify/internal/corpus"
	"github.com/cognicore/qualify/internal/report"
	"github.com/cognicore/qualify/pkg/qualify"
	"github.com/cognicore/qualify/pkg/qualify/config"
	"github.com/cognicore/qualify/pkg/qualify/langid"
	"github.com/cognicore/qualify/pkg/qualify/store"
	"github.com/cognicore/qualify/pkg/qualify/store/memstore"
	"github.com/cognicore/qualify/pkg/qualify/store/sqlite"
)

// Output file names inside the output directory
const (
	articlesCSV = "articles.csv"
	articlesDB  = "articles.db"
	excludedDB  = "excluded.db"
	reportJSON  = "run-report.json"
)

func main() {
	var (
		configPath   = flag.String("config", "", "YAML config file (optional)")
		inputPath    = flag.String("input", "", "Input dataset: .jsonl, .ndjson, .csv or .db")
		outputDir    = flag.String("output", "", "Output directory (default \"output\")")
		rangeStart   = flag.String("range-start", "", "First publication date kept (YYYY-MM-DD or RFC3339)")
		rangeEnd     = flag.String("range-end", "", "Last publication date kept (YYYY-MM-DD or RFC3339)")
		targetLang   = flag.String("target-lang", "", "Language code to keep (default \"de\")")
		missingDate  = flag.String("missing-date", "", "Records without a usable date: exclude or keep")
		workers      = flag.Int("workers", 0, "Concurrent language identifications (default: number of CPUs)")
		langService  = flag.String("lang-service-url", "", "Language identification endpoint (default: in-process detector)")
		langAPIKey   = flag.String("lang-api-key", "", "API key for the language service")
		langMinChars = flag.Int("lang-min-letters", 0, "Letters below which text is undetermined")
		dryRun       = flag.Bool("dry-run", false, "Qualify and print the summary without writing output files")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	applyFlags(&cfg, overrides{
		InputPath:   *inputPath,
		OutputDir:   *outputDir,
		RangeStart:  *rangeStart,
		RangeEnd:    *rangeEnd,
		TargetLang:  *targetLang,
		MissingDate: *missingDate,
		Workers:     *workers,
		ServiceURL:  *langService,
		APIKey:      *langAPIKey,
		MinLetters:  *langMinChars,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	rep, err := run(ctx, cfg, qualify.NewIdentifier(cfg.Language), os.Stdout, *dryRun)
	if err != nil {
		log.Fatalf("Qualification failed: %v", err)
	}

	log.Printf("✓ Run %s complete: %d of %d records kept, %d excluded", rep.RunID, rep.Final, rep.Input, rep.Excluded)
}

// overrides are flag values; zero values leave the config untouched
type overrides struct {
	InputPath   string
	OutputDir   string
	RangeStart  string
	RangeEnd    string
	TargetLang  string
	MissingDate string
	Workers     int
	ServiceURL  string
	APIKey      string
	MinLetters  int
}

func applyFlags(cfg *config.Config, o overrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.InputPath, o.InputPath)
	set(&cfg.OutputDir, o.OutputDir)
	set(&cfg.RangeStart, o.RangeStart)
	set(&cfg.RangeEnd, o.RangeEnd)
	set(&cfg.TargetLang, o.TargetLang)
	set(&cfg.MissingDate, o.MissingDate)
	set(&cfg.Language.ServiceURL, o.ServiceURL)
	set(&cfg.Language.APIKey, o.APIKey)
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.MinLetters > 0 {
		cfg.Language.MinLetters = o.MinLetters
	}
}

// opener opens a store at a path
type opener func(ctx context.Context, path string) (store.Store, error)

// run loads the input, qualifies it and writes every output. cfg must be
// valid. The summary table is printed to out. A dry run keeps the stores in
// memory and leaves the output directory untouched.
func run(ctx context.Context, cfg config.Config, ident langid.Identifier, out io.Writer, dryRun bool) (report.Report, error) {
	started := time.Now()
	runID := store.NewRunID(started)

	ds, err := corpus.Load(ctx, cfg.InputPath)
	if err != nil {
		return report.Report{}, err
	}
	log.Printf("Loaded %d records from %s", len(ds.Records), cfg.InputPath)

	stages, err := qualify.DefaultStages(cfg, ident)
	if err != nil {
		return report.Report{}, err
	}
	q := qualify.New(qualify.Options{Stages: stages, Logf: log.Printf})

	res, err := q.Run(ctx, ds)
	if err != nil {
		return report.Report{}, err
	}
	if len(res.Final.Records) == 0 {
		log.Printf("Warning: no records passed all filters")
	}

	rep := report.New(runID, cfg.InputPath, len(ds.Records), res, time.Now())
	meta := store.Run{
		ID:         runID,
		StartedAt:  started,
		FinishedAt: rep.GeneratedAt,
		InputPath:  cfg.InputPath,
		Input:      rep.Input,
		Final:      rep.Final,
		Excluded:   rep.Excluded,
		Reasons:    rep.Reasons,
	}

	if dryRun {
		if !res.Ledger.Empty() {
			if err := saveLedger(ctx, memstore.Open, excludedDB, res); err != nil {
				return report.Report{}, err
			}
		}
		if err := saveArticles(ctx, memstore.Open, articlesDB, res, meta); err != nil {
			return report.Report{}, err
		}
	} else if err := publish(ctx, cfg.OutputDir, res, &rep, meta); err != nil {
		return report.Report{}, err
	}

	if err := report.WriteTable(out, res.Summary); err != nil {
		return report.Report{}, fmt.Errorf("print summary: %w", err)
	}
	return rep, nil
}

// publish writes the outputs of a run into dir. The CSV, the ledger and the
// report are written to a staging directory first and moved into place only
// after articles.db was saved, so a failed run leaves dir as it was.
// articles.db is updated in place in one transaction because it keeps the
// run history.
func publish(ctx context.Context, dir string, res qualify.Result, rep *report.Report, meta store.Run) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	staging, err := os.MkdirTemp(dir, ".staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	outputs := map[string]string{
		"articles_csv": filepath.Join(dir, articlesCSV),
		"articles_db":  filepath.Join(dir, articlesDB),
		"report":       filepath.Join(dir, reportJSON),
	}
	staged := []string{articlesCSV, reportJSON}

	if err := corpus.WriteCSVFile(filepath.Join(staging, articlesCSV), res.Final.Records); err != nil {
		return err
	}
	if !res.Ledger.Empty() {
		if err := saveLedger(ctx, sqlite.OpenSQLite, filepath.Join(staging, excludedDB), res); err != nil {
			return err
		}
		outputs["excluded_db"] = filepath.Join(dir, excludedDB)
		staged = append(staged, excludedDB)
	}
	rep.Outputs = outputs
	if err := report.WriteJSON(filepath.Join(staging, reportJSON), *rep); err != nil {
		return err
	}

	if err := saveArticles(ctx, sqlite.OpenSQLite, outputs["articles_db"], res, meta); err != nil {
		return err
	}

	if res.Ledger.Empty() {
		// a ledger from an earlier run would misdescribe this one
		if err := os.Remove(filepath.Join(dir, excludedDB)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale ledger: %w", err)
		}
	}
	for _, name := range staged {
		if err := os.Rename(filepath.Join(staging, name), filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
	}
	log.Printf("Published outputs to %s", dir)
	return nil
}

func saveArticles(ctx context.Context, open opener, path string, res qualify.Result, meta store.Run) error {
	st, err := open(ctx, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer st.Close()

	if err := st.SaveArticles(ctx, res.Final.Records); err != nil {
		return fmt.Errorf("save articles: %w", err)
	}
	if err := st.SaveRun(ctx, meta); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func saveLedger(ctx context.Context, open opener, path string, res qualify.Result) error {
	st, err := open(ctx, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer st.Close()

	if err := st.SaveLedger(ctx, res.Ledger); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	log.Printf("Saved %d excluded records", res.Ledger.Len())
	return nil
}
