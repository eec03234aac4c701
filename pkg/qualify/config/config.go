package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/qualify/pkg/qualify/internalerr"
	"github.com/cognicore/qualify/pkg/qualify/record"
	"github.com/cognicore/qualify/pkg/qualify/stage"
)

// Config holds everything a qualification run needs
type Config struct {
	InputPath   string   `yaml:"input_path"`
	OutputDir   string   `yaml:"output_dir"`
	RangeStart  string   `yaml:"range_start"`
	RangeEnd    string   `yaml:"range_end"`
	TargetLang  string   `yaml:"target_lang"`
	MissingDate string   `yaml:"missing_date"`
	Workers     int      `yaml:"workers"`
	Language    Language `yaml:"language"`
}

// Language configures the language identifier. An empty ServiceURL selects
// the in-process detector.
type Language struct {
	ServiceURL string        `yaml:"service_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MinLetters int           `yaml:"min_letters"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		OutputDir:   "output",
		TargetLang:  "de",
		MissingDate: string(stage.MissingExclude),
		Language: Language{
			Timeout:    15 * time.Second,
			MinLetters: 20,
		},
	}
}

// Load reads a YAML config file on top of Default()
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Validate checks required keys and value ranges
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.InputPath) == "" {
		problems = append(problems, "input_path is required")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		problems = append(problems, "output_dir is required")
	}
	if strings.TrimSpace(c.TargetLang) == "" {
		problems = append(problems, "target_lang is required")
	}
	if _, err := stage.ParseMissingDatePolicy(c.MissingDate); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}
	if _, _, err := c.Range(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Range returns the inclusive UTC date range. A date-only range_end covers
// the whole of that day.
func (c Config) Range() (time.Time, time.Time, error) {
	if c.RangeStart == "" || c.RangeEnd == "" {
		return time.Time{}, time.Time{}, errors.New("range_start and range_end are required")
	}
	start, err := record.ParseTime(c.RangeStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("range_start: %w", err)
	}
	end, err := record.ParseTime(c.RangeEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("range_end: %w", err)
	}
	if isDateOnly(c.RangeEnd) {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("range_end %s is before range_start %s", c.RangeEnd, c.RangeStart)
	}
	return start, end, nil
}

// Target returns the normalized target language code
func (c Config) Target() string {
	return strings.ToLower(strings.TrimSpace(c.TargetLang))
}

func isDateOnly(s string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return err == nil
}
