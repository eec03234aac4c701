package qualify

import (
	"github.com/cognicore/qualify/pkg/qualify/config"
	"github.com/cognicore/qualify/pkg/qualify/langid"
	"github.com/cognicore/qualify/pkg/qualify/stage"
)

// NewIdentifier returns the HTTP client when a service URL is configured
// and the in-process detector otherwise.
func NewIdentifier(cfg config.Language) langid.Identifier {
	if cfg.ServiceURL != "" {
		return &langid.Client{
			BaseURL: cfg.ServiceURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}
	}
	local := langid.NewLocal()
	if cfg.MinLetters > 0 {
		local.MinLetters = cfg.MinLetters
	}
	return local
}

// DefaultStages builds the standard stage order: duplicate URLs, then the
// date range, then the language filter. cfg must be valid.
func DefaultStages(cfg config.Config, ident langid.Identifier) ([]stage.Stage, error) {
	start, end, err := cfg.Range()
	if err != nil {
		return nil, err
	}
	policy, err := stage.ParseMissingDatePolicy(cfg.MissingDate)
	if err != nil {
		return nil, err
	}
	return []stage.Stage{
		stage.Duplicate{},
		stage.DateRange{Start: start, End: end, Missing: policy},
		stage.Language{Identifier: ident, Target: cfg.Target(), Workers: cfg.Workers},
	}, nil
}
