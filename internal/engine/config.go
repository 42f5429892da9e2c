package engine

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/caprock-exchange/match-cli/internal/config"
)

// DefaultMatchConfig mirrors the documented configuration defaults.
func DefaultMatchConfig() config.MatchConfig {
	return config.MatchConfig{
		ScanMinScore:    70,
		RankMinScore:    0,
		MaxResults:      500,
		RegistryLimit:   1000,
		RequestLimit:    500,
		ScanConcurrency: 8,
	}
}

// ValidateConfig checks the matching knobs before any pipeline runs.
func ValidateConfig(c config.MatchConfig) error {
	var errs []string

	scores := map[string]int{
		"scan_min_score": c.ScanMinScore,
		"rank_min_score": c.RankMinScore,
	}
	for name, s := range scores {
		if s < 0 || s > 100 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 100", name))
		}
	}

	if c.MaxResults < 0 {
		errs = append(errs, "max_results must be >= 0")
	}
	if c.RegistryLimit <= 0 {
		errs = append(errs, "registry_limit must be > 0")
	}
	if c.RequestLimit <= 0 {
		errs = append(errs, "request_limit must be > 0")
	}
	if c.ScanConcurrency < 0 {
		errs = append(errs, "scan_concurrency must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("engine: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
