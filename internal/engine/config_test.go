package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caprock-exchange/match-cli/internal/config"
)

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(DefaultMatchConfig()))

	tests := []struct {
		name    string
		mutate  func(cfg *config.MatchConfig)
		wantErr string
	}{
		{
			name:    "scan floor above 100",
			mutate:  func(c *config.MatchConfig) { c.ScanMinScore = 101 },
			wantErr: "scan_min_score must be between 0 and 100",
		},
		{
			name:    "negative rank floor",
			mutate:  func(c *config.MatchConfig) { c.RankMinScore = -1 },
			wantErr: "rank_min_score must be between 0 and 100",
		},
		{
			name:    "negative result cap",
			mutate:  func(c *config.MatchConfig) { c.MaxResults = -5 },
			wantErr: "max_results must be >= 0",
		},
		{
			name:    "zero registry limit",
			mutate:  func(c *config.MatchConfig) { c.RegistryLimit = 0 },
			wantErr: "registry_limit must be > 0",
		},
		{
			name:    "zero request limit",
			mutate:  func(c *config.MatchConfig) { c.RequestLimit = 0 },
			wantErr: "request_limit must be > 0",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *config.MatchConfig) { c.ScanConcurrency = -2 },
			wantErr: "scan_concurrency must be >= 0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultMatchConfig()
			tc.mutate(&cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
