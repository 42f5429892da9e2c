package matching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForScore_Boundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Tier
	}{
		{100, TierExcellent},
		{80, TierExcellent},
		{79, TierGood},
		{65, TierGood},
		{64, TierFair},
		{50, TierFair},
		{49, TierWeak},
		{0, TierWeak},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, TierForScore(tc.score), "score %d", tc.score)
	}
}

func TestIsUnderserved(t *testing.T) {
	tests := []struct {
		name  string
		state string
		years []int
		want  bool
	}{
		{"listed in a covered year", "TX", []int{2024}, true},
		{"full name resolves", "Texas", []int{2024}, true},
		{"listed only in one of several years", "AZ", []int{2023, 2024}, true},
		{"not listed in the covered year", "AZ", []int{2023}, false},
		{"never listed", "CA", []int{2020, 2021, 2022, 2023, 2024}, false},
		{"unresolvable state", "Atlantis", []int{2024}, false},
		{"no years", "TX", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUnderserved(tc.state, tc.years))
		})
	}
}

func TestLoadUnderservedFile(t *testing.T) {
	original := underservedByYear
	t.Cleanup(func() { underservedByYear = original })

	path := filepath.Join(t.TempDir(), "underserved.yaml")
	require.NoError(t, os.WriteFile(path, []byte("2025: [AK, Texas]\n2026: [AK]\n"), 0o644))

	require.NoError(t, LoadUnderservedFile(path))

	assert.True(t, IsUnderserved("TX", []int{2025}), "full names resolve to codes on load")
	assert.True(t, IsUnderserved("AK", []int{2026}))
	assert.False(t, IsUnderserved("TX", []int{2026}))
	assert.False(t, IsUnderserved("TX", []int{2024}), "override replaces the built-in lists")
	assert.ElementsMatch(t, []int{2025, 2026}, UnderservedYears())
}

func TestLoadUnderservedFile_Errors(t *testing.T) {
	original := underservedByYear
	t.Cleanup(func() { underservedByYear = original })

	t.Run("missing file", func(t *testing.T) {
		err := LoadUnderservedFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("unknown state", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("2025: [ZZ]\n"), 0o644))
		err := LoadUnderservedFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown state")
	})

	t.Run("empty mapping", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
		err := LoadUnderservedFile(path)
		require.Error(t, err)
	})
}
