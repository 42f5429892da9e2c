package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/caprock-exchange/match-cli/internal/engine"
	"github.com/caprock-exchange/match-cli/internal/matching"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0", formatMoney(0))
	assert.Equal(t, "5,000,000", formatMoney(5_000_000))
	assert.Equal(t, "12,345,678", formatMoney(12_345_678))
}

func sampleRankReport() *engine.RankReport {
	return &engine.RankReport{
		RequestID: "req-1",
		Source:    engine.SourceLocal,
		Matches: []matching.RankedMatch{
			{
				AllocatorID:         "alloc-1",
				OrgID:               "org-1",
				AllocatorName:       "Lone Star Community Capital",
				Score:               87,
				Tier:                matching.TierExcellent,
				RemainingAllocation: 12_500_000,
				Reasons:             []string{"Serves TX", "Sector aligned"},
			},
			{
				AllocatorID:   "alloc-2",
				OrgID:         "org-2",
				AllocatorName: "Gulf Coast Fund",
				Score:         66,
				Tier:          matching.TierGood,
			},
		},
	}
}

func sampleScanReport() *engine.ScanReport {
	return &engine.ScanReport{
		ScanID: uuid.New(),
		OrgID:  "org-1",
		Matches: []matching.RequestMatch{
			{RequestID: "req-1", ProjectName: "Depot Rehab", State: "TX",
				Amount: 6_000_000, Score: 93, Tier: matching.TierExcellent,
				Reasons: []string{"Serves TX"}},
			{RequestID: "req-2", ProjectName: "Clinic Expansion", State: "OK",
				Amount: 2_000_000, Score: 73, Tier: matching.TierGood},
		},
	}
}

func writeToTempFile(t *testing.T, write func(*os.File) error) string {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.NoError(t, write(f))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return string(data)
}

func TestWriteRankedCSV(t *testing.T) {
	report := sampleRankReport()
	out := writeToTempFile(t, func(f *os.File) error { return writeRankedCSV(f, report) })

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"allocator_id", "org_id", "allocator_name", "score", "tier",
		"remaining_allocation", "reasons"}, records[0])
	assert.Equal(t, []string{"alloc-1", "org-1", "Lone Star Community Capital", "87",
		"excellent", "12500000", "Serves TX; Sector aligned"}, records[1])
	assert.Equal(t, "", records[2][6], "no reasons renders an empty column")
}

func TestWriteRankedTable(t *testing.T) {
	report := sampleRankReport()
	out := writeToTempFile(t, func(f *os.File) error { return writeRankedTable(f, report) })

	assert.Contains(t, out, "Request req-1 (local)")
	assert.Contains(t, out, "alloc-1")
	assert.Contains(t, out, "12,500,000")
	assert.Contains(t, out, "excellent")
}

func TestWriteRankedTable_TruncatesLongNames(t *testing.T) {
	report := &engine.RankReport{
		RequestID: "req-1",
		Source:    engine.SourceLocal,
		Matches: []matching.RankedMatch{
			{AllocatorID: "alloc-1", AllocatorName: strings.Repeat("x", 60),
				Score: 50, Tier: matching.TierFair},
		},
	}
	out := writeToTempFile(t, func(f *os.File) error { return writeRankedTable(f, report) })

	assert.Contains(t, out, strings.Repeat("x", 37)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 41))
}

func TestWriteScanCSV(t *testing.T) {
	report := sampleScanReport()
	out := writeToTempFile(t, func(f *os.File) error { return writeScanCSV(f, report) })

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"req-1", "Depot Rehab", "TX", "6000000", "93",
		"excellent", "Serves TX"}, records[1])
}

func TestWriteScanTable(t *testing.T) {
	report := sampleScanReport()
	out := writeToTempFile(t, func(f *os.File) error { return writeScanTable(f, report) })

	assert.Contains(t, out, "Org org-1, scan "+report.ScanID.String())
	assert.Contains(t, out, "6,000,000")
	assert.Contains(t, out, "req-2")
}

func TestWriteScanXLSX(t *testing.T) {
	report := sampleScanReport()
	path := filepath.Join(t.TempDir(), "scan.xlsx")
	require.NoError(t, writeScanXLSX(report, path))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "Scan Results", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Request", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "req-1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "6000000", sheet.Rows[1].Cells[3].String())
}

func TestOutputRankedMatches_UnsupportedFormat(t *testing.T) {
	err := outputRankedMatches(sampleRankReport(), "toml", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported format "toml"`)
}
