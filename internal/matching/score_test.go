package matching

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

// texasRequest is a plain request with no special flags.
func texasRequest(amount int64) *FundingRequest {
	return &FundingRequest{
		ID:          "req-1",
		ProjectName: "Depot Rehabilitation",
		State:       "TX",
		Amount:      amount,
	}
}

// openMandate has no restrictive preferences and serves Texas.
func openMandate() *AllocatorMandate {
	return &AllocatorMandate{
		ID:                  "alloc-1",
		OrgID:               "org-1",
		Name:                "Lone Star Community Capital",
		Coverage:            CoverageRegional,
		States:              []string{"TX", "OK"},
		RemainingAllocation: 10_000_000,
		AllocationYears:     []int{2024},
	}
}

func TestScore_FullPass(t *testing.T) {
	// Above the small-deal threshold so every criterion can fire.
	result := Score(texasRequest(6_000_000), openMandate())

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, TierExcellent, result.Tier)
	require.Len(t, result.Breakdown, TotalCriteria)
	for name, v := range result.Breakdown {
		assert.Equal(t, 1, v, "criterion %s", name)
	}
	assert.False(t, result.Eliminated())
	assert.Contains(t, result.Reasons, "Serves TX")
}

func TestScore_GeographicElimination(t *testing.T) {
	m := &AllocatorMandate{
		ID:       "alloc-ny",
		OrgID:    "org-ny",
		Coverage: CoverageRegional,
		States:   []string{"NY", "NJ"},
	}
	req := &FundingRequest{ID: "req-ca", State: "CA", Amount: 1_000_000}

	result := Score(req, m)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, TierWeak, result.Tier)
	assert.Equal(t, []string{"Does not serve CA"}, result.Reasons)
	assert.Equal(t, map[string]int{CritGeographic: 0}, result.Breakdown)
	assert.True(t, result.Eliminated())
}

func TestScore_FinancingMismatch(t *testing.T) {
	m := openMandate()
	m.Coverage = CoverageNational
	m.FinancingTypes = "Real Estate"

	req := texasRequest(1_000_000)
	req.OwnerOccupied = boolPtr(false)
	req.FinancingCategory = "business"

	result := Score(req, m)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, []string{"Financing type mismatch"}, result.Reasons)
	assert.Equal(t, map[string]int{CritGeographic: 1, CritFinancing: 0}, result.Breakdown)
	assert.True(t, result.Eliminated())
}

func TestScore_BreakdownCardinalityAndFormula(t *testing.T) {
	// A spread of pairs with varying hit counts; every non-eliminated result
	// must carry exactly 15 binary entries and score round(ones/15*100).
	restrictive := openMandate()
	restrictive.MinorityFocus = true
	restrictive.TribalFocus = true
	restrictive.RequiresSevereDistress = true
	restrictive.MinDistressPercentile = 80
	restrictive.UnderservedFocus = true
	restrictive.RuralFocus = true
	restrictive.RemainingAllocation = 0

	pairs := []struct {
		name string
		req  *FundingRequest
		m    *AllocatorMandate
	}{
		{"open mandate", texasRequest(6_000_000), openMandate()},
		{"small deal", texasRequest(2_000_000), openMandate()},
		{"restrictive mandate", texasRequest(1_000_000), restrictive},
		{"flagged request", &FundingRequest{
			State: "TX", Amount: 6_000_000,
			Nonprofit: true, MinorityOwned: true, Tribal: true,
			SeverelyDistressed: true, DistressPercentile: 95,
			UnderservedGeography: true,
		}, restrictive},
	}

	for _, tc := range pairs {
		t.Run(tc.name, func(t *testing.T) {
			result := Score(tc.req, tc.m)

			require.Len(t, result.Breakdown, TotalCriteria)
			ones := 0
			for name, v := range result.Breakdown {
				assert.Contains(t, []int{0, 1}, v, "criterion %s", name)
				ones += v
			}
			want := int(math.Round(float64(ones) / TotalCriteria * 100))
			assert.Equal(t, want, result.Score)
			assert.GreaterOrEqual(t, result.Score, 0)
			assert.LessOrEqual(t, result.Score, 100)
			assert.Equal(t, TierForScore(result.Score), result.Tier)
		})
	}
}

func TestScore_SmallDealThresholdExact(t *testing.T) {
	noFund := openMandate()
	withFund := openMandate()
	withFund.SmallDealFund = true

	tests := []struct {
		name   string
		amount int64
		m      *AllocatorMandate
		want   int
	}{
		{"at threshold without fund", 5_000_000, noFund, 0},
		{"at threshold with fund", 5_000_000, withFund, 1},
		{"above threshold without fund", 5_000_001, noFund, 1},
		{"above threshold with fund", 5_000_001, withFund, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Score(texasRequest(tc.amount), tc.m)
			assert.Equal(t, tc.want, result.Breakdown[CritSmallDealFund])
		})
	}
}

func TestScore_DealSizeRangeInclusive(t *testing.T) {
	m := openMandate()
	m.MinDealSize = 1_000_000
	m.MaxDealSize = 8_000_000

	tests := []struct {
		name   string
		amount int64
		want   int
	}{
		{"below min", 999_999, 0},
		{"at min", 1_000_000, 1},
		{"inside range", 4_000_000, 1},
		{"at max", 8_000_000, 1},
		{"above max", 8_000_001, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Score(texasRequest(tc.amount), m)
			assert.Equal(t, tc.want, result.Breakdown[CritDealSize])
		})
	}
}

func TestScore_UnboundedMaxDealSize(t *testing.T) {
	m := openMandate()
	m.MinDealSize = 1_000_000

	result := Score(texasRequest(500_000_000), m)
	assert.Equal(t, 1, result.Breakdown[CritDealSize])
}

func TestScore_UnderservedHonorsEveryMandateYear(t *testing.T) {
	// AZ is on the underserved list for 2024 only.
	m := openMandate()
	m.Coverage = CoverageNational
	m.UnderservedFocus = true
	m.AllocationYears = []int{2023, 2024}

	req := texasRequest(1_000_000)
	req.State = "AZ"

	result := Score(req, m)
	assert.Equal(t, 1, result.Breakdown[CritUnderservedGeo])

	m.AllocationYears = []int{2023}
	result = Score(req, m)
	assert.Equal(t, 0, result.Breakdown[CritUnderservedGeo])
}

func TestScore_DocumentedDefaults(t *testing.T) {
	t.Run("missing owner-occupied defaults true", func(t *testing.T) {
		m := openMandate()
		m.OwnerOccupiedPref = true
		result := Score(texasRequest(1_000_000), m)
		assert.Equal(t, 1, result.Breakdown[CritOwnerOccupied])
	})

	t.Run("missing accepts-for-profit defaults true", func(t *testing.T) {
		result := Score(texasRequest(1_000_000), openMandate())
		assert.Equal(t, 1, result.Breakdown[CritEntityType])
	})

	t.Run("for-profit rejected when mandate declines", func(t *testing.T) {
		m := openMandate()
		m.AcceptsForProfit = boolPtr(false)
		result := Score(texasRequest(1_000_000), m)
		assert.Equal(t, 0, result.Breakdown[CritEntityType])
	})

	t.Run("empty allocation tiers agree as federal", func(t *testing.T) {
		result := Score(texasRequest(1_000_000), openMandate())
		assert.Equal(t, 1, result.Breakdown[CritAllocationType])
	})

	t.Run("mismatched tiers fail", func(t *testing.T) {
		m := openMandate()
		m.AllocationTier = AllocationState
		req := texasRequest(1_000_000)
		req.AllocationTier = AllocationFederal
		result := Score(req, m)
		assert.Equal(t, 0, result.Breakdown[CritAllocationType])
	})

	t.Run("unclassified request fails a rural-focused mandate", func(t *testing.T) {
		m := openMandate()
		m.RuralFocus = true
		result := Score(texasRequest(1_000_000), m)
		assert.Equal(t, 0, result.Breakdown[CritUrbanRural])
	})
}

func TestScore_TotalOnEmptyRecords(t *testing.T) {
	// Fully empty inputs still produce a valid, bounded result.
	result := Score(&FundingRequest{}, &AllocatorMandate{})

	assert.GreaterOrEqual(t, result.Score, 0)
	assert.LessOrEqual(t, result.Score, 100)
	assert.NotEmpty(t, result.Breakdown)
	assert.Equal(t, TierForScore(result.Score), result.Tier)
}

func TestScore_SectorCriterion(t *testing.T) {
	tests := []struct {
		name     string
		category string
		sectors  []string
		market   string
		want     int
	}{
		{"no target sectors pass", "housing", nil, "", 1},
		{"no category passes open", "", []string{"manufacturing"}, "", 1},
		{"containment forward", "affordable housing", []string{"housing"}, "", 1},
		{"containment reverse", "housing", []string{"affordable housing"}, "", 1},
		{"market mention", "manufacturing", []string{"retail"}, "Manufacturing corridor of the Midwest", 1},
		{"no overlap", "hospitality", []string{"manufacturing"}, "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := openMandate()
			m.TargetSectors = tc.sectors
			m.PredominantMarket = tc.market
			req := texasRequest(1_000_000)
			req.ProjectCategory = tc.category

			result := Score(req, m)
			assert.Equal(t, tc.want, result.Breakdown[CritSector])
		})
	}
}
