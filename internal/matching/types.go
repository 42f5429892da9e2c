// Package matching implements the deal/allocator match rubric: two hard
// eliminators followed by a fixed table of 15 binary criteria aggregated into
// a 0-100 score. The package is pure computation over in-memory records; it
// performs no I/O so the remote scoring service and the local fallback can
// share it without drift.
package matching

// Tier buckets a numeric score for display.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierWeak      Tier = "weak"
)

// Coverage is an allocator's geographic coverage mode.
type Coverage string

const (
	CoverageNational Coverage = "national"
	CoverageRegional Coverage = "regional"
	CoverageState    Coverage = "state"
)

// Allocation tiers. A missing tier on either side defaults to federal.
const (
	AllocationFederal = "federal"
	AllocationState   = "state"
)

// Criterion names as they appear in MatchResult.Breakdown. The scorer emits
// exactly this set for any non-eliminated pair.
const (
	CritGeographic         = "geographic"
	CritFinancing          = "financing"
	CritUrbanRural         = "urbanRural"
	CritSector             = "sector"
	CritDealSize           = "dealSize"
	CritSmallDealFund      = "smallDealFund"
	CritSeverelyDistressed = "severelyDistressed"
	CritDistressPercentile = "distressPercentile"
	CritMinorityFocus      = "minorityFocus"
	CritUnderservedGeo     = "underservedGeographyFocus"
	CritEntityType         = "entityType"
	CritOwnerOccupied      = "ownerOccupied"
	CritTribal             = "tribal"
	CritAllocationType     = "allocationType"
	CritHasAllocation      = "hasAllocation"
)

// FundingRequest is a sponsor's project seeking capital. It is read from
// storage by the caller and immutable for the duration of a match
// computation. Optional fields use pointers; their documented defaults are
// applied by the scorer, never by mutation.
type FundingRequest struct {
	ID              string `json:"id"`
	ProjectName     string `json:"project_name"`
	State           string `json:"state"`        // two-letter code or full name
	ProjectCategory string `json:"project_category"`
	ProjectType     string `json:"project_type"` // stated project type, free text
	Amount          int64  `json:"amount"`

	// OwnerOccupied defaults to true when nil: owner-occupied projects are
	// financeable under either financing posture.
	OwnerOccupied *bool `json:"owner_occupied,omitempty"`

	// FinancingCategory is the explicit real-estate vs. operating-business
	// classification ("real_estate", "business", or empty for unknown).
	FinancingCategory string `json:"financing_category,omitempty"`

	// Rural is nil when the rural/urban classification is unknown.
	Rural *bool `json:"rural,omitempty"`

	Nonprofit            bool    `json:"nonprofit"`
	MinorityOwned        bool    `json:"minority_owned"`
	Tribal               bool    `json:"tribal"`
	SeverelyDistressed   bool    `json:"severely_distressed"`
	DistressPercentile   float64 `json:"distress_percentile"` // 0-100
	UnderservedGeography bool    `json:"underserved_geography"`

	// AllocationTier defaults to federal when empty.
	AllocationTier string `json:"allocation_tier,omitempty"`
}

// AllocatorMandate is one allocator record: an organization's investable
// criteria for a single allocation vintage. Registries hold one record per
// organization per allocation year; RankAllocators collapses them.
type AllocatorMandate struct {
	ID    string `json:"id"`     // record id, unique per allocation year
	OrgID string `json:"org_id"` // stable organization identifier
	Name  string `json:"name"`

	Coverage          Coverage `json:"coverage"`
	States            []string `json:"states,omitempty"`             // serviced geographies
	PredominantMarket string   `json:"predominant_market,omitempty"` // free text
	FinancingTypes    string   `json:"financing_types,omitempty"`    // free text

	MinDealSize int64 `json:"min_deal_size,omitempty"`
	MaxDealSize int64 `json:"max_deal_size,omitempty"` // 0 = unbounded

	RuralFocus       bool `json:"rural_focus,omitempty"`
	UrbanFocus       bool `json:"urban_focus,omitempty"`
	MinorityFocus    bool `json:"minority_focus,omitempty"`
	UnderservedFocus bool `json:"underserved_focus,omitempty"`
	TribalFocus      bool `json:"tribal_focus,omitempty"`
	SmallDealFund    bool `json:"small_deal_fund,omitempty"`

	OwnerOccupiedPref bool `json:"owner_occupied_pref,omitempty"`
	NonprofitPref     bool `json:"nonprofit_pref,omitempty"`

	// AcceptsForProfit defaults to true when nil.
	AcceptsForProfit *bool `json:"accepts_for_profit,omitempty"`

	RequiresSevereDistress bool    `json:"requires_severe_distress,omitempty"`
	MinDistressPercentile  float64 `json:"min_distress_percentile,omitempty"` // 0 = unset

	RemainingAllocation int64  `json:"remaining_allocation"`
	AllocationTier      string `json:"allocation_tier,omitempty"` // defaults to federal
	AllocationYears     []int  `json:"allocation_years,omitempty"`

	// Registry fields consumed by the enricher only.
	NonMetroPct   *float64 `json:"non_metro_pct,omitempty"`
	Activities    string   `json:"activities,omitempty"`
	TargetSectors []string `json:"target_sectors,omitempty"`
}

// RecordYear returns the mandate's allocation vintage: the most recent year
// in its active-allocation set, or 0 when none are recorded.
func (m *AllocatorMandate) RecordYear() int {
	year := 0
	for _, y := range m.AllocationYears {
		if y > year {
			year = y
		}
	}
	return year
}

// MatchResult is the outcome of scoring one request against one mandate.
//
// When either eliminator fails, Breakdown holds only the criteria evaluated
// up to the failure, Score is 0, and Tier is weak. Otherwise Breakdown holds
// exactly 15 keys, each 0 or 1, and Score = round(ones/15*100).
type MatchResult struct {
	Score     int            `json:"score"`
	Breakdown map[string]int `json:"breakdown"`
	Reasons   []string       `json:"reasons"`
	Tier      Tier           `json:"tier"`
}

// Eliminated reports whether the pair failed a hard gate.
func (r *MatchResult) Eliminated() bool {
	return len(r.Breakdown) < TotalCriteria
}

// RankedMatch is one entry in a per-request ranking: the best score any of an
// organization's mandate years produced, reported under the identifier of the
// organization's most recent record.
type RankedMatch struct {
	AllocatorID         string         `json:"allocator_id"`
	OrgID               string         `json:"org_id"`
	AllocatorName       string         `json:"allocator_name"`
	Score               int            `json:"score"`
	Tier                Tier           `json:"tier"`
	Breakdown           map[string]int `json:"breakdown"`
	Reasons             []string       `json:"reasons"`
	RemainingAllocation int64          `json:"remaining_allocation"`
}

// RequestMatch is one entry in a per-allocator scan: a candidate funding
// request scored against the best of the allocator's mandate years.
type RequestMatch struct {
	RequestID   string         `json:"request_id"`
	ProjectName string         `json:"project_name"`
	State       string         `json:"state"`
	Amount      int64          `json:"amount"`
	Score       int            `json:"score"`
	Tier        Tier           `json:"tier"`
	Breakdown   map[string]int `json:"breakdown"`
	Reasons     []string       `json:"reasons"`
}
