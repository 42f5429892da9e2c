package matching

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TotalCriteria is the size of the scoring rubric.
const TotalCriteria = 15

// SmallDealThreshold is the boundary below which a deal counts as small and
// needs a small-deal fund. The boundary itself is small: 5,000,001 is not.
const SmallDealThreshold = 5_000_000

// Tier cutoffs, inclusive lower bounds.
const (
	tierExcellentMin = 80
	tierGoodMin      = 65
	tierFairMin      = 50
)

// TierForScore buckets a 0-100 score.
func TierForScore(score int) Tier {
	switch {
	case score >= tierExcellentMin:
		return TierExcellent
	case score >= tierGoodMin:
		return TierGood
	case score >= tierFairMin:
		return TierFair
	default:
		return TierWeak
	}
}

// State is a canonical state record.
type State struct {
	Abbrev string
	Name   string
}

// states lists the 50 states, DC, and the insular areas that appear in
// allocator registries. Loaded into lookup maps at init and never mutated.
var states = []State{
	{"AL", "Alabama"}, {"AK", "Alaska"}, {"AZ", "Arizona"}, {"AR", "Arkansas"},
	{"CA", "California"}, {"CO", "Colorado"}, {"CT", "Connecticut"},
	{"DE", "Delaware"}, {"DC", "District of Columbia"}, {"FL", "Florida"},
	{"GA", "Georgia"}, {"HI", "Hawaii"}, {"ID", "Idaho"}, {"IL", "Illinois"},
	{"IN", "Indiana"}, {"IA", "Iowa"}, {"KS", "Kansas"}, {"KY", "Kentucky"},
	{"LA", "Louisiana"}, {"ME", "Maine"}, {"MD", "Maryland"},
	{"MA", "Massachusetts"}, {"MI", "Michigan"}, {"MN", "Minnesota"},
	{"MS", "Mississippi"}, {"MO", "Missouri"}, {"MT", "Montana"},
	{"NE", "Nebraska"}, {"NV", "Nevada"}, {"NH", "New Hampshire"},
	{"NJ", "New Jersey"}, {"NM", "New Mexico"}, {"NY", "New York"},
	{"NC", "North Carolina"}, {"ND", "North Dakota"}, {"OH", "Ohio"},
	{"OK", "Oklahoma"}, {"OR", "Oregon"}, {"PA", "Pennsylvania"},
	{"RI", "Rhode Island"}, {"SC", "South Carolina"}, {"SD", "South Dakota"},
	{"TN", "Tennessee"}, {"TX", "Texas"}, {"UT", "Utah"}, {"VT", "Vermont"},
	{"VA", "Virginia"}, {"WA", "Washington"}, {"WV", "West Virginia"},
	{"WI", "Wisconsin"}, {"WY", "Wyoming"},
	{"AS", "American Samoa"}, {"GU", "Guam"},
	{"MP", "Northern Mariana Islands"}, {"PR", "Puerto Rico"},
	{"VI", "U.S. Virgin Islands"},
}

// stateByToken maps normalized abbreviations and full names to records.
var stateByToken = func() map[string]State {
	idx := make(map[string]State, len(states)*2)
	for _, s := range states {
		idx[NormalizeText(s.Abbrev)] = s
		idx[NormalizeText(s.Name)] = s
	}
	return idx
}()

// underservedByYear lists the states designated underserved for each
// allocation year. The designation is re-issued annually, so a mandate active
// across several years is checked against every year it holds.
var underservedByYear = map[int][]string{
	2020: {"AK", "AR", "FL", "GA", "ID", "KS", "NV", "ND", "PR", "TN", "TX", "WV", "WY"},
	2021: {"AK", "AR", "FL", "GA", "ID", "KS", "MT", "NV", "ND", "PR", "TN", "TX", "WV", "WY"},
	2022: {"AK", "AR", "FL", "ID", "KS", "MT", "NV", "ND", "PR", "SD", "TX", "VI", "WV", "WY"},
	2023: {"AK", "FL", "GU", "ID", "KS", "MT", "NV", "ND", "PR", "SD", "TX", "VI", "WV", "WY"},
	2024: {"AK", "AZ", "FL", "GU", "ID", "KS", "MT", "NV", "ND", "PR", "SD", "TX", "VI", "WV", "WY"},
}

// IsUnderserved reports whether the state is on the underserved list for any
// of the given allocation years. Unresolvable states are never underserved.
func IsUnderserved(state string, years []int) bool {
	st := ResolveState(state)
	if st == nil {
		return false
	}
	for _, y := range years {
		for _, abbrev := range underservedByYear[y] {
			if abbrev == st.Abbrev {
				return true
			}
		}
	}
	return false
}

// UnderservedYears returns the years with a loaded underserved list.
func UnderservedYears() []int {
	years := make([]int, 0, len(underservedByYear))
	for y := range underservedByYear {
		years = append(years, y)
	}
	return years
}

// LoadUnderservedFile replaces the built-in underserved-geography lists with
// the contents of a YAML file mapping allocation year to state codes:
//
//	2024: [AK, FL, TX]
//	2025: [AK, TX]
//
// Intended to run once at process start, before any scoring.
func LoadUnderservedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "matching: read underserved file %s", path)
	}

	var byYear map[int][]string
	if err := yaml.Unmarshal(data, &byYear); err != nil {
		return eris.Wrapf(err, "matching: parse underserved file %s", path)
	}
	if len(byYear) == 0 {
		return eris.Errorf("matching: underserved file %s lists no years", path)
	}

	resolved := make(map[int][]string, len(byYear))
	for year, codes := range byYear {
		for _, code := range codes {
			st := ResolveState(code)
			if st == nil {
				return eris.Errorf("matching: underserved file %s: unknown state %q for year %d", path, code, year)
			}
			resolved[year] = append(resolved[year], st.Abbrev)
		}
	}

	underservedByYear = resolved
	return nil
}
