package matching

import (
	"regexp"
	"strings"
)

// Enricher fills missing mandate attributes before scoring. Implementations
// must be idempotent and must never overwrite an explicitly set value.
// Heuristic derivation from registry free text is deliberately behind this
// interface so it can be swapped or disabled per registry.
type Enricher interface {
	Enrich(m *AllocatorMandate)
}

// NopEnricher leaves mandates untouched.
type NopEnricher struct{}

func (NopEnricher) Enrich(*AllocatorMandate) {}

// RegistryEnricher derives plausible defaults for null preference fields from
// adjacent free-text registry fields, so the scorer never special-cases
// "unknown."
type RegistryEnricher struct{}

var stateCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// ruralFocusNonMetroPct is the non-metro commitment percentage at which an
// allocator is treated as rural-focused.
const ruralFocusNonMetroPct = 40

// sectorKeywordFamilies maps keyword families found in the free-text
// financing-type field to the controlled sector vocabulary used by intake
// forms. The vocabulary must stay aligned with intake or sector matching
// silently stops firing.
var sectorKeywordFamilies = []struct {
	keywords []string
	sectors  []string
}{
	{[]string{"community", "facilit"}, []string{"community facilities", "healthcare", "education", "social services"}},
	{[]string{"industrial", "manufactur"}, []string{"manufacturing"}},
	{[]string{"mixed use"}, []string{"mixed-use"}},
	{[]string{"retail"}, []string{"retail"}},
	{[]string{"hous"}, []string{"housing"}},
	{[]string{"hotel", "hospitality"}, []string{"hospitality"}},
	{[]string{"energy", "renewable"}, []string{"energy"}},
	{[]string{"agricultur", "food"}, []string{"agriculture", "food production"}},
}

// Enrich fills empty fields in place. Running it twice yields the same
// record.
func (RegistryEnricher) Enrich(m *AllocatorMandate) {
	if m == nil {
		return
	}

	if len(m.States) == 0 {
		m.States = statesFromMarketText(m.PredominantMarket)
	}

	if !m.RuralFocus && m.NonMetroPct != nil && *m.NonMetroPct >= ruralFocusNonMetroPct {
		m.RuralFocus = true
	}

	activities := NormalizeText(m.Activities)
	if !m.TribalFocus && (strings.Contains(activities, "indian country") || strings.Contains(activities, "tribal")) {
		m.TribalFocus = true
	}
	if !m.SmallDealFund && strings.Contains(activities, "small dollar") {
		m.SmallDealFund = true
	}
	if !m.UnderservedFocus && (strings.Contains(activities, "targeting identified states") || strings.Contains(activities, "underserved")) {
		m.UnderservedFocus = true
	}

	if len(m.TargetSectors) == 0 {
		m.TargetSectors = sectorsFromFinancingText(m.FinancingTypes)
	}
}

// statesFromMarketText pulls two-letter state tokens out of a comma- or
// semicolon-separated market description. Tokens that are not bare state
// codes are ignored; prose descriptions contribute nothing.
func statesFromMarketText(market string) []string {
	var out []string
	for _, token := range splitListField(market) {
		if !stateCodeRe.MatchString(token) {
			continue
		}
		if ResolveState(token) != nil {
			out = append(out, token)
		}
	}
	return out
}

// sectorsFromFinancingText maps keyword families in the financing-type text
// to the controlled sector vocabulary, deduplicated in family order.
func sectorsFromFinancingText(financing string) []string {
	text := NormalizeText(financing)
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, family := range sectorKeywordFamilies {
		for _, kw := range family.keywords {
			if !strings.Contains(text, kw) {
				continue
			}
			for _, sector := range family.sectors {
				if !seen[sector] {
					seen[sector] = true
					out = append(out, sector)
				}
			}
			break
		}
	}
	return out
}
