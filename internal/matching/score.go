package matching

import (
	"fmt"
	"math"
	"strings"
)

// Score evaluates one funding request against one allocator mandate.
//
// The two eliminators run first; a failed gate returns a zeroed result whose
// breakdown stops at the failed criterion. Past the gates, all 15 criteria
// are evaluated independently and the score is round(ones/15*100). The
// function is total: every input, including fully empty records, produces a
// result and never an error.
func Score(req *FundingRequest, m *AllocatorMandate) MatchResult {
	if !PassesGeography(req, m) {
		return MatchResult{
			Score:     0,
			Breakdown: map[string]int{CritGeographic: 0},
			Reasons:   []string{geographyFailReason(req)},
			Tier:      TierWeak,
		}
	}

	if !PassesFinancing(req, m) {
		return MatchResult{
			Score: 0,
			Breakdown: map[string]int{
				CritGeographic: 1,
				CritFinancing:  0,
			},
			Reasons: []string{"Financing type mismatch"},
			Tier:    TierWeak,
		}
	}

	breakdown := map[string]int{
		CritGeographic: 1,
		CritFinancing:  1,
	}
	reasons := []string{coverageReason(req, m)}

	addCriterion := func(name string, hit bool, reason string) {
		if hit {
			breakdown[name] = 1
			if reason != "" {
				reasons = append(reasons, reason)
			}
		} else {
			breakdown[name] = 0
		}
	}

	hit, reason := urbanRuralCriterion(req, m)
	addCriterion(CritUrbanRural, hit, reason)

	hit, reason = sectorCriterion(req, m)
	addCriterion(CritSector, hit, reason)

	addCriterion(CritDealSize, dealSizeCriterion(req.Amount, m), "Deal size fits")

	hit, reason = smallDealCriterion(req.Amount, m)
	addCriterion(CritSmallDealFund, hit, reason)

	hit = !m.RequiresSevereDistress || req.SeverelyDistressed
	addCriterion(CritSeverelyDistressed, hit, distressReason(req, m))

	hit = m.MinDistressPercentile == 0 || req.DistressPercentile >= m.MinDistressPercentile
	reason = ""
	if hit && m.MinDistressPercentile > 0 {
		reason = "Distress percentile meets threshold"
	}
	addCriterion(CritDistressPercentile, hit, reason)

	hit = !m.MinorityFocus || req.MinorityOwned
	reason = ""
	if m.MinorityFocus && req.MinorityOwned {
		reason = "Minority-owned business"
	}
	addCriterion(CritMinorityFocus, hit, reason)

	hit, reason = underservedCriterion(req, m)
	addCriterion(CritUnderservedGeo, hit, reason)

	hit = entityTypeCriterion(req, m)
	reason = ""
	if hit && m.AcceptsForProfit != nil && !*m.AcceptsForProfit {
		reason = "Nonprofit sponsor accepted"
	}
	addCriterion(CritEntityType, hit, reason)

	hit = !m.OwnerOccupiedPref || ownerOccupied(req)
	reason = ""
	if m.OwnerOccupiedPref && ownerOccupied(req) {
		reason = "Owner-occupied project"
	}
	addCriterion(CritOwnerOccupied, hit, reason)

	hit = !m.TribalFocus || req.Tribal
	reason = ""
	if m.TribalFocus && req.Tribal {
		reason = "Tribal project"
	}
	addCriterion(CritTribal, hit, reason)

	addCriterion(CritAllocationType, allocationTypeCriterion(req, m), "")

	hit = m.RemainingAllocation > 0
	reason = ""
	if hit {
		reason = "Allocation available"
	}
	addCriterion(CritHasAllocation, hit, reason)

	ones := 0
	for _, v := range breakdown {
		ones += v
	}
	score := int(math.Round(float64(ones) / TotalCriteria * 100))

	return MatchResult{
		Score:     score,
		Breakdown: breakdown,
		Reasons:   reasons,
		Tier:      TierForScore(score),
	}
}

// ownerOccupied applies the default-true rule.
func ownerOccupied(req *FundingRequest) bool {
	return req.OwnerOccupied == nil || *req.OwnerOccupied
}

func geographyFailReason(req *FundingRequest) string {
	if st := ResolveState(req.State); st != nil {
		return fmt.Sprintf("Does not serve %s", st.Abbrev)
	}
	return fmt.Sprintf("Does not serve %s", strings.TrimSpace(req.State))
}

func coverageReason(req *FundingRequest, m *AllocatorMandate) string {
	if m.Coverage == CoverageNational {
		return "National coverage"
	}
	if st := ResolveState(req.State); st != nil {
		return fmt.Sprintf("Serves %s", st.Abbrev)
	}
	return "Geographic coverage confirmed"
}

// urbanRuralCriterion passes when the mandate declares no focus or the
// request's classification matches the declared one. An unclassified request
// fails against a focused mandate.
func urbanRuralCriterion(req *FundingRequest, m *AllocatorMandate) (bool, string) {
	if !m.RuralFocus && !m.UrbanFocus {
		return true, ""
	}
	if req.Rural == nil {
		return false, ""
	}
	if *req.Rural && m.RuralFocus {
		return true, "Rural focus match"
	}
	if !*req.Rural && m.UrbanFocus {
		return true, "Urban focus match"
	}
	return false, ""
}

// sectorCriterion passes when the mandate has no target sectors, the
// request's category overlaps a normalized target sector by containment in
// either direction, or the free-text market field mentions the category.
func sectorCriterion(req *FundingRequest, m *AllocatorMandate) (bool, string) {
	if len(m.TargetSectors) == 0 {
		return true, ""
	}

	category := NormalizeText(req.ProjectCategory)
	if category == "" {
		// No stated category: fail open with a low-information pass.
		return true, ""
	}

	for _, sector := range m.TargetSectors {
		ns := NormalizeText(sector)
		if ns == "" {
			continue
		}
		if strings.Contains(category, ns) || strings.Contains(ns, category) {
			return true, fmt.Sprintf("Sector match: %s", sector)
		}
	}

	if strings.Contains(NormalizeText(m.PredominantMarket), category) {
		return true, "Sector named in market description"
	}
	return false, ""
}

// dealSizeCriterion checks [min, max] inclusive; min defaults to 0 and max
// to unbounded.
func dealSizeCriterion(amount int64, m *AllocatorMandate) bool {
	if amount < m.MinDealSize {
		return false
	}
	return m.MaxDealSize == 0 || amount <= m.MaxDealSize
}

// smallDealCriterion: deals at or below the small-deal threshold need a
// small-deal fund; larger deals pass regardless.
func smallDealCriterion(amount int64, m *AllocatorMandate) (bool, string) {
	if amount > SmallDealThreshold {
		return true, ""
	}
	if m.SmallDealFund {
		return true, "Small-deal fund"
	}
	return false, ""
}

func distressReason(req *FundingRequest, m *AllocatorMandate) string {
	if m.RequiresSevereDistress && req.SeverelyDistressed {
		return "Severely distressed tract"
	}
	return ""
}

// underservedCriterion passes when the mandate has no underserved focus, the
// request is flagged, or the request's state is underserved for any year in
// the mandate's active-allocation set.
func underservedCriterion(req *FundingRequest, m *AllocatorMandate) (bool, string) {
	if !m.UnderservedFocus {
		return true, ""
	}
	if req.UnderservedGeography {
		return true, "Underserved geography"
	}
	if IsUnderserved(req.State, m.AllocationYears) {
		return true, "State on underserved list"
	}
	return false, ""
}

// entityTypeCriterion fails only when the mandate rejects for-profit
// sponsors and the request is for-profit.
func entityTypeCriterion(req *FundingRequest, m *AllocatorMandate) bool {
	rejectsForProfit := m.AcceptsForProfit != nil && !*m.AcceptsForProfit
	return !rejectsForProfit || req.Nonprofit
}

// allocationTypeCriterion passes when either side's tier is unset or both
// tiers agree. Empty tiers default to federal, so two unset sides agree.
func allocationTypeCriterion(req *FundingRequest, m *AllocatorMandate) bool {
	if req.AllocationTier == "" || m.AllocationTier == "" {
		return true
	}
	return strings.EqualFold(req.AllocationTier, m.AllocationTier)
}
