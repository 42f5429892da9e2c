package matching

import "strings"

// financingClass is the coarse financing posture derived from free text.
type financingClass int

const (
	financingUnknown financingClass = iota
	financingRealEstate
	financingBusiness
)

// realEstateKeywords classify a stated project type as real-estate
// financing when no explicit category is present.
var realEstateKeywords = []string{
	"real estate", "commercial property", "office", "retail center",
	"shopping center", "mixed use", "housing", "apartment", "building",
	"facility", "redevelopment", "construction", "rehabilitation",
}

// PassesGeography is the geographic eliminator. It passes when the mandate
// covers the request's state in any of its geography representations, and
// passes open when the request carries no resolvable state.
func PassesGeography(req *FundingRequest, m *AllocatorMandate) bool {
	if m.Coverage == CoverageNational {
		return true
	}

	st := ResolveState(req.State)
	if st == nil {
		// Benefit of the doubt: an unresolvable state never hard-fails.
		return true
	}

	abbrev := NormalizeText(st.Abbrev)
	name := NormalizeText(st.Name)
	for _, s := range m.States {
		ns := NormalizeText(s)
		if ns == abbrev || ns == name {
			return true
		}
	}

	// The free-text market field: state code as a standalone comma-separated
	// token, or the full name as a whole-word match.
	for _, token := range splitListField(m.PredominantMarket) {
		if strings.EqualFold(strings.TrimSpace(token), st.Abbrev) {
			return true
		}
	}
	return containsWholeWord(m.PredominantMarket, st.Name)
}

// PassesFinancing is the financing-type eliminator. Owner-occupied requests
// (the default when unspecified) always pass; otherwise both sides are
// classified and an unknown on either side passes open.
func PassesFinancing(req *FundingRequest, m *AllocatorMandate) bool {
	if req.OwnerOccupied == nil || *req.OwnerOccupied {
		return true
	}

	mandateClass := classifyFinancing(m.FinancingTypes)
	requestClass := classifyRequestFinancing(req)
	if mandateClass == financingUnknown || requestClass == financingUnknown {
		return true
	}
	return mandateClass == requestClass
}

// classifyFinancing buckets a free-text financing description.
func classifyFinancing(text string) financingClass {
	t := NormalizeText(text)
	if t == "" {
		return financingUnknown
	}
	if strings.Contains(t, "real estate") {
		return financingRealEstate
	}
	if strings.Contains(t, "business") || strings.Contains(t, "operating") {
		return financingBusiness
	}
	return financingUnknown
}

// classifyRequestFinancing uses the explicit category field first, then falls
// back to keyword classification of the stated project type.
func classifyRequestFinancing(req *FundingRequest) financingClass {
	if c := classifyFinancing(req.FinancingCategory); c != financingUnknown {
		return c
	}

	// Only real-estate keywords are probed; anything else stays unknown and
	// passes open rather than guessing an operating-business posture.
	projectType := NormalizeText(req.ProjectType)
	if projectType == "" {
		return financingUnknown
	}
	for _, kw := range realEstateKeywords {
		if strings.Contains(projectType, kw) {
			return financingRealEstate
		}
	}
	return financingUnknown
}
