package matching

import (
	"sort"
	"strings"
)

// RankAllocators scores a request against a pool of allocator records and
// collapses the pool by organization: each org contributes its best-scoring
// allocation year, reported under the identifier and name of its most recent
// record. Outreach targets the currently active registration even when an
// older vintage scored marginally better on stale preference data.
//
// Results are sorted by descending score; ties break by descending remaining
// allocation, then ascending allocator name, so equal inputs always rank the
// same way.
func RankAllocators(req *FundingRequest, mandates []AllocatorMandate, enricher Enricher) []RankedMatch {
	if enricher == nil {
		enricher = NopEnricher{}
	}

	type orgBest struct {
		best   MatchResult
		latest *AllocatorMandate
	}

	byOrg := make(map[string]*orgBest)
	var order []string

	for i := range mandates {
		m := &mandates[i]
		enricher.Enrich(m)
		result := Score(req, m)

		entry, ok := byOrg[m.OrgID]
		if !ok {
			byOrg[m.OrgID] = &orgBest{best: result, latest: m}
			order = append(order, m.OrgID)
			continue
		}
		if result.Score > entry.best.Score {
			entry.best = result
		}
		if m.RecordYear() > entry.latest.RecordYear() {
			entry.latest = m
		}
	}

	out := make([]RankedMatch, 0, len(order))
	for _, orgID := range order {
		entry := byOrg[orgID]
		out = append(out, RankedMatch{
			AllocatorID:         entry.latest.ID,
			OrgID:               orgID,
			AllocatorName:       entry.latest.Name,
			Score:               entry.best.Score,
			Tier:                entry.best.Tier,
			Breakdown:           entry.best.Breakdown,
			Reasons:             entry.best.Reasons,
			RemainingAllocation: entry.latest.RemainingAllocation,
		})
	}

	SortRanked(out)
	return out
}

// SortRanked orders a ranking in place: score descending, then remaining
// allocation descending, then allocator name ascending.
func SortRanked(matches []RankedMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].RemainingAllocation != matches[j].RemainingAllocation {
			return matches[i].RemainingAllocation > matches[j].RemainingAllocation
		}
		return strings.ToLower(matches[i].AllocatorName) < strings.ToLower(matches[j].AllocatorName)
	})
}

// FilterRanked applies a minimum-score floor and a result cap to a sorted
// ranking. A zero floor keeps everything; a zero cap is unbounded.
func FilterRanked(matches []RankedMatch, minScore, limit int) []RankedMatch {
	out := matches[:0:len(matches)]
	for _, m := range matches {
		if m.Score >= minScore {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ScoreRequests scores a pool of candidate requests against one
// organization's mandate records (one per allocation year), keeping each
// request's best score across years. Used by the allocator-initiated scan
// path; it runs purely locally.
//
// Results sort by descending score with ascending request id as the
// tie-break.
func ScoreRequests(mandates []AllocatorMandate, requests []FundingRequest, enricher Enricher) []RequestMatch {
	if enricher == nil {
		enricher = NopEnricher{}
	}
	for i := range mandates {
		enricher.Enrich(&mandates[i])
	}

	out := make([]RequestMatch, 0, len(requests))
	for i := range requests {
		if len(mandates) == 0 {
			break
		}
		out = append(out, MatchRequest(&requests[i], mandates))
	}

	SortRequestMatches(out)
	return out
}

// MatchRequest scores one request against an organization's mandate years and
// returns the best result. Mandates are assumed already enriched. Both the
// sequential and the fan-out scan paths go through here, so the best-of-years
// rule cannot drift between them.
func MatchRequest(req *FundingRequest, mandates []AllocatorMandate) RequestMatch {
	var best MatchResult
	for j := range mandates {
		result := Score(req, &mandates[j])
		if j == 0 || result.Score > best.Score {
			best = result
		}
	}
	return RequestMatch{
		RequestID:   req.ID,
		ProjectName: req.ProjectName,
		State:       req.State,
		Amount:      req.Amount,
		Score:       best.Score,
		Tier:        best.Tier,
		Breakdown:   best.Breakdown,
		Reasons:     best.Reasons,
	}
}

// SortRequestMatches orders scan results in place: score descending, then
// request id ascending.
func SortRequestMatches(matches []RequestMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].RequestID < matches[j].RequestID
	})
}

// FilterRequestMatches applies a minimum-score floor and a result cap to
// sorted scan results.
func FilterRequestMatches(matches []RequestMatch, minScore, limit int) []RequestMatch {
	out := matches[:0:len(matches)]
	for _, m := range matches {
		if m.Score >= minScore {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
