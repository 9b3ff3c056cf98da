package recommend

import (
	"sort"

	"campusCanteen/domain"
)

// candidateStats holds the per-batch aggregates scoring normalizes against.
type candidateStats struct {
	maxBase     float64
	maxPrep     int
	tagCounts   map[string]int
	maxTagCount int
}

func buildStats(cands []domain.Candidate) candidateStats {
	st := candidateStats{tagCounts: make(map[string]int)}

	for _, c := range cands {
		if c.BaseScore > st.maxBase {
			st.maxBase = c.BaseScore
		}
		if c.PrepSeconds > st.maxPrep {
			st.maxPrep = c.PrepSeconds
		}
		for _, tag := range c.Tags {
			st.tagCounts[tag]++
			if st.tagCounts[tag] > st.maxTagCount {
				st.maxTagCount = st.tagCounts[tag]
			}
		}
	}

	if st.maxBase == 0 {
		st.maxBase = 1
	}

	return st
}

// baseScore normalizes a candidate's raw relevance into [0, 1].
func baseScore(c domain.Candidate, st candidateStats) float64 {
	return c.BaseScore / st.maxBase
}

// diversityScore rewards candidates carrying tags that are rare within
// the batch. Untagged candidates contribute nothing.
func diversityScore(c domain.Candidate, st candidateStats) float64 {
	if len(c.Tags) == 0 || st.maxTagCount == 0 {
		return 0
	}

	sum := 0.0
	for _, tag := range c.Tags {
		sum += float64(st.tagCounts[tag]) / float64(st.maxTagCount)
	}
	avgFreq := sum / float64(len(c.Tags))

	return 1 - avgFreq
}

// urgencyScore favors shorter preparation times. When no candidate
// carries a prep signal, the term is a no-op.
func urgencyScore(c domain.Candidate, st candidateStats) float64 {
	if st.maxPrep == 0 {
		return 0
	}

	return 1 - float64(c.PrepSeconds)/float64(st.maxPrep)
}

// rankCandidates scores a batch of candidates with the given weights and
// returns them in descending final-score order.
func rankCandidates(cands []domain.Candidate, w Weights, withBreakdown bool) []domain.RecommendedItem {
	if len(cands) == 0 {
		return []domain.RecommendedItem{}
	}

	st := buildStats(cands)

	items := make([]domain.RecommendedItem, 0, len(cands))
	for _, c := range cands {
		base := w.Base * baseScore(c, st)
		div := w.Diversity * diversityScore(c, st)
		urg := w.Urgency * urgencyScore(c, st)

		item := domain.RecommendedItem{
			DishID: c.DishID,
			Score:  base + div + urg,
		}

		if withBreakdown {
			item.ScoreBreakdown = map[string]float64{
				"base":      base,
				"diversity": div,
				"urgency":   urg,
			}
		}

		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	return items
}
