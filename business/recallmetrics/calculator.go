package recallmetrics

import (
	"fmt"
	"math"
)

// Batch maps a user to the ordered list of dish ids recalled for them.
// It is the ephemeral unit of one evaluation run.
type Batch map[uint][]uint64

// Positives maps a user to the set of dishes they interacted with
// positively (favorite, or rating >= 4) inside the evaluation window.
type Positives map[uint]map[uint64]struct{}

// RecallAtK is the fraction of users whose positive set intersects their
// first k recalled ids. Users with no positive interactions are excluded
// from the denominator, not counted as misses.
func RecallAtK(batch Batch, positives Positives, k int) float64 {
	if k <= 0 {
		return 0
	}

	total := 0
	hits := 0
	for userID, recalled := range batch {
		pos := positives[userID]
		if len(pos) == 0 {
			continue
		}
		total++

		if len(recalled) > k {
			recalled = recalled[:k]
		}
		for _, id := range recalled {
			if _, ok := pos[id]; ok {
				hits++
				break
			}
		}
	}

	if total == 0 {
		return 0
	}

	return float64(hits) / float64(total)
}

// Coverage is the fraction of the online catalog recalled at least once
// across the whole batch.
func Coverage(batch Batch, onlineCount int64) float64 {
	if onlineCount <= 0 {
		return 0
	}

	union := make(map[uint64]struct{})
	for _, recalled := range batch {
		for _, id := range recalled {
			union[id] = struct{}{}
		}
	}

	return float64(len(union)) / float64(onlineCount)
}

// Diversity is the Shannon entropy, in bits, of the tag distribution over
// the union of recalled dishes. A dish contributes one occurrence per tag
// it carries. No recalled tags means zero diversity.
func Diversity(batch Batch, tagsByDish map[uint64][]string) float64 {
	union := make(map[uint64]struct{})
	for _, recalled := range batch {
		for _, id := range recalled {
			union[id] = struct{}{}
		}
	}

	counts := make(map[string]int)
	total := 0
	for id := range union {
		for _, tag := range tagsByDish[id] {
			counts[tag]++
			total++
		}
	}

	if total == 0 {
		return 0
	}

	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}

	return entropy
}

// Thresholds hold the tier boundaries for the human-readable report.
// These are operational tuning, not business logic; override per deploy.
type Thresholds struct {
	RecallGood    float64
	RecallFair    float64
	CoverageGood  float64
	CoverageFair  float64
	DiversityGood float64
	DiversityFair float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		RecallGood:    0.7,
		RecallFair:    0.5,
		CoverageGood:  0.8,
		CoverageFair:  0.5,
		DiversityGood: 3.0,
		DiversityFair: 2.0,
	}
}

type Report struct {
	RecallAtK float64 `json:"recall_at_k"`
	Coverage  float64 `json:"coverage"`
	Diversity float64 `json:"diversity"`

	K              int `json:"k"`
	Days           int `json:"days"`
	SampledUsers   int `json:"sampled_users"`
	EvaluatedUsers int `json:"evaluated_users"`
	SkippedUsers   int `json:"skipped_users"`

	RecallLevel    string `json:"recall_level"`
	CoverageLevel  string `json:"coverage_level"`
	DiversityLevel string `json:"diversity_level"`
	Summary        string `json:"summary"`
}

func tier(value, good, fair float64) string {
	switch {
	case value >= good:
		return "good"
	case value >= fair:
		return "fair"
	default:
		return "poor"
	}
}

// BuildReport combines the three metrics into a tiered summary.
func BuildReport(recall, coverage, diversity float64, th Thresholds) Report {
	r := Report{
		RecallAtK:      recall,
		Coverage:       coverage,
		Diversity:      diversity,
		RecallLevel:    tier(recall, th.RecallGood, th.RecallFair),
		CoverageLevel:  tier(coverage, th.CoverageGood, th.CoverageFair),
		DiversityLevel: tier(diversity, th.DiversityGood, th.DiversityFair),
	}

	r.Summary = fmt.Sprintf(
		"recall@k %.3f (%s), coverage %.3f (%s), diversity %.3f bits (%s)",
		recall, r.RecallLevel, coverage, r.CoverageLevel, diversity, r.DiversityLevel,
	)

	return r
}
