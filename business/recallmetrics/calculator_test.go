package recallmetrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func posSet(ids ...uint64) map[uint64]struct{} {
	out := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestRecallAtKExcludesUsersWithoutPositives(t *testing.T) {
	batch := Batch{
		1: {10, 20, 30},
		2: {40, 50, 60}, // user 2 has no positives at all
	}
	positives := Positives{
		1: posSet(20),
	}

	// user 2 must not drag the denominator down
	assert.Equal(t, 1.0, RecallAtK(batch, positives, 3))
}

func TestRecallAtKAllUsersHit(t *testing.T) {
	batch := Batch{
		1: {10, 20},
		2: {30, 40},
		3: {50, 60},
	}
	positives := Positives{
		1: posSet(10),
		2: posSet(40),
		3: posSet(50),
	}

	assert.Equal(t, 1.0, RecallAtK(batch, positives, 2))
}

func TestRecallAtKRespectsCutoff(t *testing.T) {
	batch := Batch{
		1: {10, 20, 30, 99}, // positive sits at rank 4
	}
	positives := Positives{
		1: posSet(99),
	}

	assert.Equal(t, 0.0, RecallAtK(batch, positives, 3))
	assert.Equal(t, 1.0, RecallAtK(batch, positives, 4))
}

func TestRecallAtKPartialHits(t *testing.T) {
	batch := Batch{
		1: {10},
		2: {20},
	}
	positives := Positives{
		1: posSet(10),
		2: posSet(99),
	}

	assert.Equal(t, 0.5, RecallAtK(batch, positives, 1))
}

func TestRecallAtKEmptyDenominator(t *testing.T) {
	batch := Batch{1: {10}}
	assert.Equal(t, 0.0, RecallAtK(batch, Positives{}, 5))
}

func TestCoverageIsUnionOverOnlineCount(t *testing.T) {
	batch := Batch{
		1: {10, 20},
		2: {20, 30}, // 20 counted once
	}

	assert.InDelta(t, 0.3, Coverage(batch, 10), 1e-9)
	assert.Equal(t, 0.0, Coverage(batch, 0))
}

func TestDiversityKnownDistribution(t *testing.T) {
	// two tags, one occurrence each: entropy is exactly 1 bit
	batch := Batch{1: {10, 20}}
	tags := map[uint64][]string{
		10: {"spicy"},
		20: {"soup"},
	}
	assert.InDelta(t, 1.0, Diversity(batch, tags), 1e-9)

	// four equally frequent tags: 2 bits
	batch = Batch{1: {10, 20, 30, 40}}
	tags = map[uint64][]string{
		10: {"a"},
		20: {"b"},
		30: {"c"},
		40: {"d"},
	}
	assert.InDelta(t, 2.0, Diversity(batch, tags), 1e-9)
}

func TestDiversityMultiTagAttribution(t *testing.T) {
	// one dish with three tags contributes to all three counts
	batch := Batch{1: {10}}
	tags := map[uint64][]string{
		10: {"a", "b", "c"},
	}
	assert.InDelta(t, math.Log2(3), Diversity(batch, tags), 1e-9)
}

func TestDiversityZeroWithoutTags(t *testing.T) {
	assert.Equal(t, 0.0, Diversity(Batch{}, nil))
	assert.Equal(t, 0.0, Diversity(Batch{1: {10, 20}}, map[uint64][]string{}))
}

func TestBuildReportTiers(t *testing.T) {
	th := DefaultThresholds()

	r := BuildReport(0.75, 0.6, 1.5, th)
	assert.Equal(t, "good", r.RecallLevel)
	assert.Equal(t, "fair", r.CoverageLevel)
	assert.Equal(t, "poor", r.DiversityLevel)
	assert.NotEmpty(t, r.Summary)

	// boundaries are inclusive
	r = BuildReport(0.7, 0.5, 2.0, th)
	assert.Equal(t, "good", r.RecallLevel)
	assert.Equal(t, "fair", r.CoverageLevel)
	assert.Equal(t, "fair", r.DiversityLevel)
}

func TestBuildReportCustomThresholds(t *testing.T) {
	th := Thresholds{
		RecallGood: 0.2, RecallFair: 0.1,
		CoverageGood: 0.2, CoverageFair: 0.1,
		DiversityGood: 0.5, DiversityFair: 0.2,
	}

	r := BuildReport(0.25, 0.15, 0.1, th)
	assert.Equal(t, "good", r.RecallLevel)
	assert.Equal(t, "fair", r.CoverageLevel)
	assert.Equal(t, "poor", r.DiversityLevel)
}
