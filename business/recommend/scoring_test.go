package recommend

import (
	"math"
	"testing"

	"campusCanteen/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankCandidatesOrdersByScore(t *testing.T) {
	cands := []domain.Candidate{
		{DishID: 1, BaseScore: 10},
		{DishID: 2, BaseScore: 90},
		{DishID: 3, BaseScore: 50},
	}

	items := rankCandidates(cands, DefaultWeights(), false)
	require.Len(t, items, 3)
	assert.Equal(t, uint64(2), items[0].DishID)
	assert.Equal(t, uint64(3), items[1].DishID)
	assert.Equal(t, uint64(1), items[2].DishID)
}

func TestScoreBreakdownSumsToFinal(t *testing.T) {
	cands := []domain.Candidate{
		{DishID: 1, BaseScore: 80, Tags: []string{"spicy", "noodle"}, PrepSeconds: 120},
		{DishID: 2, BaseScore: 60, Tags: []string{"spicy"}, PrepSeconds: 300},
		{DishID: 3, BaseScore: 40, Tags: []string{"soup", "veggie"}, PrepSeconds: 60},
	}

	for _, item := range rankCandidates(cands, DefaultWeights(), true) {
		require.NotNil(t, item.ScoreBreakdown)
		sum := 0.0
		for _, v := range item.ScoreBreakdown {
			sum += v
		}
		assert.InDelta(t, item.Score, sum, 1e-9, "breakdown of dish %d must sum to final score", item.DishID)
	}
}

func TestDiversityRewardsRareTags(t *testing.T) {
	cands := []domain.Candidate{
		{DishID: 1, BaseScore: 50, Tags: []string{"common"}},
		{DishID: 2, BaseScore: 50, Tags: []string{"common"}},
		{DishID: 3, BaseScore: 50, Tags: []string{"common"}},
		{DishID: 4, BaseScore: 50, Tags: []string{"rare"}},
	}

	st := buildStats(cands)
	assert.Greater(t, diversityScore(cands[3], st), diversityScore(cands[0], st))
}

func TestDiversityZeroWithoutTags(t *testing.T) {
	cands := []domain.Candidate{
		{DishID: 1, BaseScore: 50},
		{DishID: 2, BaseScore: 40},
	}

	st := buildStats(cands)
	assert.Zero(t, diversityScore(cands[0], st))
}

func TestUrgencyNoOpWithoutPrepSignal(t *testing.T) {
	cands := []domain.Candidate{
		{DishID: 1, BaseScore: 50},
		{DishID: 2, BaseScore: 40},
	}

	st := buildStats(cands)
	assert.Zero(t, urgencyScore(cands[0], st))
}

func TestUrgencyFavorsShortPrep(t *testing.T) {
	cands := []domain.Candidate{
		{DishID: 1, BaseScore: 50, PrepSeconds: 60},
		{DishID: 2, BaseScore: 50, PrepSeconds: 600},
	}

	st := buildStats(cands)
	assert.Greater(t, urgencyScore(cands[0], st), urgencyScore(cands[1], st))
}

func TestForContextExploratoryBoostIsCapped(t *testing.T) {
	w := DefaultWeights().forContext(domain.UserContext{Exploratory: true})
	assert.InDelta(t, defaultDiversityWeight*exploratoryDiversityBoost, w.Diversity, 1e-9)

	big := Weights{Base: 0.4, Diversity: 0.45, Urgency: 0.1}
	capped := big.forContext(domain.UserContext{Exploratory: true})
	assert.Equal(t, maxDiversityWeight, capped.Diversity)
}

func TestForContextHighUrgency(t *testing.T) {
	w := DefaultWeights().forContext(domain.UserContext{Urgency: "high"})
	assert.InDelta(t, defaultUrgencyWeight*urgencyHighBoost, w.Urgency, 1e-9)

	// other urgency values are a no-op
	same := DefaultWeights().forContext(domain.UserContext{Urgency: "low"})
	assert.Equal(t, DefaultWeights(), same)
}

func TestWithOverrides(t *testing.T) {
	w := DefaultWeights().withOverrides(map[string]any{
		"base_weight":      0.5,
		"diversity_weight": 0.4,
		"urgency_weight":   0.1,
		"unrelated":        "ignored",
	})

	assert.Equal(t, Weights{Base: 0.5, Diversity: 0.4, Urgency: 0.1}, w)

	// non-numeric and negative values leave defaults in place
	w = DefaultWeights().withOverrides(map[string]any{
		"base_weight":      "half",
		"diversity_weight": -1.0,
	})
	assert.Equal(t, DefaultWeights(), w)
}

func TestRankEmptyBatch(t *testing.T) {
	items := rankCandidates(nil, DefaultWeights(), true)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestScoresAreFinite(t *testing.T) {
	cands := []domain.Candidate{
		{DishID: 1, BaseScore: 0, Tags: nil, PrepSeconds: 0},
		{DishID: 2, BaseScore: 0, Tags: []string{"a"}, PrepSeconds: 0},
	}

	for _, item := range rankCandidates(cands, DefaultWeights(), false) {
		assert.False(t, math.IsNaN(item.Score) || math.IsInf(item.Score, 0))
	}
}
