package recommend

import "campusCanteen/domain"

// Mixing weights for the three score terms. Breakdown entries are the
// weighted contributions, so they always sum to the final score.
const (
	defaultBaseWeight      = 0.70
	defaultDiversityWeight = 0.20
	defaultUrgencyWeight   = 0.10

	// exploratory users get a boosted diversity term, capped so base
	// relevance still dominates
	exploratoryDiversityBoost = 1.5
	maxDiversityWeight        = 0.5

	// high urgency doubles the short-prep bias, capped
	urgencyHighBoost = 2.0
	maxUrgencyWeight = 0.3
)

type Weights struct {
	Base      float64
	Diversity float64
	Urgency   float64
}

func DefaultWeights() Weights {
	return Weights{
		Base:      defaultBaseWeight,
		Diversity: defaultDiversityWeight,
		Urgency:   defaultUrgencyWeight,
	}
}

// forContext applies per-request user context adjustments.
func (w Weights) forContext(uc domain.UserContext) Weights {
	out := w

	if uc.Exploratory {
		out.Diversity *= exploratoryDiversityBoost
		if out.Diversity > maxDiversityWeight {
			out.Diversity = maxDiversityWeight
		}
	}

	if uc.Urgency == "high" {
		out.Urgency *= urgencyHighBoost
		if out.Urgency > maxUrgencyWeight {
			out.Urgency = maxUrgencyWeight
		}
	}

	return out
}

// withOverrides applies experiment group config overrides. Unknown keys
// are ignored; only positive numeric values are accepted.
func (w Weights) withOverrides(cfg map[string]any) Weights {
	out := w

	if v, ok := asFloat(cfg["base_weight"]); ok && v >= 0 {
		out.Base = v
	}
	if v, ok := asFloat(cfg["diversity_weight"]); ok && v >= 0 {
		out.Diversity = v
	}
	if v, ok := asFloat(cfg["urgency_weight"]); ok && v >= 0 {
		out.Urgency = v
	}

	return out
}

// asFloat copes with the numeric shapes a JSON config map can carry.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}

	return 0, false
}
