package domain

const (
	SceneHome     = "home"
	SceneSearch   = "search"
	SceneSimilar  = "similar"
	ScenePersonal = "personal"
	SceneGuess    = "guess_like"
	SceneToday    = "today"
)

// Candidate is what a candidate source hands the scoring pipeline:
// a dish id with its base relevance plus the features scoring needs.
type Candidate struct {
	DishID      uint64   `json:"dish_id"`
	BaseScore   float64  `json:"base_score"`
	Tags        []string `json:"tags"`
	PrepSeconds int      `json:"prep_seconds"`
}

type RecommendFilter struct {
	CanteenID uint     `json:"canteen_id,omitempty"`
	WindowID  uint     `json:"window_id,omitempty"`
	PriceMin  *float64 `json:"price_min,omitempty"`
	PriceMax  *float64 `json:"price_max,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type UserContext struct {
	Exploratory bool   `json:"exploratory,omitempty"`
	Urgency     string `json:"urgency,omitempty"` // "", "low", "high"
}

type RecommendRequest struct {
	UserID                uint
	Scene                 string
	Search                string
	TriggerDishID         uint64
	Filter                RecommendFilter
	Pagination            Pagination
	RequestID             string
	UserContext           UserContext
	IncludeScoreBreakdown bool
}

type RecommendedItem struct {
	DishID         uint64             `json:"id"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"`
}

type RecommendMeta struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Total      int    `json:"total"`
	Scene      string `json:"scene"`
	Experiment string `json:"experiment,omitempty"`
	Group      string `json:"group,omitempty"`
}

type RecommendResponse struct {
	Items     []RecommendedItem `json:"items"`
	RequestID string            `json:"request_id"`
	Meta      RecommendMeta     `json:"meta"`
}
