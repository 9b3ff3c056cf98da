package recommend

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"campusCanteen/business/session"
	"campusCanteen/domain"
	"campusCanteen/pkg/logger"

	"github.com/google/uuid"
	"github.com/pobyzaarif/goshortcute"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50

	defaultMinCandidates       = 100
	defaultCandidateMultiplier = 5
	defaultFetchTimeout        = 3 * time.Second
)

// CandidateSource retrieves scored candidates; its backing (index, table
// scan, cache) is out of scope here. FetchSimilar returns an empty, nil-error
// result when the source dish does not exist.
type CandidateSource interface {
	Fetch(ctx context.Context, scene string, filter domain.RecommendFilter, search string, limit int) ([]domain.Candidate, error)
	FetchSimilar(ctx context.Context, dishID uint64, limit int) ([]domain.Candidate, error)
}

// CandidateCache keeps the last successful candidate batch per scene and
// filter so serving can degrade gracefully when the source is down.
type CandidateCache interface {
	Get(ctx context.Context, scene, filterKey string) ([]domain.Candidate, bool, error)
	Set(ctx context.Context, scene, filterKey string, cands []domain.Candidate) error
}

// ExperimentResolver is the slice of the experiment registry serving needs.
type ExperimentResolver interface {
	ActiveForScene(scene string) []domain.Experiment
	Assign(ctx context.Context, userID uint, exp domain.Experiment) (domain.ExperimentGroup, bool)
}

// EventRecorder logs impressions for served pages; failures must never
// break serving.
type EventRecorder interface {
	LogImpressions(ctx context.Context, requestID string, userID uint, scene, experiment, group string, dishIDs []uint64) error
}

type ServiceConfig struct {
	Weights             Weights
	MinCandidates       int
	CandidateMultiplier int
	FetchTimeout        time.Duration
}

type Service struct {
	candidates  CandidateSource
	sessions    *session.Cache
	experiments ExperimentResolver
	events      EventRecorder
	cache       CandidateCache

	weights       Weights
	minCandidates int
	multiplier    int
	fetchTimeout  time.Duration
}

func NewService(
	candidates CandidateSource,
	sessions *session.Cache,
	experiments ExperimentResolver,
	events EventRecorder,
	cache CandidateCache,
	cfg ServiceConfig,
) *Service {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if cfg.MinCandidates <= 0 {
		cfg.MinCandidates = defaultMinCandidates
	}
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = defaultCandidateMultiplier
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}

	return &Service{
		candidates:    candidates,
		sessions:      sessions,
		experiments:   experiments,
		events:        events,
		cache:         cache,
		weights:       cfg.Weights,
		minCandidates: cfg.MinCandidates,
		multiplier:    cfg.CandidateMultiplier,
		fetchTimeout:  cfg.FetchTimeout,
	}
}

// Recommend serves one page of ranked items. It prefers empty-but-valid
// results over propagated upstream errors: a missing similar-source dish,
// an unsatisfiable filter, or a candidate-source outage with no cached
// fallback all yield an empty page, not a failure.
func (s *Service) Recommend(ctx context.Context, req domain.RecommendRequest) (domain.RecommendResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.RecommendResponse{}, fmt.Errorf("context error: %w", err)
	}

	page := req.Pagination.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	scene := resolveScene(req)

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	// 1) session
	view := s.sessions.GetOrCreate(req.UserID, requestID, page)

	// 2) candidates
	limit := s.candidateLimit(page, pageSize)
	cands := s.fetchCandidates(ctx, req, scene, limit)

	// 3) exclude already-served ids
	remaining := make([]domain.Candidate, 0, len(cands))
	for _, c := range cands {
		if _, served := view.ServedIDs[c.DishID]; served {
			continue
		}
		remaining = append(remaining, c)
	}

	// 4) context adjustments, 5) experiment overrides
	w := s.weights.forContext(req.UserContext)

	var expName, groupName string
	for _, exp := range s.experiments.ActiveForScene(scene) {
		group, ok := s.experiments.Assign(ctx, req.UserID, exp)
		if !ok {
			continue
		}
		w = w.withOverrides(group.Config)
		expName = exp.Name
		groupName = group.Name
		break
	}

	// 6) rank and paginate; prior pages are excluded via the session, so
	// the head of the ranked remainder is the next page
	ranked := rankCandidates(remaining, w, req.IncludeScoreBreakdown)
	total := len(ranked)
	if len(ranked) > pageSize {
		ranked = ranked[:pageSize]
	}

	// 7) record served ids
	ids := make([]uint64, 0, len(ranked))
	for _, item := range ranked {
		ids = append(ids, item.DishID)
	}
	s.sessions.RecordServed(req.UserID, requestID, ids, page)

	if s.events != nil && len(ids) > 0 {
		if err := s.events.LogImpressions(ctx, requestID, req.UserID, scene, expName, groupName, ids); err != nil {
			logger.Warn("impression logging failed", "request_id", requestID, "error", err)
		}
	}

	return domain.RecommendResponse{
		Items:     ranked,
		RequestID: requestID,
		Meta: domain.RecommendMeta{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			Scene:      scene,
			Experiment: expName,
			Group:      groupName,
		},
	}, nil
}

// RecallForUser produces the top-k recalled dish ids for one user outside
// any session, as used by offline quality evaluation.
func (s *Service) RecallForUser(ctx context.Context, userID uint, k int) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if k <= 0 {
		k = defaultPageSize
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	cands, err := s.candidates.Fetch(fetchCtx, domain.SceneHome, domain.RecommendFilter{}, "", s.candidateLimit(1, k))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recall candidates: %w", err)
	}

	ranked := rankCandidates(cands, s.weights, false)
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	ids := make([]uint64, 0, len(ranked))
	for _, item := range ranked {
		ids = append(ids, item.DishID)
	}

	return ids, nil
}

func resolveScene(req domain.RecommendRequest) string {
	switch {
	case req.TriggerDishID != 0:
		return domain.SceneSimilar
	case req.Search != "":
		return domain.SceneSearch
	case req.Scene != "":
		return req.Scene
	default:
		return domain.SceneHome
	}
}

// candidateLimit over-fetches so session exclusion and later pages do not
// starve the ranker.
func (s *Service) candidateLimit(page, pageSize int) int {
	limit := page * pageSize * s.multiplier
	if limit < s.minCandidates {
		limit = s.minCandidates
	}

	return limit
}

// fetchCandidates retrieves candidates for the request, degrading to the
// last-good cached batch on source failure. Never returns an error; an
// empty slice is the final fallback.
func (s *Service) fetchCandidates(ctx context.Context, req domain.RecommendRequest, scene string, limit int) []domain.Candidate {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	if scene == domain.SceneSimilar {
		cands, err := s.candidates.FetchSimilar(fetchCtx, req.TriggerDishID, limit)
		if err != nil {
			logger.Warn("similar candidate fetch failed", "dish_id", req.TriggerDishID, "error", err)
			return nil
		}
		return cands
	}

	key := filterKey(req.Filter, req.Search)

	cands, err := s.candidates.Fetch(fetchCtx, scene, req.Filter, req.Search, limit)
	if err != nil {
		logger.Warn("candidate fetch failed, trying cached batch", "scene", scene, "error", err)

		if s.cache != nil {
			cached, ok, cacheErr := s.cache.Get(ctx, scene, key)
			if cacheErr != nil {
				logger.Warn("candidate cache read failed", "scene", scene, "error", cacheErr)
			} else if ok {
				return cached
			}
		}

		return nil
	}

	if s.cache != nil && len(cands) > 0 {
		if err := s.cache.Set(ctx, scene, key, cands); err != nil {
			logger.Warn("candidate cache write failed", "scene", scene, "error", err)
		}
	}

	return cands
}

// filterKey derives a short cache-key fragment from the filter shape.
func filterKey(f domain.RecommendFilter, search string) string {
	raw := fmt.Sprintf("c=%d|w=%d|pmin=%v|pmax=%v|tags=%v|q=%s", f.CanteenID, f.WindowID, f.PriceMin, f.PriceMax, f.Tags, search)

	sum := sha256.Sum256([]byte(raw))

	return goshortcute.StringtoBase64Encode(string(sum[:8]))
}
