package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campusCanteen/business/session"
	"campusCanteen/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	cands    []domain.Candidate
	similar  map[uint64][]domain.Candidate
	fetchErr error
	calls    int
}

func (f *fakeSource) Fetch(ctx context.Context, scene string, filter domain.RecommendFilter, search string, limit int) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	// honor an unsatisfiable price range the way a real source would
	if filter.PriceMin != nil && filter.PriceMax != nil {
		out := make([]domain.Candidate, 0)
		for _, c := range f.cands {
			price := float64(c.DishID) // stand-in price
			if price >= *filter.PriceMin && price <= *filter.PriceMax {
				out = append(out, c)
			}
		}
		return out, nil
	}

	if limit > len(f.cands) {
		limit = len(f.cands)
	}
	return append([]domain.Candidate(nil), f.cands[:limit]...), nil
}

func (f *fakeSource) FetchSimilar(ctx context.Context, dishID uint64, limit int) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.similar[dishID], nil
}

type fakeResolver struct {
	exps  []domain.Experiment
	group domain.ExperimentGroup
	ok    bool
}

func (f *fakeResolver) ActiveForScene(scene string) []domain.Experiment {
	out := make([]domain.Experiment, 0, len(f.exps))
	for _, e := range f.exps {
		if e.AppliesTo(scene) {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeResolver) Assign(ctx context.Context, userID uint, exp domain.Experiment) (domain.ExperimentGroup, bool) {
	return f.group, f.ok
}

type fakeRecorder struct {
	mu          sync.Mutex
	impressions [][]uint64
}

func (f *fakeRecorder) LogImpressions(ctx context.Context, requestID string, userID uint, scene, experiment, group string, dishIDs []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.impressions = append(f.impressions, dishIDs)
	return nil
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]domain.Candidate
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]domain.Candidate)}
}

func (f *fakeCache) Get(ctx context.Context, scene, filterKey string) ([]domain.Candidate, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.store[scene+"|"+filterKey]
	return c, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, scene, filterKey string, cands []domain.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[scene+"|"+filterKey] = cands
	return nil
}

func poolOf(n int) []domain.Candidate {
	cands := make([]domain.Candidate, 0, n)
	for i := 1; i <= n; i++ {
		cands = append(cands, domain.Candidate{
			DishID:    uint64(i),
			BaseScore: float64(n - i + 1),
			Tags:      []string{"tag-" + string(rune('a'+i%5))},
		})
	}
	return cands
}

func newTestService(src *fakeSource, resolver ExperimentResolver, rec EventRecorder, cache CandidateCache) (*Service, *session.Cache) {
	sessions := session.NewCache(30*time.Minute, 0)
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	svc := NewService(src, sessions, resolver, rec, cache, ServiceConfig{})
	return svc, sessions
}

func TestPagesNeverOverlapWithinSession(t *testing.T) {
	src := &fakeSource{cands: poolOf(40)}
	svc, sessions := newTestService(src, nil, nil, nil)
	defer sessions.Stop()

	req := domain.RecommendRequest{
		UserID:     7,
		Pagination: domain.Pagination{Page: 1, PageSize: 10},
	}

	first, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Items, 10)
	require.NotEmpty(t, first.RequestID)

	req.RequestID = first.RequestID
	req.Pagination.Page = 2
	second, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, second.Items, 10)

	seen := make(map[uint64]struct{})
	for _, item := range first.Items {
		seen[item.DishID] = struct{}{}
	}
	for _, item := range second.Items {
		_, dup := seen[item.DishID]
		assert.False(t, dup, "dish %d served on both pages", item.DishID)
	}
}

func TestPageOneRetryResetsSession(t *testing.T) {
	src := &fakeSource{cands: poolOf(20)}
	svc, sessions := newTestService(src, nil, nil, nil)
	defer sessions.Stop()

	req := domain.RecommendRequest{
		UserID:     7,
		RequestID:  "req-reset",
		Pagination: domain.Pagination{Page: 1, PageSize: 10},
	}

	first, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)

	again, err := svc.Recommend(context.Background(), req)
	require.NoError(t, err)

	// fresh session: the best items come back again
	assert.Equal(t, first.Items[0].DishID, again.Items[0].DishID)
}

func TestUnsatisfiableFilterYieldsEmptyPage(t *testing.T) {
	src := &fakeSource{cands: poolOf(20)}
	svc, sessions := newTestService(src, nil, nil, nil)
	defer sessions.Stop()

	min, max := 99999.0, 100000.0
	resp, err := svc.Recommend(context.Background(), domain.RecommendRequest{
		UserID:     7,
		Filter:     domain.RecommendFilter{PriceMin: &min, PriceMax: &max},
		Pagination: domain.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err, "impossible filters are not an error")
	assert.Empty(t, resp.Items)
	assert.Equal(t, 0, resp.Meta.Total)
}

func TestSimilarMissingSourceDishYieldsEmptyPage(t *testing.T) {
	src := &fakeSource{cands: poolOf(20), similar: map[uint64][]domain.Candidate{}}
	svc, sessions := newTestService(src, nil, nil, nil)
	defer sessions.Stop()

	resp, err := svc.Recommend(context.Background(), domain.RecommendRequest{
		UserID:        7,
		TriggerDishID: 424242,
		Pagination:    domain.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, domain.SceneSimilar, resp.Meta.Scene)
}

func TestSourceOutageDegradesToCachedCandidates(t *testing.T) {
	src := &fakeSource{cands: poolOf(20)}
	cache := newFakeCache()
	svc, sessions := newTestService(src, nil, nil, cache)
	defer sessions.Stop()

	// first call succeeds and populates the cache
	resp, err := svc.Recommend(context.Background(), domain.RecommendRequest{
		UserID:     7,
		Pagination: domain.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Items)

	// source goes down; a fresh session still gets a page from the cache
	src.mu.Lock()
	src.fetchErr = errors.New("source timeout")
	src.mu.Unlock()

	resp, err = svc.Recommend(context.Background(), domain.RecommendRequest{
		UserID:     8,
		Pagination: domain.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Items)
}

func TestSourceOutageWithoutCacheYieldsEmptyPage(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New("source timeout")}
	svc, sessions := newTestService(src, nil, nil, nil)
	defer sessions.Stop()

	resp, err := svc.Recommend(context.Background(), domain.RecommendRequest{
		UserID:     7,
		Pagination: domain.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err, "serving must not hard-fail on a source outage")
	assert.Empty(t, resp.Items)
}

func TestExperimentOverridesApplied(t *testing.T) {
	src := &fakeSource{cands: poolOf(20)}
	resolver := &fakeResolver{
		exps: []domain.Experiment{{ID: "e1", Name: "weights-test", Status: domain.ExperimentStatusRunning}},
		group: domain.ExperimentGroup{
			Name:   "all-base",
			Config: map[string]any{"base_weight": 1.0, "diversity_weight": 0.0, "urgency_weight": 0.0},
		},
		ok: true,
	}
	svc, sessions := newTestService(src, resolver, nil, nil)
	defer sessions.Stop()

	resp, err := svc.Recommend(context.Background(), domain.RecommendRequest{
		UserID:                7,
		IncludeScoreBreakdown: true,
		Pagination:            domain.Pagination{Page: 1, PageSize: 5},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Items)
	assert.Equal(t, "weights-test", resp.Meta.Experiment)
	assert.Equal(t, "all-base", resp.Meta.Group)

	for _, item := range resp.Items {
		assert.Zero(t, item.ScoreBreakdown["diversity"])
		assert.Zero(t, item.ScoreBreakdown["urgency"])
	}
}

func TestImpressionsRecordedForServedPage(t *testing.T) {
	src := &fakeSource{cands: poolOf(20)}
	rec := &fakeRecorder{}
	svc, sessions := newTestService(src, nil, rec, nil)
	defer sessions.Stop()

	resp, err := svc.Recommend(context.Background(), domain.RecommendRequest{
		UserID:     7,
		Pagination: domain.Pagination{Page: 1, PageSize: 10},
	})
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.impressions, 1)
	assert.Len(t, rec.impressions[0], len(resp.Items))
}

func TestRecallForUserReturnsTopK(t *testing.T) {
	src := &fakeSource{cands: poolOf(40)}
	svc, sessions := newTestService(src, nil, nil, nil)
	defer sessions.Stop()

	ids, err := svc.RecallForUser(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 10)
	assert.Equal(t, uint64(1), ids[0], "highest base score first")
}

func TestSceneResolution(t *testing.T) {
	assert.Equal(t, domain.SceneSimilar, resolveScene(domain.RecommendRequest{TriggerDishID: 1, Search: "noodle"}))
	assert.Equal(t, domain.SceneSearch, resolveScene(domain.RecommendRequest{Search: "noodle"}))
	assert.Equal(t, domain.ScenePersonal, resolveScene(domain.RecommendRequest{Scene: domain.ScenePersonal}))
	assert.Equal(t, domain.SceneHome, resolveScene(domain.RecommendRequest{}))
}
