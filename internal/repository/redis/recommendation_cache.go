package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campusCanteen/business/events"
	"campusCanteen/business/experiment"
	"campusCanteen/business/recommend"
	"campusCanteen/domain"

	"github.com/redis/go-redis/v9"
)

const (
	assignmentTTL   = 24 * time.Hour
	dailyCounterTTL = 7 * 24 * time.Hour
)

// RecommendationCache backs the serving layer's redis-side concerns:
// sticky experiment assignments, last-good candidate batches and the
// daily event counters the dashboards read.
type RecommendationCache struct {
	client       *redis.Client
	candidateTTL time.Duration
}

var _ experiment.AssignmentCache = (*RecommendationCache)(nil)
var _ recommend.CandidateCache = (*RecommendationCache)(nil)
var _ events.CounterCache = (*RecommendationCache)(nil)

func NewRecommendationCache(client *redis.Client, candidateTTL time.Duration) *RecommendationCache {
	if candidateTTL <= 0 {
		candidateTTL = 10 * time.Minute
	}
	return &RecommendationCache{
		client:       client,
		candidateTTL: candidateTTL,
	}
}

// GetGroup returns the cached group id for a user's experiment
// assignment. Group ids are re-stamped on every group replacement, so a
// stale entry simply stops matching on the caller's side.
func (r *RecommendationCache) GetGroup(ctx context.Context, experimentID string, userID uint) (string, bool, error) {
	key := fmt.Sprintf("rec:experiment:user_group:%s:%d", experimentID, userID)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get assignment from Redis: %w", err)
	}

	return val, true, nil
}

func (r *RecommendationCache) SetGroup(ctx context.Context, experimentID string, userID uint, groupID string) error {
	key := fmt.Sprintf("rec:experiment:user_group:%s:%d", experimentID, userID)

	err := r.client.Set(ctx, key, groupID, assignmentTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to store assignment in Redis: %w", err)
	}

	return nil
}

// Get returns the last successful candidate batch for a scene and filter.
func (r *RecommendationCache) Get(ctx context.Context, scene, filterKey string) ([]domain.Candidate, bool, error) {
	key := fmt.Sprintf("rec:candidates:%s:%s", scene, filterKey)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get candidates from Redis: %w", err)
	}

	var cands []domain.Candidate
	if err := json.Unmarshal([]byte(val), &cands); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached candidates: %w", err)
	}

	return cands, true, nil
}

func (r *RecommendationCache) Set(ctx context.Context, scene, filterKey string, cands []domain.Candidate) error {
	key := fmt.Sprintf("rec:candidates:%s:%s", scene, filterKey)

	jsonData, err := json.Marshal(cands)
	if err != nil {
		return fmt.Errorf("failed to marshal candidates: %w", err)
	}

	err = r.client.Set(ctx, key, jsonData, r.candidateTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to store candidates in Redis: %w", err)
	}

	return nil
}

func (r *RecommendationCache) IncrDaily(ctx context.Context, eventType string, dishID uint64) error {
	key := fmt.Sprintf("rec:event:daily:%s:%d:%s", eventType, dishID, time.Now().Format("2006-01-02"))

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment daily counter: %w", err)
	}

	// first increment of the day sets the expiry
	if count == 1 {
		if err := r.client.Expire(ctx, key, dailyCounterTTL).Err(); err != nil {
			return fmt.Errorf("failed to set counter TTL: %w", err)
		}
	}

	return nil
}
