package events

import (
	"context"
	"fmt"
	"time"

	"campusCanteen/domain"
	"campusCanteen/pkg/logger"

	"gorm.io/datatypes"
)

var validEventTypes = map[string]bool{
	domain.EventTypeImpression: true,
	domain.EventTypeClick:      true,
	domain.EventTypeFavorite:   true,
	domain.EventTypeReview:     true,
	domain.EventTypeDislike:    true,
}

// Repository persists the append-only event chain and answers the
// aggregate queries analytics needs.
type Repository interface {
	Save(ctx context.Context, event domain.RecommendEvent) error
	SaveBatch(ctx context.Context, events []domain.RecommendEvent) error
	ChainByRequestID(ctx context.Context, requestID string) ([]domain.RecommendEvent, error)
	CountByDish(ctx context.Context, dishID uint64, eventType string, since time.Time) (int64, error)
	CountByGroup(ctx context.Context, experiment, group, eventType string, since time.Time) (int64, error)
	CountByUser(ctx context.Context, userID uint, eventType string, since time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CounterCache keeps cheap daily per-dish counters in redis for dashboards;
// failures are logged, never surfaced.
type CounterCache interface {
	IncrDaily(ctx context.Context, eventType string, dishID uint64) error
}

type Service struct {
	repo     Repository
	counters CounterCache
}

func NewService(repo Repository, counters CounterCache) *Service {
	return &Service{
		repo:     repo,
		counters: counters,
	}
}

func validate(event domain.RecommendEvent) error {
	if event.RequestID == "" {
		return fmt.Errorf("%w: request_id is required", domain.ErrValidation)
	}
	if event.DishID == 0 {
		return fmt.Errorf("%w: dish_id is required", domain.ErrValidation)
	}
	if !validEventTypes[event.EventType] {
		return fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, event.EventType)
	}
	if event.EventType == domain.EventTypeReview {
		if event.Rating < 1 || event.Rating > 5 {
			return fmt.Errorf("%w: rating %d outside [1,5]", domain.ErrValidation, event.Rating)
		}
	}

	return nil
}

// Append validates and persists one event. Validation runs before any
// write; out-of-range ratings are rejected, never clamped.
func (s *Service) Append(ctx context.Context, event domain.RecommendEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := validate(event); err != nil {
		return err
	}

	if err := s.repo.Save(ctx, event); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	s.bumpCounter(ctx, event.EventType, event.DishID)
	EventsLoggedTotal.WithLabelValues(event.EventType, event.Scene).Inc()

	return nil
}

// Chain returns every event for a requestId in insertion order.
func (s *Service) Chain(ctx context.Context, requestID string) ([]domain.RecommendEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if requestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", domain.ErrValidation)
	}

	chain, err := s.repo.ChainByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event chain: %w", err)
	}

	return chain, nil
}

// LogImpressions batch-records the dishes a served page exposed,
// preserving their on-page positions. When the page was served under an
// experiment, the experiment and group names are stamped on each
// impression so group metrics can attribute downstream events through
// the shared requestId.
func (s *Service) LogImpressions(ctx context.Context, requestID string, userID uint, scene, experiment, group string, dishIDs []uint64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(dishIDs) == 0 {
		return nil
	}

	var extra datatypes.JSONMap
	if experiment != "" {
		extra = datatypes.JSONMap{"experiment": experiment, "group": group}
	}

	batch := make([]domain.RecommendEvent, 0, len(dishIDs))
	for i, id := range dishIDs {
		batch = append(batch, domain.RecommendEvent{
			RequestID: requestID,
			UserID:    userID,
			DishID:    id,
			EventType: domain.EventTypeImpression,
			Position:  i,
			Scene:     scene,
			Extra:     extra,
		})
	}

	if err := s.repo.SaveBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to save impressions: %w", err)
	}

	for _, id := range dishIDs {
		s.bumpCounter(ctx, domain.EventTypeImpression, id)
	}
	EventsLoggedTotal.WithLabelValues(domain.EventTypeImpression, scene).Add(float64(len(batch)))

	return nil
}

type CTRStats struct {
	DishID      uint64  `json:"dish_id"`
	Days        int     `json:"days"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

func (s *Service) DishCTR(ctx context.Context, dishID uint64, days int) (CTRStats, error) {
	if err := ctx.Err(); err != nil {
		return CTRStats{}, fmt.Errorf("context error: %w", err)
	}
	if days <= 0 {
		days = 7
	}

	since := time.Now().AddDate(0, 0, -days)

	impressions, err := s.repo.CountByDish(ctx, dishID, domain.EventTypeImpression, since)
	if err != nil {
		return CTRStats{}, fmt.Errorf("failed to count impressions: %w", err)
	}

	clicks, err := s.repo.CountByDish(ctx, dishID, domain.EventTypeClick, since)
	if err != nil {
		return CTRStats{}, fmt.Errorf("failed to count clicks: %w", err)
	}

	stats := CTRStats{
		DishID:      dishID,
		Days:        days,
		Impressions: impressions,
		Clicks:      clicks,
	}
	if impressions > 0 {
		stats.CTR = float64(clicks) / float64(impressions)
	}

	return stats, nil
}

type GroupMetrics struct {
	Experiment   string  `json:"experiment"`
	Group        string  `json:"group"`
	Days         int     `json:"days"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	Favorites    int64   `json:"favorites"`
	CTR          float64 `json:"ctr"`
	FavoriteRate float64 `json:"favorite_rate"`
}

// ExperimentGroupMetrics aggregates engagement for one experiment group.
// Attribution runs through the request chain: any event whose requestId
// was served under the group counts toward it.
func (s *Service) ExperimentGroupMetrics(ctx context.Context, experiment, group string, days int) (GroupMetrics, error) {
	if err := ctx.Err(); err != nil {
		return GroupMetrics{}, fmt.Errorf("context error: %w", err)
	}
	if experiment == "" || group == "" {
		return GroupMetrics{}, fmt.Errorf("%w: experiment and group are required", domain.ErrValidation)
	}
	if days <= 0 {
		days = 7
	}

	since := time.Now().AddDate(0, 0, -days)
	m := GroupMetrics{Experiment: experiment, Group: group, Days: days}

	steps := []struct {
		eventType string
		dst       *int64
	}{
		{domain.EventTypeImpression, &m.Impressions},
		{domain.EventTypeClick, &m.Clicks},
		{domain.EventTypeFavorite, &m.Favorites},
	}

	for _, step := range steps {
		n, err := s.repo.CountByGroup(ctx, experiment, group, step.eventType, since)
		if err != nil {
			return GroupMetrics{}, fmt.Errorf("failed to count group %s events: %w", step.eventType, err)
		}
		*step.dst = n
	}

	if m.Impressions > 0 {
		m.CTR = float64(m.Clicks) / float64(m.Impressions)
		m.FavoriteRate = float64(m.Favorites) / float64(m.Impressions)
	}

	return m, nil
}

type Funnel struct {
	UserID      uint  `json:"user_id"`
	Days        int   `json:"days"`
	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
	Favorites   int64 `json:"favorites"`
	Reviews     int64 `json:"reviews"`
	Dislikes    int64 `json:"dislikes"`
}

func (s *Service) UserFunnel(ctx context.Context, userID uint, days int) (Funnel, error) {
	if err := ctx.Err(); err != nil {
		return Funnel{}, fmt.Errorf("context error: %w", err)
	}
	if days <= 0 {
		days = 7
	}

	since := time.Now().AddDate(0, 0, -days)
	funnel := Funnel{UserID: userID, Days: days}

	steps := []struct {
		eventType string
		dst       *int64
	}{
		{domain.EventTypeImpression, &funnel.Impressions},
		{domain.EventTypeClick, &funnel.Clicks},
		{domain.EventTypeFavorite, &funnel.Favorites},
		{domain.EventTypeReview, &funnel.Reviews},
		{domain.EventTypeDislike, &funnel.Dislikes},
	}

	for _, step := range steps {
		n, err := s.repo.CountByUser(ctx, userID, step.eventType, since)
		if err != nil {
			return Funnel{}, fmt.Errorf("failed to count %s events: %w", step.eventType, err)
		}
		*step.dst = n
	}

	return funnel, nil
}

// CleanupOldEvents sweeps events older than the retention window.
func (s *Service) CleanupOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	if retentionDays <= 0 {
		return 0, fmt.Errorf("%w: retention days must be positive", domain.ErrValidation)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}

	if removed > 0 {
		logger.Info("event retention sweep", "removed", removed, "cutoff", cutoff)
	}

	return removed, nil
}

func (s *Service) bumpCounter(ctx context.Context, eventType string, dishID uint64) {
	if s.counters == nil {
		return
	}
	if err := s.counters.IncrDaily(ctx, eventType, dishID); err != nil {
		logger.Warn("daily counter increment failed", "event_type", eventType, "dish_id", dishID, "error", err)
	}
}
