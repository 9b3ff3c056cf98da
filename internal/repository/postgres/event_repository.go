package postgres

import (
	"context"
	"fmt"
	"time"

	"campusCanteen/business/events"
	"campusCanteen/domain"

	"gorm.io/gorm"
)

type EventRepository struct {
	DB *gorm.DB
}

var _ events.Repository = (*EventRepository)(nil)

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{DB: db}
}

func (r *EventRepository) Save(ctx context.Context, event domain.RecommendEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	return nil
}

func (r *EventRepository) SaveBatch(ctx context.Context, evts []domain.RecommendEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(evts) == 0 {
		return nil
	}

	if err := r.DB.WithContext(ctx).CreateInBatches(&evts, 100).Error; err != nil {
		return fmt.Errorf("failed to save event batch: %w", err)
	}

	return nil
}

// ChainByRequestID returns the full event chain in insertion order.
func (r *EventRepository) ChainByRequestID(ctx context.Context, requestID string) ([]domain.RecommendEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var chain []domain.RecommendEvent
	err := r.DB.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").
		Find(&chain).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query event chain: %w", err)
	}

	return chain, nil
}

func (r *EventRepository) CountByDish(ctx context.Context, dishID uint64, eventType string, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.RecommendEvent{}).
		Where("dish_id = ? AND event_type = ? AND created_at >= ?", dishID, eventType, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count dish events: %w", err)
	}

	return count, nil
}

// CountByGroup counts events attributable to an experiment group: events
// whose request chain started with an impression stamped with that
// experiment and group.
func (r *EventRepository) CountByGroup(ctx context.Context, experiment, group, eventType string, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	tagged := r.DB.WithContext(ctx).Model(&domain.RecommendEvent{}).
		Select("DISTINCT request_id").
		Where("event_type = ? AND extra->>'experiment' = ? AND extra->>'group' = ?", domain.EventTypeImpression, experiment, group)

	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.RecommendEvent{}).
		Where("event_type = ? AND created_at >= ? AND request_id IN (?)", eventType, since, tagged).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count group events: %w", err)
	}

	return count, nil
}

func (r *EventRepository) CountByUser(ctx context.Context, userID uint, eventType string, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.RecommendEvent{}).
		Where("user_id = ? AND event_type = ? AND created_at >= ?", userID, eventType, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count user events: %w", err)
	}

	return count, nil
}

func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&domain.RecommendEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", res.Error)
	}

	return res.RowsAffected, nil
}
