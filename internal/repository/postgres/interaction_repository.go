package postgres

import (
	"context"
	"fmt"
	"time"

	"campusCanteen/business/recallmetrics"
	"campusCanteen/domain"

	"gorm.io/gorm"
)

// positiveRatingFloor is the rating from which a review counts as a
// positive interaction.
const positiveRatingFloor = 4

type InteractionRepository struct {
	DB *gorm.DB
}

var _ recallmetrics.HistoryStore = (*InteractionRepository)(nil)

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{DB: db}
}

// PositiveDishIDs returns the dishes a user favorited or rated at least 4
// since the given time.
func (r *InteractionRepository) PositiveDishIDs(ctx context.Context, userID uint, since time.Time) (map[uint64]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	out := make(map[uint64]struct{})

	var favDishIDs []uint64
	err := r.DB.WithContext(ctx).Model(&domain.Favorite{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Pluck("dish_id", &favDishIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	for _, id := range favDishIDs {
		out[id] = struct{}{}
	}

	var reviewDishIDs []uint64
	err = r.DB.WithContext(ctx).Model(&domain.Review{}).
		Where("user_id = ? AND rating >= ? AND created_at >= ?", userID, positiveRatingFloor, since).
		Pluck("dish_id", &reviewDishIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	for _, id := range reviewDishIDs {
		out[id] = struct{}{}
	}

	return out, nil
}

// ActiveUserIDs samples users with any favorite or review activity since
// the given time, most recent first.
func (r *InteractionRepository) ActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]uint, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if limit <= 0 {
		limit = 100
	}

	var userIDs []uint
	err := r.DB.WithContext(ctx).Raw(`
		SELECT user_id FROM (
			SELECT user_id, MAX(created_at) AS last_seen FROM (
				SELECT user_id, created_at FROM favorites WHERE created_at >= ?
				UNION ALL
				SELECT user_id, created_at FROM reviews WHERE created_at >= ?
			) activity
			GROUP BY user_id
		) ranked
		ORDER BY last_seen DESC
		LIMIT ?`, since, since, limit).Scan(&userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sample active users: %w", err)
	}

	return userIDs, nil
}
