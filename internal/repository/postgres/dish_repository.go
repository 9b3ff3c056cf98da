package postgres

import (
	"context"
	"fmt"
	"strings"

	"campusCanteen/business/recallmetrics"
	"campusCanteen/business/recommend"
	"campusCanteen/domain"

	"gorm.io/gorm"
)

// base relevance weights applied to catalog popularity signals
const (
	ratingWeight     = 20.0
	favoriteWeight   = 0.3
	salesWeight      = 0.2
	keywordMatchBump = 25.0

	popularityCap = 100.0

	// over-fetch factor for pools that get filtered in memory
	poolFactor = 3
)

type DishRepository struct {
	DB *gorm.DB
}

var (
	_ recommend.CandidateSource  = (*DishRepository)(nil)
	_ recallmetrics.CatalogStore = (*DishRepository)(nil)
)

func NewDishRepository(db *gorm.DB) *DishRepository {
	return &DishRepository{DB: db}
}

// Fetch retrieves online dishes matching the filter, scored by catalog
// popularity. Search keywords restrict the set and bump matching names.
func (r *DishRepository) Fetch(ctx context.Context, scene string, filter domain.RecommendFilter, search string, limit int) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if limit <= 0 {
		limit = 100
	}

	q := r.DB.WithContext(ctx).Model(&domain.Dish{}).Where("is_online = ?", true)

	if filter.CanteenID != 0 {
		q = q.Where("canteen_id = ?", filter.CanteenID)
	}
	if filter.WindowID != 0 {
		q = q.Where("window_id = ?", filter.WindowID)
	}
	if filter.PriceMin != nil {
		q = q.Where("price >= ?", *filter.PriceMin)
	}
	if filter.PriceMax != nil {
		q = q.Where("price <= ?", *filter.PriceMax)
	}
	if search != "" {
		q = q.Where("name ILIKE ?", "%"+search+"%")
	}

	// over-fetch so the in-memory tag filter does not starve the limit
	fetchLimit := limit
	if len(filter.Tags) > 0 {
		fetchLimit = limit * poolFactor
	}

	var dishes []domain.Dish
	err := q.Order("avg_rating DESC, favorite_count DESC").Limit(fetchLimit).Find(&dishes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query dishes: %w", err)
	}

	out := make([]domain.Candidate, 0, len(dishes))
	for _, d := range dishes {
		if len(filter.Tags) > 0 && !hasAnyTag(d.Tags, filter.Tags) {
			continue
		}
		out = append(out, toCandidate(d, search))
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

// FetchSimilar retrieves dishes related to a source dish by shared tags
// and canteen. A missing source dish yields an empty result, not an error.
func (r *DishRepository) FetchSimilar(ctx context.Context, dishID uint64, limit int) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if limit <= 0 {
		limit = 100
	}

	var source domain.Dish
	err := r.DB.WithContext(ctx).First(&source, "id = ?", dishID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source dish: %w", err)
	}

	var pool []domain.Dish
	err = r.DB.WithContext(ctx).
		Where("is_online = ? AND id <> ?", true, dishID).
		Order("avg_rating DESC, favorite_count DESC").
		Limit(limit * poolFactor).
		Find(&pool).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query similar pool: %w", err)
	}

	out := make([]domain.Candidate, 0, limit)
	for _, d := range pool {
		overlap := tagOverlap(source.Tags, d.Tags)
		if overlap == 0 && d.CanteenID != source.CanteenID {
			continue
		}

		c := toCandidate(d, "")
		c.BaseScore += float64(overlap) * keywordMatchBump
		if d.CanteenID == source.CanteenID {
			c.BaseScore += keywordMatchBump / 2
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (r *DishRepository) CountOnline(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.Dish{}).Where("is_online = ?", true).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count online dishes: %w", err)
	}

	return count, nil
}

func (r *DishRepository) TagsFor(ctx context.Context, dishIDs []uint64) (map[uint64][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if len(dishIDs) == 0 {
		return map[uint64][]string{}, nil
	}

	var dishes []domain.Dish
	err := r.DB.WithContext(ctx).Select("id", "tags").Where("id IN ?", dishIDs).Find(&dishes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load dish tags: %w", err)
	}

	out := make(map[uint64][]string, len(dishes))
	for _, d := range dishes {
		out[d.ID] = d.Tags
	}

	return out, nil
}

func toCandidate(d domain.Dish, search string) domain.Candidate {
	base := d.AvgRating * ratingWeight
	base += capped(float64(d.FavoriteCount)) * favoriteWeight
	base += capped(float64(d.SalesCount)) * salesWeight

	if search != "" && strings.Contains(strings.ToLower(d.Name), strings.ToLower(search)) {
		base += keywordMatchBump
	}

	return domain.Candidate{
		DishID:      d.ID,
		BaseScore:   base,
		Tags:        d.Tags,
		PrepSeconds: d.PrepSeconds,
	}
}

func capped(v float64) float64 {
	if v > popularityCap {
		return popularityCap
	}

	return v
}

func hasAnyTag(tags []string, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if t == w {
				return true
			}
		}
	}

	return false
}

func tagOverlap(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}

	n := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			n++
		}
	}

	return n
}
