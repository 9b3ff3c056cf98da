package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventTypeImpression = "impression"
	EventTypeClick      = "click"
	EventTypeFavorite   = "favorite"
	EventTypeReview     = "review"
	EventTypeDislike    = "dislike"
)

type RecommendEvent struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	RequestID string            `gorm:"column:request_id;not null;index" json:"request_id"`
	UserID    uint              `gorm:"column:user_id;not null;index" json:"user_id"`
	DishID    uint64            `gorm:"column:dish_id;not null" json:"dish_id"`
	EventType string            `gorm:"column:event_type;not null" json:"event_type"`
	Position  int               `gorm:"column:position" json:"position"`
	Rating    int               `gorm:"column:rating" json:"rating,omitempty"` // review events only, [1,5]
	Scene     string            `gorm:"column:scene" json:"scene,omitempty"`
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb" json:"extra,omitempty"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (RecommendEvent) TableName() string {
	return "recommend_events"
}
