package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Dish struct {
	ID            uint64                      `gorm:"primaryKey" json:"id"`
	Name          string                      `gorm:"column:name;not null" json:"name"`
	Price         float64                     `gorm:"column:price;not null" json:"price"`
	CanteenID     uint                        `gorm:"column:canteen_id;not null" json:"canteen_id"`
	WindowID      uint                        `gorm:"column:window_id" json:"window_id"`
	Tags          datatypes.JSONSlice[string] `gorm:"column:tags;type:jsonb" json:"tags"`
	AvgRating     float64                     `gorm:"column:avg_rating" json:"avg_rating"`
	RatingCount   int64                       `gorm:"column:rating_count" json:"rating_count"`
	FavoriteCount int64                       `gorm:"column:favorite_count" json:"favorite_count"`
	SalesCount    int64                       `gorm:"column:sales_count" json:"sales_count"`
	PrepSeconds   int                         `gorm:"column:prep_seconds" json:"prep_seconds"`
	IsOnline      bool                        `gorm:"column:is_online;default:true" json:"is_online"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Dish) TableName() string {
	return "dishes"
}
