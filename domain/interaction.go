package domain

import "time"

// Favorite and Review are read-only views over tables owned by the wider
// CRUD application; only the columns the recommendation side needs are mapped.

type Favorite struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"column:user_id;not null"`
	DishID    uint64    `gorm:"column:dish_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Favorite) TableName() string {
	return "favorites"
}

type Review struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"column:user_id;not null"`
	DishID    uint64    `gorm:"column:dish_id;not null"`
	Rating    int       `gorm:"column:rating;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (Review) TableName() string {
	return "reviews"
}
