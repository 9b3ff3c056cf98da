package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ExperimentStatusDraft     = "draft"
	ExperimentStatusRunning   = "running"
	ExperimentStatusPaused    = "paused"
	ExperimentStatusCompleted = "completed"
)

type Experiment struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name         string     `gorm:"column:name;not null" json:"name"`
	Description  string     `gorm:"column:description" json:"description"`
	Scene        string     `gorm:"column:scene" json:"scene"` // empty = applies to all scenes
	TrafficRatio float64    `gorm:"column:traffic_ratio;not null" json:"traffic_ratio"`
	StartTime    time.Time  `gorm:"column:start_time;not null" json:"start_time"`
	EndTime      *time.Time `gorm:"column:end_time" json:"end_time,omitempty"`
	Status       string     `gorm:"column:status;not null;default:draft" json:"status"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Groups []ExperimentGroup `gorm:"foreignKey:ExperimentID" json:"groups"`
}

func (Experiment) TableName() string {
	return "experiments"
}

// ExperimentGroup ordering within an experiment is significant: assignment
// buckets users by cumulative ratio in Position order.
type ExperimentGroup struct {
	ID           string            `gorm:"primaryKey;type:uuid" json:"id"`
	ExperimentID string            `gorm:"column:experiment_id;not null;index" json:"experiment_id"`
	Name         string            `gorm:"column:name;not null" json:"name"`
	Ratio        float64           `gorm:"column:ratio;not null" json:"ratio"`
	Position     int               `gorm:"column:position;not null" json:"position"`
	Config       datatypes.JSONMap `gorm:"column:config;type:jsonb" json:"config"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ExperimentGroup) TableName() string {
	return "experiment_groups"
}

// Active reports whether the experiment should be serving traffic at t.
func (e Experiment) Active(t time.Time) bool {
	if e.Status != ExperimentStatusRunning {
		return false
	}
	if t.Before(e.StartTime) {
		return false
	}
	if e.EndTime != nil && !t.Before(*e.EndTime) {
		return false
	}

	return true
}

// AppliesTo reports whether the experiment is bound to the given scene.
func (e Experiment) AppliesTo(scene string) bool {
	return e.Scene == "" || e.Scene == scene
}
