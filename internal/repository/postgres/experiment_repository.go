package postgres

import (
	"context"
	"fmt"
	"time"

	"campusCanteen/business/experiment"
	"campusCanteen/domain"

	"gorm.io/gorm"
)

type ExperimentRepository struct {
	DB *gorm.DB
}

var _ experiment.AdminStore = (*ExperimentRepository)(nil)

func NewExperimentRepository(db *gorm.DB) *ExperimentRepository {
	return &ExperimentRepository{DB: db}
}

func (r *ExperimentRepository) ListActive(ctx context.Context) ([]domain.Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	now := time.Now()

	var exps []domain.Experiment
	err := r.DB.WithContext(ctx).
		Preload("Groups", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("status = ? AND start_time <= ? AND (end_time IS NULL OR end_time > ?)",
			domain.ExperimentStatusRunning, now, now).
		Find(&exps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active experiments: %w", err)
	}

	return exps, nil
}

func (r *ExperimentRepository) Create(ctx context.Context, exp *domain.Experiment) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	// gorm creates the associated groups in the same transaction
	if err := r.DB.WithContext(ctx).Create(exp).Error; err != nil {
		return fmt.Errorf("failed to insert experiment: %w", err)
	}

	return nil
}

// Update writes the experiment's own fields and, when requested, replaces
// the group set wholesale. Group replacement is delete-all-then-insert-all
// inside one transaction so readers never see a partial set.
func (r *ExperimentRepository) Update(ctx context.Context, exp *domain.Experiment, replaceGroups bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"name":          exp.Name,
			"description":   exp.Description,
			"scene":         exp.Scene,
			"traffic_ratio": exp.TrafficRatio,
			"start_time":    exp.StartTime,
			"end_time":      exp.EndTime,
		}
		if err := tx.Model(&domain.Experiment{}).Where("id = ?", exp.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update experiment: %w", err)
		}

		if !replaceGroups {
			return nil
		}

		if err := tx.Where("experiment_id = ?", exp.ID).Delete(&domain.ExperimentGroup{}).Error; err != nil {
			return fmt.Errorf("failed to delete old groups: %w", err)
		}

		if err := tx.Create(&exp.Groups).Error; err != nil {
			return fmt.Errorf("failed to insert new groups: %w", err)
		}

		return nil
	})
}

func (r *ExperimentRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("experiment_id = ?", id).Delete(&domain.ExperimentGroup{}).Error; err != nil {
			return fmt.Errorf("failed to delete experiment groups: %w", err)
		}

		if err := tx.Where("id = ?", id).Delete(&domain.Experiment{}).Error; err != nil {
			return fmt.Errorf("failed to delete experiment: %w", err)
		}

		return nil
	})
}

func (r *ExperimentRepository) SetStatus(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).Model(&domain.Experiment{}).Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to update experiment status: %w", err)
	}

	return nil
}

func (r *ExperimentRepository) GetByID(ctx context.Context, id string) (*domain.Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var exp domain.Experiment
	err := r.DB.WithContext(ctx).
		Preload("Groups", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&exp, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query experiment: %w", err)
	}

	return &exp, nil
}

func (r *ExperimentRepository) List(ctx context.Context) ([]domain.Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var exps []domain.Experiment
	err := r.DB.WithContext(ctx).
		Preload("Groups", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Find(&exps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}

	return exps, nil
}
