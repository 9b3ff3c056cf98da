package experiment

import (
	"context"
	"fmt"
	"math"
	"time"

	"campusCanteen/domain"
	"campusCanteen/pkg/logger"

	"github.com/google/uuid"
)

// ratioTolerance is the accepted slack when checking that group ratios
// sum to 1. Ratio violations are hard errors, never auto-corrected.
const ratioTolerance = 0.01

var validStatuses = map[string]bool{
	domain.ExperimentStatusDraft:     true,
	domain.ExperimentStatusRunning:   true,
	domain.ExperimentStatusPaused:    true,
	domain.ExperimentStatusCompleted: true,
}

// AdminStore is the persistence surface for experiment CRUD. Group
// replacement on update is delete-all-then-insert-all inside one
// transaction; the store owns that discipline.
type AdminStore interface {
	Store
	Create(ctx context.Context, exp *domain.Experiment) error
	Update(ctx context.Context, exp *domain.Experiment, replaceGroups bool) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error
	GetByID(ctx context.Context, id string) (*domain.Experiment, error)
	List(ctx context.Context) ([]domain.Experiment, error)
}

// Service owns experiment lifecycle. Every mutation refreshes the
// registry snapshot so serving always sees the post-mutation set.
type Service struct {
	store    AdminStore
	registry *Registry
}

func NewService(store AdminStore, registry *Registry) *Service {
	return &Service{
		store:    store,
		registry: registry,
	}
}

func validateGroups(groups []domain.ExperimentGroup) error {
	if len(groups) == 0 {
		return fmt.Errorf("%w: experiment needs at least one group", domain.ErrValidation)
	}

	sum := 0.0
	for _, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("%w: group name is required", domain.ErrValidation)
		}
		if g.Ratio < 0 || g.Ratio > 1 {
			return fmt.Errorf("%w: group %q ratio %.4f outside [0,1]", domain.ErrValidation, g.Name, g.Ratio)
		}
		sum += g.Ratio
	}

	if math.Abs(sum-1.0) > ratioTolerance {
		return fmt.Errorf("%w: group ratios sum to %.4f, expected 1.0 within ±%.2f", domain.ErrValidation, sum, ratioTolerance)
	}

	return nil
}

func validateExperiment(exp *domain.Experiment) error {
	if exp.Name == "" {
		return fmt.Errorf("%w: experiment name is required", domain.ErrValidation)
	}
	if exp.TrafficRatio < 0 || exp.TrafficRatio > 1 {
		return fmt.Errorf("%w: traffic ratio %.4f outside [0,1]", domain.ErrValidation, exp.TrafficRatio)
	}
	if exp.EndTime != nil && !exp.EndTime.After(exp.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", domain.ErrValidation)
	}

	return nil
}

// Create stores a new experiment in draft status with freshly assigned ids.
func (s *Service) Create(ctx context.Context, exp *domain.Experiment) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := validateExperiment(exp); err != nil {
		return err
	}
	if err := validateGroups(exp.Groups); err != nil {
		return err
	}

	exp.ID = uuid.NewString()
	exp.Status = domain.ExperimentStatusDraft
	if exp.StartTime.IsZero() {
		exp.StartTime = time.Now()
	}
	stampGroups(exp)

	if err := s.store.Create(ctx, exp); err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}

	logger.Info("experiment created", "experiment_id", exp.ID, "name", exp.Name, "groups", len(exp.Groups))

	return s.refresh(ctx)
}

// Update modifies an experiment's own fields and, when groups are supplied,
// replaces the whole group set.
func (s *Service) Update(ctx context.Context, exp *domain.Experiment) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	existing, err := s.store.GetByID(ctx, exp.ID)
	if err != nil {
		return fmt.Errorf("failed to load experiment: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("experiment %s: %w", exp.ID, domain.ErrNotFound)
	}

	if err := validateExperiment(exp); err != nil {
		return err
	}

	replaceGroups := len(exp.Groups) > 0
	if replaceGroups {
		if err := validateGroups(exp.Groups); err != nil {
			return err
		}
		stampGroups(exp)
	}

	exp.Status = existing.Status // status changes only through SetStatus

	if err := s.store.Update(ctx, exp, replaceGroups); err != nil {
		return fmt.Errorf("failed to update experiment: %w", err)
	}

	logger.Info("experiment updated", "experiment_id", exp.ID, "groups_replaced", replaceGroups)

	return s.refresh(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load experiment: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("experiment %s: %w", id, domain.ErrNotFound)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}

	logger.Info("experiment deleted", "experiment_id", id)

	return s.refresh(ctx)
}

// SetStatus drives the lifecycle: draft/paused -> running -> paused/completed.
func (s *Service) SetStatus(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if !validStatuses[status] {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}

	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load experiment: %w", err)
	}
	if existing == nil {
		return fmt.Errorf("experiment %s: %w", id, domain.ErrNotFound)
	}

	if err := s.store.SetStatus(ctx, id, status); err != nil {
		return fmt.Errorf("failed to set experiment status: %w", err)
	}

	logger.Info("experiment status changed", "experiment_id", id, "status", status)

	return s.refresh(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	exp, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load experiment: %w", err)
	}
	if exp == nil {
		return nil, fmt.Errorf("experiment %s: %w", id, domain.ErrNotFound)
	}

	return exp, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	exps, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}

	return exps, nil
}

// ResolveGroup exposes serving-path assignment to admin callers for
// spot-checking which group a user lands in.
func (s *Service) ResolveGroup(ctx context.Context, userID uint, experimentID string) (domain.ExperimentGroup, bool) {
	return s.registry.ResolveGroup(ctx, userID, experimentID)
}

func (s *Service) refresh(ctx context.Context) error {
	if err := s.registry.Refresh(ctx); err != nil {
		return fmt.Errorf("experiment stored but registry refresh failed: %w", err)
	}

	return nil
}

func stampGroups(exp *domain.Experiment) {
	for i := range exp.Groups {
		exp.Groups[i].ID = uuid.NewString()
		exp.Groups[i].ExperimentID = exp.ID
		exp.Groups[i].Position = i
	}
}
