package experiment

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"campusCanteen/domain"
	"campusCanteen/pkg/logger"
)

// Store is the persistence surface the registry reads from.
type Store interface {
	ListActive(ctx context.Context) ([]domain.Experiment, error)
}

// AssignmentCache is an optional read-through cache for resolved groups.
// Resolution is a pure hash so the cache is a lookup shortcut, never a
// source of truth; cache failures are logged and ignored. Entries hold
// the group id: group ids are re-stamped whenever an experiment's groups
// are replaced, so an entry cached under the old definitions stops
// matching and assignment falls through to the hash.
type AssignmentCache interface {
	GetGroup(ctx context.Context, experimentID string, userID uint) (string, bool, error)
	SetGroup(ctx context.Context, experimentID string, userID uint, groupID string) error
}

// Registry holds the in-memory snapshot of active experiments. Refresh
// swaps the snapshot atomically, so concurrent readers never block and
// never observe a partially-updated view.
type Registry struct {
	store  Store
	cache  AssignmentCache
	active atomic.Pointer[[]domain.Experiment]
}

func NewRegistry(store Store, cache AssignmentCache) *Registry {
	r := &Registry{
		store: store,
		cache: cache,
	}

	empty := []domain.Experiment{}
	r.active.Store(&empty)

	return r
}

// Refresh reloads the active experiment set. Every mutating admin
// operation must call this; a periodic caller may also refresh to pick
// up changes made elsewhere.
func (r *Registry) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	exps, err := r.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active experiments: %w", err)
	}

	r.active.Store(&exps)

	logger.Debug("experiment_registry_refreshed", "count", len(exps))

	return nil
}

// Active returns the current snapshot, re-checked against the clock so a
// stale snapshot cannot serve an experiment past its end time.
func (r *Registry) Active() []domain.Experiment {
	now := time.Now()

	snapshot := *r.active.Load()
	out := make([]domain.Experiment, 0, len(snapshot))
	for _, e := range snapshot {
		if e.Active(now) {
			out = append(out, e)
		}
	}

	return out
}

func (r *Registry) ActiveForScene(scene string) []domain.Experiment {
	all := r.Active()
	out := make([]domain.Experiment, 0, len(all))
	for _, e := range all {
		if e.AppliesTo(scene) {
			out = append(out, e)
		}
	}

	return out
}

// ResolveGroup deterministically maps (userID, experimentID) to a group.
// ok is false when the experiment is not currently active or the user
// falls outside its traffic ratio.
func (r *Registry) ResolveGroup(ctx context.Context, userID uint, experimentID string) (domain.ExperimentGroup, bool) {
	for _, e := range r.Active() {
		if e.ID == experimentID {
			return r.Assign(ctx, userID, e)
		}
	}

	return domain.ExperimentGroup{}, false
}

// Assign resolves the group for a user within one active experiment.
func (r *Registry) Assign(ctx context.Context, userID uint, exp domain.Experiment) (domain.ExperimentGroup, bool) {
	if len(exp.Groups) == 0 {
		return domain.ExperimentGroup{}, false
	}

	// traffic gate: users hashed at or above the ratio see the default path
	if normalizedHash(trafficSeed(userID, exp.ID)) >= exp.TrafficRatio {
		return domain.ExperimentGroup{}, false
	}

	if r.cache != nil {
		id, ok, err := r.cache.GetGroup(ctx, exp.ID, userID)
		if err != nil {
			logger.Warn("assignment cache read failed", "experiment_id", exp.ID, "error", err)
		} else if ok {
			for _, g := range exp.Groups {
				if g.ID == id {
					return g, true
				}
			}
			// cached id belongs to a replaced group set; fall through and re-hash
		}
	}

	h := normalizedHash(groupSeed(userID, exp.ID))

	cum := 0.0
	chosen := exp.Groups[0] // rounding guard when ratios sum just under 1
	for _, g := range exp.Groups {
		cum += g.Ratio
		if h < cum {
			chosen = g
			break
		}
	}

	if r.cache != nil {
		if err := r.cache.SetGroup(ctx, exp.ID, userID, chosen.ID); err != nil {
			logger.Warn("assignment cache write failed", "experiment_id", exp.ID, "error", err)
		}
	}

	ExperimentAssignmentsTotal.WithLabelValues(exp.Name, chosen.Name).Inc()

	return chosen, true
}
