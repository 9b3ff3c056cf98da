package recallmetrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"campusCanteen/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const (
	defaultK          = 10
	defaultDays       = 7
	defaultSampleSize = 100
	defaultWorkers    = 8
)

// ErrAllUsersFailed is returned when recall generation failed for every
// sampled user; reporting zero metrics in that case would be fabrication.
var ErrAllUsersFailed = errors.New("recall generation failed for all sampled users")

// RecallSource produces the recalled ids for one user, normally backed by
// the serving pipeline itself so evaluation measures what users see.
type RecallSource interface {
	RecallForUser(ctx context.Context, userID uint, k int) ([]uint64, error)
}

// HistoryStore reads interaction ground truth.
type HistoryStore interface {
	ActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]uint, error)
	PositiveDishIDs(ctx context.Context, userID uint, since time.Time) (map[uint64]struct{}, error)
}

// CatalogStore reads the catalog facts Coverage and Diversity need.
type CatalogStore interface {
	CountOnline(ctx context.Context) (int64, error)
	TagsFor(ctx context.Context, dishIDs []uint64) (map[uint64][]string, error)
}

type Evaluator struct {
	source     RecallSource
	history    HistoryStore
	catalog    CatalogStore
	thresholds Thresholds
	workers    int
}

func NewEvaluator(source RecallSource, history HistoryStore, catalog CatalogStore, thresholds Thresholds, workers int) *Evaluator {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Evaluator{
		source:     source,
		history:    history,
		catalog:    catalog,
		thresholds: thresholds,
		workers:    workers,
	}
}

// Evaluate samples recently active users, generates recall for each, and
// reports quality. Per-user failures are logged and skipped; the run only
// errors when every sampled user failed.
func (e *Evaluator) Evaluate(ctx context.Context, k, days, sampleSize int) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("context error: %w", err)
	}

	if k <= 0 {
		k = defaultK
	}
	if days <= 0 {
		days = defaultDays
	}
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	since := time.Now().AddDate(0, 0, -days)

	userIDs, err := e.history.ActiveUserIDs(ctx, since, sampleSize)
	if err != nil {
		return Report{}, fmt.Errorf("failed to sample active users: %w", err)
	}

	if len(userIDs) == 0 {
		// nothing to evaluate is a valid empty outcome, not an error
		report := BuildReport(0, 0, 0, e.thresholds)
		report.K = k
		report.Days = days
		return report, nil
	}

	batch := make(Batch, len(userIDs))
	positives := make(Positives, len(userIDs))
	skipped := 0

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, userID := range userIDs {
		g.Go(func() error {
			recalled, err := e.source.RecallForUser(gctx, userID, k)
			if err != nil {
				logger.Warn("recall generation failed, skipping user", "user_id", userID, "error", err)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			pos, err := e.history.PositiveDishIDs(gctx, userID, since)
			if err != nil {
				logger.Warn("positive history fetch failed, skipping user", "user_id", userID, "error", err)
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			batch[userID] = recalled
			positives[userID] = pos
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("evaluation sweep aborted: %w", err)
	}

	if len(batch) == 0 {
		return Report{}, fmt.Errorf("%w: sampled=%d", ErrAllUsersFailed, len(userIDs))
	}

	onlineCount, err := e.catalog.CountOnline(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to count online dishes: %w", err)
	}

	union := make(map[uint64]struct{})
	for _, ids := range batch {
		for _, id := range ids {
			union[id] = struct{}{}
		}
	}
	unionIDs := make([]uint64, 0, len(union))
	for id := range union {
		unionIDs = append(unionIDs, id)
	}

	tags, err := e.catalog.TagsFor(ctx, unionIDs)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load dish tags: %w", err)
	}

	report := BuildReport(
		RecallAtK(batch, positives, k),
		Coverage(batch, onlineCount),
		Diversity(batch, tags),
		e.thresholds,
	)
	report.K = k
	report.Days = days
	report.SampledUsers = len(userIDs)
	report.EvaluatedUsers = len(batch)
	report.SkippedUsers = skipped

	logger.Info("recall evaluation finished",
		"sampled", report.SampledUsers,
		"evaluated", report.EvaluatedUsers,
		"skipped", report.SkippedUsers,
		"recall_at_k", report.RecallAtK,
		"coverage", report.Coverage,
		"diversity", report.Diversity,
	)

	return report, nil
}
