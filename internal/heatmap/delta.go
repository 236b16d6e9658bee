package heatmap

import (
	"context"
	"errors"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/gitpulse/gitpulse-go/internal/storage"
	"github.com/gitpulse/gitpulse-go/internal/window"
)

// DeltaResult summarizes one incremental heatmap update.
type DeltaResult struct {
	Upserted int
	Deleted  int
}

// Delta patches per-path counts from the commits that entered and left the
// window. A path whose count reaches zero loses its row. When a path's most
// recent driver just aged out, its true recency is re-derived from the full
// window rather than the delta candidates, because the actual most recent
// touch may be a commit that was neither freshly added nor freshly expired.
func (m *Maintainer) Delta(ctx context.Context, projectID, repoPath string, added, expired []models.CommitEvent, win window.Window) (*DeltaResult, error) {
	addedAgg := aggregate(added)
	expiredAgg := aggregate(expired)

	touched := make(map[string]bool, len(addedAgg)+len(expiredAgg))
	for path := range addedAgg {
		touched[path] = true
	}
	for path := range expiredAgg {
		touched[path] = true
	}

	// Lazily fetched on the first recency re-derivation.
	var windowRecency map[string]time.Time

	result := &DeltaResult{}
	for path := range touched {
		old, err := m.store.GetHeatmap(ctx, projectID, path)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		oldCount := 0
		var oldLast time.Time
		var oldSize int64
		var oldLOC int
		if old != nil {
			oldCount = old.ChangeCount
			oldLast = old.LastChangedAt
			oldSize = old.SizeBytes
			oldLOC = old.LOC
		}

		var addCount, expCount int
		var addMax, expMax time.Time
		if a := addedAgg[path]; a != nil {
			addCount, addMax = a.count, a.maxTime
		}
		if e := expiredAgg[path]; e != nil {
			expCount, expMax = e.count, e.maxTime
		}

		newCount := oldCount + addCount - expCount
		if newCount <= 0 {
			if err := m.store.DeleteHeatmap(ctx, projectID, path); err != nil {
				return nil, err
			}
			result.Deleted++
			continue
		}

		lastChanged := oldLast
		if addMax.After(lastChanged) {
			lastChanged = addMax
		}
		if expCount > 0 && !oldLast.IsZero() && !expMax.Before(oldLast) {
			// The row's most recent driver aged out; the candidate set
			// cannot be trusted.
			if windowRecency == nil {
				windowRecency = m.fetchWindowRecency(ctx, repoPath, win)
			}
			if ts, ok := windowRecency[path]; ok {
				lastChanged = ts
			}
		}

		if err := m.store.UpsertHeatmap(ctx, &models.FileHeatmap{
			ProjectID:     projectID,
			RelativePath:  path,
			ChangeCount:   newCount,
			HeatScore:     Score(newCount, lastChanged, win.Until),
			LastChangedAt: lastChanged,
			SizeBytes:     oldSize,
			LOC:           oldLOC,
		}); err != nil {
			return nil, err
		}
		result.Upserted++
	}

	return result, nil
}

// fetchWindowRecency queries the provider for the whole window and maps each
// path to its most recent touch. Provider failure degrades to an empty map.
func (m *Maintainer) fetchWindowRecency(ctx context.Context, repoPath string, win window.Window) map[string]time.Time {
	recency := make(map[string]time.Time)
	if m.provider == nil || repoPath == "" {
		return recency
	}

	commits, err := m.provider.Commits(ctx, repoPath, win.Since, win.Until)
	if err != nil {
		m.logger.WithError(err).Warn("window recency fetch failed, keeping candidate recency")
		return recency
	}

	for path, a := range aggregate(commits) {
		if win.Contains(a.maxTime) {
			recency[path] = a.maxTime
		}
	}
	return recency
}
