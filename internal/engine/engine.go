// Package engine orchestrates one analytics run per (project, dataset kind):
// mode selection, added/expired commit computation, dataset maintenance, and
// the unconditional watermark replacement that ends every run.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gitpulse/gitpulse-go/internal/cochange"
	"github.com/gitpulse/gitpulse-go/internal/git"
	"github.com/gitpulse/gitpulse-go/internal/heatmap"
	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/gitpulse/gitpulse-go/internal/storage"
	"github.com/gitpulse/gitpulse-go/internal/window"
)

// Runner executes runs sequentially. Concurrent runs for the same
// (project, dataset kind) must be serialized by the caller; independent
// projects may run concurrently since the runner holds no cross-run state.
type Runner struct {
	store    storage.Store
	provider git.HistoryProvider
	resolver git.RepoResolver
	cochange *cochange.Maintainer
	heatmap  *heatmap.Maintainer
	logger   *logrus.Logger
}

// NewRunner wires a runner with the default pair generator. measurer may be
// nil to skip size/LOC enrichment.
func NewRunner(store storage.Store, provider git.HistoryProvider, resolver git.RepoResolver, measurer git.Measurer, logger *logrus.Logger) *Runner {
	return &Runner{
		store:    store,
		provider: provider,
		resolver: resolver,
		cochange: cochange.NewMaintainer(store, cochange.NewPairGenerator(logger), measurer, logger),
		heatmap:  heatmap.NewMaintainer(store, provider, measurer, logger),
		logger:   logger,
	}
}

// RunResult reports what one run did.
type RunResult struct {
	RunID   string
	Mode    window.Mode
	Reason  string
	Window  window.Window
	Added   int
	Expired int
}

// Run executes one full or delta pass for the dataset and replaces the
// watermark with {reference, windowDays} regardless of what the pass found.
// Store failures propagate; history and resolution failures degrade to empty
// ranges so a flaky provider never wedges the watermark.
func (r *Runner) Run(ctx context.Context, projectID string, kind models.DatasetKind, windowDays int, reference time.Time) (*RunResult, error) {
	runID := uuid.NewString()
	log := r.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"project": projectID,
		"dataset": kind,
	})

	wm, err := r.store.GetWatermark(ctx, projectID, kind)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	decision := window.Decide(wm, windowDays, reference)
	win := window.Compute(reference, windowDays)

	result := &RunResult{
		RunID:  runID,
		Mode:   decision.Mode,
		Reason: decision.Reason,
		Window: win,
	}

	repoPath, available := r.resolver.Resolve(projectID)
	if !available {
		log.Warn("no reachable repo, advancing watermark without dataset update")
	} else if decision.Mode == window.ModeFull {
		log.WithField("reason", decision.Reason).Info("full rebuild")
		if err := r.runFull(ctx, log, projectID, repoPath, kind, win, reference, result); err != nil {
			return nil, err
		}
	} else {
		log.WithField("previous_reference", decision.PreviousReference).Debug("delta run")
		if err := r.runDelta(ctx, log, projectID, repoPath, kind, decision.PreviousReference, windowDays, win, result); err != nil {
			return nil, err
		}
	}

	if err := r.store.ReplaceWatermark(ctx, &models.Watermark{
		ProjectID:   projectID,
		DatasetKind: kind,
		LastRunAt:   reference,
		WindowDays:  windowDays,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *Runner) runFull(ctx context.Context, log *logrus.Entry, projectID, repoPath string, kind models.DatasetKind, win window.Window, reference time.Time, result *RunResult) error {
	commits := r.fetchRange(ctx, log, repoPath, win.Since, win.Until)
	commits = filterCommits(commits, win.Contains)
	result.Added = len(commits)

	switch kind {
	case models.DatasetCoChange:
		return r.cochange.FullRebuild(ctx, projectID, repoPath, commits)
	case models.DatasetHeatmap:
		return r.heatmap.FullRebuild(ctx, projectID, repoPath, commits, reference)
	}
	return nil
}

func (r *Runner) runDelta(ctx context.Context, log *logrus.Entry, projectID, repoPath string, kind models.DatasetKind, previousReference time.Time, windowDays int, win window.Window, result *RunResult) error {
	previousSince := previousReference.AddDate(0, 0, -windowDays)

	// Strictly after the old boundary: a commit at exactly the previous
	// reference was already counted by the prior run.
	added := r.fetchRange(ctx, log, repoPath, previousReference, win.Until)
	added = filterCommits(added, func(ts time.Time) bool {
		return ts.After(previousReference) && !ts.After(win.Until)
	})

	// Strictly before the new since boundary: commits that just aged out.
	expired := r.fetchRange(ctx, log, repoPath, previousSince, win.Since)
	expired = filterCommits(expired, func(ts time.Time) bool {
		return !ts.Before(previousSince) && ts.Before(win.Since)
	})

	result.Added = len(added)
	result.Expired = len(expired)

	switch kind {
	case models.DatasetCoChange:
		_, err := r.cochange.Delta(ctx, projectID, added, expired)
		return err
	case models.DatasetHeatmap:
		_, err := r.heatmap.Delta(ctx, projectID, repoPath, added, expired, win)
		return err
	}
	return nil
}

// fetchRange substitutes an empty result for provider failures; partial data
// beats a stuck watermark.
func (r *Runner) fetchRange(ctx context.Context, log *logrus.Entry, repoPath string, since, until time.Time) []models.CommitEvent {
	commits, err := r.provider.Commits(ctx, repoPath, since, until)
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"since": since,
			"until": until,
		}).Warn("history fetch failed, treating range as empty")
		return nil
	}
	return commits
}

func filterCommits(commits []models.CommitEvent, keep func(time.Time) bool) []models.CommitEvent {
	var out []models.CommitEvent
	for _, c := range commits {
		if keep(c.Timestamp) {
			out = append(out, c)
		}
	}
	return out
}
