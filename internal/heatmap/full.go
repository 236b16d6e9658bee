package heatmap

import (
	"context"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/extract"
	"github.com/gitpulse/gitpulse-go/internal/git"
	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/gitpulse/gitpulse-go/internal/storage"
	"github.com/sirupsen/logrus"
)

// Maintainer owns all heatmap dataset writes for one store.
type Maintainer struct {
	store    storage.Store
	provider git.HistoryProvider
	measurer git.Measurer
	logger   *logrus.Logger
}

// NewMaintainer creates a heatmap maintainer. provider is only needed for
// delta recency re-derivation; measurer may be nil to skip size/LOC
// enrichment.
func NewMaintainer(store storage.Store, provider git.HistoryProvider, measurer git.Measurer, logger *logrus.Logger) *Maintainer {
	return &Maintainer{store: store, provider: provider, measurer: measurer, logger: logger}
}

type pathAgg struct {
	count      int
	maxTime    time.Time
	latestHash string
}

func aggregate(commits []models.CommitEvent) map[string]*pathAgg {
	agg := make(map[string]*pathAgg)
	for _, commit := range commits {
		for _, e := range extract.HeatEntries(commit) {
			a, ok := agg[e.Path]
			if !ok {
				a = &pathAgg{}
				agg[e.Path] = a
			}
			a.count++
			if !e.CommittedAt.Before(a.maxTime) {
				a.maxTime = e.CommittedAt
				a.latestHash = commit.Hash
			}
		}
	}
	return agg
}

// FullRebuild re-derives the whole heatmap from the in-window commits:
// upsert a row per touched path, delete rows for paths no longer touched.
func (m *Maintainer) FullRebuild(ctx context.Context, projectID, repoPath string, commits []models.CommitEvent, reference time.Time) error {
	agg := aggregate(commits)

	for path, a := range agg {
		row := &models.FileHeatmap{
			ProjectID:     projectID,
			RelativePath:  path,
			ChangeCount:   a.count,
			HeatScore:     Score(a.count, a.maxTime, reference),
			LastChangedAt: a.maxTime,
		}
		m.enrich(ctx, repoPath, a.latestHash, row)
		if err := m.store.UpsertHeatmap(ctx, row); err != nil {
			return err
		}
	}

	existing, err := m.store.ListHeatmap(ctx, projectID)
	if err != nil {
		return err
	}
	for _, row := range existing {
		if _, ok := agg[row.RelativePath]; ok {
			continue
		}
		if err := m.store.DeleteHeatmap(ctx, projectID, row.RelativePath); err != nil {
			return err
		}
	}

	return nil
}

// enrich fills size and line count measured at the path's most recent
// supporting commit. Best-effort: a deleted or unmeasurable path keeps zeros.
func (m *Maintainer) enrich(ctx context.Context, repoPath, commitHash string, row *models.FileHeatmap) {
	if m.measurer == nil || repoPath == "" || commitHash == "" {
		return
	}
	size, loc, err := m.measurer.Measure(ctx, repoPath, commitHash, row.RelativePath)
	if err != nil {
		m.logger.WithError(err).WithField("path", row.RelativePath).Debug("heatmap measurement failed")
		return
	}
	row.SizeBytes = size
	row.LOC = loc
}
