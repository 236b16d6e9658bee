package cochange

import (
	"context"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/extract"
	"github.com/gitpulse/gitpulse-go/internal/git"
	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/gitpulse/gitpulse-go/internal/storage"
	"github.com/sirupsen/logrus"
)

// Maintainer owns all co-change dataset writes for one store.
type Maintainer struct {
	store    storage.Store
	gen      Generator
	measurer git.Measurer
	logger   *logrus.Logger
}

// NewMaintainer creates a co-change maintainer. measurer may be nil, in which
// case full rebuilds skip member stats.
func NewMaintainer(store storage.Store, gen Generator, measurer git.Measurer, logger *logrus.Logger) *Maintainer {
	return &Maintainer{store: store, gen: gen, measurer: measurer, logger: logger}
}

// FullRebuild re-derives the complete group set for every scope from the
// in-window commits and reconciles stored rows against it: upsert returned
// groups, delete absent ones, reseed provenance for all pairs (not just
// those meeting the frequency threshold, so later delta runs count against a
// complete baseline), and remeasure member stats.
func (m *Maintainer) FullRebuild(ctx context.Context, projectID, repoPath string, commits []models.CommitEvent) error {
	for _, scope := range models.Scopes() {
		if err := m.rebuildScope(ctx, projectID, repoPath, scope, commits); err != nil {
			return err
		}
	}
	return nil
}

func (m *Maintainer) rebuildScope(ctx context.Context, projectID, repoPath string, scope models.Scope, commits []models.CommitEvent) error {
	groups := m.gen.Generate(commits, scope)

	wanted := make(map[string]Group, len(groups))
	for _, g := range groups {
		wanted[g.GroupKey] = g
		if err := m.store.UpsertGroup(ctx, &models.CoChangeGroup{
			ProjectID:  projectID,
			Scope:      scope,
			GroupKey:   g.GroupKey,
			Members:    g.Members,
			Frequency:  g.Frequency,
			LastSeenAt: g.LastSeenAt,
		}); err != nil {
			return err
		}
	}

	// Delete groups whose key is absent from the freshly computed set.
	existing, err := m.store.ListGroups(ctx, projectID, scope)
	if err != nil {
		return err
	}
	for _, g := range existing {
		if _, ok := wanted[g.GroupKey]; ok {
			continue
		}
		if err := m.store.DeleteGroup(ctx, projectID, scope, g.GroupKey); err != nil {
			return err
		}
		if err := m.store.DeleteMemberStatsExcept(ctx, projectID, scope, g.GroupKey, nil); err != nil {
			m.logger.WithError(err).WithField("group_key", g.GroupKey).Warn("delete stale member stats failed")
		}
	}

	m.reseedProvenance(ctx, projectID, scope, commits)

	m.refreshMemberStats(ctx, projectID, repoPath, scope, groups)
	return nil
}

// reseedProvenance reconciles stored provenance rows against the full pair
// seed over all in-window commits. Seeding below-threshold pairs too is what
// lets a pair that crosses the threshold later be counted correctly in delta
// mode. Best-effort: group rows are already written, and the next full
// rebuild reconciles again, so a failed write here is logged and skipped
// rather than failing the run.
func (m *Maintainer) reseedProvenance(ctx context.Context, projectID string, scope models.Scope, commits []models.CommitEvent) {
	type rowKey struct{ groupKey, hash string }

	seed := make(map[rowKey]*models.CoChangeGroupCommit)
	var rows []*models.CoChangeGroupCommit
	for _, commit := range commits {
		entries, _ := extract.PairEntries(commit, scope, m.logger)
		for _, e := range entries {
			key := rowKey{e.GroupKey, e.CommitHash}
			if _, dup := seed[key]; dup {
				continue
			}
			row := &models.CoChangeGroupCommit{
				ProjectID:   projectID,
				Scope:       scope,
				GroupKey:    e.GroupKey,
				CommitHash:  e.CommitHash,
				CommittedAt: e.CommittedAt,
			}
			seed[key] = row
			rows = append(rows, row)
		}
	}

	stored, err := m.store.ListAllGroupCommits(ctx, projectID, scope)
	if err != nil {
		m.logger.WithError(err).WithField("scope", scope).Warn("provenance read failed, skipping stale row cleanup")
	}
	for _, row := range stored {
		if _, ok := seed[rowKey{row.GroupKey, row.CommitHash}]; ok {
			continue
		}
		if err := m.store.DeleteGroupCommit(ctx, projectID, scope, row.GroupKey, row.CommitHash); err != nil {
			m.logger.WithError(err).WithField("group_key", row.GroupKey).Warn("provenance row delete failed")
		}
	}

	if err := m.store.InsertGroupCommits(ctx, rows); err != nil {
		m.logger.WithError(err).WithField("scope", scope).Warn("provenance seed insert failed")
	}
}

// refreshMemberStats measures each group member at the group's most recent
// supporting commit. Best-effort: failures are logged per group and the
// rebuild proceeds.
func (m *Maintainer) refreshMemberStats(ctx context.Context, projectID, repoPath string, scope models.Scope, groups []Group) {
	if m.measurer == nil || repoPath == "" || scope != models.ScopeFile {
		return
	}

	for _, g := range groups {
		latest := latestCommit(g.MatchingCommits)
		if latest.Hash == "" {
			continue
		}

		ok := true
		for _, member := range g.Members {
			size, loc, err := m.measurer.Measure(ctx, repoPath, latest.Hash, member)
			if err != nil {
				m.logger.WithError(err).WithFields(logrus.Fields{
					"group_key": g.GroupKey,
					"member":    member,
				}).Warn("member measurement failed")
				ok = false
				continue
			}
			if err := m.store.UpsertMemberStat(ctx, &models.CoChangeGroupMemberStat{
				ProjectID:          projectID,
				Scope:              scope,
				GroupKey:           g.GroupKey,
				MemberPath:         member,
				SizeBytes:          size,
				LOC:                loc,
				MeasuredCommitHash: latest.Hash,
				MeasuredAt:         time.Now().UTC(),
			}); err != nil {
				m.logger.WithError(err).WithField("group_key", g.GroupKey).Warn("member stat write failed")
				ok = false
			}
		}
		if !ok {
			continue
		}
		if err := m.store.DeleteMemberStatsExcept(ctx, projectID, scope, g.GroupKey, g.Members); err != nil {
			m.logger.WithError(err).WithField("group_key", g.GroupKey).Warn("member stat cleanup failed")
		}
	}
}

func latestCommit(commits []MatchingCommit) MatchingCommit {
	var latest MatchingCommit
	for _, c := range commits {
		if c.Timestamp.After(latest.Timestamp) {
			latest = c
		}
	}
	return latest
}
