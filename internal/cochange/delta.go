package cochange

import (
	"context"

	"github.com/gitpulse/gitpulse-go/internal/extract"
	"github.com/gitpulse/gitpulse-go/internal/models"
)

// DeltaResult summarizes one incremental co-change update.
type DeltaResult struct {
	InsertedRows int
	DeletedRows  int
	TouchedKeys  int
}

// Delta incrementally patches the co-change dataset from the commits that
// entered and left the window. For every touched group key the surviving
// provenance rows are recounted: >= 2 rows keeps (or recreates) the group
// with frequency equal to the row count, fewer deletes it.
func (m *Maintainer) Delta(ctx context.Context, projectID string, added, expired []models.CommitEvent) (*DeltaResult, error) {
	result := &DeltaResult{}

	for _, scope := range models.Scopes() {
		if err := m.deltaScope(ctx, projectID, scope, added, expired, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (m *Maintainer) deltaScope(ctx context.Context, projectID string, scope models.Scope, added, expired []models.CommitEvent, result *DeltaResult) error {
	touched := make(map[string]bool)

	var insertRows []*models.CoChangeGroupCommit
	for _, commit := range added {
		entries, _ := extract.PairEntries(commit, scope, m.logger)
		for _, e := range entries {
			touched[e.GroupKey] = true
			insertRows = append(insertRows, &models.CoChangeGroupCommit{
				ProjectID:   projectID,
				Scope:       scope,
				GroupKey:    e.GroupKey,
				CommitHash:  e.CommitHash,
				CommittedAt: e.CommittedAt,
			})
		}
	}
	if err := m.store.InsertGroupCommits(ctx, insertRows); err != nil {
		return err
	}
	result.InsertedRows += len(insertRows)

	for _, commit := range expired {
		entries, _ := extract.PairEntries(commit, scope, m.logger)
		for _, e := range entries {
			touched[e.GroupKey] = true
			if err := m.store.DeleteGroupCommit(ctx, projectID, scope, e.GroupKey, e.CommitHash); err != nil {
				return err
			}
			result.DeletedRows++
		}
	}

	for key := range touched {
		if err := m.recomputeGroup(ctx, projectID, scope, key); err != nil {
			return err
		}
	}
	result.TouchedKeys += len(touched)
	return nil
}

// recomputeGroup re-derives one group's existence from its remaining
// provenance rows.
func (m *Maintainer) recomputeGroup(ctx context.Context, projectID string, scope models.Scope, groupKey string) error {
	rows, err := m.store.ListGroupCommits(ctx, projectID, scope, groupKey)
	if err != nil {
		return err
	}

	if len(rows) < 2 {
		if err := m.store.DeleteGroup(ctx, projectID, scope, groupKey); err != nil {
			return err
		}
		if err := m.store.DeleteMemberStatsExcept(ctx, projectID, scope, groupKey, nil); err != nil {
			m.logger.WithError(err).WithField("group_key", groupKey).Warn("delete member stats failed")
		}
		return nil
	}

	lastSeen := rows[0].CommittedAt
	for _, row := range rows[1:] {
		if row.CommittedAt.After(lastSeen) {
			lastSeen = row.CommittedAt
		}
	}

	// Member stats are not recomputed here; delta mode leaves them stale
	// until the next full rebuild.
	return m.store.UpsertGroup(ctx, &models.CoChangeGroup{
		ProjectID:  projectID,
		Scope:      scope,
		GroupKey:   groupKey,
		Members:    models.MembersOf(groupKey),
		Frequency:  len(rows),
		LastSeenAt: lastSeen,
	})
}
