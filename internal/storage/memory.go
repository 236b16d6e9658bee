package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/gitpulse/gitpulse-go/internal/models"
)

// MemoryStore is an in-memory Store used by tests and dry runs. It mirrors
// the natural-key semantics of the SQL stores: upserts replace whole rows,
// provenance inserts ignore duplicates, deletes are idempotent.
type MemoryStore struct {
	mu           sync.RWMutex
	watermarks   map[string]models.Watermark
	groups       map[string]models.CoChangeGroup
	groupCommits map[string]models.CoChangeGroupCommit
	memberStats  map[string]models.CoChangeGroupMemberStat
	heatmaps     map[string]models.FileHeatmap
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		watermarks:   make(map[string]models.Watermark),
		groups:       make(map[string]models.CoChangeGroup),
		groupCommits: make(map[string]models.CoChangeGroupCommit),
		memberStats:  make(map[string]models.CoChangeGroupMemberStat),
		heatmaps:     make(map[string]models.FileHeatmap),
	}
}

func wmKey(projectID string, kind models.DatasetKind) string {
	return projectID + "\x00" + string(kind)
}

func groupRowKey(projectID string, scope models.Scope, groupKey string) string {
	return projectID + "\x00" + string(scope) + "\x00" + groupKey
}

func commitRowKey(projectID string, scope models.Scope, groupKey, hash string) string {
	return groupRowKey(projectID, scope, groupKey) + "\x00" + hash
}

func statRowKey(projectID string, scope models.Scope, groupKey, member string) string {
	return groupRowKey(projectID, scope, groupKey) + "\x00" + member
}

func heatRowKey(projectID, relativePath string) string {
	return projectID + "\x00" + relativePath
}

func (s *MemoryStore) GetWatermark(_ context.Context, projectID string, kind models.DatasetKind) (*models.Watermark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wm, ok := s.watermarks[wmKey(projectID, kind)]
	if !ok {
		return nil, ErrNotFound
	}
	out := wm
	return &out, nil
}

func (s *MemoryStore) ReplaceWatermark(_ context.Context, wm *models.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watermarks[wmKey(wm.ProjectID, wm.DatasetKind)] = *wm
	return nil
}

func (s *MemoryStore) UpsertGroup(_ context.Context, group *models.CoChangeGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := *group
	g.Members = append([]string(nil), group.Members...)
	s.groups[groupRowKey(group.ProjectID, group.Scope, group.GroupKey)] = g
	return nil
}

func (s *MemoryStore) ListGroups(_ context.Context, projectID string, scope models.Scope) ([]*models.CoChangeGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groups []*models.CoChangeGroup
	for _, g := range s.groups {
		if g.ProjectID == projectID && g.Scope == scope {
			out := g
			out.Members = models.MembersOf(g.GroupKey)
			groups = append(groups, &out)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Frequency != groups[j].Frequency {
			return groups[i].Frequency > groups[j].Frequency
		}
		return groups[i].GroupKey < groups[j].GroupKey
	})
	return groups, nil
}

func (s *MemoryStore) DeleteGroup(_ context.Context, projectID string, scope models.Scope, groupKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.groups, groupRowKey(projectID, scope, groupKey))
	return nil
}

func (s *MemoryStore) InsertGroupCommits(_ context.Context, rows []*models.CoChangeGroupCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		key := commitRowKey(row.ProjectID, row.Scope, row.GroupKey, row.CommitHash)
		if _, exists := s.groupCommits[key]; exists {
			continue
		}
		s.groupCommits[key] = *row
	}
	return nil
}

func (s *MemoryStore) ListGroupCommits(_ context.Context, projectID string, scope models.Scope, groupKey string) ([]*models.CoChangeGroupCommit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*models.CoChangeGroupCommit
	for _, row := range s.groupCommits {
		if row.ProjectID == projectID && row.Scope == scope && row.GroupKey == groupKey {
			out := row
			rows = append(rows, &out)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CommittedAt.Before(rows[j].CommittedAt)
	})
	return rows, nil
}

func (s *MemoryStore) ListAllGroupCommits(_ context.Context, projectID string, scope models.Scope) ([]*models.CoChangeGroupCommit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*models.CoChangeGroupCommit
	for _, row := range s.groupCommits {
		if row.ProjectID == projectID && row.Scope == scope {
			out := row
			rows = append(rows, &out)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].GroupKey != rows[j].GroupKey {
			return rows[i].GroupKey < rows[j].GroupKey
		}
		return rows[i].CommitHash < rows[j].CommitHash
	})
	return rows, nil
}

func (s *MemoryStore) DeleteGroupCommit(_ context.Context, projectID string, scope models.Scope, groupKey, commitHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.groupCommits, commitRowKey(projectID, scope, groupKey, commitHash))
	return nil
}

func (s *MemoryStore) UpsertMemberStat(_ context.Context, stat *models.CoChangeGroupMemberStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memberStats[statRowKey(stat.ProjectID, stat.Scope, stat.GroupKey, stat.MemberPath)] = *stat
	return nil
}

func (s *MemoryStore) ListMemberStats(_ context.Context, projectID string, scope models.Scope, groupKey string) ([]*models.CoChangeGroupMemberStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats []*models.CoChangeGroupMemberStat
	for _, stat := range s.memberStats {
		if stat.ProjectID == projectID && stat.Scope == scope && stat.GroupKey == groupKey {
			out := stat
			stats = append(stats, &out)
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].MemberPath < stats[j].MemberPath
	})
	return stats, nil
}

func (s *MemoryStore) DeleteMemberStatsExcept(_ context.Context, projectID string, scope models.Scope, groupKey string, keep []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepSet := make(map[string]bool, len(keep))
	for _, m := range keep {
		keepSet[m] = true
	}
	for key, stat := range s.memberStats {
		if stat.ProjectID == projectID && stat.Scope == scope && stat.GroupKey == groupKey && !keepSet[stat.MemberPath] {
			delete(s.memberStats, key)
		}
	}
	return nil
}

func (s *MemoryStore) UpsertHeatmap(_ context.Context, row *models.FileHeatmap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.heatmaps[heatRowKey(row.ProjectID, row.RelativePath)] = *row
	return nil
}

func (s *MemoryStore) GetHeatmap(_ context.Context, projectID, relativePath string) (*models.FileHeatmap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.heatmaps[heatRowKey(projectID, relativePath)]
	if !ok {
		return nil, ErrNotFound
	}
	out := row
	return &out, nil
}

func (s *MemoryStore) ListHeatmap(_ context.Context, projectID string) ([]*models.FileHeatmap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*models.FileHeatmap
	for _, row := range s.heatmaps {
		if row.ProjectID == projectID {
			out := row
			rows = append(rows, &out)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].HeatScore != rows[j].HeatScore {
			return rows[i].HeatScore > rows[j].HeatScore
		}
		return rows[i].RelativePath < rows[j].RelativePath
	})
	return rows, nil
}

func (s *MemoryStore) DeleteHeatmap(_ context.Context, projectID, relativePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.heatmaps, heatRowKey(projectID, relativePath))
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
