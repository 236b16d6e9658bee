package storage

import (
	"context"
	"errors"

	"github.com/gitpulse/gitpulse-go/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// GroupCommitBatchSize bounds the row count of one bulk provenance insert.
const GroupCommitBatchSize = 200

// Store persists the engine's derived datasets. Upserts are keyed by natural
// keys, never generated IDs, so replays after a partial failure self-heal.
type Store interface {
	// Watermark operations. GetWatermark returns ErrNotFound before the
	// first run; ReplaceWatermark overwrites the whole row.
	GetWatermark(ctx context.Context, projectID string, kind models.DatasetKind) (*models.Watermark, error)
	ReplaceWatermark(ctx context.Context, wm *models.Watermark) error

	// Co-change group operations, keyed by (project, scope, group key).
	UpsertGroup(ctx context.Context, group *models.CoChangeGroup) error
	ListGroups(ctx context.Context, projectID string, scope models.Scope) ([]*models.CoChangeGroup, error)
	DeleteGroup(ctx context.Context, projectID string, scope models.Scope, groupKey string) error

	// Provenance operations. InsertGroupCommits writes in batches of
	// GroupCommitBatchSize and ignores rows that already exist.
	InsertGroupCommits(ctx context.Context, rows []*models.CoChangeGroupCommit) error
	ListGroupCommits(ctx context.Context, projectID string, scope models.Scope, groupKey string) ([]*models.CoChangeGroupCommit, error)
	ListAllGroupCommits(ctx context.Context, projectID string, scope models.Scope) ([]*models.CoChangeGroupCommit, error)
	DeleteGroupCommit(ctx context.Context, projectID string, scope models.Scope, groupKey, commitHash string) error

	// Member stat operations. DeleteMemberStatsExcept removes rows for
	// members that left the group (an empty keep list removes all).
	UpsertMemberStat(ctx context.Context, stat *models.CoChangeGroupMemberStat) error
	ListMemberStats(ctx context.Context, projectID string, scope models.Scope, groupKey string) ([]*models.CoChangeGroupMemberStat, error)
	DeleteMemberStatsExcept(ctx context.Context, projectID string, scope models.Scope, groupKey string, keep []string) error

	// Heatmap operations, keyed by (project, relative path).
	UpsertHeatmap(ctx context.Context, row *models.FileHeatmap) error
	GetHeatmap(ctx context.Context, projectID, relativePath string) (*models.FileHeatmap, error)
	ListHeatmap(ctx context.Context, projectID string) ([]*models.FileHeatmap, error)
	DeleteHeatmap(ctx context.Context, projectID, relativePath string) error

	// Close connection
	Close() error
}
