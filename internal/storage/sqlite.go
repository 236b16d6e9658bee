package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements storage using SQLite (for local/development)
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watermarks (
		project_id TEXT NOT NULL,
		dataset_kind TEXT NOT NULL,
		last_run_at DATETIME NOT NULL,
		window_days INTEGER NOT NULL,
		PRIMARY KEY (project_id, dataset_kind)
	);

	CREATE TABLE IF NOT EXISTS co_change_groups (
		project_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		group_key TEXT NOT NULL,
		frequency INTEGER NOT NULL,
		last_seen_at DATETIME NOT NULL,
		PRIMARY KEY (project_id, scope, group_key)
	);

	CREATE TABLE IF NOT EXISTS co_change_group_commits (
		project_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		group_key TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		committed_at DATETIME NOT NULL,
		PRIMARY KEY (project_id, scope, group_key, commit_hash)
	);

	CREATE TABLE IF NOT EXISTS co_change_group_member_stats (
		project_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		group_key TEXT NOT NULL,
		member_path TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		loc INTEGER NOT NULL,
		measured_commit_hash TEXT NOT NULL,
		measured_at DATETIME NOT NULL,
		PRIMARY KEY (project_id, scope, group_key, member_path)
	);

	CREATE TABLE IF NOT EXISTS file_heatmaps (
		project_id TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		change_count INTEGER NOT NULL,
		heat_score REAL NOT NULL,
		last_changed_at DATETIME NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		loc INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (project_id, relative_path)
	);

	CREATE INDEX IF NOT EXISTS idx_group_commits_project_scope
		ON co_change_group_commits(project_id, scope);
	CREATE INDEX IF NOT EXISTS idx_groups_project_scope
		ON co_change_groups(project_id, scope);
	CREATE INDEX IF NOT EXISTS idx_heatmaps_project
		ON file_heatmaps(project_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Watermark operations

func (s *SQLiteStore) GetWatermark(ctx context.Context, projectID string, kind models.DatasetKind) (*models.Watermark, error) {
	var wm models.Watermark
	query := `SELECT * FROM watermarks WHERE project_id = ? AND dataset_kind = ?`

	err := s.db.GetContext(ctx, &wm, query, projectID, kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &wm, nil
}

func (s *SQLiteStore) ReplaceWatermark(ctx context.Context, wm *models.Watermark) error {
	query := `
		INSERT OR REPLACE INTO watermarks
		(project_id, dataset_kind, last_run_at, window_days)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		wm.ProjectID, wm.DatasetKind, wm.LastRunAt, wm.WindowDays)

	return err
}

// Co-change group operations

func (s *SQLiteStore) UpsertGroup(ctx context.Context, group *models.CoChangeGroup) error {
	query := `
		INSERT OR REPLACE INTO co_change_groups
		(project_id, scope, group_key, frequency, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		group.ProjectID, group.Scope, group.GroupKey, group.Frequency, group.LastSeenAt)

	return err
}

func (s *SQLiteStore) ListGroups(ctx context.Context, projectID string, scope models.Scope) ([]*models.CoChangeGroup, error) {
	var groups []*models.CoChangeGroup
	query := `
		SELECT * FROM co_change_groups
		WHERE project_id = ? AND scope = ?
		ORDER BY frequency DESC, group_key
	`

	err := s.db.SelectContext(ctx, &groups, query, projectID, scope)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		g.Members = models.MembersOf(g.GroupKey)
	}

	return groups, nil
}

func (s *SQLiteStore) DeleteGroup(ctx context.Context, projectID string, scope models.Scope, groupKey string) error {
	query := `DELETE FROM co_change_groups WHERE project_id = ? AND scope = ? AND group_key = ?`
	_, err := s.db.ExecContext(ctx, query, projectID, scope, groupKey)
	return err
}

// Provenance operations

func (s *SQLiteStore) InsertGroupCommits(ctx context.Context, rows []*models.CoChangeGroupCommit) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT OR IGNORE INTO co_change_group_commits
		(project_id, scope, group_key, commit_hash, committed_at)
		VALUES (?, ?, ?, ?, ?)
	`

	for start := 0; start < len(rows); start += GroupCommitBatchSize {
		end := start + GroupCommitBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}

		for _, row := range rows[start:end] {
			if _, err := tx.ExecContext(ctx, query,
				row.ProjectID, row.Scope, row.GroupKey, row.CommitHash, row.CommittedAt); err != nil {
				tx.Rollback()
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStore) ListGroupCommits(ctx context.Context, projectID string, scope models.Scope, groupKey string) ([]*models.CoChangeGroupCommit, error) {
	var rows []*models.CoChangeGroupCommit
	query := `
		SELECT * FROM co_change_group_commits
		WHERE project_id = ? AND scope = ? AND group_key = ?
		ORDER BY committed_at
	`

	err := s.db.SelectContext(ctx, &rows, query, projectID, scope, groupKey)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *SQLiteStore) ListAllGroupCommits(ctx context.Context, projectID string, scope models.Scope) ([]*models.CoChangeGroupCommit, error) {
	var rows []*models.CoChangeGroupCommit
	query := `
		SELECT * FROM co_change_group_commits
		WHERE project_id = ? AND scope = ?
	`

	err := s.db.SelectContext(ctx, &rows, query, projectID, scope)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *SQLiteStore) DeleteGroupCommit(ctx context.Context, projectID string, scope models.Scope, groupKey, commitHash string) error {
	query := `
		DELETE FROM co_change_group_commits
		WHERE project_id = ? AND scope = ? AND group_key = ? AND commit_hash = ?
	`
	_, err := s.db.ExecContext(ctx, query, projectID, scope, groupKey, commitHash)
	return err
}

// Member stat operations

func (s *SQLiteStore) UpsertMemberStat(ctx context.Context, stat *models.CoChangeGroupMemberStat) error {
	query := `
		INSERT OR REPLACE INTO co_change_group_member_stats
		(project_id, scope, group_key, member_path, size_bytes, loc, measured_commit_hash, measured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		stat.ProjectID, stat.Scope, stat.GroupKey, stat.MemberPath,
		stat.SizeBytes, stat.LOC, stat.MeasuredCommitHash, stat.MeasuredAt)

	return err
}

func (s *SQLiteStore) ListMemberStats(ctx context.Context, projectID string, scope models.Scope, groupKey string) ([]*models.CoChangeGroupMemberStat, error) {
	var stats []*models.CoChangeGroupMemberStat
	query := `
		SELECT * FROM co_change_group_member_stats
		WHERE project_id = ? AND scope = ? AND group_key = ?
		ORDER BY member_path
	`

	err := s.db.SelectContext(ctx, &stats, query, projectID, scope, groupKey)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *SQLiteStore) DeleteMemberStatsExcept(ctx context.Context, projectID string, scope models.Scope, groupKey string, keep []string) error {
	if len(keep) == 0 {
		query := `
			DELETE FROM co_change_group_member_stats
			WHERE project_id = ? AND scope = ? AND group_key = ?
		`
		_, err := s.db.ExecContext(ctx, query, projectID, scope, groupKey)
		return err
	}

	query, args, err := sqlx.In(`
		DELETE FROM co_change_group_member_stats
		WHERE project_id = ? AND scope = ? AND group_key = ? AND member_path NOT IN (?)
	`, projectID, scope, groupKey, keep)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

// Heatmap operations

func (s *SQLiteStore) UpsertHeatmap(ctx context.Context, row *models.FileHeatmap) error {
	query := `
		INSERT OR REPLACE INTO file_heatmaps
		(project_id, relative_path, change_count, heat_score, last_changed_at, size_bytes, loc)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		row.ProjectID, row.RelativePath, row.ChangeCount, row.HeatScore,
		row.LastChangedAt, row.SizeBytes, row.LOC)

	return err
}

func (s *SQLiteStore) GetHeatmap(ctx context.Context, projectID, relativePath string) (*models.FileHeatmap, error) {
	var row models.FileHeatmap
	query := `SELECT * FROM file_heatmaps WHERE project_id = ? AND relative_path = ?`

	err := s.db.GetContext(ctx, &row, query, projectID, relativePath)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &row, nil
}

func (s *SQLiteStore) ListHeatmap(ctx context.Context, projectID string) ([]*models.FileHeatmap, error) {
	var rows []*models.FileHeatmap
	query := `
		SELECT * FROM file_heatmaps
		WHERE project_id = ?
		ORDER BY heat_score DESC, relative_path
	`

	err := s.db.SelectContext(ctx, &rows, query, projectID)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (s *SQLiteStore) DeleteHeatmap(ctx context.Context, projectID, relativePath string) error {
	query := `DELETE FROM file_heatmaps WHERE project_id = ? AND relative_path = ?`
	_, err := s.db.ExecContext(ctx, query, projectID, relativePath)
	return err
}
