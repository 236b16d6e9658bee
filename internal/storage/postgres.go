package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watermarks (
		project_id TEXT NOT NULL,
		dataset_kind TEXT NOT NULL,
		last_run_at TIMESTAMPTZ NOT NULL,
		window_days INTEGER NOT NULL,
		PRIMARY KEY (project_id, dataset_kind)
	);

	CREATE TABLE IF NOT EXISTS co_change_groups (
		project_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		group_key TEXT NOT NULL,
		frequency INTEGER NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (project_id, scope, group_key)
	);

	CREATE TABLE IF NOT EXISTS co_change_group_commits (
		project_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		group_key TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		committed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (project_id, scope, group_key, commit_hash)
	);

	CREATE TABLE IF NOT EXISTS co_change_group_member_stats (
		project_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		group_key TEXT NOT NULL,
		member_path TEXT NOT NULL,
		size_bytes BIGINT NOT NULL,
		loc INTEGER NOT NULL,
		measured_commit_hash TEXT NOT NULL,
		measured_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (project_id, scope, group_key, member_path)
	);

	CREATE TABLE IF NOT EXISTS file_heatmaps (
		project_id TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		change_count INTEGER NOT NULL,
		heat_score DOUBLE PRECISION NOT NULL,
		last_changed_at TIMESTAMPTZ NOT NULL,
		size_bytes BIGINT NOT NULL DEFAULT 0,
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Watermark operations

func (s *PostgresStore) GetWatermark(ctx context.Context, projectID string, kind models.DatasetKind) (*models.Watermark, error) {
	var wm models.Watermark
	query := `SELECT * FROM watermarks WHERE project_id = $1 AND dataset_kind = $2`

	err := s.db.GetContext(ctx, &wm, query, projectID, kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get watermark: %w", err)
	}

	return &wm, nil
}

func (s *PostgresStore) ReplaceWatermark(ctx context.Context, wm *models.Watermark) error {
	query := `
		INSERT INTO watermarks (project_id, dataset_kind, last_run_at, window_days)
		VALUES (:project_id, :dataset_kind, :last_run_at, :window_days)
		ON CONFLICT (project_id, dataset_kind) DO UPDATE SET
			last_run_at = EXCLUDED.last_run_at,
			window_days = EXCLUDED.window_days
	`

	_, err := s.db.NamedExecContext(ctx, query, wm)
	if err != nil {
		return fmt.Errorf("replace watermark: %w", err)
	}

	return nil
}

// Co-change group operations

func (s *PostgresStore) UpsertGroup(ctx context.Context, group *models.CoChangeGroup) error {
	query := `
		INSERT INTO co_change_groups (project_id, scope, group_key, frequency, last_seen_at)
		VALUES (:project_id, :scope, :group_key, :frequency, :last_seen_at)
		ON CONFLICT (project_id, scope, group_key) DO UPDATE SET
			frequency = EXCLUDED.frequency,
			last_seen_at = EXCLUDED.last_seen_at
	`

	_, err := s.db.NamedExecContext(ctx, query, group)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListGroups(ctx context.Context, projectID string, scope models.Scope) ([]*models.CoChangeGroup, error) {
	var groups []*models.CoChangeGroup
	query := `
		SELECT * FROM co_change_groups
		WHERE project_id = $1 AND scope = $2
		ORDER BY frequency DESC, group_key
	`

	err := s.db.SelectContext(ctx, &groups, query, projectID, scope)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	for _, g := range groups {
		g.Members = models.MembersOf(g.GroupKey)
	}

	return groups, nil
}

func (s *PostgresStore) DeleteGroup(ctx context.Context, projectID string, scope models.Scope, groupKey string) error {
	query := `DELETE FROM co_change_groups WHERE project_id = $1 AND scope = $2 AND group_key = $3`

	_, err := s.db.ExecContext(ctx, query, projectID, scope, groupKey)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}

	return nil
}

// Provenance operations

func (s *PostgresStore) InsertGroupCommits(ctx context.Context, rows []*models.CoChangeGroupCommit) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO co_change_group_commits
		(project_id, scope, group_key, commit_hash, committed_at)
		VALUES (:project_id, :scope, :group_key, :commit_hash, :committed_at)
		ON CONFLICT (project_id, scope, group_key, commit_hash) DO NOTHING
	`

	for start := 0; start < len(rows); start += GroupCommitBatchSize {
		end := start + GroupCommitBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		if _, err := s.db.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return fmt.Errorf("insert group commits: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) ListGroupCommits(ctx context.Context, projectID string, scope models.Scope, groupKey string) ([]*models.CoChangeGroupCommit, error) {
	var rows []*models.CoChangeGroupCommit
	query := `
		SELECT * FROM co_change_group_commits
		WHERE project_id = $1 AND scope = $2 AND group_key = $3
		ORDER BY committed_at
	`

	err := s.db.SelectContext(ctx, &rows, query, projectID, scope, groupKey)
	if err != nil {
		return nil, fmt.Errorf("list group commits: %w", err)
	}

	return rows, nil
}

func (s *PostgresStore) ListAllGroupCommits(ctx context.Context, projectID string, scope models.Scope) ([]*models.CoChangeGroupCommit, error) {
	var rows []*models.CoChangeGroupCommit
	query := `
		SELECT * FROM co_change_group_commits
		WHERE project_id = $1 AND scope = $2
	`

	err := s.db.SelectContext(ctx, &rows, query, projectID, scope)
	if err != nil {
		return nil, fmt.Errorf("list all group commits: %w", err)
	}

	return rows, nil
}

func (s *PostgresStore) DeleteGroupCommit(ctx context.Context, projectID string, scope models.Scope, groupKey, commitHash string) error {
	query := `
		DELETE FROM co_change_group_commits
		WHERE project_id = $1 AND scope = $2 AND group_key = $3 AND commit_hash = $4
	`

	_, err := s.db.ExecContext(ctx, query, projectID, scope, groupKey, commitHash)
	if err != nil {
		return fmt.Errorf("delete group commit: %w", err)
	}

	return nil
}

// Member stat operations

func (s *PostgresStore) UpsertMemberStat(ctx context.Context, stat *models.CoChangeGroupMemberStat) error {
	query := `
		INSERT INTO co_change_group_member_stats
		(project_id, scope, group_key, member_path, size_bytes, loc, measured_commit_hash, measured_at)
		VALUES (:project_id, :scope, :group_key, :member_path, :size_bytes, :loc, :measured_commit_hash, :measured_at)
		ON CONFLICT (project_id, scope, group_key, member_path) DO UPDATE SET
			size_bytes = EXCLUDED.size_bytes,
			loc = EXCLUDED.loc,
			measured_commit_hash = EXCLUDED.measured_commit_hash,
			measured_at = EXCLUDED.measured_at
	`

	_, err := s.db.NamedExecContext(ctx, query, stat)
	if err != nil {
		return fmt.Errorf("upsert member stat: %w", err)
	}

	return nil
}

func (s *PostgresStore) ListMemberStats(ctx context.Context, projectID string, scope models.Scope, groupKey string) ([]*models.CoChangeGroupMemberStat, error) {
	var stats []*models.CoChangeGroupMemberStat
	query := `
		SELECT * FROM co_change_group_member_stats
		WHERE project_id = $1 AND scope = $2 AND group_key = $3
		ORDER BY member_path
	`

	err := s.db.SelectContext(ctx, &stats, query, projectID, scope, groupKey)
	if err != nil {
		return nil, fmt.Errorf("list member stats: %w", err)
	}

	return stats, nil
}

func (s *PostgresStore) DeleteMemberStatsExcept(ctx context.Context, projectID string, scope models.Scope, groupKey string, keep []string) error {
	if len(keep) == 0 {
		query := `
			DELETE FROM co_change_group_member_stats
			WHERE project_id = $1 AND scope = $2 AND group_key = $3
		`
		_, err := s.db.ExecContext(ctx, query, projectID, scope, groupKey)
		if err != nil {
			return fmt.Errorf("delete member stats: %w", err)
		}
		return nil
	}

	query, args, err := sqlx.In(`
		DELETE FROM co_change_group_member_stats
		WHERE project_id = ? AND scope = ? AND group_key = ? AND member_path NOT IN (?)
	`, projectID, scope, groupKey, keep)
	if err != nil {
		return fmt.Errorf("delete member stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("delete member stats: %w", err)
	}

	return nil
}

// Heatmap operations

func (s *PostgresStore) UpsertHeatmap(ctx context.Context, row *models.FileHeatmap) error {
	query := `
		INSERT INTO file_heatmaps
		(project_id, relative_path, change_count, heat_score, last_changed_at, size_bytes, loc)
		VALUES (:project_id, :relative_path, :change_count, :heat_score, :last_changed_at, :size_bytes, :loc)
		ON CONFLICT (project_id, relative_path) DO UPDATE SET
			change_count = EXCLUDED.change_count,
			heat_score = EXCLUDED.heat_score,
			last_changed_at = EXCLUDED.last_changed_at,
			size_bytes = EXCLUDED.size_bytes,
			loc = EXCLUDED.loc
	`

	_, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("upsert heatmap: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetHeatmap(ctx context.Context, projectID, relativePath string) (*models.FileHeatmap, error) {
	var row models.FileHeatmap
	query := `SELECT * FROM file_heatmaps WHERE project_id = $1 AND relative_path = $2`

	err := s.db.GetContext(ctx, &row, query, projectID, relativePath)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get heatmap: %w", err)
	}

	return &row, nil
}

func (s *PostgresStore) ListHeatmap(ctx context.Context, projectID string) ([]*models.FileHeatmap, error) {
	var rows []*models.FileHeatmap
	query := `
		SELECT * FROM file_heatmaps
		WHERE project_id = $1
		ORDER BY heat_score DESC, relative_path
	`

	err := s.db.SelectContext(ctx, &rows, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list heatmap: %w", err)
	}

	return rows, nil
}

func (s *PostgresStore) DeleteHeatmap(ctx context.Context, projectID, relativePath string) error {
	query := `DELETE FROM file_heatmaps WHERE project_id = $1 AND relative_path = $2`

	_, err := s.db.ExecContext(ctx, query, projectID, relativePath)
	if err != nil {
		return fmt.Errorf("delete heatmap: %w", err)
	}

	return nil
}
