package models

import (
	"strings"
	"time"
)

// DatasetKind identifies one of the two derived datasets maintained per project.
type DatasetKind string

const (
	DatasetCoChange DatasetKind = "co_change"
	DatasetHeatmap  DatasetKind = "heatmap"
)

// Scope determines whether co-change analysis operates on files or their
// parent directories.
type Scope string

const (
	ScopeFile      Scope = "file"
	ScopeDirectory Scope = "directory"
)

// Scopes lists every co-change scope a run processes.
func Scopes() []Scope {
	return []Scope{ScopeFile, ScopeDirectory}
}

// CommitEvent is a single commit with its changed-file list, sourced from the
// history provider per run. Never persisted.
type CommitEvent struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
	Files     []string  `json:"files"`
}

// Watermark records the reference time and window size of the previous
// successful run for one (project, dataset) pair. Replaced, never merged.
type Watermark struct {
	ProjectID   string      `json:"project_id" db:"project_id"`
	DatasetKind DatasetKind `json:"dataset_kind" db:"dataset_kind"`
	LastRunAt   time.Time   `json:"last_run_at" db:"last_run_at"`
	WindowDays  int         `json:"window_days" db:"window_days"`
}

// CoChangeGroup is a set of paths observed changing together in at least two
// in-window commits. Keyed by (project, scope, group key).
type CoChangeGroup struct {
	ProjectID  string    `json:"project_id" db:"project_id"`
	Scope      Scope     `json:"scope" db:"scope"`
	GroupKey   string    `json:"group_key" db:"group_key"`
	Members    []string  `json:"members" db:"-"`
	Frequency  int       `json:"frequency" db:"frequency"`
	LastSeenAt time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// GroupKeyFor builds the canonical group key: members sorted lexicographically
// and joined with "|". Callers must pass an already sorted member list.
func GroupKeyFor(members []string) string {
	return strings.Join(members, "|")
}

// MembersOf splits a group key back into its member paths.
func MembersOf(groupKey string) []string {
	return strings.Split(groupKey, "|")
}

// CoChangeGroupCommit is a provenance row linking a group key to one
// supporting commit. In delta mode the row count per key is the ground-truth
// frequency counter.
type CoChangeGroupCommit struct {
	ProjectID   string    `json:"project_id" db:"project_id"`
	Scope       Scope     `json:"scope" db:"scope"`
	GroupKey    string    `json:"group_key" db:"group_key"`
	CommitHash  string    `json:"commit_hash" db:"commit_hash"`
	CommittedAt time.Time `json:"committed_at" db:"committed_at"`
}

// CoChangeGroupMemberStat holds size and line count for one group member,
// measured at the group's most recent supporting commit. Only full rebuilds
// write these; delta runs leave them stale.
type CoChangeGroupMemberStat struct {
	ProjectID          string    `json:"project_id" db:"project_id"`
	Scope              Scope     `json:"scope" db:"scope"`
	GroupKey           string    `json:"group_key" db:"group_key"`
	MemberPath         string    `json:"member_path" db:"member_path"`
	SizeBytes          int64     `json:"size_bytes" db:"size_bytes"`
	LOC                int       `json:"loc" db:"loc"`
	MeasuredCommitHash string    `json:"measured_commit_hash" db:"measured_commit_hash"`
	MeasuredAt         time.Time `json:"measured_at" db:"measured_at"`
}

// FileHeatmap scores one path by change frequency and recency. A row exists
// iff ChangeCount > 0.
type FileHeatmap struct {
	ProjectID     string    `json:"project_id" db:"project_id"`
	RelativePath  string    `json:"relative_path" db:"relative_path"`
	ChangeCount   int       `json:"change_count" db:"change_count"`
	HeatScore     float64   `json:"heat_score" db:"heat_score"`
	LastChangedAt time.Time `json:"last_changed_at" db:"last_changed_at"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	LOC           int       `json:"loc" db:"loc"`
}
