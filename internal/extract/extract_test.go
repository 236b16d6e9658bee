package extract

import (
	"fmt"
	"testing"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeMembers_FileScope(t *testing.T) {
	files := []string{
		"lib/b.ex",
		"lib/a.ex",
		"lib/a.ex", // duplicate
		"assets/logo.png",
		"fonts/main.woff2",
		"priv/archive.tar.gz",
		"",
	}

	members := NormalizeMembers(files, models.ScopeFile)

	assert.Equal(t, []string{"lib/a.ex", "lib/b.ex"}, members)
}

func TestNormalizeMembers_DirectoryScope(t *testing.T) {
	files := []string{
		"lib/app/user.ex",
		"lib/app/account.ex",
		"test/user_test.exs",
		"README.md",
	}

	members := NormalizeMembers(files, models.ScopeDirectory)

	assert.Equal(t, []string{".", "lib/app", "test"}, members)
}

func TestPairEntries(t *testing.T) {
	commit := models.CommitEvent{
		Hash:      "abc123",
		Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Files:     []string{"lib/c.ex", "lib/a.ex", "lib/b.ex"},
	}

	entries, skipped := PairEntries(commit, models.ScopeFile, nil)

	assert.False(t, skipped)
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.GroupKey
		assert.Equal(t, "abc123", e.CommitHash)
		assert.Equal(t, commit.Timestamp, e.CommittedAt)
	}
	assert.Equal(t, []string{
		"lib/a.ex|lib/b.ex",
		"lib/a.ex|lib/c.ex",
		"lib/b.ex|lib/c.ex",
	}, keys)
}

func TestPairEntries_SingleFileCommit(t *testing.T) {
	commit := models.CommitEvent{Hash: "solo", Files: []string{"lib/a.ex"}}

	entries, skipped := PairEntries(commit, models.ScopeFile, nil)

	assert.False(t, skipped)
	assert.Empty(t, entries)
}

func TestPairEntries_Guardrail(t *testing.T) {
	files := make([]string, 105)
	for i := range files {
		files[i] = fmt.Sprintf("lib/file_%03d.ex", i)
	}
	commit := models.CommitEvent{Hash: "mega", Files: files}

	entries, skipped := PairEntries(commit, models.ScopeFile, nil)

	assert.True(t, skipped)
	assert.Empty(t, entries)
}

func TestPairEntries_GuardrailBoundary(t *testing.T) {
	// Exactly at the cap still generates pairs.
	files := make([]string, MaxCommitMembers)
	for i := range files {
		files[i] = fmt.Sprintf("lib/file_%03d.ex", i)
	}
	commit := models.CommitEvent{Hash: "atcap", Files: files}

	entries, skipped := PairEntries(commit, models.ScopeFile, nil)

	assert.False(t, skipped)
	assert.Len(t, entries, MaxCommitMembers*(MaxCommitMembers-1)/2)
}

func TestPairEntries_DirectoryScopeCollapsesBelowGuardrail(t *testing.T) {
	// 105 files in 3 directories: file scope skips, directory scope pairs.
	files := make([]string, 105)
	for i := range files {
		files[i] = fmt.Sprintf("lib/pkg%d/file_%03d.ex", i%3, i)
	}
	commit := models.CommitEvent{Hash: "wide", Files: files}

	entries, skipped := PairEntries(commit, models.ScopeDirectory, nil)

	assert.False(t, skipped)
	assert.Len(t, entries, 3)
}

func TestHeatEntries(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commit := models.CommitEvent{
		Hash:      "abc",
		Timestamp: ts,
		Files:     []string{"lib/a.ex", "img/x.png", "lib/a.ex", "lib/b.ex"},
	}

	entries := HeatEntries(commit)

	assert.Len(t, entries, 2)
	assert.Equal(t, "lib/a.ex", entries[0].Path)
	assert.Equal(t, "lib/b.ex", entries[1].Path)
	assert.Equal(t, ts, entries[0].CommittedAt)
}

func TestIsBinaryPath(t *testing.T) {
	tests := []struct {
		path   string
		binary bool
	}{
		{"assets/logo.PNG", true},
		{"dist/app.jar", true},
		{"fonts/inter.woff2", true},
		{"lib/core.ex", false},
		{"Makefile", false},
		{"src/tar.go", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.binary, IsBinaryPath(tt.path), tt.path)
	}
}
