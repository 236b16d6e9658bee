package cochange

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/gitpulse/gitpulse-go/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeasurer struct {
	size int64
	loc  int
}

func (f *fakeMeasurer) Measure(_ context.Context, _, _, _ string) (int64, int, error) {
	return f.size, f.loc, nil
}

func newTestMaintainer(store storage.Store) *Maintainer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewMaintainer(store, NewPairGenerator(logger), &fakeMeasurer{size: 2048, loc: 120}, logger)
}

func fileGroups(t *testing.T, store storage.Store, projectID string) []*models.CoChangeGroup {
	t.Helper()
	groups, err := store.ListGroups(context.Background(), projectID, models.ScopeFile)
	require.NoError(t, err)
	return groups
}

func TestFullRebuild_TwoCommitsOneGroup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/b.ex"),
		commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/b.ex"),
	}

	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", commits))

	groups := fileGroups(t, store, "p1")
	require.Len(t, groups, 1)
	assert.Equal(t, "lib/a.ex|lib/b.ex", groups[0].GroupKey)
	assert.Equal(t, 2, groups[0].Frequency)
	assert.Equal(t, t0.Add(time.Hour), groups[0].LastSeenAt)

	rows, err := store.ListGroupCommits(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/b.ex")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	stats, err := store.ListMemberStats(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/b.ex")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, int64(2048), stats[0].SizeBytes)
	assert.Equal(t, 120, stats[0].LOC)
	assert.Equal(t, "c2", stats[0].MeasuredCommitHash)
}

func TestFullRebuild_SeedsBelowThresholdPairs(t *testing.T) {
	// A pair seen once gets provenance but no group; a later delta commit
	// must be able to lift it over the threshold.
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/c.ex"),
	}))

	assert.Empty(t, fileGroups(t, store, "p1"))

	rows, err := store.ListGroupCommits(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/c.ex")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// The delta commit crosses the threshold using the seeded baseline.
	_, err = m.Delta(ctx, "p1", []models.CommitEvent{
		commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/c.ex"),
	}, nil)
	require.NoError(t, err)

	groups := fileGroups(t, store, "p1")
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Frequency)
}

func TestFullRebuild_DeletesStaleGroupsAndProvenance(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	old := []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/b.ex"),
		commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/b.ex"),
	}
	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", old))
	require.Len(t, fileGroups(t, store, "p1"), 1)

	// Rebuild from a history where the pair no longer exists.
	fresh := []models.CommitEvent{
		commitAt("c3", t0.Add(2*time.Hour), "lib/x.ex", "lib/y.ex"),
		commitAt("c4", t0.Add(3*time.Hour), "lib/x.ex", "lib/y.ex"),
	}
	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", fresh))

	groups := fileGroups(t, store, "p1")
	require.Len(t, groups, 1)
	assert.Equal(t, "lib/x.ex|lib/y.ex", groups[0].GroupKey)

	rows, err := store.ListGroupCommits(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/b.ex")
	require.NoError(t, err)
	assert.Empty(t, rows)

	stats, err := store.ListMemberStats(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/b.ex")
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestFullRebuild_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/b.ex"),
		commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/b.ex"),
	}

	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", commits))
	first := fileGroups(t, store, "p1")
	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", commits))
	second := fileGroups(t, store, "p1")

	assert.Equal(t, first, second)

	rows, err := store.ListGroupCommits(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/b.ex")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

// failingProvenanceStore rejects provenance inserts while passing everything
// else through.
type failingProvenanceStore struct {
	storage.Store
}

func (s *failingProvenanceStore) InsertGroupCommits(_ context.Context, _ []*models.CoChangeGroupCommit) error {
	return errors.New("disk full")
}

func TestFullRebuild_ProvenanceWriteFailureKeepsGroups(t *testing.T) {
	ctx := context.Background()
	store := &failingProvenanceStore{Store: storage.NewMemoryStore()}
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	commits := []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/b.ex"),
		commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/b.ex"),
	}

	// Provenance persistence is best-effort during a full rebuild: the group
	// rows still land and the failure is only logged.
	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", commits))

	groups := fileGroups(t, store, "p1")
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Frequency)
}

func TestDelta_ProvenanceWriteFailurePropagates(t *testing.T) {
	ctx := context.Background()
	store := &failingProvenanceStore{Store: storage.NewMemoryStore()}
	m := newTestMaintainer(store)

	// In delta mode provenance rows are the frequency counter; a skipped
	// write would corrupt counts, so the error must surface.
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := m.Delta(ctx, "p1", []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/b.ex"),
	}, nil)
	assert.Error(t, err)
}

func TestDelta_ThirdCommitRaisesFrequency(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/b.ex"),
		commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/b.ex"),
	}))

	// Delta with no new commits leaves everything unchanged.
	res, err := m.Delta(ctx, "p1", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, res.InsertedRows)
	groups := fileGroups(t, store, "p1")
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Frequency)

	// A third commit touching the same files lifts frequency to 3.
	t3 := t0.Add(2 * time.Hour)
	res, err = m.Delta(ctx, "p1", []models.CommitEvent{
		commitAt("c3", t3, "lib/a.ex", "lib/b.ex"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.InsertedRows)

	groups = fileGroups(t, store, "p1")
	require.Len(t, groups, 1)
	assert.Equal(t, 3, groups[0].Frequency)
	assert.Equal(t, t3, groups[0].LastSeenAt)

	rows, err := store.ListGroupCommits(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/b.ex")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestDelta_ExpiryDeletesGroup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	supporting := []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/b.ex"),
		commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/b.ex"),
	}
	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", supporting))

	// Both supporting commits age out: frequency would drop to 0 < 2.
	res, err := m.Delta(ctx, "p1", nil, supporting)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DeletedRows)

	assert.Empty(t, fileGroups(t, store, "p1"))

	rows, err := store.ListGroupCommits(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/b.ex")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDelta_PartialExpiryDropsBelowThreshold(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c1 := commitAt("c1", t0, "lib/a.ex", "lib/b.ex")
	c2 := commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/b.ex")
	require.NoError(t, m.FullRebuild(ctx, "p1", "/repo", []models.CommitEvent{c1, c2}))

	// Only the older commit expires; one row remains, below threshold.
	_, err := m.Delta(ctx, "p1", nil, []models.CommitEvent{c1})
	require.NoError(t, err)

	assert.Empty(t, fileGroups(t, store, "p1"))

	rows, err := store.ListGroupCommits(ctx, "p1", models.ScopeFile, "lib/a.ex|lib/b.ex")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDelta_GuardrailContributesNoPairs(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	mega := make([]string, 105)
	for i := range mega {
		mega[i] = fmt.Sprintf("lib/file_%03d.ex", i)
	}

	res, err := m.Delta(ctx, "p1", []models.CommitEvent{
		{Hash: "mega", Timestamp: time.Now(), Files: mega},
	}, nil)
	require.NoError(t, err)

	assert.Zero(t, res.InsertedRows)
	assert.Empty(t, fileGroups(t, store, "p1"))
}

func TestDelta_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newTestMaintainer(store)

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	added := []models.CommitEvent{
		commitAt("c1", t0, "lib/a.ex", "lib/b.ex"),
		commitAt("c2", t0.Add(time.Hour), "lib/a.ex", "lib/b.ex"),
	}

	_, err := m.Delta(ctx, "p1", added, nil)
	require.NoError(t, err)
	first := fileGroups(t, store, "p1")

	// Replaying the same delta converges to the same state.
	_, err = m.Delta(ctx, "p1", added, nil)
	require.NoError(t, err)
	second := fileGroups(t, store, "p1")

	assert.Equal(t, first, second)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].Frequency)
}
