package histcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls   int
	commits []models.CommitEvent
	err     error
}

func (p *countingProvider) Commits(_ context.Context, _ string, _, _ time.Time) ([]models.CommitEvent, error) {
	p.calls++
	return p.commits, p.err
}

func newTestCache(t *testing.T, provider *countingProvider, ttl time.Duration) *Cache {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	c, err := Open(filepath.Join(t.TempDir(), "hist.db"), provider, ttl, logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c
}

func TestCache_ReadThrough(t *testing.T) {
	provider := &countingProvider{commits: []models.CommitEvent{
		{Hash: "c1", Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Files: []string{"lib/a.ex"}},
	}}
	c := newTestCache(t, provider, time.Hour)

	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := c.Commits(context.Background(), "/repo", since, until)
	require.NoError(t, err)
	second, err := c.Commits(context.Background(), "/repo", since, until)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls)
}

func TestCache_DistinctRangesMiss(t *testing.T) {
	provider := &countingProvider{}
	c := newTestCache(t, provider, time.Hour)

	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Commits(context.Background(), "/repo", since, until)
	require.NoError(t, err)
	_, err = c.Commits(context.Background(), "/repo", since, until.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls)
}

func TestCache_ExpiredEntryRefetched(t *testing.T) {
	provider := &countingProvider{}
	c := newTestCache(t, provider, time.Nanosecond)

	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Commits(context.Background(), "/repo", since, until)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = c.Commits(context.Background(), "/repo", since, until)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.calls)
}

func TestCache_ProviderErrorPropagatesUncached(t *testing.T) {
	provider := &countingProvider{err: errors.New("git exploded")}
	c := newTestCache(t, provider, time.Hour)

	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := c.Commits(context.Background(), "/repo", since, until)
	assert.Error(t, err)

	// Errors are not cached; the next call tries again.
	_, err = c.Commits(context.Background(), "/repo", since, until)
	assert.Error(t, err)
	assert.Equal(t, 2, provider.calls)
}
