// Package histcache caches commit history fetches in a local bbolt file so
// repeated runs over the same range skip the git exec. Delta runs for many
// projects on one host hit identical (repo, range) keys in the same tick.
package histcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/git"
	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("commit_ranges")

// Cache is a read-through HistoryProvider decorator. Cache failures degrade
// to a direct provider call; only provider errors propagate to the caller.
type Cache struct {
	db       *bolt.DB
	provider git.HistoryProvider
	ttl      time.Duration
	logger   *logrus.Logger
}

type entry struct {
	StoredAt time.Time            `json:"stored_at"`
	Commits  []models.CommitEvent `json:"commits"`
}

// Open creates or opens the cache file and wraps the given provider. Entries
// older than ttl are refetched.
func Open(path string, provider git.HistoryProvider, ttl time.Duration, logger *logrus.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history cache: %w", err)
	}

	return &Cache{db: db, provider: provider, ttl: ttl, logger: logger}, nil
}

// Commits implements git.HistoryProvider.
func (c *Cache) Commits(ctx context.Context, repoPath string, since, until time.Time) ([]models.CommitEvent, error) {
	key := rangeKey(repoPath, since, until)

	if commits, ok := c.lookup(key); ok {
		return commits, nil
	}

	commits, err := c.provider.Commits(ctx, repoPath, since, until)
	if err != nil {
		return nil, err
	}

	c.store(key, commits)
	return commits, nil
}

func (c *Cache) lookup(key []byte) ([]models.CommitEvent, bool) {
	var hit entry
	found := false

	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(key)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &hit); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		c.logger.WithError(err).Debug("history cache read failed")
		return nil, false
	}
	if !found || time.Since(hit.StoredAt) > c.ttl {
		return nil, false
	}

	return hit.Commits, true
}

func (c *Cache) store(key []byte, commits []models.CommitEvent) {
	raw, err := json.Marshal(entry{StoredAt: time.Now(), Commits: commits})
	if err != nil {
		c.logger.WithError(err).Debug("history cache encode failed")
		return
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, raw)
	})
	if err != nil {
		c.logger.WithError(err).Debug("history cache write failed")
	}
}

// Close closes the underlying bolt file.
func (c *Cache) Close() error {
	return c.db.Close()
}

func rangeKey(repoPath string, since, until time.Time) []byte {
	sum := sha256.Sum256([]byte(repoPath))
	return []byte(fmt.Sprintf("%s|%s|%s",
		hex.EncodeToString(sum[:8]),
		since.UTC().Format(time.RFC3339),
		until.UTC().Format(time.RFC3339)))
}
