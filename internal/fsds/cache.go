package fsds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/seenimoa/secfacts/internal/infra"
	"github.com/seenimoa/secfacts/pkg/models"
)

// DefaultDatasetTTL is how long a fetched archive is served from memory.
const DefaultDatasetTTL = time.Hour

// DatasetCache holds decoded archives keyed by period. An entry is fresh
// while its age is below the TTL; Put replaces entries whole.
type DatasetCache struct {
	entries *infra.Cache[models.DatasetPeriod, *models.CachedDataset]
}

// NewDatasetCache creates a cache with the given TTL and clock. A nil clock
// means the system clock.
func NewDatasetCache(ttl time.Duration, clock infra.Clock) *DatasetCache {
	if ttl <= 0 {
		ttl = DefaultDatasetTTL
	}
	return &DatasetCache{entries: infra.NewCache[models.DatasetPeriod, *models.CachedDataset](ttl, clock)}
}

// Get returns the dataset for p if one is cached and still fresh.
func (c *DatasetCache) Get(p models.DatasetPeriod) (*models.CachedDataset, bool) {
	return c.entries.Get(p)
}

// Put stores ds; its age counts from ds.FetchedAt.
func (c *DatasetCache) Put(ds *models.CachedDataset) {
	c.entries.SetAt(ds.Period, ds, ds.FetchedAt, c.entries.TTL())
}

// Invalidate drops the entry for p.
func (c *DatasetCache) Invalidate(p models.DatasetPeriod) { c.entries.Invalidate(p) }

// Prune removes expired entries and returns how many were dropped.
func (c *DatasetCache) Prune() int { return c.entries.Cleanup() }

// Len returns the number of stored entries.
func (c *DatasetCache) Len() int { return c.entries.Len() }

// DiskStore keeps downloaded archives under a directory as YYYYqN.zip.
// A published archive never changes, so a file on disk is always valid.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) path(p models.DatasetPeriod) string {
	return filepath.Join(s.dir, p.String()+".zip")
}

// Load returns the stored archive for p, or ok=false when there is none.
func (s *DiskStore) Load(p models.DatasetPeriod) (data []byte, ok bool, err error) {
	data, err = os.ReadFile(s.path(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Save writes the archive through a temp file so readers never see a
// partial zip.
func (s *DiskStore) Save(p models.DatasetPeriod, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, p.String()+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(p))
}

// Remove deletes the stored archive for p, if any.
func (s *DiskStore) Remove(p models.DatasetPeriod) error {
	err := os.Remove(s.path(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
