package fsds

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/secfacts/internal/infra"
	"github.com/seenimoa/secfacts/pkg/models"
)

// maxArchiveBytes caps a single download. Quarterly archives are well under
// 200 MB compressed.
const maxArchiveBytes = 1 << 30

// Archive members read from each FSDS zip.
const (
	memberSub = "sub.txt"
	memberNum = "num.txt"
	memberTag = "tag.txt"
)

// FetcherStats counts how Fetch calls were served.
type FetcherStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Network  int64 `json:"network"`
	DiskHits int64 `json:"disk_hits"`
	Failures int64 `json:"failures"`
	Cached   int   `json:"cached"` // archives held in memory
}

// Fetcher downloads FSDS archives and keeps them in a DatasetCache.
type Fetcher struct {
	http    *infra.HTTPClient
	baseURL string
	cache   *DatasetCache
	store   *DiskStore
	clock   infra.Clock
	group   singleflight.Group
	log     logrus.FieldLogger

	hits, misses, network, diskHits, failures atomic.Int64
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithDiskStore keeps downloaded archives on disk as well.
func WithDiskStore(s *DiskStore) FetcherOption {
	return func(f *Fetcher) { f.store = s }
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(l logrus.FieldLogger) FetcherOption {
	return func(f *Fetcher) { f.log = l }
}

// NewFetcher creates a fetcher reading <baseURL>/<year>q<quarter>.zip.
func NewFetcher(client *infra.HTTPClient, baseURL string, cache *DatasetCache, clock infra.Clock, opts ...FetcherOption) *Fetcher {
	if clock == nil {
		clock = infra.SystemClock{}
	}
	f := &Fetcher{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
		cache:   cache,
		clock:   clock,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.WithField("component", "fetcher")
	return f
}

// URL returns the archive address for p.
func (f *Fetcher) URL(p models.DatasetPeriod) string {
	return fmt.Sprintf("%s/%s.zip", f.baseURL, p)
}

// Fetch returns the dataset for p, from cache while fresh. Concurrent misses
// for the same period share a single download, and a caller that gives up
// does not fail the others. A failed fetch leaves any existing cache entry
// untouched.
func (f *Fetcher) Fetch(ctx context.Context, p models.DatasetPeriod) (*models.CachedDataset, error) {
	if ds, ok := f.cache.Get(p); ok {
		f.hits.Add(1)
		return ds, nil
	}
	f.misses.Add(1)

	// The shared download outlives any one caller's cancellation; it is
	// bounded by the HTTP client timeout. Each caller waits on its own ctx.
	dl := context.WithoutCancel(ctx)
	ch := f.group.DoChan(p.String(), func() (any, error) {
		if ds, ok := f.cache.Get(p); ok {
			return ds, nil
		}
		if n := f.cache.Prune(); n > 0 {
			f.log.WithField("expired", n).Debug("pruned dataset cache")
		}
		ds, err := f.load(dl, p)
		if err != nil {
			f.failures.Add(1)
			return nil, err
		}
		f.cache.Put(ds)
		return ds, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.CachedDataset), nil
	}
}

// FetchResult is one period's outcome from FetchAll.
type FetchResult struct {
	Period  models.DatasetPeriod
	Dataset *models.CachedDataset
	Err     error
}

// FetchAll fetches periods with at most limit downloads in flight. Results
// keep the order of periods. Per-period failures are reported in the result;
// the returned error is only set when ctx is done.
func (f *Fetcher) FetchAll(ctx context.Context, periods []models.DatasetPeriod, limit int) ([]FetchResult, error) {
	if limit <= 0 {
		limit = 1
	}
	results := make([]FetchResult, len(periods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range periods {
		i, p := i, p
		results[i].Period = p
		g.Go(func() error {
			ds, err := f.Fetch(gctx, p)
			results[i].Dataset, results[i].Err = ds, err
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

// Stats returns a snapshot of the fetch counters.
func (f *Fetcher) Stats() FetcherStats {
	return FetcherStats{
		Hits:     f.hits.Load(),
		Misses:   f.misses.Load(),
		Network:  f.network.Load(),
		DiskHits: f.diskHits.Load(),
		Failures: f.failures.Load(),
		Cached:   f.cache.Len(),
	}
}

// Forget drops p from memory and from the disk store so the next Fetch
// downloads it again.
func (f *Fetcher) Forget(p models.DatasetPeriod) {
	f.cache.Invalidate(p)
	if f.store != nil {
		if err := f.store.Remove(p); err != nil {
			f.log.WithError(err).WithField("period", p.String()).Warn("removing stored archive")
		}
	}
}

// load reads the archive from disk or network and decodes it.
func (f *Fetcher) load(ctx context.Context, p models.DatasetPeriod) (*models.CachedDataset, error) {
	log := f.log.WithField("period", p.String())

	if f.store != nil {
		data, ok, err := f.store.Load(p)
		switch {
		case err != nil:
			log.WithError(err).Warn("reading stored archive")
		case ok:
			raw, err := decodeArchive(data)
			if err == nil {
				f.diskHits.Add(1)
				log.WithField("bytes", raw.Size()).Debug("archive loaded from disk")
				return &models.CachedDataset{Period: p, Raw: raw, FetchedAt: f.clock.Now()}, nil
			}
			log.WithError(err).Warn("stored archive is corrupt, downloading again")
			f.store.Remove(p)
		}
	}

	f.network.Add(1)
	data, err := f.http.GetBytes(ctx, f.URL(p), maxArchiveBytes)
	if err != nil {
		fe := &FetchError{Period: p, Err: err}
		var se *infra.StatusError
		if errors.As(err, &se) {
			fe.Status = se.StatusCode
		}
		return nil, fe
	}

	raw, err := decodeArchive(data)
	if err != nil {
		return nil, &FetchError{Period: p, Err: err}
	}
	log.WithField("bytes", len(data)).Info("archive downloaded")

	if f.store != nil {
		if err := f.store.Save(p, data); err != nil {
			log.WithError(err).Warn("saving archive to disk")
		}
	}
	return &models.CachedDataset{Period: p, Raw: raw, FetchedAt: f.clock.Now()}, nil
}

// decodeArchive extracts sub.txt, num.txt and tag.txt from a zip.
func decodeArchive(data []byte) (models.RawTables, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.RawTables{}, fmt.Errorf("open archive: %w", err)
	}

	members := make(map[string][]byte, 3)
	for _, zf := range zr.File {
		name := strings.ToLower(path.Base(zf.Name))
		if name != memberSub && name != memberNum && name != memberTag {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return models.RawTables{}, fmt.Errorf("open %s: %w", zf.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return models.RawTables{}, fmt.Errorf("read %s: %w", zf.Name, err)
		}
		members[name] = b
	}

	for _, m := range []string{memberSub, memberNum, memberTag} {
		if _, ok := members[m]; !ok {
			return models.RawTables{}, fmt.Errorf("archive has no %s", m)
		}
	}
	return models.RawTables{Sub: members[memberSub], Num: members[memberNum], Tag: members[memberTag]}, nil
}
