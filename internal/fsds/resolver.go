package fsds

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/secfacts/internal/infra"
	"github.com/seenimoa/secfacts/pkg/models"
)

// tickerEntry is a row from company_tickers.json.
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// tickerIndex is the decoded company index. Entries keep the file's order,
// which SEC sorts by market capitalisation.
type tickerIndex struct {
	entries  []tickerEntry
	byTicker map[string]int // upper-cased ticker -> entries index
	byBare   map[string]int // ticker with separators removed
}

const indexKey = "company_tickers"

// Resolver maps ticker symbols to SEC filer identities.
type Resolver struct {
	http  *infra.HTTPClient
	url   string
	cache *infra.Cache[string, *tickerIndex]
	group singleflight.Group
	log   logrus.FieldLogger
}

// NewResolver creates a resolver reading the index at url. The decoded index
// is kept for ttl.
func NewResolver(client *infra.HTTPClient, url string, ttl time.Duration, clock infra.Clock, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		http:  client,
		url:   url,
		cache: infra.NewCache[string, *tickerIndex](ttl, clock),
		log:   log.WithField("component", "resolver"),
	}
}

// Resolve returns the filer for ticker. Matching is case-insensitive and
// tolerant of "." / "-" share-class separators, so BRK.B, BRK-B and brkb all
// resolve to the same entry.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (models.FilerIdentity, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return models.FilerIdentity{}, &TickerNotFoundError{Ticker: ticker}
	}
	idx, err := r.index(ctx)
	if err != nil {
		return models.FilerIdentity{}, err
	}
	if e, ok := idx.find(ticker); ok {
		return e.identity(), nil
	}
	return models.FilerIdentity{}, &TickerNotFoundError{Ticker: ticker}
}

// Lookup returns up to limit filers whose ticker, name or CIK contains query.
// Exact ticker matches come first.
func (r *Resolver) Lookup(ctx context.Context, query string, limit int) ([]models.FilerIdentity, error) {
	idx, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 25
	}
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	var results []models.FilerIdentity
	seen := make(map[int]bool)
	if i, ok := idx.lookupIndex(q); ok {
		results = append(results, idx.entries[i].identity())
		seen[i] = true
	}
	for i, e := range idx.entries {
		if len(results) >= limit {
			break
		}
		if seen[i] {
			continue
		}
		if strings.Contains(strings.ToUpper(e.Ticker), q) ||
			strings.Contains(strings.ToUpper(e.Title), q) ||
			strings.Contains(strconv.FormatInt(e.CIK, 10), q) {
			results = append(results, e.identity())
		}
	}
	return results, nil
}

// index returns the cached company index, loading it on a miss. Concurrent
// misses share one download that runs past any single caller's cancellation.
func (r *Resolver) index(ctx context.Context) (*tickerIndex, error) {
	if idx, ok := r.cache.Get(indexKey); ok {
		return idx, nil
	}
	dl := context.WithoutCancel(ctx)
	ch := r.group.DoChan(indexKey, func() (any, error) {
		if idx, ok := r.cache.Get(indexKey); ok {
			return idx, nil
		}
		data, err := r.http.GetBytes(dl, r.url, 0)
		if err != nil {
			return nil, fmt.Errorf("fetch company tickers: %w", err)
		}
		idx, err := parseTickerIndex(data)
		if err != nil {
			return nil, err
		}
		r.cache.Set(indexKey, idx)
		r.log.WithField("entries", len(idx.entries)).Debug("company index loaded")
		return idx, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*tickerIndex), nil
	}
}

func parseTickerIndex(data []byte) (*tickerIndex, error) {
	var raw map[string]tickerEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse company tickers: %w", err)
	}

	// Keys are "0", "1", ... and carry the file order.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, ei := strconv.Atoi(keys[i])
		nj, ej := strconv.Atoi(keys[j])
		if ei != nil || ej != nil {
			return keys[i] < keys[j]
		}
		return ni < nj
	})

	idx := &tickerIndex{
		entries:  make([]tickerEntry, 0, len(raw)),
		byTicker: make(map[string]int, len(raw)),
		byBare:   make(map[string]int, len(raw)),
	}
	for _, k := range keys {
		e := raw[k]
		if e.Ticker == "" {
			continue
		}
		i := len(idx.entries)
		idx.entries = append(idx.entries, e)
		up := strings.ToUpper(e.Ticker)
		if _, dup := idx.byTicker[up]; !dup {
			idx.byTicker[up] = i
		}
		if _, dup := idx.byBare[bareTicker(up)]; !dup {
			idx.byBare[bareTicker(up)] = i
		}
	}
	return idx, nil
}

func (idx *tickerIndex) find(ticker string) (tickerEntry, bool) {
	i, ok := idx.lookupIndex(strings.ToUpper(ticker))
	if !ok {
		return tickerEntry{}, false
	}
	return idx.entries[i], true
}

func (idx *tickerIndex) lookupIndex(upper string) (int, bool) {
	for _, v := range tickerVariants(upper) {
		if i, ok := idx.byTicker[v]; ok {
			return i, true
		}
	}
	i, ok := idx.byBare[bareTicker(upper)]
	return i, ok
}

// tickerVariants returns the spellings tried against the index, in order.
func tickerVariants(t string) []string {
	t = strings.ToUpper(strings.TrimSpace(t))
	variants := []string{t}
	add := func(v string) {
		for _, have := range variants {
			if have == v {
				return
			}
		}
		variants = append(variants, v)
	}
	add(strings.ReplaceAll(t, "-", "."))
	add(strings.ReplaceAll(t, ".", "-"))
	add(strings.ReplaceAll(t, "/", "-"))
	add(bareTicker(t))
	return variants
}

func bareTicker(t string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '/', ' ':
			return -1
		}
		return r
	}, t)
}

func (e tickerEntry) identity() models.FilerIdentity {
	return models.FilerIdentity{Ticker: e.Ticker, FilerID: e.CIK, Name: e.Title}
}
