package fsds

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/secfacts/internal/infra"
	"github.com/seenimoa/secfacts/pkg/models"
)

var archiveLinkRe = regexp.MustCompile(`(?i)(\d{4})q([1-4])\.zip$`)

// Catalog lists the archives SEC has published by scraping the FSDS
// landing page.
type Catalog struct {
	http  *infra.HTTPClient
	url   string
	cache *infra.Cache[string, []models.DatasetPeriod]
}

// NewCatalog creates a catalog for the page at url. The listing is cached
// for ttl.
func NewCatalog(client *infra.HTTPClient, url string, ttl time.Duration, clock infra.Clock) *Catalog {
	return &Catalog{
		http:  client,
		url:   url,
		cache: infra.NewCache[string, []models.DatasetPeriod](ttl, clock),
	}
}

// Available returns the published periods, most recent first.
func (c *Catalog) Available(ctx context.Context) ([]models.DatasetPeriod, error) {
	if periods, ok := c.cache.Get(c.url); ok {
		return periods, nil
	}

	data, err := c.http.GetBytes(ctx, c.url, 16<<20)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset catalog: %w", err)
	}
	periods, err := parseCatalog(data)
	if err != nil {
		return nil, err
	}
	c.cache.Set(c.url, periods)
	return periods, nil
}

// Latest returns the most recent published period.
func (c *Catalog) Latest(ctx context.Context) (models.DatasetPeriod, error) {
	periods, err := c.Available(ctx)
	if err != nil {
		return models.DatasetPeriod{}, err
	}
	if len(periods) == 0 {
		return models.DatasetPeriod{}, fmt.Errorf("dataset catalog lists no archives")
	}
	return periods[0], nil
}

// ClampAsOf moves asOf back to the last day of the latest published period
// when asOf lies beyond it.
func (c *Catalog) ClampAsOf(ctx context.Context, asOf time.Time) (time.Time, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return asOf, err
	}
	if latest.Before(models.PeriodOf(asOf)) {
		return lastDayOf(latest), nil
	}
	return asOf, nil
}

func parseCatalog(data []byte) ([]models.DatasetPeriod, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse dataset catalog: %w", err)
	}

	seen := make(map[models.DatasetPeriod]bool)
	var periods []models.DatasetPeriod
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		m := archiveLinkRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		p, err := models.ParsePeriod(m[1] + "q" + m[2])
		if err != nil || seen[p] {
			return
		}
		seen[p] = true
		periods = append(periods, p)
	})

	sort.Slice(periods, func(i, j int) bool { return periods[j].Before(periods[i]) })
	return periods, nil
}

// lastDayOf returns the final day of the calendar quarter p.
func lastDayOf(p models.DatasetPeriod) time.Time {
	firstOfNext := time.Date(p.Year, time.Month(p.Quarter*3)+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1)
}
