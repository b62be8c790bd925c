package fsds

import (
	"time"

	"github.com/seenimoa/secfacts/pkg/models"
)

// MinYears and MaxYears bound the lookback window.
const (
	MinYears = 1
	MaxYears = 5
)

// AvailableSince is the earliest asOf date the planner serves. Earlier dates
// yield an empty plan.
var AvailableSince = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Plan returns the dataset periods to read for a request, most recent first,
// starting at asOf's calendar quarter.
//
// Annual requests read one archive per year (years periods): a 10-K lands in
// the archive of the quarter it was filed in, and the extractor filters by
// form. Quarterly requests read up to years*4 periods; the caller stops early
// once enough distinct fiscal periods have been collected.
func Plan(freq models.Frequency, years int, asOf time.Time) ([]models.DatasetPeriod, error) {
	if years < MinYears || years > MaxYears {
		return nil, ErrInvalidYears
	}
	if asOf.Before(AvailableSince) {
		return []models.DatasetPeriod{}, nil
	}

	n := years
	if freq == models.Quarterly {
		n = years * 4
	}

	periods := make([]models.DatasetPeriod, 0, n)
	p := models.PeriodOf(asOf)
	for len(periods) < n && !p.Before(models.FirstDatasetPeriod) {
		periods = append(periods, p)
		p = p.Prev()
	}
	return periods, nil
}
