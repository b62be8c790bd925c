package fsds

import (
	"github.com/seenimoa/secfacts/pkg/models"
)

// ExtractOptions tunes Extract.
type ExtractOptions struct {
	// IncludeDimensional keeps facts reported for a segment or co-registrant.
	// By default only consolidated values are kept.
	IncludeDimensional bool
}

type factIdentity struct {
	accession string
	key       models.FactKey
}

// Extract joins facts to their submissions and labels, keeping only facts
// filed by filer on form whose tag is whitelisted. Facts without a value are
// skipped. When the same (accession, tag, date, period) appears more than
// once, the first row wins.
func Extract(
	filer models.FilerIdentity,
	form string,
	whitelist Whitelist,
	submissions []models.SubmissionRecord,
	facts []models.NumericFact,
	tags []models.TagDefinition,
	opts ExtractOptions,
) []models.ExtractedFact {
	subs := make(map[string]*models.SubmissionRecord)
	for i := range submissions {
		s := &submissions[i]
		if s.FilerID == filer.FilerID && s.FormType == form {
			if _, dup := subs[s.AccessionID]; !dup {
				subs[s.AccessionID] = s
			}
		}
	}
	if len(subs) == 0 {
		return nil
	}

	labels := newLabeler(tags)
	seen := make(map[factIdentity]bool)
	var out []models.ExtractedFact

	for _, f := range facts {
		sub, ok := subs[f.AccessionID]
		if !ok || f.Value == nil || !whitelist.Contains(f.Tag) {
			continue
		}
		if f.IsDimensional() && !opts.IncludeDimensional {
			continue
		}

		ef := models.ExtractedFact{
			Tag:           f.Tag,
			Label:         labels.label(f.Tag, f.Version),
			Value:         *f.Value,
			Date:          f.PeriodEnd,
			Unit:          f.Unit,
			Period:        models.PeriodLabel(f.Quarters),
			FilerID:       sub.FilerID,
			AccessionID:   sub.AccessionID,
			Form:          sub.FormType,
			Filed:         sub.Filed,
			SubmissionEnd: sub.PeriodEnd,
			FiscalYear:    sub.FiscalYear,
			FiscalPeriod:  sub.FiscalPeriod,
		}
		id := factIdentity{accession: sub.AccessionID, key: ef.Key()}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, ef)
	}
	return out
}

// CountFilings returns how many submissions in subs were filed by filerID on form.
func CountFilings(subs []models.SubmissionRecord, filerID int64, form string) int {
	n := 0
	for _, s := range subs {
		if s.FilerID == filerID && s.FormType == form {
			n++
		}
	}
	return n
}

// labeler resolves a tag's display label from tag.txt, preferring the row
// for the fact's taxonomy version.
type labeler struct {
	byVersion map[[2]string]string
	byTag     map[string]string
}

func newLabeler(tags []models.TagDefinition) labeler {
	l := labeler{
		byVersion: make(map[[2]string]string, len(tags)),
		byTag:     make(map[string]string, len(tags)),
	}
	for _, t := range tags {
		if t.Label == "" {
			continue
		}
		l.byVersion[[2]string{t.Tag, t.Version}] = t.Label
		if _, ok := l.byTag[t.Tag]; !ok {
			l.byTag[t.Tag] = t.Label
		}
	}
	return l
}

func (l labeler) label(tag, version string) string {
	if s, ok := l.byVersion[[2]string{tag, version}]; ok {
		return s
	}
	if s, ok := l.byTag[tag]; ok {
		return s
	}
	return tag
}

type fiscalPeriod struct {
	year   int
	period string
}

// Accumulator collects extracted facts across datasets and tracks which
// fiscal quarters they cover.
type Accumulator struct {
	facts    []models.ExtractedFact
	filings  map[fiscalPeriod]bool
	quarters map[string]bool
	nFilings int
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		filings:  make(map[fiscalPeriod]bool),
		quarters: make(map[string]bool),
	}
}

// Add appends facts from one dataset. Point-in-time and single-quarter facts
// mark their period end as a covered quarter; comparatives count too, so a
// 10-Q's prior-year columns fill in the fourth quarter no 10-Q reports.
func (a *Accumulator) Add(facts []models.ExtractedFact) {
	for _, f := range facts {
		a.filings[fiscalPeriod{year: f.FiscalYear, period: f.FiscalPeriod}] = true
		if f.Period == models.PeriodLabel(0) || f.Period == models.PeriodLabel(1) {
			a.quarters[f.Date.Format("2006-01-02")] = true
		}
	}
	a.facts = append(a.facts, facts...)
}

// AddFilings records that n matching filings were seen, with or without facts.
func (a *Accumulator) AddFilings(n int) { a.nFilings += n }

// Quarters returns the number of distinct quarter ends covered by the facts.
// The quarterly early stop compares it with years*4.
func (a *Accumulator) Quarters() int { return len(a.quarters) }

// Periods returns the number of distinct (fy, fp) filing periods seen.
func (a *Accumulator) Periods() int { return len(a.filings) }

// Filings returns the number of matching filings seen.
func (a *Accumulator) Filings() int { return a.nFilings }

// Facts returns everything added so far.
func (a *Accumulator) Facts() []models.ExtractedFact { return a.facts }

// Len returns the number of facts added.
func (a *Accumulator) Len() int { return len(a.facts) }
