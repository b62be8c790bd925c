package models

import "time"

// RawTables holds the undecoded tab-delimited members of one FSDS archive.
type RawTables struct {
	Sub []byte // sub.txt: one row per submission
	Num []byte // num.txt: one row per numeric fact
	Tag []byte // tag.txt: tag definitions
}

// Size returns the total number of bytes held.
func (r RawTables) Size() int {
	return len(r.Sub) + len(r.Num) + len(r.Tag)
}

// CachedDataset is one fetched archive as stored by the dataset cache.
// Entries are replaced whole, never mutated.
type CachedDataset struct {
	Period    DatasetPeriod `json:"period"`
	Raw       RawTables     `json:"-"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// SubmissionRecord is one row of sub.txt.
type SubmissionRecord struct {
	AccessionID  string    `json:"accession_id"`  // adsh, e.g. "0000320193-24-000123"
	FilerID      int64     `json:"filer_id"`      // cik
	Name         string    `json:"name"`          // registrant name
	FormType     string    `json:"form_type"`     // "10-K", "10-Q", ...
	PeriodEnd    time.Time `json:"period_end"`    // balance sheet date
	FiscalYear   int       `json:"fiscal_year"`   // fy
	FiscalPeriod string    `json:"fiscal_period"` // fp: "FY", "Q1".."Q4"
	Filed        time.Time `json:"filed"`         // filing date
}

// NumericFact is one row of num.txt.
type NumericFact struct {
	AccessionID string    `json:"accession_id"`
	Tag         string    `json:"tag"`
	Version     string    `json:"version"` // taxonomy, e.g. "us-gaap/2023"
	Unit        string    `json:"unit"`    // uom
	Value       *float64  `json:"value"`   // nil when the cell was empty
	PeriodStart time.Time `json:"period_start,omitempty"`
	PeriodEnd   time.Time `json:"period_end"` // ddate
	Quarters    int       `json:"quarters"`   // qtrs: 0 for point-in-time values
	Segments    string    `json:"segments,omitempty"`
	Coreg       string    `json:"coreg,omitempty"`
}

// IsDimensional reports whether the fact belongs to a segment or co-registrant
// rather than the consolidated entity.
func (f NumericFact) IsDimensional() bool {
	return f.Segments != "" || f.Coreg != ""
}

// TagDefinition is one row of tag.txt.
type TagDefinition struct {
	Tag         string `json:"tag"`
	Version     string `json:"version"`
	Label       string `json:"label"`       // tlabel
	Description string `json:"description"` // doc
}
