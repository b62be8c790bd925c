// Package models defines the core data structures used throughout secfacts.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilerIdentity is the result of resolving a ticker against the SEC company index.
type FilerIdentity struct {
	Ticker  string `json:"ticker"`   // ticker as found in the index, e.g. "BRK-B"
	FilerID int64  `json:"filer_id"` // SEC CIK
	Name    string `json:"name"`     // e.g. "Apple Inc."
}

// PaddedCIK returns the CIK zero-padded to 10 digits, the form EDGAR URLs use.
func (f FilerIdentity) PaddedCIK() string {
	return fmt.Sprintf("%010d", f.FilerID)
}

// FirstDatasetPeriod is the oldest Financial Statement Data Sets archive SEC publishes.
var FirstDatasetPeriod = DatasetPeriod{Year: 2009, Quarter: 1}

// DatasetPeriod identifies one quarterly FSDS archive.
type DatasetPeriod struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"` // 1..4
}

// PeriodOf returns the dataset period whose calendar quarter contains t.
func PeriodOf(t time.Time) DatasetPeriod {
	return DatasetPeriod{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// ParsePeriod parses the archive form "2024q1" (case-insensitive).
func ParsePeriod(s string) (DatasetPeriod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".zip")
	idx := strings.IndexByte(s, 'q')
	if idx <= 0 || idx == len(s)-1 {
		return DatasetPeriod{}, fmt.Errorf("invalid dataset period %q", s)
	}
	year, err := strconv.Atoi(s[:idx])
	if err != nil {
		return DatasetPeriod{}, fmt.Errorf("invalid dataset period %q: %w", s, err)
	}
	quarter, err := strconv.Atoi(s[idx+1:])
	if err != nil || quarter < 1 || quarter > 4 {
		return DatasetPeriod{}, fmt.Errorf("invalid dataset period %q: quarter out of range", s)
	}
	return DatasetPeriod{Year: year, Quarter: quarter}, nil
}

// String returns the archive base name, e.g. "2024q1".
func (p DatasetPeriod) String() string {
	return fmt.Sprintf("%dq%d", p.Year, p.Quarter)
}

// Prev returns the calendar quarter immediately before p.
func (p DatasetPeriod) Prev() DatasetPeriod {
	if p.Quarter <= 1 {
		return DatasetPeriod{Year: p.Year - 1, Quarter: 4}
	}
	return DatasetPeriod{Year: p.Year, Quarter: p.Quarter - 1}
}

// Before reports whether p is chronologically earlier than o.
func (p DatasetPeriod) Before(o DatasetPeriod) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

// IsZero reports whether p is the zero value.
func (p DatasetPeriod) IsZero() bool {
	return p.Year == 0 && p.Quarter == 0
}
