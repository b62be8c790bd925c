package fsds

import (
	"errors"
	"fmt"

	"github.com/seenimoa/secfacts/pkg/models"
)

// Sentinel errors returned by the pipeline. Typed wrappers below carry
// detail and unwrap to these.
var (
	ErrTickerNotFound = errors.New("ticker not found")
	ErrNoDataFound    = errors.New("no financial data found")
	ErrInvalidYears   = errors.New("years must be between 1 and 5")
)

// TickerNotFoundError is returned when no variant of a ticker is in the index.
type TickerNotFoundError struct {
	Ticker string
}

func (e *TickerNotFoundError) Error() string {
	return fmt.Sprintf("ticker %q not found in SEC company index", e.Ticker)
}

func (e *TickerNotFoundError) Unwrap() error { return ErrTickerNotFound }

// FetchError is returned when a dataset archive cannot be retrieved or decoded.
// Status is the HTTP status when the server answered, zero otherwise.
type FetchError struct {
	Period models.DatasetPeriod
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch dataset %s: status %d: %v", e.Period, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch dataset %s: %v", e.Period, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Unavailable reports whether the archive does not exist (yet).
func (e *FetchError) Unavailable() bool { return e.Status == 404 }

// ParseError reports a table that cannot be decoded at all, such as a
// missing header or a header without a required column. Bad individual
// records are dropped and counted instead.
type ParseError struct {
	Table  string
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("parse %s: missing column %q", e.Table, e.Column)
	}
	return fmt.Sprintf("parse %s: %v", e.Table, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NoDataHint tells the caller why a request came back empty.
type NoDataHint string

const (
	// HintNoPeriods: nothing was planned or every planned archive was unpublished.
	HintNoPeriods NoDataHint = "no_periods"
	// HintNoFilings: archives were read but the filer had no filing of the requested form.
	HintNoFilings NoDataHint = "no_filings"
	// HintTagMismatch: filings were found but none carried a whitelisted tag.
	HintTagMismatch NoDataHint = "tag_mismatch"
)

// NoDataError is returned when the ticker resolved but no facts matched.
type NoDataError struct {
	Filer models.FilerIdentity
	Form  string
	Hint  NoDataHint
}

func (e *NoDataError) Error() string {
	var why string
	switch e.Hint {
	case HintNoPeriods:
		why = "no published datasets in the requested window"
	case HintNoFilings:
		why = fmt.Sprintf("no %s filings in the requested window (company may be too new)", e.Form)
	case HintTagMismatch:
		why = fmt.Sprintf("%s filings found but none report a supported tag", e.Form)
	default:
		why = "no matching facts"
	}
	return fmt.Sprintf("%s (%s): %s", e.Filer.Ticker, e.Filer.PaddedCIK(), why)
}

func (e *NoDataError) Unwrap() error { return ErrNoDataFound }
