package models

import (
	"fmt"
	"strings"
	"time"
)

// Frequency selects annual (10-K) or quarterly (10-Q) statements.
type Frequency string

const (
	Annual    Frequency = "annual"
	Quarterly Frequency = "quarterly"
)

// ParseFrequency accepts "annual"/"quarterly" and the short forms "a"/"q", any case.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annual", "a", "10-k", "yearly":
		return Annual, nil
	case "quarterly", "q", "10-q":
		return Quarterly, nil
	default:
		return "", fmt.Errorf("unknown frequency %q (want annual or quarterly)", s)
	}
}

// FormType returns the filing form that carries statements of this frequency.
func (f Frequency) FormType() string {
	if f == Quarterly {
		return "10-Q"
	}
	return "10-K"
}

// Category is one of the three financial statements.
type Category string

const (
	BalanceSheet    Category = "BalanceSheet"
	IncomeStatement Category = "IncomeStatement"
	CashFlow        Category = "CashFlow"
)

// Categories lists the statement categories in presentation order.
var Categories = []Category{BalanceSheet, IncomeStatement, CashFlow}

// ParseCategory accepts the canonical names and a few snake_case aliases.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "balancesheet", "bs":
		return BalanceSheet, nil
	case "incomestatement", "is", "income":
		return IncomeStatement, nil
	case "cashflow", "cf", "cashflowstatement":
		return CashFlow, nil
	default:
		return "", fmt.Errorf("unknown statement category %q", s)
	}
}

// ExtractedFact is a numeric fact joined with its submission and tag label,
// restricted to a single filer. This is the row handed to export layers.
type ExtractedFact struct {
	Tag    string    `json:"tag"`
	Label  string    `json:"label"`
	Value  float64   `json:"value"`
	Date   time.Time `json:"date"` // period end (ddate)
	Unit   string    `json:"unit"`
	Period string    `json:"period"` // "instant", "quarter", "year", ...

	FilerID       int64     `json:"filer_id"`
	AccessionID   string    `json:"accession_id"`
	Form          string    `json:"form"`
	Filed         time.Time `json:"filed"`
	SubmissionEnd time.Time `json:"submission_period_end"`
	FiscalYear    int       `json:"fiscal_year"`
	FiscalPeriod  string    `json:"fiscal_period"`
	Category      Category  `json:"category,omitempty"`
}

// Key identifies a fact for cross-dataset deduplication. Unit is left out:
// a table holds one row per (tag, date, period), and a value reported again
// in another unit replaces the earlier one under the latest-filed rule.
func (f ExtractedFact) Key() FactKey {
	return FactKey{Tag: f.Tag, Date: f.Date.Format("2006-01-02"), Period: f.Period}
}

// FactKey is the (tag, date, period) identity of a fact.
type FactKey struct {
	Tag    string
	Date   string
	Period string
}

// StatementTable is the ordered set of facts for one statement.
type StatementTable []ExtractedFact

// Statements groups the three output tables. All three are always non-nil.
type Statements struct {
	BalanceSheet    StatementTable `json:"balance_sheet"`
	IncomeStatement StatementTable `json:"income_statement"`
	CashFlow        StatementTable `json:"cash_flow"`
}

// NewStatements returns Statements with three empty (non-nil) tables.
func NewStatements() Statements {
	return Statements{
		BalanceSheet:    StatementTable{},
		IncomeStatement: StatementTable{},
		CashFlow:        StatementTable{},
	}
}

// Table returns the table for a category.
func (s Statements) Table(c Category) StatementTable {
	switch c {
	case BalanceSheet:
		return s.BalanceSheet
	case IncomeStatement:
		return s.IncomeStatement
	case CashFlow:
		return s.CashFlow
	}
	return nil
}

// Empty reports whether all three tables are empty.
func (s Statements) Empty() bool {
	return len(s.BalanceSheet) == 0 && len(s.IncomeStatement) == 0 && len(s.CashFlow) == 0
}

// Len returns the total number of rows across all tables.
func (s Statements) Len() int {
	return len(s.BalanceSheet) + len(s.IncomeStatement) + len(s.CashFlow)
}

// PeriodLabel names the duration a fact covers, derived from the number of
// quarters in num.txt (0 means a point-in-time value).
func PeriodLabel(quarters int) string {
	switch quarters {
	case 0:
		return "instant"
	case 1:
		return "quarter"
	case 2:
		return "half-year"
	case 3:
		return "nine-months"
	case 4:
		return "year"
	default:
		return fmt.Sprintf("%d-quarters", quarters)
	}
}
