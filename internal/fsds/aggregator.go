package fsds

import (
	"sort"

	"github.com/seenimoa/secfacts/pkg/models"
)

// Aggregate groups facts into the three statements. Facts whose tag is not
// in the taxonomy are ignored.
//
// When several facts share (tag, date, period) the latest filing wins:
// later Filed date, then later submission period end, then the greater
// accession number. Tables are sorted by date, then taxonomy order, then
// tag and period. Aggregate is deterministic and idempotent.
func Aggregate(facts []models.ExtractedFact, taxonomy *Taxonomy) models.Statements {
	best := make(map[models.FactKey]models.ExtractedFact, len(facts))
	var order []models.FactKey
	for _, f := range facts {
		if !taxonomy.Contains(f.Tag) {
			continue
		}
		k := f.Key()
		cur, ok := best[k]
		if !ok {
			order = append(order, k)
			best[k] = f
			continue
		}
		if newerThan(f, cur) {
			best[k] = f
		}
	}

	out := models.NewStatements()
	for _, k := range order {
		f := best[k]
		entry, _ := taxonomy.Lookup(f.Tag)
		f.Category = entry.Category
		switch entry.Category {
		case models.BalanceSheet:
			out.BalanceSheet = append(out.BalanceSheet, f)
		case models.IncomeStatement:
			out.IncomeStatement = append(out.IncomeStatement, f)
		case models.CashFlow:
			out.CashFlow = append(out.CashFlow, f)
		}
	}

	for _, c := range models.Categories {
		sortTable(out.Table(c), taxonomy)
	}
	return out
}

// newerThan reports whether a comes from a later filing than b.
func newerThan(a, b models.ExtractedFact) bool {
	if !a.Filed.Equal(b.Filed) {
		return a.Filed.After(b.Filed)
	}
	if !a.SubmissionEnd.Equal(b.SubmissionEnd) {
		return a.SubmissionEnd.After(b.SubmissionEnd)
	}
	return a.AccessionID > b.AccessionID
}

func sortTable(t models.StatementTable, taxonomy *Taxonomy) {
	sort.SliceStable(t, func(i, j int) bool {
		a, b := t[i], t[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		ea, _ := taxonomy.Lookup(a.Tag)
		eb, _ := taxonomy.Lookup(b.Tag)
		if ea.Order != eb.Order {
			return ea.Order < eb.Order
		}
		if a.Tag != b.Tag {
			return a.Tag < b.Tag
		}
		return a.Period < b.Period
	})
}
