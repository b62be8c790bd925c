package fsds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/secfacts/pkg/models"
)

func TestDefaultTaxonomy(t *testing.T) {
	tax := DefaultTaxonomy()
	require.Greater(t, tax.Len(), 50)

	tests := []struct {
		tag  string
		want models.Category
	}{
		{"Assets", models.BalanceSheet},
		{"LiabilitiesAndStockholdersEquity", models.BalanceSheet},
		{"NetIncomeLoss", models.IncomeStatement},
		{"EarningsPerShareDiluted", models.IncomeStatement},
		{"NetCashProvidedByUsedInOperatingActivities", models.CashFlow},
	}
	for _, tc := range tests {
		e, ok := tax.Lookup(tc.tag)
		if !ok {
			t.Errorf("%s missing from default taxonomy", tc.tag)
			continue
		}
		if e.Category != tc.want {
			t.Errorf("%s: got %s, want %s", tc.tag, e.Category, tc.want)
		}
	}

	e, _ := tax.Lookup("PropertyPlantAndEquipmentNet")
	assert.Equal(t, "Property, plant and equipment", e.Label)
	assert.False(t, tax.Contains("CustomAppleThing"))

	for _, c := range models.Categories {
		entries := tax.Entries(c)
		require.NotEmpty(t, entries, c)
		for i, e := range entries {
			assert.Equal(t, i, e.Order, "%s order", e.Tag)
		}
	}
}

func TestParseTaxonomyRejectsDuplicates(t *testing.T) {
	_, err := ParseTaxonomy([]byte(`
balance_sheet:
  - {tag: Assets, label: Assets}
cash_flow:
  - {tag: Assets, label: Assets again}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Assets")
}

func TestParseTaxonomyErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":       ``,
		"missing tag": "income_statement:\n  - {label: Revenue}\n",
		"bad yaml":    "balance_sheet: [",
	} {
		if _, err := ParseTaxonomy([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadTaxonomyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
balance_sheet:
  - tag: Assets
income_statement:
  - tag: Revenues
    label: Sales
`), 0o644))

	tax, err := LoadTaxonomyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tax.Len())
	e, ok := tax.Lookup("Assets")
	require.True(t, ok)
	assert.Equal(t, "Assets", e.Label, "label defaults to the tag")
	e, _ = tax.Lookup("Revenues")
	assert.Equal(t, "Sales", e.Label)

	_, err = LoadTaxonomyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
