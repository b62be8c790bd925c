package fsds

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/secfacts/pkg/models"
)

//go:embed tags.yaml
var defaultTagsYAML []byte

// TaxonomyEntry assigns one tag to a statement.
type TaxonomyEntry struct {
	Tag      string          `yaml:"tag"   json:"tag"`
	Label    string          `yaml:"label" json:"label"`
	Category models.Category `yaml:"-"     json:"category"`
	Order    int             `yaml:"-"     json:"order"` // position within its category
}

// taxonomyFile mirrors tags.yaml.
type taxonomyFile struct {
	BalanceSheet    []TaxonomyEntry `yaml:"balance_sheet"`
	IncomeStatement []TaxonomyEntry `yaml:"income_statement"`
	CashFlow        []TaxonomyEntry `yaml:"cash_flow"`
}

// Taxonomy is the tag whitelist: each tag belongs to exactly one statement.
type Taxonomy struct {
	entries []TaxonomyEntry
	byTag   map[string]int
}

// Whitelist is the tag filter the extractor applies.
type Whitelist interface {
	Contains(tag string) bool
}

// TagSet is a plain Whitelist.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from tags.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Contains implements Whitelist.
func (s TagSet) Contains(tag string) bool {
	_, ok := s[tag]
	return ok
}

var (
	defaultTaxonomy     *Taxonomy
	defaultTaxonomyOnce sync.Once
)

// DefaultTaxonomy returns the built-in tag table.
func DefaultTaxonomy() *Taxonomy {
	defaultTaxonomyOnce.Do(func() {
		t, err := ParseTaxonomy(defaultTagsYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded tags.yaml: %v", err))
		}
		defaultTaxonomy = t
	})
	return defaultTaxonomy
}

// LoadTaxonomyFile reads a tag table in the tags.yaml format.
func LoadTaxonomyFile(path string) (*Taxonomy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tags file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read tags file: %w", err)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes a tag table. A tag listed twice, in the same or in
// different categories, is an error.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tags: %w", err)
	}

	t := &Taxonomy{byTag: make(map[string]int)}
	sections := []struct {
		cat     models.Category
		entries []TaxonomyEntry
	}{
		{models.BalanceSheet, file.BalanceSheet},
		{models.IncomeStatement, file.IncomeStatement},
		{models.CashFlow, file.CashFlow},
	}
	for _, sec := range sections {
		for i, e := range sec.entries {
			if e.Tag == "" {
				return nil, fmt.Errorf("parse tags: %s entry %d has no tag", sec.cat, i)
			}
			if prev, dup := t.byTag[e.Tag]; dup {
				return nil, fmt.Errorf("parse tags: %s listed under both %s and %s",
					e.Tag, t.entries[prev].Category, sec.cat)
			}
			e.Category = sec.cat
			e.Order = i
			if e.Label == "" {
				e.Label = e.Tag
			}
			t.byTag[e.Tag] = len(t.entries)
			t.entries = append(t.entries, e)
		}
	}
	if len(t.entries) == 0 {
		return nil, fmt.Errorf("parse tags: no tags defined")
	}
	return t, nil
}

// Contains implements Whitelist.
func (t *Taxonomy) Contains(tag string) bool {
	_, ok := t.byTag[tag]
	return ok
}

// Lookup returns the entry for tag.
func (t *Taxonomy) Lookup(tag string) (TaxonomyEntry, bool) {
	i, ok := t.byTag[tag]
	if !ok {
		return TaxonomyEntry{}, false
	}
	return t.entries[i], true
}

// Entries returns the entries of one category in presentation order.
func (t *Taxonomy) Entries(c models.Category) []TaxonomyEntry {
	var out []TaxonomyEntry
	for _, e := range t.entries {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of tags.
func (t *Taxonomy) Len() int { return len(t.entries) }
