package fsds

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/secfacts/pkg/models"
)

// fsdsDate is the yyyymmdd layout used for dates in every FSDS table.
const fsdsDate = "20060102"

// ParsedDataset holds the decoded records of one archive.
type ParsedDataset struct {
	Submissions []models.SubmissionRecord
	Facts       []models.NumericFact
	Tags        []models.TagDefinition
	Dropped     DropCounts
}

// DropCounts records how many rows of each table were discarded as malformed.
type DropCounts struct {
	Sub int `json:"sub"`
	Num int `json:"num"`
	Tag int `json:"tag"`
}

// Total returns the number of dropped rows across tables.
func (d DropCounts) Total() int { return d.Sub + d.Num + d.Tag }

// Parse decodes every row of the three tables.
func Parse(raw models.RawTables) (*ParsedDataset, error) {
	return ParseForFiler(raw, 0)
}

// ParseForFiler decodes only the rows relevant to one filer: its submissions,
// the facts of those submissions and the definitions of the tags they use.
// filerID 0 keeps everything.
func ParseForFiler(raw models.RawTables, filerID int64) (*ParsedDataset, error) {
	out := &ParsedDataset{}

	subs, dropped, err := parseSubmissions(raw.Sub, filerID)
	if err != nil {
		return nil, err
	}
	out.Submissions, out.Dropped.Sub = subs, dropped

	var accessions map[string]bool
	if filerID != 0 {
		accessions = make(map[string]bool, len(subs))
		for _, s := range subs {
			accessions[s.AccessionID] = true
		}
	}
	facts, dropped, err := parseFacts(raw.Num, accessions)
	if err != nil {
		return nil, err
	}
	out.Facts, out.Dropped.Num = facts, dropped

	var used map[string]bool
	if filerID != 0 {
		used = make(map[string]bool)
		for _, f := range facts {
			used[f.Tag] = true
		}
	}
	tags, dropped, err := parseTags(raw.Tag, used)
	if err != nil {
		return nil, err
	}
	out.Tags, out.Dropped.Tag = tags, dropped
	return out, nil
}

// table walks a tab-delimited FSDS table with a header row.
type table struct {
	name string
	r    *csv.Reader
	cols map[string]int
}

func newTable(name string, data []byte, required ...string) (*table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, &ParseError{Table: name, Err: errors.New("empty table, no header row")}
	}
	if err != nil {
		return nil, &ParseError{Table: name, Err: err}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, &ParseError{Table: name, Column: c}
		}
	}
	return &table{name: name, r: r, cols: cols}, nil
}

// next returns the next row. Unreadable rows are reported through bad=true
// so the caller can count them; err is only io.EOF.
func (t *table) next() (row []string, bad bool, err error) {
	rec, err := t.r.Read()
	if err == io.EOF {
		return nil, false, io.EOF
	}
	if err != nil {
		return nil, true, nil
	}
	return rec, false, nil
}

// get returns the trimmed value of column name, or "" when the column is
// absent from the header or the row is short.
func (t *table) get(row []string, name string) string {
	i, ok := t.cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseSubmissions(data []byte, filerID int64) ([]models.SubmissionRecord, int, error) {
	t, err := newTable(memberSub, data, "adsh", "cik", "form")
	if err != nil {
		return nil, 0, err
	}

	var (
		out     []models.SubmissionRecord
		dropped int
	)
	for {
		row, bad, err := t.next()
		if err == io.EOF {
			break
		}
		if bad {
			dropped++
			continue
		}

		cik, err := strconv.ParseInt(t.get(row, "cik"), 10, 64)
		if err != nil || t.get(row, "adsh") == "" {
			dropped++
			continue
		}
		if filerID != 0 && cik != filerID {
			continue
		}

		rec := models.SubmissionRecord{
			AccessionID:  t.get(row, "adsh"),
			FilerID:      cik,
			Name:         t.get(row, "name"),
			FormType:     t.get(row, "form"),
			FiscalPeriod: t.get(row, "fp"),
		}
		rec.PeriodEnd, _ = parseDate(t.get(row, "period"))
		rec.Filed, _ = parseDate(t.get(row, "filed"))
		if fy := t.get(row, "fy"); fy != "" {
			rec.FiscalYear, _ = strconv.Atoi(fy)
		}
		out = append(out, rec)
	}
	return out, dropped, nil
}

// parseFacts decodes num.txt. When accessions is non-nil, rows of other
// submissions are skipped before their numeric cells are parsed.
func parseFacts(data []byte, accessions map[string]bool) ([]models.NumericFact, int, error) {
	t, err := newTable(memberNum, data, "adsh", "tag", "ddate", "qtrs", "value")
	if err != nil {
		return nil, 0, err
	}

	var (
		out     []models.NumericFact
		dropped int
	)
	for {
		row, bad, err := t.next()
		if err == io.EOF {
			break
		}
		if bad {
			dropped++
			continue
		}

		adsh := t.get(row, "adsh")
		if accessions != nil && !accessions[adsh] {
			continue
		}

		end, err := parseDate(t.get(row, "ddate"))
		if err != nil || end.IsZero() {
			dropped++
			continue
		}
		qtrs, err := strconv.Atoi(t.get(row, "qtrs"))
		if err != nil || qtrs < 0 {
			dropped++
			continue
		}
		var value *float64
		if s := t.get(row, "value"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				dropped++
				continue
			}
			value = &v
		}

		out = append(out, models.NumericFact{
			AccessionID: adsh,
			Tag:         t.get(row, "tag"),
			Version:     t.get(row, "version"),
			Unit:        t.get(row, "uom"),
			Value:       value,
			PeriodStart: periodStart(end, qtrs),
			PeriodEnd:   end,
			Quarters:    qtrs,
			Segments:    t.get(row, "segments"),
			Coreg:       t.get(row, "coreg"),
		})
	}
	return out, dropped, nil
}

// parseTags decodes tag.txt. When used is non-nil only those tags are kept.
func parseTags(data []byte, used map[string]bool) ([]models.TagDefinition, int, error) {
	t, err := newTable(memberTag, data, "tag")
	if err != nil {
		return nil, 0, err
	}

	var (
		out     []models.TagDefinition
		dropped int
	)
	for {
		row, bad, err := t.next()
		if err == io.EOF {
			break
		}
		if bad {
			dropped++
			continue
		}
		tag := t.get(row, "tag")
		if tag == "" {
			dropped++
			continue
		}
		if used != nil && !used[tag] {
			continue
		}
		out = append(out, models.TagDefinition{
			Tag:         tag,
			Version:     t.get(row, "version"),
			Label:       t.get(row, "tlabel"),
			Description: t.get(row, "doc"),
		})
	}
	return out, dropped, nil
}

// parseDate reads a yyyymmdd cell. An empty cell is the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(fsdsDate, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// periodStart derives the first day of a duration that ends at end and spans
// qtrs quarters. FSDS rounds ddate to a month end, so the start is the first
// of the month after end minus qtrs*3 months. Instants have no start.
func periodStart(end time.Time, qtrs int) time.Time {
	if qtrs == 0 {
		return time.Time{}
	}
	return time.Date(end.Year(), end.Month()-time.Month(3*qtrs)+1, 1, 0, 0, 0, 0, time.UTC)
}
