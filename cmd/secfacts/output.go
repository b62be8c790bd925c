package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/secfacts/internal/fsds"
	"github.com/seenimoa/secfacts/pkg/models"
)

// printer renders pipeline results in one output format.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch f := strings.ToLower(format); f {
	case "table", "json", "yaml":
		return &printer{format: f, w: w}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

// Result writes res. Diagnostics go along in json and yaml; the table form
// ends with a one-line summary instead.
func (p *printer) Result(res *fsds.Result) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		// Round-trip through JSON so yaml keys match the API field names.
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(p.w, "%s  CIK %s  %s\n", res.Filer.Ticker, res.Filer.PaddedCIK(), res.Filer.Name)
	for _, c := range models.Categories {
		fmt.Fprintf(p.w, "\n%s\n", c)
		printTable(p.w, res.Statements.Table(c))
	}
	fmt.Fprintf(p.w, "\n%s\n", res)
	for _, f := range res.Diagnostics.Failed {
		fmt.Fprintf(p.w, "  ⚠️  %s: %s\n", f.Period, f.Reason)
	}
	return nil
}

func printTable(w io.Writer, rows models.StatementTable) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "  (no rows)")
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Date", "Period", "Label", "Value", "Unit", "Form", "Filed"})
	tw.SetAutoWrapText(false)
	tw.SetBorder(false)
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})
	for _, f := range rows {
		tw.Append([]string{
			f.Date.Format("2006-01-02"),
			f.Period,
			f.Label,
			humanize.Commaf(f.Value),
			f.Unit,
			f.Form,
			f.Filed.Format("2006-01-02"),
		})
	}
	tw.Render()
}

func printFilers(w io.Writer, filers []models.FilerIdentity) {
	if len(filers) == 0 {
		fmt.Fprintln(w, "no similar entries in the SEC company index")
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Ticker", "CIK", "Name"})
	tw.SetBorder(false)
	for _, f := range filers {
		tw.Append([]string{f.Ticker, f.PaddedCIK(), f.Name})
	}
	tw.Render()
}
