package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sells-group/exa-sheets/internal/store"
)

// sheetView is the json/yaml shape printed by `session show`.
type sheetView struct {
	ID      string     `json:"id" yaml:"id"`
	Name    string     `json:"name" yaml:"name"`
	Pending []int      `json:"pending_rows" yaml:"pending_rows"`
	Header  []string   `json:"header" yaml:"header"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// writeSession prints the output grid of sess in format. limit caps the
// number of data rows; zero prints all of them.
func writeSession(out io.Writer, sess *store.Session, format string, limit int) error {
	indices := sess.Output.Indices()
	if limit > 0 {
		indices = sess.Output.Head(limit)
	}
	records := sess.Output.SubsetRecords(indices)

	switch format {
	case "table", "":
		formatRecords(out, records)
		return nil
	case "json", "yaml":
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	pending := sess.Output.Pending()
	if pending == nil {
		pending = []int{}
	}
	view := sheetView{
		ID:      sess.ID,
		Name:    sess.Name,
		Pending: pending,
		Header:  records[0],
		Rows:    records[1:],
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return err
	}
	return enc.Close()
}

// formatRecords writes a header row and data rows as an aligned table.
// Unwritten cells print as "-".
func formatRecords(out io.Writer, records [][]string) {
	if len(records) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	upper := make([]string, len(records[0]))
	rule := make([]string, len(records[0]))
	for i, h := range records[0] {
		upper[i] = strings.ToUpper(h)
		rule[i] = strings.Repeat("-", len(h))
	}
	_, _ = fmt.Fprintln(w, strings.Join(upper, "\t"))
	_, _ = fmt.Fprintln(w, strings.Join(rule, "\t"))

	for _, rec := range records[1:] {
		cells := make([]string, len(rec))
		for i, v := range rec {
			if v == "" {
				v = "-"
			}
			cells[i] = truncate(v, 40)
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
}

// formatSessionList writes a tabular list of sessions to w.
func formatSessionList(out io.Writer, list []store.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tROWS\tDATA_POINTS\tFILLED\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-----------\t------\t-------")

	for _, s := range list {
		filled := fmt.Sprintf("%d/%d", s.Cells, s.Rows*s.Attributes)
		if s.Complete() {
			filled += " done"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID,
			truncate(s.Name, 30),
			s.Rows,
			s.Attributes,
			filled,
			s.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	_ = w.Flush()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
