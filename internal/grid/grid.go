// Package grid holds the company × data point table that the filler reads
// from and writes into.
package grid

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Unavailable is the value written when no real answer could be obtained.
const Unavailable = "NA"

// Status describes how much of a row's attribute columns hold a value.
type Status string

const (
	StatusUnfilled Status = "unfilled"
	StatusPartial  Status = "partial"
	StatusFilled   Status = "filled"
)

// Row is one entity and its attribute values. A missing key in Values means
// the cell has not been attempted yet.
type Row struct {
	Index  int               `json:"index"`
	Entity string            `json:"entity"`
	Values map[string]string `json:"values,omitempty"`
}

// Cell addresses a single written value.
type Cell struct {
	Row       int    `json:"row"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// Grid is an ordered set of rows with one identifier column followed by
// attribute columns. The header is fixed at construction.
type Grid struct {
	header []string
	attrs  map[string]struct{}
	order  []int
	rows   map[int]*Row
	next   int
}

// New creates an empty grid with the given header. header[0] names the
// identifier column; the rest are attribute columns.
func New(header []string) (*Grid, error) {
	if len(header) == 0 {
		return nil, eris.New("grid: header is empty")
	}
	if strings.TrimSpace(header[0]) == "" {
		return nil, eris.New("grid: identifier column name is blank")
	}

	attrs := make(map[string]struct{}, len(header)-1)
	for i, name := range header[1:] {
		if strings.TrimSpace(name) == "" {
			return nil, eris.Errorf("grid: attribute column %d has a blank name", i+2)
		}
		if _, dup := attrs[name]; dup || name == header[0] {
			return nil, eris.Errorf("grid: duplicate column %q", name)
		}
		attrs[name] = struct{}{}
	}

	return &Grid{
		header: append([]string(nil), header...),
		attrs:  attrs,
		rows:   make(map[int]*Row),
	}, nil
}

// FromRecords builds a grid from raw sheet records. The first record is the
// header; each following record becomes a row indexed from 0. Non-empty
// attribute cells in the records are kept as values.
func FromRecords(records [][]string) (*Grid, error) {
	if len(records) == 0 {
		return nil, eris.New("grid: no header row")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	g, err := New(header)
	if err != nil {
		return nil, err
	}

	for _, rec := range records[1:] {
		var entity string
		if len(rec) > 0 {
			entity = rec[0]
		}
		values := make(map[string]string)
		for j, attr := range g.Attributes() {
			if j+1 < len(rec) && rec[j+1] != "" {
				values[attr] = rec[j+1]
			}
		}
		g.AddRow(entity, values)
	}
	return g, nil
}

// NewOutput returns an empty output grid for in: same header, same row
// indices, identifier column copied verbatim and no attribute values.
func NewOutput(in *Grid) *Grid {
	out := &Grid{
		header: append([]string(nil), in.header...),
		attrs:  in.attrs,
		order:  append([]int(nil), in.order...),
		rows:   make(map[int]*Row, len(in.rows)),
		next:   in.next,
	}
	for idx, r := range in.rows {
		out.rows[idx] = &Row{Index: idx, Entity: r.Entity, Values: make(map[string]string)}
	}
	return out
}

// AddRow appends a row and returns its index.
func (g *Grid) AddRow(entity string, values map[string]string) int {
	return g.addRowAt(g.next, entity, values)
}

// InsertRow adds a row at an explicit index. It is used when restoring a
// grid whose indices were assigned elsewhere.
func (g *Grid) InsertRow(idx int, entity string) error {
	if _, ok := g.rows[idx]; ok {
		return eris.Errorf("grid: row %d already exists", idx)
	}
	if idx < 0 {
		return eris.Errorf("grid: negative row index %d", idx)
	}
	g.addRowAt(idx, entity, nil)
	return nil
}

func (g *Grid) addRowAt(idx int, entity string, values map[string]string) int {
	r := &Row{Index: idx, Entity: entity, Values: make(map[string]string, len(values))}
	for k, v := range values {
		if _, ok := g.attrs[k]; ok {
			r.Values[k] = v
		}
	}
	g.rows[idx] = r
	g.order = append(g.order, idx)
	if idx >= g.next {
		g.next = idx + 1
	}
	return idx
}

// Header returns a copy of the full header.
func (g *Grid) Header() []string {
	return append([]string(nil), g.header...)
}

// Identifier returns the identifier column name.
func (g *Grid) Identifier() string {
	return g.header[0]
}

// Attributes returns the attribute column names in declared order.
func (g *Grid) Attributes() []string {
	return append([]string(nil), g.header[1:]...)
}

// Columns reports the total number of columns including the identifier.
func (g *Grid) Columns() int {
	return len(g.header)
}

// Len reports the number of rows.
func (g *Grid) Len() int {
	return len(g.order)
}

// Indices returns the row indices in row order.
func (g *Grid) Indices() []int {
	return append([]int(nil), g.order...)
}

// Has reports whether idx is a row of the grid.
func (g *Grid) Has(idx int) bool {
	_, ok := g.rows[idx]
	return ok
}

// Row returns a copy of the row at idx.
func (g *Grid) Row(idx int) (Row, bool) {
	r, ok := g.rows[idx]
	if !ok {
		return Row{}, false
	}
	cp := Row{Index: r.Index, Entity: r.Entity, Values: make(map[string]string, len(r.Values))}
	for k, v := range r.Values {
		cp.Values[k] = v
	}
	return cp, true
}

// Entity returns the identifier value for the row at idx.
func (g *Grid) Entity(idx int) (string, bool) {
	r, ok := g.rows[idx]
	if !ok {
		return "", false
	}
	return r.Entity, true
}

// Set writes value into (idx, attr). Writing to an unknown row or column is
// an error; the grid never grows through Set.
func (g *Grid) Set(idx int, attr, value string) error {
	r, ok := g.rows[idx]
	if !ok {
		return eris.Errorf("grid: no row %d", idx)
	}
	if _, ok := g.attrs[attr]; !ok {
		return eris.Errorf("grid: no attribute column %q", attr)
	}
	r.Values[attr] = value
	return nil
}

// Value returns the value at (idx, attr) and whether one has been written.
func (g *Grid) Value(idx int, attr string) (string, bool) {
	r, ok := g.rows[idx]
	if !ok {
		return "", false
	}
	v, ok := r.Values[attr]
	return v, ok
}

// Clear removes every attribute value while keeping rows and identifiers.
func (g *Grid) Clear() {
	for _, r := range g.rows {
		r.Values = make(map[string]string)
	}
}

// RowStatus derives the fill status of the row at idx. Unknown rows report
// StatusUnfilled.
func (g *Grid) RowStatus(idx int) Status {
	r, ok := g.rows[idx]
	if !ok {
		return StatusUnfilled
	}
	n := 0
	for _, attr := range g.header[1:] {
		if _, ok := r.Values[attr]; ok {
			n++
		}
	}
	switch {
	case n == 0 && len(g.header) > 1:
		return StatusUnfilled
	case n < len(g.header)-1:
		return StatusPartial
	default:
		return StatusFilled
	}
}

// Pending returns, in row order, the indices whose status is not filled.
func (g *Grid) Pending() []int {
	var out []int
	for _, idx := range g.order {
		if g.RowStatus(idx) != StatusFilled {
			out = append(out, idx)
		}
	}
	return out
}

// Head returns the first n row indices.
func (g *Grid) Head(n int) []int {
	if n < 0 {
		n = 0
	}
	if n > len(g.order) {
		n = len(g.order)
	}
	return append([]int(nil), g.order[:n]...)
}

// Records renders the grid as sheet records: header first, then one record
// per row. Cells that were never written render as empty strings.
func (g *Grid) Records() [][]string {
	return g.SubsetRecords(g.order)
}

// SubsetRecords renders the header and the listed rows. Unknown indices are
// skipped.
func (g *Grid) SubsetRecords(indices []int) [][]string {
	out := make([][]string, 0, len(indices)+1)
	out = append(out, g.Header())
	for _, idx := range indices {
		r, ok := g.rows[idx]
		if !ok {
			continue
		}
		rec := make([]string, len(g.header))
		rec[0] = r.Entity
		for j, attr := range g.header[1:] {
			rec[j+1] = r.Values[attr]
		}
		out = append(out, rec)
	}
	return out
}
