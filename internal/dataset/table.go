package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bikeshare-dashboard/internal/models"
)

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"2006/01/02",
}

// ParseDate parses a date cell using the supported layouts.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// Table is an immutable in-memory dataset: a header, one parsed date per row
// and the raw text cells. Derived tables share nothing mutable with their
// parent, so a Table may be read from any number of goroutines.
type Table struct {
	name    string
	columns []string
	index   map[string]int
	dateCol string
	dates   []time.Time
	rows    [][]string
}

// NewTable builds a table from a header and rows of text cells, parsing
// dateColumn. Short rows are padded with empty cells and long rows truncated
// to the header width.
func NewTable(name string, columns []string, rows [][]string, dateColumn string) (*Table, error) {
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, dup := index[col]; dup {
			return nil, &models.ValidationError{
				Field:   "header",
				Value:   col,
				Message: fmt.Sprintf("duplicate column %q in %s", col, name),
			}
		}
		index[col] = i
	}

	dateIdx, ok := index[dateColumn]
	if !ok {
		return nil, &models.SchemaMismatchError{
			Source:  name,
			Feature: "loader",
			Columns: []string{dateColumn},
			Dimensions: []models.Dimension{
				models.DimensionDate,
			},
		}
	}

	t := &Table{
		name:    name,
		columns: append([]string(nil), columns...),
		index:   index,
		dateCol: dateColumn,
		dates:   make([]time.Time, len(rows)),
		rows:    make([][]string, len(rows)),
	}

	width := len(columns)
	for i, row := range rows {
		cells := make([]string, width)
		copy(cells, row)
		t.rows[i] = cells

		date, err := ParseDate(cells[dateIdx])
		if err != nil {
			return nil, &models.ValidationError{
				Field:   dateColumn,
				Value:   cells[dateIdx],
				Message: fmt.Sprintf("%s row %d: %v", name, i+1, err),
			}
		}
		t.dates[i] = date
	}

	return t, nil
}

// Name identifies the table's origin (file name or source name).
func (t *Table) Name() string {
	return t.name
}

// Columns returns a copy of the header.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// HasColumn reports whether the header contains col.
func (t *Table) HasColumn(col string) bool {
	if col == "" {
		return false
	}
	_, ok := t.index[col]
	return ok
}

// DateColumn returns the name of the parsed date column.
func (t *Table) DateColumn() string {
	return t.dateCol
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Date returns the parsed date of row i.
func (t *Table) Date(i int) time.Time {
	return t.dates[i]
}

// Cell returns the text of col in row i, or "" when the column is absent.
func (t *Table) Cell(i int, col string) string {
	idx, ok := t.index[col]
	if !ok {
		return ""
	}
	return t.rows[i][idx]
}

// Row returns a copy of row i in header order.
func (t *Table) Row(i int) []string {
	return append([]string(nil), t.rows[i]...)
}

// Require returns a SchemaMismatchError naming every listed column the table
// lacks. Empty names are treated as absent.
func (t *Table) Require(feature string, cols ...string) error {
	var missing []string
	for _, col := range cols {
		if !t.HasColumn(col) {
			if col == "" {
				col = "<unset>"
			}
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &models.SchemaMismatchError{
		Source:  t.name,
		Feature: feature,
		Columns: missing,
	}
}

// DateRange returns the earliest and latest dates. ok is false for an empty
// table.
func (t *Table) DateRange() (first, last time.Time, ok bool) {
	if len(t.dates) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = t.dates[0], t.dates[0]
	for _, d := range t.dates[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last, true
}

// All returns a view over every row.
func (t *Table) All() *View {
	indices := make([]int, len(t.rows))
	for i := range indices {
		indices[i] = i
	}
	return &View{table: t, indices: indices}
}

// withColumns returns a copy of t in which each named column holds the given
// values. Columns not yet in the header are appended in argument order.
func (t *Table) withColumns(names []string, values [][]string) *Table {
	out := &Table{
		name:    t.name,
		columns: append([]string(nil), t.columns...),
		index:   make(map[string]int, len(t.columns)+len(names)),
		dateCol: t.dateCol,
		dates:   t.dates,
		rows:    make([][]string, len(t.rows)),
	}
	for col, idx := range t.index {
		out.index[col] = idx
	}
	for _, name := range names {
		if _, ok := out.index[name]; !ok {
			out.index[name] = len(out.columns)
			out.columns = append(out.columns, name)
		}
	}

	for i, row := range t.rows {
		cells := make([]string, len(out.columns))
		copy(cells, row)
		for j, name := range names {
			cells[out.index[name]] = values[j][i]
		}
		out.rows[i] = cells
	}
	return out
}

// View is a read-only projection of a Table: an ordered list of row indices.
// Views never copy cells.
type View struct {
	table   *Table
	indices []int
}

// Table returns the table the view reads from.
func (v *View) Table() *Table {
	return v.table
}

// Len returns the number of rows in the view.
func (v *View) Len() int {
	return len(v.indices)
}

// Empty reports whether the view has no rows.
func (v *View) Empty() bool {
	return len(v.indices) == 0
}

// Indices returns a copy of the underlying table row indices.
func (v *View) Indices() []int {
	out := make([]int, len(v.indices))
	copy(out, v.indices)
	return out
}

// Date returns the date of the i-th row of the view.
func (v *View) Date(i int) time.Time {
	return v.table.Date(v.indices[i])
}

// Cell returns the text of col in the i-th row of the view.
func (v *View) Cell(i int, col string) string {
	return v.table.Cell(v.indices[i], col)
}

// Row returns a copy of the i-th row of the view.
func (v *View) Row(i int) []string {
	return v.table.Row(v.indices[i])
}

// Slice returns the rows [from, to) of the view, clamped to its bounds.
func (v *View) Slice(from, to int) *View {
	if from < 0 {
		from = 0
	}
	if to > len(v.indices) {
		to = len(v.indices)
	}
	if to < 0 {
		to = 0
	}
	if from > to {
		from = to
	}
	return &View{table: v.table, indices: v.indices[from:to:to]}
}

// Strings returns the text of col for every row of the view.
func (v *View) Strings(col string) ([]string, error) {
	if err := v.table.Require("column "+col, col); err != nil {
		return nil, err
	}
	out := make([]string, len(v.indices))
	for i, idx := range v.indices {
		out[i] = v.table.Cell(idx, col)
	}
	return out, nil
}

// Floats parses col as numbers. Cells that do not parse become NaN.
func (v *View) Floats(col string) ([]float64, error) {
	if err := v.table.Require("column "+col, col); err != nil {
		return nil, err
	}
	out := make([]float64, len(v.indices))
	for i, idx := range v.indices {
		out[i] = ParseFloat(v.table.Cell(idx, col))
	}
	return out, nil
}

// ParseFloat parses a numeric cell, returning NaN for empty or invalid text.
func ParseFloat(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
