package dataset

import (
	"sort"

	"github.com/use-agent/dirscrape/models"
)

// Row is one unit of the table: the input columns plus any merged fields.
type Row map[string]string

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Columns is the set of column names observed so far. It only ever grows.
type Columns map[string]struct{}

// NewColumns returns a set holding names.
func NewColumns(names ...string) Columns {
	c := make(Columns, len(names))
	for _, n := range names {
		c[n] = struct{}{}
	}
	return c
}

// Has reports whether name is in the set.
func (c Columns) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Clone returns a copy of the set.
func (c Columns) Clone() Columns {
	out := make(Columns, len(c))
	for k := range c {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the names in alphabetical order: the output column order.
func (c Columns) Sorted() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge applies every field of rec onto a copy of row, overwriting same-named
// columns, and returns it together with a copy of cols extended by the row's
// and the record's keys. Neither argument is modified.
func Merge(row Row, rec *models.Record, cols Columns) (Row, Columns) {
	merged := row.Clone()
	rec.Each(func(k, v string) { merged[k] = v })

	union := cols.Clone()
	for k := range merged {
		union[k] = struct{}{}
	}
	return merged, union
}

// Dataset is the ordered rows of a run plus the union of their column names.
type Dataset struct {
	Rows    []Row
	Columns Columns
}

// New builds a dataset whose column set starts with header and every column
// present in any row.
func New(header []string, rows []Row) *Dataset {
	cols := NewColumns(header...)
	for _, r := range rows {
		for k := range r {
			cols[k] = struct{}{}
		}
	}
	return &Dataset{Rows: rows, Columns: cols}
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Apply merges rec into row i.
func (d *Dataset) Apply(i int, rec *models.Record) {
	d.Rows[i], d.Columns = Merge(d.Rows[i], rec, d.Columns)
}

// Header returns the frozen output column order.
func (d *Dataset) Header() []string {
	return d.Columns.Sorted()
}
