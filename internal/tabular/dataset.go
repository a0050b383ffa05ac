// Package tabular holds the in-memory table the whole engine operates on:
// an ordered set of named columns over rows of typed, nullable cells.
// Datasets are never mutated after construction; every derive or filter
// pass produces a new Dataset carrying a fresh version tag, which is what
// makes results safe to memoize.
package tabular

import "github.com/google/uuid"

// Row is one record, positionally aligned with the dataset's columns.
type Row []Value

// Dataset is an immutable table. Rows may be shared between datasets
// (a filtered view keeps pointers into its parent's rows), so callers
// must never write through a Row they did not build themselves.
type Dataset struct {
	Columns []string
	Rows    []Row

	// Version uniquely identifies this dataset's contents for cache
	// keying. Any operation that changes rows or columns assigns a new one.
	Version string
}

// New returns an empty dataset with the given column order.
func New(columns []string) *Dataset {
	return &Dataset{
		Columns: append([]string(nil), columns...),
		Version: uuid.New().String(),
	}
}

// FromStrings builds a dataset from a header and raw string cells, inferring
// a type per cell. Short rows are padded with nulls; extra cells are dropped.
func FromStrings(header []string, rows [][]string) *Dataset {
	ds := New(header)
	ds.Rows = make([]Row, 0, len(rows))
	for _, cells := range rows {
		row := make(Row, len(header))
		for i := range header {
			if i < len(cells) {
				row[i] = Infer(cells[i])
			} else {
				row[i] = Null()
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Empty reports whether the dataset has no rows.
func (d *Dataset) Empty() bool { return len(d.Rows) == 0 }

// ColumnIndex returns the position of a column by name.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	for i, c := range d.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.ColumnIndex(name)
	return ok
}

// Value returns the cell at (row, column name). Out-of-range rows and
// unknown columns yield null.
func (d *Dataset) Value(row int, column string) Value {
	if row < 0 || row >= len(d.Rows) {
		return Null()
	}
	idx, ok := d.ColumnIndex(column)
	if !ok || idx >= len(d.Rows[row]) {
		return Null()
	}
	return d.Rows[row][idx]
}

// AppendRow adds a row during construction. Short rows are padded with nulls.
// Must not be called once the dataset has been handed to the engine.
func (d *Dataset) AppendRow(row Row) {
	for len(row) < len(d.Columns) {
		row = append(row, Null())
	}
	d.Rows = append(d.Rows, row[:len(d.Columns)])
}

// WithRows returns a new dataset with the same schema but the given rows.
func (d *Dataset) WithRows(rows []Row) *Dataset {
	return &Dataset{
		Columns: d.Columns,
		Rows:    rows,
		Version: uuid.New().String(),
	}
}

// WithColumn returns a new dataset carrying a column whose cells are
// produced by fn(row index). A column with the same name is overwritten in
// place so derived values always win over whatever the source file carried;
// otherwise the column is appended. Used by the derivers.
func (d *Dataset) WithColumn(name string, fn func(row int) Value) *Dataset {
	if idx, ok := d.ColumnIndex(name); ok {
		rows := make([]Row, len(d.Rows))
		for i, r := range d.Rows {
			row := make(Row, len(d.Columns))
			copy(row, r)
			for j := len(r); j < len(row); j++ {
				row[j] = Null()
			}
			row[idx] = fn(i)
			rows[i] = row
		}
		return &Dataset{Columns: d.Columns, Rows: rows, Version: uuid.New().String()}
	}

	columns := make([]string, 0, len(d.Columns)+1)
	columns = append(columns, d.Columns...)
	columns = append(columns, name)

	rows := make([]Row, len(d.Rows))
	for i, r := range d.Rows {
		row := make(Row, 0, len(columns))
		row = append(row, r...)
		for len(row) < len(d.Columns) {
			row = append(row, Null())
		}
		row = append(row, fn(i))
		rows[i] = row
	}
	return &Dataset{
		Columns: columns,
		Rows:    rows,
		Version: uuid.New().String(),
	}
}

// Select returns a new dataset restricted to the named columns, in the given
// order. Unknown names are skipped.
func (d *Dataset) Select(names ...string) *Dataset {
	var keep []int
	var columns []string
	for _, n := range names {
		if idx, ok := d.ColumnIndex(n); ok {
			keep = append(keep, idx)
			columns = append(columns, n)
		}
	}
	rows := make([]Row, len(d.Rows))
	for i, r := range d.Rows {
		row := make(Row, len(keep))
		for j, idx := range keep {
			if idx < len(r) {
				row[j] = r[idx]
			} else {
				row[j] = Null()
			}
		}
		rows[i] = row
	}
	return &Dataset{Columns: columns, Rows: rows, Version: uuid.New().String()}
}
