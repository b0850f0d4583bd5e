// Package table provides the per-object measurement table exchanged between
// processing modules. Rows are keyed by object id; columns are named float
// features.
package table

import (
	"fmt"

	"github.com/ak/cellpipe/internal/handle"
)

// Table holds one measurement row per object id. Column order is fixed at
// construction so that iteration and serialization stay deterministic.
type Table struct {
	columns []string
	ids     []int
	rows    map[int][]float64
}

// New creates an empty table with the given column names.
func New(columns ...string) *Table {
	if len(columns) == 0 {
		panic("table: at least one column is required")
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			panic(fmt.Sprintf("table: duplicate column %q", c))
		}
		seen[c] = struct{}{}
	}
	return &Table{
		columns: append([]string(nil), columns...),
		rows:    make(map[int][]float64),
	}
}

// HandleKind implements handle.Value.
func (*Table) HandleKind() handle.Kind { return handle.KindTable }

// Columns returns the column names in declaration order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// IDs returns the object ids in insertion order.
func (t *Table) IDs() []int { return append([]int(nil), t.ids...) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.ids) }

// Append adds one row. The number of values must match the column count and
// the id must not already have a row.
func (t *Table) Append(id int, values ...float64) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("table: row for object %d has %d values, want %d", id, len(values), len(t.columns))
	}
	if _, exists := t.rows[id]; exists {
		return fmt.Errorf("table: object %d already has a row", id)
	}
	t.ids = append(t.ids, id)
	t.rows[id] = append([]float64(nil), values...)
	return nil
}

// Value returns the named feature for an object id.
func (t *Table) Value(id int, column string) (float64, error) {
	row, ok := t.rows[id]
	if !ok {
		return 0, fmt.Errorf("table: no row for object %d", id)
	}
	for i, c := range t.columns {
		if c == column {
			return row[i], nil
		}
	}
	return 0, fmt.Errorf("table: no column %q", column)
}

// Row returns a copy of the row for an object id.
func (t *Table) Row(id int) ([]float64, bool) {
	row, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), row...), true
}
