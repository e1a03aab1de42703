// Package dataset reads tabular files into a column-oriented Table and
// splits tables into feature matrices and target vectors.
//
// Cell values are nil (missing), float64, bool or string. Other values
// (nested JSON arrays or objects) are kept as decoded and rejected when a
// column is coerced to numbers.
package dataset

import (
	"encoding/gob"
	"fmt"

	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Column is a named sequence of cells.
type Column struct {
	Name   string
	Values []any
}

// Table is an ordered set of equally long columns.
type Table struct {
	Columns []Column
}

// NumRows returns the number of rows, 0 for an empty table.
func (t *Table) NumRows() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Pop removes and returns the named column.
func (t *Table) Pop(name string) (Column, bool) {
	i := t.Index(name)
	if i < 0 {
		return Column{}, false
	}
	col := t.Columns[i]
	t.Columns = append(t.Columns[:i:i], t.Columns[i+1:]...)
	return col, true
}

// Validate checks that every column has the same length and a unique name.
// path is only used in the returned DataFormatError.
func (t *Table) Validate(path string) error {
	seen := make(map[string]struct{}, len(t.Columns))
	n := t.NumRows()
	for _, c := range t.Columns {
		if _, dup := seen[c.Name]; dup {
			return errors.NewDataFormatError(path, c.Name, "duplicate column name")
		}
		seen[c.Name] = struct{}{}
		if len(c.Values) != n {
			return errors.NewDataFormatError(path, c.Name, fmt.Sprintf("has %d rows, expected %d", len(c.Values), n))
		}
	}
	return nil
}

// FormatCell renders a cell for text formats. Missing cells and NaN render
// as the empty string.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x != x {
			return ""
		}
		return formatFloat(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}
