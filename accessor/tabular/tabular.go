// Package tabular reads and writes single records of a table: CSV lines or
// database/sql result rows. Dotted target paths become dotted column names.
package tabular

import (
	"fmt"
	"slices"

	"rulemapper/accessor/mapaccess"
	"rulemapper/fieldpath"
)

// Kind is the representation name of table rows.
const Kind = "tabular"

// Row is one record with ordered columns.
type Row struct {
	Columns []string
	Values  []any
}

// NewRow builds a row from parallel column and value lists.
func NewRow(columns []string, values []any) (*Row, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("row has %d columns and %d values", len(columns), len(values))
	}

	return &Row{Columns: slices.Clone(columns), Values: slices.Clone(values)}, nil
}

// Get returns the value of column.
func (r *Row) Get(column string) (any, bool) {
	i := slices.Index(r.Columns, column)
	if i < 0 {
		return nil, false
	}

	return r.Values[i], true
}

// Set replaces the value of column, appending the column if it is new.
func (r *Row) Set(column string, value any) {
	if i := slices.Index(r.Columns, column); i >= 0 {
		r.Values[i] = value

		return
	}

	r.Columns = append(r.Columns, column)
	r.Values = append(r.Values, value)
}

// Map returns the row as a column -> value map.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}

	return m
}

type Accessor struct{}

func New() Accessor {
	return Accessor{}
}

func (Accessor) Kind() string { return Kind }

// Get reads a column of a row. Cell values that are documents (maps, lists)
// are read like documents.
func (Accessor) Get(obj any, key string) (any, bool, error) {
	switch o := obj.(type) {
	case *Row:
		if o == nil {
			return nil, false, nil
		}

		v, ok := o.Get(key)

		return v, ok, nil

	case Row:
		v, ok := o.Get(key)

		return v, ok, nil
	}

	return mapaccess.New().Get(obj, key)
}

// Set writes value into the column named by the whole dotted path.
func (Accessor) Set(obj any, path fieldpath.Path, value any) error {
	row, ok := obj.(*Row)
	if !ok || row == nil {
		return fmt.Errorf("set %s: tabular target must be a *Row, got %T", path, obj)
	}

	if path.IsEmpty() {
		return fmt.Errorf("set: empty path")
	}

	row.Set(path.String(), value)

	return nil
}

func (Accessor) NewEmpty() (any, error) {
	return &Row{}, nil
}
