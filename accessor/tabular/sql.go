package tabular

import (
	"database/sql"
	"fmt"
	"slices"
)

// ScanRows reads every remaining row of a query result. Byte slices are
// returned as strings.
func ScanRows(rows *sql.Rows) ([]*Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}

	var out []*Row

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))

		for i := range values {
			ptrs[i] = &values[i]
		}

		err = rows.Scan(ptrs...)
		if err != nil {
			return nil, fmt.Errorf("scan rows: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		out = append(out, &Row{Columns: slices.Clone(columns), Values: values})
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("scan rows: %w", err)
	}

	return out, nil
}
