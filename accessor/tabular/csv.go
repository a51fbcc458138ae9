package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"
)

// ReadCSV reads a CSV stream whose first record is the header.
func ReadCSV(r io.Reader) ([]*Row, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []*Row

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}

		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		values := make([]any, len(record))
		for i, s := range record {
			values[i] = s
		}

		row, err := NewRow(header, values)
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		rows = append(rows, row)
	}
}

// WriteCSV writes rows under a header holding every column in order of first
// appearance. Missing cells are written empty.
func WriteCSV(w io.Writer, rows []*Row) error {
	var header []string

	seen := map[string]bool{}

	for _, r := range rows {
		for _, c := range r.Columns {
			if !seen[c] {
				seen[c] = true
				header = append(header, c)
			}
		}
	}

	cw := csv.NewWriter(w)

	err := cw.Write(header)
	if err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(header))

	for _, r := range rows {
		for i, c := range header {
			v, _ := r.Get(c)
			record[i] = cell(v)
		}

		err = cw.Write(record)
		if err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}

	cw.Flush()

	return cw.Error()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
