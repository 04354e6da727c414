package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV decodes a header row followed by records into String columns.
// Empty cells become nulls.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read csv header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := make([]*Column, len(header))
	for i, name := range header {
		cols[i] = NewColumn(strings.TrimSpace(name), String, 0)
	}
	t, err := FromColumns(cols...)
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		for i, cell := range record {
			if cell == "" {
				cols[i].AppendNull()
				continue
			}
			cols[i].AppendString(cell)
		}
	}
	return t, nil
}

// WriteCSV encodes t with a header row. Time cells are rendered with
// timeLayout (DefaultTimeLayout when empty); nulls are written as "".
func WriteCSV(w io.Writer, t *Table, timeLayout string) error {
	cw := csv.NewWriter(w)
	cols := t.Columns()
	if err := cw.Write(t.Schema().Names()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(cols))
	for row := 0; row < t.Rows(); row++ {
		for i, c := range cols {
			record[i] = c.Format(row, timeLayout)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record %d: %w", row, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
