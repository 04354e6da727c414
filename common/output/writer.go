package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/reconcile/common/table"
)

// Format is a machine-readable table encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts csv, json, yaml or yml. The empty string means csv.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// WriteTable encodes t to w. Timestamps are rendered with timeLayout (or
// table.DefaultTimeLayout) and null cells become empty CSV fields, JSON null
// or YAML null. JSON and YAML rows keep the table's column order.
func WriteTable(w io.Writer, t *table.Table, format Format, timeLayout string) error {
	if timeLayout == "" {
		timeLayout = table.DefaultTimeLayout
	}
	switch format {
	case FormatCSV, "":
		return table.WriteCSV(w, t, timeLayout)
	case FormatJSON:
		return writeJSON(w, t, timeLayout)
	case FormatYAML:
		return writeYAML(w, t, timeLayout)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// orderedRow marshals as a JSON object whose keys follow the column order.
type orderedRow struct {
	names  []string
	values []any
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(w io.Writer, t *table.Table, timeLayout string) error {
	names := t.Schema().Names()
	cols := t.Columns()
	rows := make([]orderedRow, t.Rows())
	for i := range rows {
		values := make([]any, len(cols))
		for j, c := range cols {
			values[j] = cellValue(c, i, timeLayout)
		}
		rows[i] = orderedRow{names: names, values: values}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, t *table.Table, timeLayout string) error {
	cols := t.Columns()
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for i := 0; i < t.Rows(); i++ {
		row := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range cols {
			row.Content = append(row.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Name()},
				scalarNode(c, i, timeLayout))
		}
		doc.Content = append(doc.Content, row)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func cellValue(c *table.Column, i int, timeLayout string) any {
	if c.IsNull(i) {
		return nil
	}
	switch c.Kind() {
	case table.Int:
		return c.IntAt(i)
	case table.Float:
		return c.FloatAt(i)
	default:
		return c.Format(i, timeLayout)
	}
}

func scalarNode(c *table.Column, i int, timeLayout string) *yaml.Node {
	if c.IsNull(i) {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	switch c.Kind() {
	case table.Int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(c.IntAt(i), 10)}
	case table.Float:
		v := strconv.FormatFloat(c.FloatAt(i), 'f', -1, 64)
		if !strings.Contains(v, ".") {
			// keep whole numbers resolving as floats
			v += ".0"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Format(i, timeLayout)}
	}
}

// Preview renders the first n rows of t as a Grid. n <= 0 renders nothing.
func Preview(w io.Writer, t *table.Table, n int, timeLayout string) {
	if n <= 0 {
		return
	}
	if n > t.Rows() {
		n = t.Rows()
	}
	g := NewGrid(t.Schema().Names())
	cols := t.Columns()
	for i := 0; i < n; i++ {
		row := make([]string, len(cols))
		for j, c := range cols {
			if c.IsNull(i) {
				row[j] = "-"
				continue
			}
			row[j] = c.Format(i, timeLayout)
		}
		g.AddRow(row)
	}
	g.Render(w)
}
