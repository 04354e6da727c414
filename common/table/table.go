// Package table provides a strongly-typed, column-oriented in-memory table.
//
// Every column carries a declared Kind and a per-cell null flag. Tables are
// plain values handed from one processing stage to the next; a stage that
// needs to change a table either owns it or works on a Clone.
package table

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrColumnNotFound  = errors.New("column not found")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrLengthMismatch  = errors.New("column length mismatch")
	ErrKindMismatch    = errors.New("column kind mismatch")
)

// Field describes one column of a schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered list of fields of a table.
type Schema []Field

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named field, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + ":" + f.Kind.String()
	}
	return strings.Join(parts, ", ")
}

// Table is an ordered set of equally long, uniquely named columns.
type Table struct {
	cols  []*Column
	index map[string]int
}

// New creates an empty table with the given schema.
func New(fields ...Field) (*Table, error) {
	t := &Table{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if err := t.AddColumn(NewColumn(f.Name, f.Kind, 0)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromColumns builds a table from existing columns. The columns are owned by
// the returned table.
func FromColumns(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// Schema returns the table's current schema.
func (t *Table) Schema() Schema {
	s := make(Schema, len(t.cols))
	for i, c := range t.cols {
		s[i] = Field{Name: c.name, Kind: c.kind}
	}
	return s
}

// Columns returns the columns in order. The slice is a copy; the columns are not.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return t.cols[i], nil
}

// AddColumn appends c to the table. Its length must match the table's row
// count unless the table has no columns yet.
func (t *Table) AddColumn(c *Column) error {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[c.name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.name)
	}
	if len(t.cols) > 0 && c.Len() != t.Rows() {
		return fmt.Errorf("%w: column %q has %d rows, table has %d", ErrLengthMismatch, c.name, c.Len(), t.Rows())
	}
	t.index[c.name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// ReplaceColumn swaps the column named c.Name() for c, keeping its position.
// The kind may change; the length may not.
func (t *Table) ReplaceColumn(c *Column) error {
	i, ok := t.index[c.name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, c.name)
	}
	if c.Len() != t.Rows() {
		return fmt.Errorf("%w: column %q has %d rows, table has %d", ErrLengthMismatch, c.name, c.Len(), t.Rows())
	}
	t.cols[i] = c
	return nil
}

// RenameColumn renames a column in place.
func (t *Table) RenameColumn(from, to string) error {
	i, ok := t.index[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, from)
	}
	if from == to {
		return nil
	}
	if _, ok := t.index[to]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, to)
	}
	delete(t.index, from)
	t.index[to] = i
	t.cols[i].name = to
	return nil
}

// AppendRow appends one value per column, in schema order.
func (t *Table) AppendRow(values ...Value) error {
	if len(values) != len(t.cols) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrLengthMismatch, len(values), len(t.cols))
	}
	for i, c := range t.cols {
		if v := values[i]; !v.Null && v.Kind != c.kind {
			return fmt.Errorf("%w: column %q is %s, value is %s", ErrKindMismatch, c.name, c.kind, v.Kind)
		}
	}
	for i, c := range t.cols {
		// kinds were checked above
		_ = c.AppendValue(values[i])
	}
	return nil
}

// Row returns row i as a map of native Go values (nil for null cells).
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.cols))
	for _, c := range t.cols {
		row[c.name] = c.Value(i).Native()
	}
	return row
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{index: make(map[string]int, len(t.cols))}
	for i, c := range t.cols {
		out.cols = append(out.cols, c.Clone())
		out.index[c.name] = i
	}
	return out
}

// Value is a single typed cell.
type Value struct {
	Kind  Kind
	Null  bool
	Str   string
	Time  time.Time
	Int   int64
	Float float64
}

func NullValue(kind Kind) Value { return Value{Kind: kind, Null: true} }
func StringValue(s string) Value { return Value{Kind: String, Str: s} }
func TimeValue(ts time.Time) Value { return Value{Kind: Time, Time: ts} }
func IntValue(n int64) Value { return Value{Kind: Int, Int: n} }
func FloatValue(f float64) Value { return Value{Kind: Float, Float: f} }

// Native returns the cell as a plain Go value, or nil when null.
func (v Value) Native() any {
	if v.Null {
		return nil
	}
	switch v.Kind {
	case Time:
		return v.Time
	case Int:
		return v.Int
	case Float:
		return v.Float
	default:
		return v.Str
	}
}
