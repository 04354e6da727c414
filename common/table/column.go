package table

import (
	"fmt"
	"strconv"
	"time"
)

// Kind is the declared type of a column.
type Kind int

const (
	String Kind = iota
	Time
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Time:
		return "time"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DefaultTimeLayout is used to render Time cells when no layout is given.
const DefaultTimeLayout = "2006-01-02 15:04:05"

// Column is a named, typed vector of nullable cells. Only the slice matching
// the column's kind is populated.
type Column struct {
	name   string
	kind   Kind
	null   []bool
	strs   []string
	times  []time.Time
	ints   []int64
	floats []float64
}

// NewColumn creates an empty column with room for capacity cells.
func NewColumn(name string, kind Kind, capacity int) *Column {
	c := &Column{name: name, kind: kind, null: make([]bool, 0, capacity)}
	switch kind {
	case String:
		c.strs = make([]string, 0, capacity)
	case Time:
		c.times = make([]time.Time, 0, capacity)
	case Int:
		c.ints = make([]int64, 0, capacity)
	case Float:
		c.floats = make([]float64, 0, capacity)
	}
	return c
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }
func (c *Column) Len() int     { return len(c.null) }

// IsNull reports whether cell i is null.
func (c *Column) IsNull(i int) bool { return c.null[i] }

// StringAt returns cell i of a String column ("" for null or other kinds).
func (c *Column) StringAt(i int) string {
	if c.kind != String || c.null[i] {
		return ""
	}
	return c.strs[i]
}

// TimeAt returns cell i of a Time column (zero time for null or other kinds).
func (c *Column) TimeAt(i int) time.Time {
	if c.kind != Time || c.null[i] {
		return time.Time{}
	}
	return c.times[i]
}

// IntAt returns cell i of an Int column.
func (c *Column) IntAt(i int) int64 {
	if c.kind != Int || c.null[i] {
		return 0
	}
	return c.ints[i]
}

// FloatAt returns cell i of a Float column.
func (c *Column) FloatAt(i int) float64 {
	if c.kind != Float || c.null[i] {
		return 0
	}
	return c.floats[i]
}

// Value returns cell i as a Value of the column's kind.
func (c *Column) Value(i int) Value {
	if c.null[i] {
		return NullValue(c.kind)
	}
	switch c.kind {
	case Time:
		return TimeValue(c.times[i])
	case Int:
		return IntValue(c.ints[i])
	case Float:
		return FloatValue(c.floats[i])
	default:
		return StringValue(c.strs[i])
	}
}

// AppendNull appends a null cell.
func (c *Column) AppendNull() {
	c.null = append(c.null, true)
	switch c.kind {
	case String:
		c.strs = append(c.strs, "")
	case Time:
		c.times = append(c.times, time.Time{})
	case Int:
		c.ints = append(c.ints, 0)
	case Float:
		c.floats = append(c.floats, 0)
	}
}

func (c *Column) AppendString(s string) {
	c.mustBe(String)
	c.null = append(c.null, false)
	c.strs = append(c.strs, s)
}

func (c *Column) AppendTime(ts time.Time) {
	c.mustBe(Time)
	c.null = append(c.null, false)
	c.times = append(c.times, ts)
}

func (c *Column) AppendInt(n int64) {
	c.mustBe(Int)
	c.null = append(c.null, false)
	c.ints = append(c.ints, n)
}

func (c *Column) AppendFloat(f float64) {
	c.mustBe(Float)
	c.null = append(c.null, false)
	c.floats = append(c.floats, f)
}

// AppendValue appends v. A null value of any kind is accepted.
func (c *Column) AppendValue(v Value) error {
	if v.Null {
		c.AppendNull()
		return nil
	}
	if v.Kind != c.kind {
		return fmt.Errorf("%w: column %q is %s, value is %s", ErrKindMismatch, c.name, c.kind, v.Kind)
	}
	switch v.Kind {
	case Time:
		c.AppendTime(v.Time)
	case Int:
		c.AppendInt(v.Int)
	case Float:
		c.AppendFloat(v.Float)
	default:
		c.AppendString(v.Str)
	}
	return nil
}

// Format renders cell i as text. Null cells render as "".
func (c *Column) Format(i int, timeLayout string) string {
	if c.null[i] {
		return ""
	}
	switch c.kind {
	case Time:
		if timeLayout == "" {
			timeLayout = DefaultTimeLayout
		}
		return c.times[i].Format(timeLayout)
	case Int:
		return strconv.FormatInt(c.ints[i], 10)
	case Float:
		return strconv.FormatFloat(c.floats[i], 'f', -1, 64)
	default:
		return c.strs[i]
	}
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{
		name: c.name,
		kind: c.kind,
		null: append([]bool(nil), c.null...),
	}
	out.strs = append([]string(nil), c.strs...)
	out.times = append([]time.Time(nil), c.times...)
	out.ints = append([]int64(nil), c.ints...)
	out.floats = append([]float64(nil), c.floats...)
	return out
}

// WithName returns a deep copy of the column under a new name.
func (c *Column) WithName(name string) *Column {
	out := c.Clone()
	out.name = name
	return out
}

func (c *Column) mustBe(kind Kind) {
	if c.kind != kind {
		panic(fmt.Sprintf("table: append %s to %s column %q", kind, c.kind, c.name))
	}
}
