// Package duration derives elapsed-time columns from pairs of timestamp columns.
package duration

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/telhawk-systems/reconcile/common/table"
)

// Unit is the unit a derived column is expressed in.
type Unit string

const (
	Days  Unit = "days"
	Years Unit = "years"
)

// BirthColumn is the start column that turns a duration into an age.
const BirthColumn = "date_of_birth"

const (
	day          = 24 * time.Hour
	daysPerYear  = 365.25
	yearDecimals = 10 // one decimal place
)

// ParseUnit parses a unit name. The empty string means Days.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case "", Days:
		return Days, nil
	case Years:
		return Years, nil
	default:
		return "", fmt.Errorf("invalid unit %q (want days or years)", s)
	}
}

// ColumnName returns the name Between gives its result.
func ColumnName(start string, unit Unit, suffix string) string {
	if unit == "" {
		unit = Days
	}
	if start == BirthColumn {
		return fmt.Sprintf("age_upon_%s(%s)", suffix, unit)
	}
	return fmt.Sprintf("duration(%s)", unit)
}

// Between computes end - start for every row of t as a new column.
//
// The elapsed time is counted in whole days, rounded toward negative infinity.
// When start is the birth date column the result is an age: a Float column in
// years rounded to one decimal for Years, an Int column of days otherwise.
// For any other start column the result is an Int column of days whatever the
// unit, which then only affects the column name. A null on either side gives
// a null cell.
func Between(t *table.Table, start, end string, unit Unit, suffix string) (*table.Column, error) {
	if unit == "" {
		unit = Days
	}
	if unit != Days && unit != Years {
		return nil, fmt.Errorf("invalid unit %q", unit)
	}
	from, err := timeColumn(t, start)
	if err != nil {
		return nil, err
	}
	to, err := timeColumn(t, end)
	if err != nil {
		return nil, err
	}

	name := ColumnName(start, unit, suffix)
	asYears := start == BirthColumn && unit == Years

	kind := table.Int
	if asYears {
		kind = table.Float
	}
	out := table.NewColumn(name, kind, t.Rows())
	for i := 0; i < t.Rows(); i++ {
		if from.IsNull(i) || to.IsNull(i) {
			out.AppendNull()
			continue
		}
		days := wholeDays(to.TimeAt(i).Sub(from.TimeAt(i)))
		if asYears {
			out.AppendFloat(roundYears(days))
		} else {
			out.AppendInt(days)
		}
	}
	return out, nil
}

// wholeDays floors d to whole days.
func wholeDays(d time.Duration) int64 {
	n := d / day
	if d%day != 0 && d < 0 {
		n--
	}
	return int64(n)
}

func roundYears(days int64) float64 {
	return math.RoundToEven(float64(days)/daysPerYear*yearDecimals) / yearDecimals
}

func timeColumn(t *table.Table, name string) (*table.Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}
	if c.Kind() != table.Time {
		return nil, fmt.Errorf("duration: column %q is %s, not time", name, c.Kind())
	}
	return c, nil
}
