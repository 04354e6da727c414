package correlation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/telhawk-systems/reconcile/common/table"
)

// Order controls how each entity's outcome rows are queued before pairing.
type Order string

const (
	// OrderSource pairs outcomes in the order the outcome table presents them.
	OrderSource Order = "source"
	// OrderChronological stably sorts each entity's outcomes by timestamp
	// (nulls last) before pairing.
	OrderChronological Order = "chronological"
	// OrderStrict behaves like OrderSource but fails when any entity's
	// outcomes are not already chronological in the source.
	OrderStrict Order = "strict"
)

// IsValid checks if the order is known
func (o Order) IsValid() bool {
	switch o {
	case OrderSource, OrderChronological, OrderStrict:
		return true
	default:
		return false
	}
}

// ParseOrder parses a configured order name. The empty string means OrderSource.
func ParseOrder(s string) (Order, error) {
	if s == "" {
		return OrderSource, nil
	}
	o := Order(strings.ToLower(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("invalid order %q (want source, chronological or strict)", s)
	}
	return o, nil
}

// Options names the columns the correlator works on.
type Options struct {
	EntityColumn      string
	IntakeTimeColumn  string
	OutcomeTimeColumn string
	IntakeSuffix      string
	OutcomeSuffix     string
	Order             Order
}

// DefaultOptions returns the column layout of the animal shelter datasets.
func DefaultOptions() Options {
	return Options{
		EntityColumn:      "animal_id",
		IntakeTimeColumn:  "datetime",
		OutcomeTimeColumn: "datetime",
		IntakeSuffix:      "_intake",
		OutcomeSuffix:     "_outcome",
		Order:             OrderSource,
	}
}

// Validate validates Options
func (o Options) Validate() error {
	if o.EntityColumn == "" {
		return fmt.Errorf("entity column is required")
	}
	if o.IntakeTimeColumn == "" {
		return fmt.Errorf("intake time column is required")
	}
	if o.OutcomeTimeColumn == "" {
		return fmt.Errorf("outcome time column is required")
	}
	if o.IntakeTimeColumn == o.EntityColumn || o.OutcomeTimeColumn == o.EntityColumn {
		return fmt.Errorf("time columns must differ from entity column %q", o.EntityColumn)
	}
	if o.IntakeSuffix == "" || o.OutcomeSuffix == "" {
		return fmt.Errorf("intake and outcome suffixes are required")
	}
	if o.IntakeSuffix == o.OutcomeSuffix {
		return fmt.Errorf("intake and outcome suffixes must differ")
	}
	if !o.Order.IsValid() {
		return fmt.Errorf("invalid order %q", o.Order)
	}
	return nil
}

// Stats summarises one Correlate call.
type Stats struct {
	IntakeRows  int
	OutcomeRows int
	// Matched counts intake rows joined to an outcome row.
	Matched   int
	Unmatched int
	// DroppedOutcomes counts outcome rows that appear nowhere in the output,
	// either surplus rows of a known entity or rows of an outcome-only entity.
	DroppedOutcomes int
	// Entities is the number of distinct non-null entities in the outcome table.
	Entities int
}

// Result is the correlated table plus its statistics.
type Result struct {
	Table *table.Table
	Stats Stats
}

var (
	// ErrNotNormalized is returned when a timestamp column is not Time kind.
	ErrNotNormalized = errors.New("timestamp column not normalized")
	// ErrUnordered is matched by UnorderedError.
	ErrUnordered = errors.New("outcome rows not in chronological order")
)

// UnorderedError lists the entities whose outcome rows are not chronological
// in source order.
type UnorderedError struct {
	Entities []string
}

const maxListedEntities = 10

func (e *UnorderedError) Error() string {
	listed := e.Entities
	suffix := ""
	if len(listed) > maxListedEntities {
		listed = listed[:maxListedEntities]
		suffix = fmt.Sprintf(", ... (%d more)", len(e.Entities)-maxListedEntities)
	}
	return fmt.Sprintf("%s for %d entities: %s%s",
		ErrUnordered.Error(), len(e.Entities), strings.Join(listed, ", "), suffix)
}

func (e *UnorderedError) Is(target error) bool {
	return target == ErrUnordered
}
