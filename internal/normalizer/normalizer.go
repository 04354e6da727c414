// Package normalizer converts date/time columns to Time kind at a fixed
// display precision.
package normalizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
	"github.com/itchyny/timefmt-go"

	"github.com/telhawk-systems/reconcile/common/logging"
	"github.com/telhawk-systems/reconcile/common/table"
	"github.com/telhawk-systems/reconcile/internal/metrics"
)

// ErrParse is matched by ParseError.
var ErrParse = errors.New("unparsable date/time value")

// ParseError reports the first value of a column that could not be parsed.
type ParseError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("column %q row %d: cannot parse %q: %v", e.Column, e.Row, e.Value, e.Err)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }
func (e *ParseError) Unwrap() error         { return e.Err }

// Normalize parses column into timestamps and re-renders them with the
// strftime-style format, replacing the column in place. Rendering drops any
// precision the format does not carry (e.g. "%Y-%m-%d" truncates to midnight).
// Null cells stay null. If any value cannot be parsed the table is left
// untouched and a *ParseError is returned.
func Normalize(t *table.Table, column, format string) (*table.Table, error) {
	if format == "" {
		return nil, fmt.Errorf("normalize %q: empty format", column)
	}
	src, err := t.Column(column)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	out := table.NewColumn(column, table.Time, src.Len())
	for i := 0; i < src.Len(); i++ {
		if src.IsNull(i) {
			out.AppendNull()
			continue
		}

		var ts time.Time
		switch src.Kind() {
		case table.Time:
			ts = src.TimeAt(i)
		case table.String:
			raw := strings.TrimSpace(src.StringAt(i))
			ts, err = dateparse.ParseIn(raw, time.UTC)
			if err != nil {
				return nil, &ParseError{Column: column, Row: i, Value: raw, Err: err}
			}
		default:
			return nil, fmt.Errorf("normalize %q: cannot parse %s column", column, src.Kind())
		}

		rendered := timefmt.Format(ts, format)
		truncated, err := timefmt.Parse(rendered, format)
		if err != nil {
			return nil, fmt.Errorf("normalize %q: format %q does not round-trip: %w", column, format, err)
		}
		out.AppendTime(truncated)
	}

	if err := t.ReplaceColumn(out); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return t, nil
}

// SnakeCaseHeaders renames every column to lower snake case
// ("Animal ID" -> "animal_id", "Date of Birth" -> "date_of_birth").
func SnakeCaseHeaders(t *table.Table) (*table.Table, error) {
	for _, name := range t.Schema().Names() {
		if err := t.RenameColumn(name, snakeCase(name)); err != nil {
			return nil, fmt.Errorf("snake case headers: %w", err)
		}
	}
	return t, nil
}

func snakeCase(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Rule re-renders one column at a strftime precision.
type Rule struct {
	Column   string
	Format   string
	Optional bool
}

// Normalizer applies a list of rules to a dataset.
type Normalizer struct {
	snakeCase bool
	logger    *logging.Logger
}

// New creates a Normalizer. When snakeCase is set, headers are rewritten
// before any rule runs, so rules name the snake case columns.
func New(snakeCase bool, logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Normalizer{snakeCase: snakeCase, logger: logger}
}

// Apply runs the header rewrite and every rule against t. Optional rules whose
// column is absent are skipped.
func (n *Normalizer) Apply(ctx context.Context, dataset string, t *table.Table, rules []Rule) (*table.Table, error) {
	if n.snakeCase {
		if _, err := SnakeCaseHeaders(t); err != nil {
			return nil, fmt.Errorf("%s: %w", dataset, err)
		}
	}
	for _, r := range rules {
		if r.Optional && !t.HasColumn(r.Column) {
			n.logger.DebugContext(ctx, "skipping optional date column",
				logging.Dataset(dataset), logging.Column(r.Column))
			continue
		}
		if _, err := Normalize(t, r.Column, r.Format); err != nil {
			if errors.Is(err, ErrParse) {
				metrics.NormalizationErrors.WithLabelValues(r.Column).Inc()
			}
			return nil, fmt.Errorf("%s: %w", dataset, err)
		}
		n.logger.DebugContext(ctx, "normalized date column",
			logging.Dataset(dataset), logging.Column(r.Column), logging.Rows(t.Rows()))
	}
	return t, nil
}
