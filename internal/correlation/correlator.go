// Package correlation pairs intake events with outcome events per entity.
//
// Each entity's outcome rows form a FIFO queue. Intake rows are visited in
// table order and take the front of their entity's queue, so the Nth intake
// of an entity is paired with its Nth outcome. The assigned outcome timestamp
// then drives a left join on (entity, timestamp) that pulls in the remaining
// outcome columns. Outcome rows left in a queue once the intake is exhausted
// are dropped from the output; Stats reports how many.
package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/reconcile/common/logging"
	"github.com/telhawk-systems/reconcile/common/table"
	"github.com/telhawk-systems/reconcile/internal/metrics"
)

// matchedTime is the outcome timestamp assigned to one intake row.
type matchedTime struct {
	ts time.Time
	ok bool
}

// Correlator joins an intake table to an outcome table. It holds no state
// between calls and may be shared.
type Correlator struct {
	opts   Options
	logger *logging.Logger
}

// New creates a correlator. A nil logger discards diagnostics.
func New(opts Options, logger *logging.Logger) (*Correlator, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Correlator{opts: opts, logger: logger}, nil
}

// Options returns the options the correlator was built with.
func (c *Correlator) Options() Options {
	return c.opts
}

// columns are the resolved key columns of one Correlate call.
type columns struct {
	intakeEntity  *table.Column
	intakeTS      *table.Column
	outcomeEntity *table.Column
	outcomeTS     *table.Column
}

// Correlate returns one row per intake row, in intake order, carrying the
// intake columns and the columns of the outcome row paired with it (null
// when there is none). Neither input is modified.
func (c *Correlator) Correlate(ctx context.Context, intake, outcome *table.Table) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	cols, err := resolve(intake, outcome, c.opts)
	if err != nil {
		return nil, err
	}

	queues := buildQueues(cols.outcomeEntity, cols.outcomeTS)
	switch c.opts.Order {
	case OrderStrict:
		if unordered := queues.unordered(); len(unordered) > 0 {
			return nil, &UnorderedError{Entities: unordered}
		}
	case OrderChronological:
		for _, key := range queues.keys {
			queues.byEntity[key].sortChronological()
		}
	}

	matched := assign(cols.intakeEntity, queues)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	joined := leftJoin(cols.intakeEntity, matched, cols.outcomeEntity, cols.outcomeTS)
	out, err := assemble(intake, outcome, joined, c.opts)
	if err != nil {
		return nil, fmt.Errorf("assemble output: %w", err)
	}

	stats := Stats{
		IntakeRows:  intake.Rows(),
		OutcomeRows: outcome.Rows(),
		Entities:    len(queues.keys),
	}
	for _, r := range joined {
		if r >= 0 {
			stats.Matched++
		}
	}
	stats.Unmatched = stats.IntakeRows - stats.Matched
	stats.DroppedOutcomes = stats.OutcomeRows - stats.Matched

	elapsed := time.Since(start)
	metrics.CorrelatedRows.WithLabelValues("matched").Add(float64(stats.Matched))
	metrics.CorrelatedRows.WithLabelValues("unmatched").Add(float64(stats.Unmatched))
	metrics.DroppedOutcomes.Add(float64(stats.DroppedOutcomes))
	metrics.CorrelationDuration.Observe(elapsed.Seconds())

	c.logger.InfoContext(ctx, "Correlated intake and outcome events",
		logging.Rows(out.Rows()),
		slog.Int("matched", stats.Matched),
		slog.Int("unmatched", stats.Unmatched),
		slog.Int("dropped_outcomes", stats.DroppedOutcomes),
		slog.String("order", string(c.opts.Order)),
		logging.Duration(elapsed))

	return &Result{Table: out, Stats: stats}, nil
}

// assign pops the front of each intake row's entity queue. Rows whose entity
// is null, unknown or already exhausted stay unassigned.
func assign(entity *table.Column, queues *entityQueues) []matchedTime {
	matched := make([]matchedTime, entity.Len())
	for i := range matched {
		key, ok := entityKey(entity, i)
		if !ok {
			continue
		}
		q, exists := queues.byEntity[key]
		if !exists {
			continue
		}
		e, ok := q.pop()
		if !ok || e.null {
			// a null outcome timestamp still uses up its slot
			continue
		}
		matched[i] = matchedTime{ts: e.ts, ok: true}
	}
	return matched
}

// unordered lists the entities whose outcome timestamps decrease somewhere
// in source order.
func (qs *entityQueues) unordered() []string {
	var out []string
	for _, key := range qs.keys {
		if !qs.byEntity[key].chronological() {
			out = append(out, key)
		}
	}
	return out
}

// CheckSourceOrder reports, as an *UnorderedError, the entities whose outcome
// rows are not chronological in source order. It returns nil when pairing in
// source order is also chronological pairing.
func CheckSourceOrder(outcome *table.Table, opts Options) error {
	entity, err := outcome.Column(opts.EntityColumn)
	if err != nil {
		return fmt.Errorf("outcome: %w", err)
	}
	ts, err := timeColumn(outcome, "outcome", opts.OutcomeTimeColumn)
	if err != nil {
		return err
	}
	if unordered := buildQueues(entity, ts).unordered(); len(unordered) > 0 {
		return &UnorderedError{Entities: unordered}
	}
	return nil
}

func resolve(intake, outcome *table.Table, opts Options) (*columns, error) {
	var cols columns
	var err error
	if cols.intakeEntity, err = intake.Column(opts.EntityColumn); err != nil {
		return nil, fmt.Errorf("intake: %w", err)
	}
	if cols.outcomeEntity, err = outcome.Column(opts.EntityColumn); err != nil {
		return nil, fmt.Errorf("outcome: %w", err)
	}
	if cols.intakeTS, err = timeColumn(intake, "intake", opts.IntakeTimeColumn); err != nil {
		return nil, err
	}
	if cols.outcomeTS, err = timeColumn(outcome, "outcome", opts.OutcomeTimeColumn); err != nil {
		return nil, err
	}
	return &cols, nil
}

func timeColumn(t *table.Table, dataset, name string) (*table.Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dataset, err)
	}
	if c.Kind() != table.Time {
		return nil, fmt.Errorf("%s column %q is %s: %w", dataset, name, c.Kind(), ErrNotNormalized)
	}
	return c, nil
}
