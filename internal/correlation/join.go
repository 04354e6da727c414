package correlation

import (
	"fmt"
	"time"

	"github.com/telhawk-systems/reconcile/common/table"
)

// joinKey identifies outcome rows by entity and exact timestamp.
type joinKey struct {
	entity string
	sec    int64
	nsec   int
}

func newJoinKey(entity string, ts time.Time) joinKey {
	return joinKey{entity: entity, sec: ts.Unix(), nsec: ts.Nanosecond()}
}

// joinIndex holds outcome row numbers per (entity, timestamp) in row order.
// Each lookup consumes the earliest remaining row, so duplicate keys are
// handed out one row at a time and no outcome row joins twice.
type joinIndex map[joinKey][]int

func buildJoinIndex(entity, ts *table.Column) joinIndex {
	idx := make(joinIndex)
	for i := 0; i < entity.Len(); i++ {
		key, ok := entityKey(entity, i)
		if !ok || ts.IsNull(i) {
			continue
		}
		k := newJoinKey(key, ts.TimeAt(i))
		idx[k] = append(idx[k], i)
	}
	return idx
}

func (idx joinIndex) take(entity string, ts time.Time) (int, bool) {
	k := newJoinKey(entity, ts)
	rows := idx[k]
	if len(rows) == 0 {
		return -1, false
	}
	idx[k] = rows[1:]
	return rows[0], true
}

// leftJoin joins every intake row to the outcome row matching its entity and
// assigned outcome timestamp. joined[i] is -1 when intake row i has no match.
func leftJoin(intakeEntity *table.Column, matched []matchedTime, outcomeEntity, outcomeTS *table.Column) []int {
	idx := buildJoinIndex(outcomeEntity, outcomeTS)
	joined := make([]int, intakeEntity.Len())
	for i := range joined {
		joined[i] = -1
		m := matched[i]
		if !m.ok {
			continue
		}
		key, ok := entityKey(intakeEntity, i)
		if !ok {
			continue
		}
		if row, found := idx.take(key, m.ts); found {
			joined[i] = row
		}
	}
	return joined
}

// assemble builds the output table: the entity column, the intake columns,
// then the outcome columns gathered through joined. Non-key names present in
// both inputs get the configured suffixes. The outcome entity column is
// dropped as a duplicate of the intake one.
func assemble(intake, outcome *table.Table, joined []int, opts Options) (*table.Table, error) {
	entity, err := intake.Column(opts.EntityColumn)
	if err != nil {
		return nil, err
	}
	out, err := table.FromColumns(entity.Clone())
	if err != nil {
		return nil, err
	}

	for _, c := range intake.Columns() {
		if c.Name() == opts.EntityColumn {
			continue
		}
		name := c.Name()
		if outcome.HasColumn(name) {
			name += opts.IntakeSuffix
		}
		if err := out.AddColumn(c.WithName(name)); err != nil {
			return nil, fmt.Errorf("intake column %q: %w", c.Name(), err)
		}
	}

	for _, c := range outcome.Columns() {
		if c.Name() == opts.EntityColumn {
			continue
		}
		name := c.Name()
		if intake.HasColumn(name) {
			name += opts.OutcomeSuffix
		}
		if err := out.AddColumn(gather(c, name, joined)); err != nil {
			return nil, fmt.Errorf("outcome column %q: %w", c.Name(), err)
		}
	}
	return out, nil
}

// gather picks src[rows[i]] for each i, or null where rows[i] is -1.
func gather(src *table.Column, name string, rows []int) *table.Column {
	dst := table.NewColumn(name, src.Kind(), len(rows))
	for _, r := range rows {
		if r < 0 {
			dst.AppendNull()
			continue
		}
		// kinds are identical
		_ = dst.AppendValue(src.Value(r))
	}
	return dst
}
