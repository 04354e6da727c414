package correlation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/reconcile/common/logging"
	"github.com/telhawk-systems/reconcile/common/table"
)

type event struct {
	id   string // "" means null
	at   string // "" means null
	kind string
}

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func eventTable(t *testing.T, kindColumn string, events ...event) *table.Table {
	t.Helper()
	tbl, err := table.New(
		table.Field{Name: "animal_id", Kind: table.String},
		table.Field{Name: "datetime", Kind: table.Time},
		table.Field{Name: kindColumn, Kind: table.String},
	)
	require.NoError(t, err)
	for _, e := range events {
		id := table.NullValue(table.String)
		if e.id != "" {
			id = table.StringValue(e.id)
		}
		at := table.NullValue(table.Time)
		if e.at != "" {
			at = table.TimeValue(ts(e.at))
		}
		require.NoError(t, tbl.AppendRow(id, at, table.StringValue(e.kind)))
	}
	return tbl
}

func fixtureIntake(t *testing.T) *table.Table {
	return eventTable(t, "intake_type",
		event{"a", "2019-05-08 18:20", "Stray"},
		event{"a", "2020-08-12 09:35", "Owner Surrender"},
		event{"b", "2013-04-21 07:24", "Stray"},
		event{"c", "2021-11-25 15:50", "Public Assist"},
		event{"d", "2022-03-07 21:05", "Stray"},
		event{"e", "2023-07-18 12:15", "Wildlife"},
	)
}

func fixtureOutcome(t *testing.T) *table.Table {
	return eventTable(t, "outcome_type",
		event{"a", "2019-05-13 18:20", "Adoption"},
		event{"b", "2013-04-21 07:24", "Transfer"},
		event{"c", "2021-11-25 15:50", "Return to Owner"},
		event{"d", "2022-09-18 08:30", "Adoption"},
	)
}

func newCorrelator(t *testing.T, order Order) *Correlator {
	t.Helper()
	opts := DefaultOptions()
	opts.Order = order
	c, err := New(opts, logging.Discard())
	require.NoError(t, err)
	return c
}

// matchedAt returns the datetime_outcome cells as "2006-01-02 15:04" strings,
// "" for null.
func matchedAt(t *testing.T, tbl *table.Table) []string {
	t.Helper()
	col, err := tbl.Column("datetime_outcome")
	require.NoError(t, err)
	out := make([]string, col.Len())
	for i := range out {
		if !col.IsNull(i) {
			out[i] = col.TimeAt(i).Format("2006-01-02 15:04")
		}
	}
	return out
}

func stringsOf(t *testing.T, tbl *table.Table, name string) []string {
	t.Helper()
	col, err := tbl.Column(name)
	require.NoError(t, err)
	out := make([]string, col.Len())
	for i := range out {
		out[i] = col.Format(i, "2006-01-02 15:04")
	}
	return out
}

func TestCorrelate_Fixture(t *testing.T) {
	c := newCorrelator(t, OrderSource)

	res, err := c.Correlate(context.Background(), fixtureIntake(t), fixtureOutcome(t))
	require.NoError(t, err)

	out := res.Table
	assert.Equal(t,
		[]string{"animal_id", "datetime_intake", "intake_type", "datetime_outcome", "outcome_type"},
		out.Schema().Names())
	assert.Equal(t, 6, out.Rows())

	assert.Equal(t, []string{"a", "a", "b", "c", "d", "e"}, stringsOf(t, out, "animal_id"))
	assert.Equal(t, []string{
		"2019-05-08 18:20",
		"2020-08-12 09:35",
		"2013-04-21 07:24",
		"2021-11-25 15:50",
		"2022-03-07 21:05",
		"2023-07-18 12:15",
	}, stringsOf(t, out, "datetime_intake"))
	assert.Equal(t, []string{
		"2019-05-13 18:20",
		"",
		"2013-04-21 07:24",
		"2021-11-25 15:50",
		"2022-09-18 08:30",
		"",
	}, matchedAt(t, out))
	assert.Equal(t,
		[]string{"Adoption", "", "Transfer", "Return to Owner", "Adoption", ""},
		stringsOf(t, out, "outcome_type"))

	assert.Equal(t, Stats{
		IntakeRows:      6,
		OutcomeRows:     4,
		Matched:         4,
		Unmatched:       2,
		DroppedOutcomes: 0,
		Entities:        4,
	}, res.Stats)
}

func TestCorrelate_DoesNotMutateInputs(t *testing.T) {
	intake, outcome := fixtureIntake(t), fixtureOutcome(t)
	intakeBefore, outcomeBefore := intake.Clone(), outcome.Clone()

	_, err := newCorrelator(t, OrderChronological).Correlate(context.Background(), intake, outcome)
	require.NoError(t, err)

	assert.Equal(t, intakeBefore, intake)
	assert.Equal(t, outcomeBefore, outcome)
}

func TestCorrelate_Idempotent(t *testing.T) {
	c := newCorrelator(t, OrderSource)
	intake, outcome := fixtureIntake(t), fixtureOutcome(t)

	first, err := c.Correlate(context.Background(), intake, outcome)
	require.NoError(t, err)
	second, err := c.Correlate(context.Background(), intake, outcome)
	require.NoError(t, err)

	assert.Equal(t, first.Table, second.Table)
	assert.Equal(t, first.Stats, second.Stats)
}

func TestCorrelate_ConcurrentCallsAreIndependent(t *testing.T) {
	for _, order := range []Order{OrderSource, OrderChronological} {
		t.Run(string(order), func(t *testing.T) {
			c := newCorrelator(t, order)
			intake, outcome := fixtureIntake(t), fixtureOutcome(t)
			intakeBefore, outcomeBefore := intake.Clone(), outcome.Clone()

			want, err := c.Correlate(context.Background(), intake, outcome)
			require.NoError(t, err)

			const workers = 16
			results := make([]*Result, workers)
			errs := make([]error, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = c.Correlate(context.Background(), intake, outcome)
				}(i)
			}
			wg.Wait()

			for i := 0; i < workers; i++ {
				require.NoError(t, errs[i], "worker %d", i)
				assert.Equal(t, want.Table, results[i].Table, "worker %d", i)
				assert.Equal(t, want.Stats, results[i].Stats, "worker %d", i)
				assert.Equal(t, []string{"2019-05-13 18:20", "", "2013-04-21 07:24", "2021-11-25 15:50", "2022-09-18 08:30", ""},
					matchedAt(t, results[i].Table))
			}
			assert.Equal(t, intakeBefore, intake)
			assert.Equal(t, outcomeBefore, outcome)
		})
	}
}

func TestCorrelate_FIFOPairing(t *testing.T) {
	tests := []struct {
		name        string
		intake      []event
		outcome     []event
		wantMatched []string
		wantDropped int
	}{
		{
			name: "fewer outcomes than intakes",
			intake: []event{
				{"x", "2020-01-01 00:00", "i1"},
				{"x", "2020-02-01 00:00", "i2"},
				{"x", "2020-03-01 00:00", "i3"},
			},
			outcome: []event{
				{"x", "2020-01-05 00:00", "o1"},
			},
			wantMatched: []string{"2020-01-05 00:00", "", ""},
		},
		{
			name: "surplus outcomes are dropped",
			intake: []event{
				{"x", "2020-01-01 00:00", "i1"},
			},
			outcome: []event{
				{"x", "2020-01-05 00:00", "o1"},
				{"x", "2020-02-05 00:00", "o2"},
				{"x", "2020-03-05 00:00", "o3"},
			},
			wantMatched: []string{"2020-01-05 00:00"},
			wantDropped: 2,
		},
		{
			name: "pairing follows source order, not proximity",
			intake: []event{
				{"x", "2020-01-01 00:00", "i1"},
				{"x", "2020-06-01 00:00", "i2"},
			},
			outcome: []event{
				{"x", "2020-06-02 00:00", "o-late"},
				{"x", "2020-01-02 00:00", "o-early"},
			},
			wantMatched: []string{"2020-06-02 00:00", "2020-01-02 00:00"},
		},
		{
			name: "outcome-only entity contributes nothing",
			intake: []event{
				{"x", "2020-01-01 00:00", "i1"},
			},
			outcome: []event{
				{"y", "2020-01-02 00:00", "o-y"},
				{"x", "2020-01-03 00:00", "o-x"},
			},
			wantMatched: []string{"2020-01-03 00:00"},
			wantDropped: 1,
		},
		{
			name: "entities are interleaved independently",
			intake: []event{
				{"x", "2020-01-01 00:00", "x1"},
				{"y", "2020-01-01 00:00", "y1"},
				{"x", "2020-02-01 00:00", "x2"},
				{"y", "2020-02-01 00:00", "y2"},
			},
			outcome: []event{
				{"y", "2020-01-10 00:00", "y-o1"},
				{"x", "2020-01-11 00:00", "x-o1"},
				{"y", "2020-02-10 00:00", "y-o2"},
			},
			wantMatched: []string{"2020-01-11 00:00", "2020-01-10 00:00", "", "2020-02-10 00:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCorrelator(t, OrderSource)
			res, err := c.Correlate(context.Background(),
				eventTable(t, "intake_type", tt.intake...),
				eventTable(t, "outcome_type", tt.outcome...))
			require.NoError(t, err)

			assert.Equal(t, len(tt.intake), res.Table.Rows())
			assert.Equal(t, tt.wantMatched, matchedAt(t, res.Table))
			assert.Equal(t, tt.wantDropped, res.Stats.DroppedOutcomes)
		})
	}
}

func TestCorrelate_DuplicateOutcomeTimestamps(t *testing.T) {
	intake := eventTable(t, "intake_type",
		event{"x", "2020-01-01 00:00", "i1"},
		event{"x", "2020-01-01 00:00", "i2"},
		event{"x", "2020-01-01 00:00", "i3"},
	)
	outcome := eventTable(t, "outcome_type",
		event{"x", "2020-01-02 00:00", "first"},
		event{"x", "2020-01-02 00:00", "second"},
	)

	res, err := newCorrelator(t, OrderSource).Correlate(context.Background(), intake, outcome)
	require.NoError(t, err)

	// each identical outcome row is handed out once, in encounter order
	assert.Equal(t, 3, res.Table.Rows())
	assert.Equal(t, []string{"first", "second", ""}, stringsOf(t, res.Table, "outcome_type"))
	assert.Equal(t, 2, res.Stats.Matched)
	assert.Equal(t, 0, res.Stats.DroppedOutcomes)
}

func TestCorrelate_SameTimestampDifferentEntities(t *testing.T) {
	intake := eventTable(t, "intake_type",
		event{"x", "2020-01-01 00:00", "ix"},
		event{"y", "2020-01-01 00:00", "iy"},
	)
	outcome := eventTable(t, "outcome_type",
		event{"y", "2020-01-02 00:00", "oy"},
		event{"x", "2020-01-02 00:00", "ox"},
	)

	res, err := newCorrelator(t, OrderSource).Correlate(context.Background(), intake, outcome)
	require.NoError(t, err)
	assert.Equal(t, []string{"ox", "oy"}, stringsOf(t, res.Table, "outcome_type"))
}

func TestCorrelate_Nulls(t *testing.T) {
	t.Run("null intake entity never matches", func(t *testing.T) {
		intake := eventTable(t, "intake_type",
			event{"", "2020-01-01 00:00", "anon"},
			event{"x", "2020-01-01 00:00", "ix"},
		)
		outcome := eventTable(t, "outcome_type",
			event{"", "2020-01-02 00:00", "anon-out"},
			event{"x", "2020-01-02 00:00", "ox"},
		)

		res, err := newCorrelator(t, OrderSource).Correlate(context.Background(), intake, outcome)
		require.NoError(t, err)
		assert.Equal(t, []string{"", "ox"}, stringsOf(t, res.Table, "outcome_type"))
		assert.Equal(t, 1, res.Stats.Entities)
		assert.Equal(t, 1, res.Stats.DroppedOutcomes)
	})

	t.Run("null outcome timestamp uses its slot", func(t *testing.T) {
		intake := eventTable(t, "intake_type",
			event{"x", "2020-01-01 00:00", "i1"},
			event{"x", "2020-02-01 00:00", "i2"},
		)
		outcome := eventTable(t, "outcome_type",
			event{"x", "", "undated"},
			event{"x", "2020-02-02 00:00", "dated"},
		)

		res, err := newCorrelator(t, OrderSource).Correlate(context.Background(), intake, outcome)
		require.NoError(t, err)
		assert.Equal(t, []string{"", "dated"}, stringsOf(t, res.Table, "outcome_type"))
		assert.Equal(t, 1, res.Stats.Matched)
	})
}

func TestCorrelate_OrderModes(t *testing.T) {
	intake := eventTable(t, "intake_type",
		event{"x", "2020-01-01 00:00", "i1"},
		event{"x", "2020-06-01 00:00", "i2"},
		event{"x", "2020-09-01 00:00", "i3"},
	)
	outcome := eventTable(t, "outcome_type",
		event{"x", "2020-06-02 00:00", "o-jun"},
		event{"x", "", "o-undated"},
		event{"x", "2020-01-02 00:00", "o-jan"},
	)

	t.Run("source", func(t *testing.T) {
		res, err := newCorrelator(t, OrderSource).Correlate(context.Background(), intake, outcome)
		require.NoError(t, err)
		assert.Equal(t, []string{"o-jun", "", "o-jan"}, stringsOf(t, res.Table, "outcome_type"))
	})

	t.Run("chronological", func(t *testing.T) {
		res, err := newCorrelator(t, OrderChronological).Correlate(context.Background(), intake, outcome)
		require.NoError(t, err)
		assert.Equal(t, []string{"o-jan", "o-jun", ""}, stringsOf(t, res.Table, "outcome_type"))
	})

	t.Run("strict", func(t *testing.T) {
		_, err := newCorrelator(t, OrderStrict).Correlate(context.Background(), intake, outcome)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnordered)

		var uerr *UnorderedError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, []string{"x"}, uerr.Entities)
	})

	t.Run("strict accepts ordered source", func(t *testing.T) {
		res, err := newCorrelator(t, OrderStrict).Correlate(context.Background(), fixtureIntake(t), fixtureOutcome(t))
		require.NoError(t, err)
		assert.Equal(t, 4, res.Stats.Matched)
	})
}

func TestCheckSourceOrder(t *testing.T) {
	assert.NoError(t, CheckSourceOrder(fixtureOutcome(t), DefaultOptions()))

	unordered := eventTable(t, "outcome_type",
		event{"a", "2020-02-01 00:00", ""},
		event{"b", "2020-01-01 00:00", ""},
		event{"a", "2020-01-01 00:00", ""},
		event{"b", "2020-03-01 00:00", ""},
	)
	err := CheckSourceOrder(unordered, DefaultOptions())
	var uerr *UnorderedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, []string{"a"}, uerr.Entities)
}

func TestCorrelate_InputErrors(t *testing.T) {
	c := newCorrelator(t, OrderSource)

	t.Run("missing entity column", func(t *testing.T) {
		tbl, err := table.New(table.Field{Name: "datetime", Kind: table.Time})
		require.NoError(t, err)
		_, err = c.Correlate(context.Background(), tbl, fixtureOutcome(t))
		assert.ErrorIs(t, err, table.ErrColumnNotFound)
	})

	t.Run("string timestamps", func(t *testing.T) {
		tbl, err := table.New(
			table.Field{Name: "animal_id", Kind: table.String},
			table.Field{Name: "datetime", Kind: table.String},
		)
		require.NoError(t, err)
		_, err = c.Correlate(context.Background(), fixtureIntake(t), tbl)
		assert.ErrorIs(t, err, ErrNotNormalized)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Correlate(ctx, fixtureIntake(t), fixtureOutcome(t))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCorrelate_ColumnNaming(t *testing.T) {
	intake, err := table.New(
		table.Field{Name: "animal_id", Kind: table.String},
		table.Field{Name: "intake_time", Kind: table.Time},
		table.Field{Name: "name", Kind: table.String},
	)
	require.NoError(t, err)
	require.NoError(t, intake.AppendRow(table.StringValue("x"), table.TimeValue(ts("2020-01-01 00:00")), table.StringValue("Rex")))

	outcome, err := table.New(
		table.Field{Name: "animal_id", Kind: table.String},
		table.Field{Name: "name", Kind: table.String},
		table.Field{Name: "outcome_time", Kind: table.Time},
	)
	require.NoError(t, err)
	require.NoError(t, outcome.AppendRow(table.StringValue("x"), table.StringValue("Rexy"), table.TimeValue(ts("2020-01-09 00:00"))))

	opts := DefaultOptions()
	opts.IntakeTimeColumn = "intake_time"
	opts.OutcomeTimeColumn = "outcome_time"
	c, err := New(opts, nil)
	require.NoError(t, err)

	res, err := c.Correlate(context.Background(), intake, outcome)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"animal_id", "intake_time", "name_intake", "name_outcome", "outcome_time"},
		res.Table.Schema().Names())
	assert.Equal(t, []string{"Rexy"}, stringsOf(t, res.Table, "name_outcome"))
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Order = "random"
	_, err := New(opts, nil)
	assert.Error(t, err)
}
