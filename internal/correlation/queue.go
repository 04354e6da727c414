package correlation

import (
	"sort"
	"time"

	"github.com/telhawk-systems/reconcile/common/table"
)

// queuedOutcome is one outcome row waiting to be paired.
type queuedOutcome struct {
	row  int
	ts   time.Time
	null bool
}

// outcomeQueue is a front-poppable sequence. Popping advances head instead
// of reslicing so the backing array is released with the queue.
type outcomeQueue struct {
	entries []queuedOutcome
	head    int
}

func (q *outcomeQueue) push(e queuedOutcome) {
	q.entries = append(q.entries, e)
}

func (q *outcomeQueue) pop() (queuedOutcome, bool) {
	if q.head >= len(q.entries) {
		return queuedOutcome{}, false
	}
	e := q.entries[q.head]
	q.head++
	return e, true
}

func (q *outcomeQueue) remaining() int {
	return len(q.entries) - q.head
}

// sortChronological stably orders the unpopped entries by timestamp with
// null timestamps last.
func (q *outcomeQueue) sortChronological() {
	rest := q.entries[q.head:]
	sort.SliceStable(rest, func(i, j int) bool {
		a, b := rest[i], rest[j]
		if a.null || b.null {
			return !a.null && b.null
		}
		return a.ts.Before(b.ts)
	})
}

// chronological reports whether the queued timestamps never decrease.
// Null timestamps are ignored.
func (q *outcomeQueue) chronological() bool {
	var last time.Time
	seen := false
	for _, e := range q.entries {
		if e.null {
			continue
		}
		if seen && e.ts.Before(last) {
			return false
		}
		last, seen = e.ts, true
	}
	return true
}

// entityQueues maps an entity key to its outcome queue. Keys keeps first
// appearance order so diagnostics are deterministic.
type entityQueues struct {
	byEntity map[string]*outcomeQueue
	keys     []string
}

// buildQueues scans the outcome table once in row order. Rows with a null
// entity are never queued.
func buildQueues(entity, ts *table.Column) *entityQueues {
	qs := &entityQueues{byEntity: make(map[string]*outcomeQueue)}
	for i := 0; i < entity.Len(); i++ {
		key, ok := entityKey(entity, i)
		if !ok {
			continue
		}
		q, exists := qs.byEntity[key]
		if !exists {
			q = &outcomeQueue{}
			qs.byEntity[key] = q
			qs.keys = append(qs.keys, key)
		}
		e := queuedOutcome{row: i, null: ts.IsNull(i)}
		if !e.null {
			e.ts = ts.TimeAt(i)
		}
		q.push(e)
	}
	return qs
}

// entityKey returns the comparable key for row i, or false when it is null.
func entityKey(c *table.Column, i int) (string, bool) {
	if c.IsNull(i) {
		return "", false
	}
	if c.Kind() == table.String {
		return c.StringAt(i), true
	}
	return c.Format(i, time.RFC3339Nano), true
}
