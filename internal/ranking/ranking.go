// Package ranking derives the ranked song queues from a stats snapshot.
package ranking

import (
	"slices"

	"soundscript/internal/stats"
)

// Queue names of the ranked lists.
const (
	Trend = "trendSongs"
	Loved = "lovedSongs"
	Hated = "hatedSongs"
)

// DefaultLimit caps every ranked list.
const DefaultLimit = 36

// Score orders songs; higher scores rank first.
type Score func(s stats.Stat) int64

var scores = map[string]Score{
	Trend: func(s stats.Stat) int64 { return int64(s.Play) },
	Loved: func(s stats.Stat) int64 { return int64(s.Like) - int64(s.Dislike) },
	Hated: func(s stats.Stat) int64 { return int64(s.Dislike) - int64(s.Like) },
}

// Names returns the ranked queue names in display order.
func Names() []string {
	return []string{Trend, Loved, Hated}
}

// Rankings holds the ranked queues computed once from a snapshot. Each queue
// is a list of catalog indices.
type Rankings struct {
	queues map[string][]int
}

// Compute ranks a snapshot (indexed by catalog position) into every queue,
// keeping at most limit entries per queue (DefaultLimit if limit <= 0).
func Compute(snapshot []stats.Stat, limit int) *Rankings {
	if limit <= 0 {
		limit = DefaultLimit
	}

	r := &Rankings{queues: make(map[string][]int, len(scores))}
	for name, score := range scores {
		r.queues[name] = Select(snapshot, score, limit)
	}
	return r
}

// Select repeatedly picks the highest scoring remaining song until limit
// songs are picked or the pool is exhausted. Among equal scores the lower
// catalog index wins, so the result is a stable descending order.
func Select(snapshot []stats.Stat, score Score, limit int) []int {
	type entry struct {
		idx   int
		score int64
	}

	pool := make([]entry, len(snapshot))
	for i, s := range snapshot {
		pool[i] = entry{idx: i, score: score(s)}
	}
	slices.SortStableFunc(pool, func(a, b entry) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	n := min(limit, len(pool))
	picked := make([]int, n)
	for i := 0; i < n; i++ {
		picked[i] = pool[i].idx
	}
	return picked
}

// Queue returns a copy of the named list.
func (r *Rankings) Queue(name string) ([]int, bool) {
	q, ok := r.queues[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(q), true
}

// Has reports whether name is a ranked queue.
func (r *Rankings) Has(name string) bool {
	_, ok := r.queues[name]
	return ok
}

// Len returns the length of the named list, or 0 for unknown names.
func (r *Rankings) Len(name string) int {
	return len(r.queues[name])
}

// IndexAt maps a position of the named list to a catalog index. Positions of
// unknown queues are returned unchanged.
func (r *Rankings) IndexAt(name string, position int) int {
	q, ok := r.queues[name]
	if !ok || position < 0 || position >= len(q) {
		return position
	}
	return q[position]
}
