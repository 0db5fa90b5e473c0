package ranking

import (
	"math/rand"
	"reflect"
	"testing"

	"soundscript/internal/stats"
)

func TestTrendExample(t *testing.T) {
	snapshot := []stats.Stat{{Play: 1}, {Play: 3}, {Play: 2}}
	r := Compute(snapshot, 0)

	got, ok := r.Queue(Trend)
	if !ok {
		t.Fatal("Expected trend queue")
	}
	if want := []int{1, 2, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestLovedAndHated(t *testing.T) {
	snapshot := []stats.Stat{
		{Like: 1, Dislike: 0}, // +1
		{Like: 0, Dislike: 4}, // -4
		{Like: 5, Dislike: 1}, // +4
		{Like: 2, Dislike: 2}, //  0
	}
	r := Compute(snapshot, 0)

	loved, _ := r.Queue(Loved)
	if want := []int{2, 0, 3, 1}; !reflect.DeepEqual(loved, want) {
		t.Errorf("Loved: expected %v, got %v", want, loved)
	}

	hated, _ := r.Queue(Hated)
	if want := []int{1, 3, 0, 2}; !reflect.DeepEqual(hated, want) {
		t.Errorf("Hated: expected %v, got %v", want, hated)
	}
}

func TestTiesKeepCatalogOrder(t *testing.T) {
	snapshot := []stats.Stat{{Play: 2}, {Play: 5}, {Play: 2}, {Play: 5}, {Play: 2}}
	got := Select(snapshot, scores[Trend], DefaultLimit)

	if want := []int{1, 3, 0, 2, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestLimit(t *testing.T) {
	tests := []struct {
		name string
		pool int
		want int
	}{
		{"empty pool", 0, 0},
		{"small pool", 10, 10},
		{"exact", DefaultLimit, DefaultLimit},
		{"large pool", 100, DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Compute(make([]stats.Stat, tt.pool), 0)
			for _, name := range Names() {
				if got := r.Len(name); got != tt.want {
					t.Errorf("%s: expected %d entries, got %d", name, tt.want, got)
				}
			}
		})
	}
}

func TestTrendIsNonIncreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	snapshot := make([]stats.Stat, 200)
	for i := range snapshot {
		snapshot[i] = stats.Stat{Play: uint64(rng.Intn(50)), Like: uint64(rng.Intn(10)), Dislike: uint64(rng.Intn(10))}
	}

	r := Compute(snapshot, 0)
	trend, _ := r.Queue(Trend)
	for i := 0; i+1 < len(trend); i++ {
		if snapshot[trend[i]].Play < snapshot[trend[i+1]].Play {
			t.Fatalf("Position %d (%d plays) ranks above position %d (%d plays)",
				i, snapshot[trend[i]].Play, i+1, snapshot[trend[i+1]].Play)
		}
	}

	seen := make(map[int]bool)
	for _, idx := range trend {
		if seen[idx] {
			t.Fatalf("Index %d selected twice", idx)
		}
		seen[idx] = true
	}
}

func TestIndexAt(t *testing.T) {
	r := Compute([]stats.Stat{{Play: 1}, {Play: 3}, {Play: 2}}, 0)

	if got := r.IndexAt(Trend, 0); got != 1 {
		t.Errorf("Expected catalog index 1, got %d", got)
	}
	if got := r.IndexAt("albums", 2); got != 2 {
		t.Errorf("Unknown queues map positions to themselves, got %d", got)
	}
	if got := r.IndexAt(Trend, 9); got != 9 {
		t.Errorf("Out of range positions are returned unchanged, got %d", got)
	}
	if r.Has("albums") || !r.Has(Hated) {
		t.Error("Has reports the wrong queues")
	}
}

func TestQueueReturnsCopy(t *testing.T) {
	r := Compute([]stats.Stat{{Play: 1}, {Play: 3}}, 0)
	q, _ := r.Queue(Trend)
	q[0] = 99

	if again, _ := r.Queue(Trend); again[0] == 99 {
		t.Error("Queue must not expose internal state")
	}
}
