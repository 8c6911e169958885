package riverine

import (
	"sort"
	"sync"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// Coalesce maintains the most recent non-expired event per (host,
// service) key seen on this node. On every incoming event it prunes
// entries whose TTL has elapsed relative to the newest event's time,
// then forwards the full snapshot, ordered by key, to its batch
// children. An incoming expiry notification removes its key.
func Coalesce(children ...BatchStream) Stream {
	if len(children) == 0 {
		panic("riverine: Coalesce requires at least one child")
	}
	for _, c := range children {
		if c == nil {
			panic("riverine: Coalesce child cannot be nil")
		}
	}
	return &coalesce{entries: make(map[event.Key]event.Event), children: children}
}

type coalesce struct {
	mu       sync.Mutex
	entries  map[event.Key]event.Event
	children []BatchStream
}

func (c *coalesce) Process(e event.Event) {
	c.mu.Lock()
	if e.Expired() {
		delete(c.entries, e.Key())
	} else {
		c.entries[e.Key()] = e
	}
	for k, entry := range c.entries {
		if entry.ExpiresAt().Before(e.Time) {
			delete(c.entries, k)
		}
	}
	snapshot := make([]event.Event, 0, len(c.entries))
	for _, entry := range c.entries {
		snapshot = append(snapshot, entry)
	}
	c.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		a, b := snapshot[i].Key(), snapshot[j].Key()
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		return a.Service < b.Service
	})

	for _, child := range c.children {
		child.ProcessBatch(snapshot)
	}
}

// Fold reduces the metrics of a snapshot to a single value.
type Fold func(values []float64) float64

// Sum adds all metrics.
func Sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// Max returns the largest metric.
func Max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Min returns the smallest metric.
func Min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Mean returns the arithmetic mean of the metrics.
func Mean(values []float64) float64 {
	return Sum(values) / float64(len(values))
}

// Median returns the middle metric, or the mean of the two middle
// metrics for an even count.
func Median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Combine folds a snapshot into one synthetic event carrying the folded
// metric and forwards it to its children. The output copies the newest
// event of the snapshot; empty snapshots emit nothing. Pair with
// Coalesce:
//
//	Coalesce(Combine(Sum, graphite))
func Combine(fold Fold, children ...Stream) BatchStream {
	if fold == nil {
		panic("riverine: Combine fold cannot be nil")
	}
	cs := requireChildren("Combine", children)
	return BatchFunc(func(events []event.Event) {
		values := make([]float64, 0, len(events))
		newest := -1
		for i, e := range events {
			if e.HasMetric() {
				values = append(values, e.MetricValue())
			}
			if newest < 0 || e.Time.After(events[newest].Time) {
				newest = i
			}
		}
		if len(values) == 0 {
			return
		}
		o := events[newest].Derive()
		o.Metric = event.Float(fold(values))
		emit(cs, o)
	})
}
