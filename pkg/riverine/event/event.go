// Package event defines the record that flows through a riverine stream
// forest: a timestamped observation of a host/service pair carrying an
// optional metric, a state string, and a TTL after which the observation
// is considered stale.
//
// Events are treated as immutable once created. Combinators that need to
// change a field operate on a copy; see With and Default.
package event

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTTL applies when an event arrives without a TTL.
const DefaultTTL = 60 * time.Second

// StateExpired marks synthetic events emitted when an index entry's TTL
// elapses.
const StateExpired = "expired"

// Event is one observation flowing through the stream forest.
//
// Host may be empty; an empty host is a valid, distinct key component.
// Metric is a pointer so that "no metric" and "metric zero" stay
// distinguishable.
type Event struct {
	ID          string
	Host        string
	Service     string
	State       string
	Description string
	Metric      *float64
	Tags        []string
	TTL         time.Duration
	Time        time.Time
}

// Key identifies the index slot an event occupies.
type Key struct {
	Host    string
	Service string
}

// Key returns the (host, service) index key for the event.
func (e Event) Key() Key {
	return Key{Host: e.Host, Service: e.Service}
}

// Float boxes a metric value for the Metric field.
func Float(v float64) *float64 {
	return &v
}

// HasMetric reports whether the event carries a metric.
func (e Event) HasMetric() bool {
	return e.Metric != nil
}

// MetricValue returns the metric, or 0 when absent.
func (e Event) MetricValue() float64 {
	if e.Metric == nil {
		return 0
	}
	return *e.Metric
}

// Expired reports whether the event is a TTL-expiry notification.
func (e Event) Expired() bool {
	return e.State == StateExpired
}

// HasTag reports whether the event carries the given tag.
func (e Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ExpiresAt returns the instant at which the event goes stale.
// Events without a TTL fall back to DefaultTTL.
func (e Event) ExpiresAt() time.Time {
	ttl := e.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return e.Time.Add(ttl)
}

// Stamp fills in the fields assigned at the ingestion boundary: a fresh
// ID when absent, the ingestion time when the event carries no timestamp,
// and the configured default TTL when none is set. Returns a copy.
func (e Event) Stamp(now time.Time, defaultTTL time.Duration) Event {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = now
	}
	if e.TTL <= 0 {
		if defaultTTL > 0 {
			e.TTL = defaultTTL
		} else {
			e.TTL = DefaultTTL
		}
	}
	return e
}

// Derive returns a copy of the event with a fresh ID, for synthetic
// events produced inside the graph (rate, percentile, combine outputs).
func (e Event) Derive() Event {
	e.ID = uuid.New().String()
	e.Tags = cloneTags(e.Tags)
	return e
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
