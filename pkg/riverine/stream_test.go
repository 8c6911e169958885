package riverine_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/riverine/pkg/riverine"
	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/predicate"
)

// collector is a terminal test stream that records everything it sees.
type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) Process(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) ProcessBatch(events []event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
}

func (c *collector) all() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *collector) services() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Service
	}
	return out
}

func TestFanoutDeliversToAllChildrenInOrder(t *testing.T) {
	var order []string
	mk := func(name string) riverine.Stream {
		return riverine.StreamFunc(func(event.Event) {
			order = append(order, name)
		})
	}

	root := riverine.Fanout(mk("a"), mk("b"), mk("c"))
	root.Process(event.Event{Service: "x"})

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestWhereFilters(t *testing.T) {
	var got collector
	root := riverine.Where(predicate.Service("api"), &got)

	root.Process(event.Event{Service: "api"})
	root.Process(event.Event{Service: "db"})
	root.Process(event.Event{Service: "api"})

	assert.Equal(t, []string{"api", "api"}, got.services())
}

func TestWhereExpiredSplitsTraffic(t *testing.T) {
	var live, expired collector
	root := riverine.Fanout(
		riverine.WhereNotExpired(&live),
		riverine.WhereExpired(&expired),
	)

	root.Process(event.Event{Service: "api", State: "ok"})
	root.Process(event.Event{Service: "api", State: event.StateExpired})

	require.Len(t, live.all(), 1)
	require.Len(t, expired.all(), 1)
	assert.Equal(t, "ok", live.all()[0].State)
	assert.Equal(t, event.StateExpired, expired.all()[0].State)
}

func TestWithOverrides(t *testing.T) {
	var got collector
	root := riverine.With(event.Fields{
		event.FieldState: "forced",
		event.FieldHost:  "relay",
	}, &got)

	root.Process(event.Event{Service: "api", State: "ok", Host: "web1"})

	require.Len(t, got.all(), 1)
	out := got.all()[0]
	assert.Equal(t, "forced", out.State)
	assert.Equal(t, "relay", out.Host)
	assert.Equal(t, "api", out.Service)
}

func TestDefaultFillsOnlyMissing(t *testing.T) {
	var got collector
	root := riverine.Default(event.Fields{
		event.FieldState: "unknown",
		event.FieldHost:  "fallback",
	}, &got)

	root.Process(event.Event{Service: "api", State: "ok"})

	require.Len(t, got.all(), 1)
	out := got.all()[0]
	assert.Equal(t, "ok", out.State)
	assert.Equal(t, "fallback", out.Host)
}

func TestScale(t *testing.T) {
	var got collector
	root := riverine.Scale(1024, &got)

	root.Process(event.Event{Service: "mem", Metric: event.Float(2)})
	root.Process(event.Event{Service: "mem"}) // no metric

	events := got.all()
	require.Len(t, events, 2)
	assert.Equal(t, 2048.0, events[0].MetricValue())
	assert.False(t, events[1].HasMetric())
}

func TestPipeComposesOutermostFirst(t *testing.T) {
	var got collector
	root := riverine.Pipe(&got,
		func(c riverine.Stream) riverine.Stream {
			return riverine.Where(predicate.Service("api"), c)
		},
		func(c riverine.Stream) riverine.Stream {
			return riverine.With(event.Fields{event.FieldState: "seen"}, c)
		},
	)

	root.Process(event.Event{Service: "api", State: "ok"})
	root.Process(event.Event{Service: "db", State: "ok"})

	require.Len(t, got.all(), 1)
	assert.Equal(t, "seen", got.all()[0].State)
}

func TestEachForwardsBatchElementsInOrder(t *testing.T) {
	var got collector
	batch := riverine.Each(&got)

	batch.ProcessBatch([]event.Event{
		{Service: "a"}, {Service: "b"}, {Service: "c"},
	})

	assert.Equal(t, []string{"a", "b", "c"}, got.services())
}

func TestConstructionPanics(t *testing.T) {
	tests := []struct {
		name  string
		build func()
	}{
		{"fanout no children", func() { riverine.Fanout() }},
		{"where nil predicate", func() { riverine.Where(nil, &collector{}) }},
		{"rate zero interval", func() { riverine.Rate(0, &collector{}) }},
		{"percentiles bad quantile", func() {
			riverine.Percentiles(time.Second, []float64{1.5}, &collector{})
		}},
		{"throttle zero n", func() { riverine.Throttle(0, time.Second, &collector{}) }},
		{"rollup nil child", func() { riverine.Rollup(1, time.Second, nil) }},
		{"by no fields", func() {
			riverine.By(nil, func() riverine.Stream { return &collector{} })
		}},
		{"pipe nil terminal", func() { riverine.Pipe(nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.build)
		})
	}
}
