package riverine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/riverine/pkg/riverine"
	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

func TestThrottlePassesAtMostNPerPeriod(t *testing.T) {
	var got collector
	// A period far longer than the test keeps us inside one window.
	root := riverine.Throttle(3, time.Hour, &got)

	for i := 0; i < 10; i++ {
		root.Process(event.Event{Service: "alert"})
	}

	assert.Len(t, got.all(), 3)
}

func TestThrottleDropsDoNotQueue(t *testing.T) {
	var got collector
	root := riverine.Throttle(1, time.Hour, &got)

	root.Process(event.Event{Service: "alert", State: "first"})
	root.Process(event.Event{Service: "alert", State: "second"})

	events := got.all()
	require.Len(t, events, 1)
	assert.Equal(t, "first", events[0].State)
}

func TestRollupFirstNImmediate(t *testing.T) {
	var got batchCollector
	root := riverine.Rollup(2, time.Hour, &got)
	defer root.Close()

	root.Process(event.Event{Service: "a"})
	root.Process(event.Event{Service: "b"})
	root.Process(event.Event{Service: "c"}) // buffered

	batches := got.all()
	require.Len(t, batches, 2)
	assert.Equal(t, "a", batches[0][0].Service)
	assert.Equal(t, "b", batches[1][0].Service)
}

func TestRollupFlushDeliversOverflowAsOneBatch(t *testing.T) {
	var got batchCollector
	root := riverine.Rollup(1, 50*time.Millisecond, &got)
	defer root.Close()

	root.Process(event.Event{Service: "a"}) // immediate
	root.Process(event.Event{Service: "b"}) // buffered
	root.Process(event.Event{Service: "c"}) // buffered

	time.Sleep(150 * time.Millisecond)

	batches := got.all()
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 1)
	require.Len(t, batches[1], 2)
	assert.Equal(t, "b", batches[1][0].Service)
	assert.Equal(t, "c", batches[1][1].Service)
}

func TestRollupEveryEventDeliveredExactlyOnce(t *testing.T) {
	var got batchCollector
	root := riverine.Rollup(2, 30*time.Millisecond, &got)
	defer root.Close()

	const total = 50
	for i := 0; i < total; i++ {
		root.Process(event.Event{Service: "burst", Metric: event.Float(float64(i))})
	}
	time.Sleep(200 * time.Millisecond)

	seen := map[float64]int{}
	count := 0
	for _, batch := range got.all() {
		for _, e := range batch {
			seen[e.MetricValue()]++
			count++
		}
	}
	assert.Equal(t, total, count)
	for m, n := range seen {
		assert.Equal(t, 1, n, "metric %v delivered %d times", m, n)
	}
}

func TestRollupCloseFlushesBuffer(t *testing.T) {
	var got batchCollector
	root := riverine.Rollup(1, time.Hour, &got)

	root.Process(event.Event{Service: "a"})
	root.Process(event.Event{Service: "b"})
	root.Process(event.Event{Service: "c"})
	root.Close()

	batches := got.all()
	require.Len(t, batches, 2)
	assert.Len(t, batches[1], 2, "buffered events flushed on close")

	// Events after Close are discarded.
	root.Process(event.Event{Service: "late"})
	assert.Len(t, got.all(), 2)
}
