package sink_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/sink"
)

// captureSink records delivered batches and can be told to fail.
type captureSink struct {
	mu      sync.Mutex
	batches [][]event.Event
	err     error
	closed  atomic.Bool
}

func (c *captureSink) Send(_ context.Context, events []event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	cp := make([]event.Event, len(events))
	copy(cp, events)
	c.batches = append(c.batches, cp)
	return nil
}

func (c *captureSink) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *captureSink) all() [][]event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]event.Event, len(c.batches))
	copy(out, c.batches)
	return out
}

func (c *captureSink) waitFor(t *testing.T, n int) [][]event.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.all(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d batches, have %d", n, len(c.all()))
	return nil
}

func TestAsyncDelivers(t *testing.T) {
	var cap captureSink
	a := sink.NewAsync("test", &cap, 0, nil, nil, nil)

	a.Process(event.Event{Service: "api"})
	a.ProcessBatch([]event.Event{{Service: "a"}, {Service: "b"}})

	batches := cap.waitFor(t, 2)
	assert.Len(t, batches[0], 1)
	assert.Len(t, batches[1], 2)

	require.NoError(t, a.Close())
	assert.True(t, cap.closed.Load())
}

func TestAsyncSendErrorsDoNotPropagate(t *testing.T) {
	cap := captureSink{err: errors.New("endpoint down")}
	a := sink.NewAsync("test", &cap, 0, nil, nil, nil)

	// Process must not panic or block despite every delivery failing.
	for i := 0; i < 10; i++ {
		a.Process(event.Event{Service: "api"})
	}
	require.NoError(t, a.Close())
	assert.Empty(t, cap.all())
}

func TestAsyncCloseDrainsQueue(t *testing.T) {
	var cap captureSink
	a := sink.NewAsync("test", &cap, 64, nil, nil, nil)

	for i := 0; i < 20; i++ {
		a.Process(event.Event{Service: "api", Metric: event.Float(float64(i))})
	}
	require.NoError(t, a.Close())

	total := 0
	for _, b := range cap.all() {
		total += len(b)
	}
	assert.Equal(t, 20, total, "everything enqueued before Close is delivered")
}

func TestAsyncProcessAfterCloseIsDiscarded(t *testing.T) {
	var cap captureSink
	a := sink.NewAsync("test", &cap, 0, nil, nil, nil)
	require.NoError(t, a.Close())

	a.Process(event.Event{Service: "late"})
	a.ProcessBatch([]event.Event{{Service: "late"}})
	assert.Empty(t, cap.all())
}

func TestAsyncCloseIdempotent(t *testing.T) {
	var cap captureSink
	a := sink.NewAsync("test", &cap, 0, nil, nil, nil)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestAsyncShedsWhenQueueFull(t *testing.T) {
	// A sink that blocks until released, so the queue can fill.
	release := make(chan struct{})
	blocked := sink.Func(func(ctx context.Context, _ []event.Event) error {
		<-release
		return nil
	})
	a := sink.NewAsync("test", blocked, 2, nil, nil, nil)

	// One batch occupies the worker, two fill the queue; the rest must
	// return immediately without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			a.Process(event.Event{Service: "burst"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Process blocked on a full queue")
	}
	close(release)
	a.Close()
}

func TestAsyncBatchIsCopied(t *testing.T) {
	var cap captureSink
	a := sink.NewAsync("test", &cap, 0, nil, nil, nil)

	batch := []event.Event{{Service: "orig"}}
	a.ProcessBatch(batch)
	batch[0].Service = "mutated"

	got := cap.waitFor(t, 1)
	assert.Equal(t, "orig", got[0][0].Service)
	a.Close()
}

func TestNewAsyncPanics(t *testing.T) {
	assert.Panics(t, func() { sink.NewAsync("", &captureSink{}, 0, nil, nil, nil) })
	assert.Panics(t, func() { sink.NewAsync("test", nil, 0, nil, nil, nil) })
}
