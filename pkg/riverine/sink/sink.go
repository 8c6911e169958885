// Package sink holds the outbound adapters a riverine graph delivers
// into: a webhook poster, a SQLite event archive, and the Async bridge
// that turns any Sink into a terminal stream node with a bounded queue
// so a slow sink never stalls the stream graph.
package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/observability"
)

// Sink delivers events to an external system. Retry and failure policy
// beyond one Send call is the sink's own business; the stream graph
// only requires the call to return.
type Sink interface {
	// Send delivers a batch. Implementations must be safe for
	// concurrent use.
	Send(ctx context.Context, events []event.Event) error

	// Close releases the sink's resources.
	Close() error
}

// Func adapts a function to the Sink interface with a no-op Close.
type Func func(ctx context.Context, events []event.Event) error

// Send implements Sink.
func (f Func) Send(ctx context.Context, events []event.Event) error {
	return f(ctx, events)
}

// Close implements Sink.
func (f Func) Close() error {
	return nil
}

// DefaultAsyncQueue is the Async queue bound when none is given.
const DefaultAsyncQueue = 256

// Async bridges a Sink into the stream forest. Batches queue into a
// bounded buffer drained by one worker goroutine; when the buffer is
// full the incoming batch is shed and counted, never blocking the
// caller. Send errors are logged and counted, and do not propagate
// back into the graph.
//
// Async satisfies both the single-event and batch stream-node
// contracts, so it can terminate an ordinary subtree or sit under a
// rollup.
type Async struct {
	name    string
	sink    Sink
	log     *slog.Logger
	metrics *observability.Metrics
	spans   observability.SpanManager

	queue     chan []event.Event
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// NewAsync builds the bridge and starts its worker. A queueSize of 0
// uses DefaultAsyncQueue; logger, metrics, and spans may be nil.
func NewAsync(name string, s Sink, queueSize int, log *slog.Logger, metrics *observability.Metrics, spans observability.SpanManager) *Async {
	if name == "" {
		panic("sink: async bridge requires a name")
	}
	if s == nil {
		panic("sink: async bridge requires a sink")
	}
	if queueSize <= 0 {
		queueSize = DefaultAsyncQueue
	}
	if spans == nil {
		spans = observability.NoopSpanManager{}
	}
	a := &Async{
		name:    name,
		sink:    s,
		log:     log,
		metrics: metrics,
		spans:   spans,
		queue:   make(chan []event.Event, queueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Process implements the single-event stream-node contract.
func (a *Async) Process(e event.Event) {
	a.ProcessBatch([]event.Event{e})
}

// ProcessBatch implements the batch stream-node contract.
func (a *Async) ProcessBatch(events []event.Event) {
	if len(events) == 0 {
		return
	}
	batch := make([]event.Event, len(events))
	copy(batch, events)

	select {
	case <-a.closing:
		return
	default:
	}
	select {
	case a.queue <- batch:
	default:
		a.metrics.SinkDropped(a.name, len(batch))
		observability.LogSinkDrop(a.log, a.name, len(batch))
	}
}

func (a *Async) run() {
	defer close(a.done)
	for {
		select {
		case batch := <-a.queue:
			a.deliver(batch)
		case <-a.closing:
			// Drain whatever was queued before Close.
			for {
				select {
				case batch := <-a.queue:
					a.deliver(batch)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(batch []event.Event) {
	ctx, span := a.spans.StartSinkSpan(context.Background(), a.name, len(batch))
	err := a.sink.Send(ctx, batch)
	a.spans.EndSpanWithError(span, err)
	if err != nil {
		a.metrics.SinkError(a.name)
		observability.LogSinkError(a.log, a.name, len(batch), err)
		return
	}
	a.metrics.SinkSend(a.name)
}

// Close drains queued batches, stops the worker, and closes the
// underlying sink.
func (a *Async) Close() error {
	a.closeOnce.Do(func() { close(a.closing) })
	<-a.done
	return a.sink.Close()
}
