package riverine

import (
	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// Stream is a node in the processing forest. Process delivers one event
// to the node, which forwards zero or more resulting events to its
// children before returning.
//
// Implementations must be safe for concurrent Process calls; stateless
// nodes are trivially safe, stateful ones guard their own state.
type Stream interface {
	Process(e event.Event)
}

// StreamFunc adapts a function to the Stream interface.
type StreamFunc func(e event.Event)

// Process implements Stream.
func (f StreamFunc) Process(e event.Event) {
	f(e)
}

// BatchStream receives ordered sequences of events. Coalesce forwards
// snapshots to batch children, and Rollup delivers its buffered overflow
// as one batched call.
type BatchStream interface {
	ProcessBatch(events []event.Event)
}

// BatchFunc adapts a function to the BatchStream interface.
type BatchFunc func(events []event.Event)

// ProcessBatch implements BatchStream.
func (f BatchFunc) ProcessBatch(events []event.Event) {
	f(events)
}

// Each adapts a Stream to a BatchStream by forwarding every element of
// the batch individually, in order.
func Each(child Stream) BatchStream {
	if child == nil {
		panic("riverine: Each child cannot be nil")
	}
	return BatchFunc(func(events []event.Event) {
		for _, e := range events {
			child.Process(e)
		}
	})
}

// Fanout forwards each event to every child in order.
func Fanout(children ...Stream) Stream {
	cs := requireChildren("Fanout", children)
	return StreamFunc(func(e event.Event) {
		emit(cs, e)
	})
}

// Wrapper builds a stream stage around a single downstream child.
type Wrapper func(child Stream) Stream

// Pipe chains wrappers around a terminal stream, outermost first:
//
//	Pipe(sink,
//	    func(c Stream) Stream { return Where(pred, c) },
//	    func(c Stream) Stream { return Rate(5*time.Second, c) },
//	)
//
// is Where(pred, Rate(5*time.Second, sink)).
func Pipe(terminal Stream, stages ...Wrapper) Stream {
	if terminal == nil {
		panic("riverine: Pipe terminal cannot be nil")
	}
	s := terminal
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i] == nil {
			panic("riverine: Pipe stage cannot be nil")
		}
		s = stages[i](s)
	}
	return s
}

// emit forwards an event to every child in order.
func emit(children []Stream, e event.Event) {
	for _, c := range children {
		c.Process(e)
	}
}

// requireChildren validates a child list at graph construction time.
func requireChildren(node string, children []Stream) []Stream {
	if len(children) == 0 {
		panic("riverine: " + node + " requires at least one child")
	}
	for _, c := range children {
		if c == nil {
			panic("riverine: " + node + " child cannot be nil")
		}
	}
	return children
}
