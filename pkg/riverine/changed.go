package riverine

import (
	"fmt"
	"sync"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// Changed forwards an event only when the named field's value differs
// from the previously observed value. The first event is always
// forwarded. For the sequence of state values [a a a b b a] the emitted
// subsequence is [a b a].
//
// State is scoped to this node instance; place Changed under a By
// grouping to track per-key transitions.
func Changed(field event.Field, children ...Stream) Stream {
	cs := requireChildren("Changed", children)
	c := &changed{field: field, children: cs}
	return c
}

// ChangedState is Changed on the state field, the primitive alerting
// graphs are built on.
func ChangedState(children ...Stream) Stream {
	return Changed(event.FieldState, children...)
}

type changed struct {
	mu       sync.Mutex
	field    event.Field
	seen     bool
	last     string
	children []Stream
}

func (c *changed) Process(e event.Event) {
	// Values compare by printed form so slice-valued fields (tags) are
	// comparable too.
	raw, _ := e.Get(c.field)
	v := fmt.Sprint(raw)

	c.mu.Lock()
	fire := !c.seen || v != c.last
	c.seen = true
	c.last = v
	c.mu.Unlock()

	if fire {
		emit(c.children, e)
	}
}
