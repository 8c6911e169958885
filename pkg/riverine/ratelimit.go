package riverine

import (
	"sync"
	"time"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// Throttle forwards at most n events per rolling period and drops the
// rest. The window opens on the first event through it; excess events
// inside the window are shed, not queued. Throttle is the load-shedding
// limiter; use Rollup when every event must reach the child.
func Throttle(n int, period time.Duration, children ...Stream) Stream {
	if n <= 0 {
		panic("riverine: Throttle n must be positive")
	}
	if period <= 0 {
		panic("riverine: Throttle period must be positive")
	}
	cs := requireChildren("Throttle", children)
	return &throttle{n: n, period: period, children: cs, now: time.Now}
}

type throttle struct {
	mu       sync.Mutex
	n        int
	period   time.Duration
	children []Stream
	now      func() time.Time

	windowStart time.Time
	sent        int
}

func (t *throttle) Process(e event.Event) {
	now := t.now()

	t.mu.Lock()
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= t.period {
		t.windowStart = now
		t.sent = 0
	}
	pass := t.sent < t.n
	if pass {
		t.sent++
	}
	t.mu.Unlock()

	if pass {
		emit(t.children, e)
	}
}

// Rollup bounds downstream call frequency without losing events: up to n
// delivery calls per period go through immediately as single-event
// batches, and everything beyond that budget is buffered. When the
// period elapses the buffer is flushed as one batched call and the
// budget resets. Every event reaches the child exactly once.
//
// Close flushes any buffered events and stops the flush timer; call it
// during graph shutdown.
func Rollup(n int, period time.Duration, child BatchStream) *RollupStream {
	if n <= 0 {
		panic("riverine: Rollup n must be positive")
	}
	if period <= 0 {
		panic("riverine: Rollup period must be positive")
	}
	if child == nil {
		panic("riverine: Rollup child cannot be nil")
	}
	return &RollupStream{n: n, period: period, child: child}
}

// RollupStream is the stream node built by Rollup.
type RollupStream struct {
	mu     sync.Mutex
	n      int
	period time.Duration
	child  BatchStream

	sent   int
	buf    []event.Event
	timer  *time.Timer
	closed bool
}

// Process implements Stream.
func (r *RollupStream) Process(e event.Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.timer == nil {
		r.timer = time.AfterFunc(r.period, r.flush)
	}
	if r.sent < r.n {
		r.sent++
		r.mu.Unlock()
		r.child.ProcessBatch([]event.Event{e})
		return
	}
	r.buf = append(r.buf, e)
	r.mu.Unlock()
}

// flush delivers the buffered overflow as one batch and resets the
// period budget. A flush that delivers a batch consumes one call from
// the next period's budget.
func (r *RollupStream) flush() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	buf := r.buf
	r.buf = nil
	if len(buf) > 0 {
		r.sent = 1
		r.timer.Reset(r.period)
	} else {
		// Idle period: stop until the next event restarts the cycle.
		r.sent = 0
		r.timer = nil
	}
	r.mu.Unlock()

	if len(buf) > 0 {
		r.child.ProcessBatch(buf)
	}
}

// Close flushes buffered events and stops the timer.
func (r *RollupStream) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	buf := r.buf
	r.buf = nil
	r.mu.Unlock()

	if len(buf) > 0 {
		r.child.ProcessBatch(buf)
	}
}
