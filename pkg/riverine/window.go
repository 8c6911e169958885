package riverine

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// Rate sums metrics over fixed windows of the given interval and, each
// time an incoming event's time crosses a window boundary, emits one
// synthetic event whose metric is sum/interval-seconds for the closed
// window. Events without a metric contribute 0.
//
// Window close is driven by event arrival: a window with no subsequent
// traffic stays open until the next event's time crosses its boundary,
// and a closed window that received no events emits nothing. The output
// event inherits host, service, and tags from the last event of the
// closed window; its time is the window end.
func Rate(interval time.Duration, children ...Stream) Stream {
	if interval <= 0 {
		panic("riverine: Rate interval must be positive")
	}
	cs := requireChildren("Rate", children)
	return &rate{interval: interval, children: cs}
}

type rate struct {
	mu       sync.Mutex
	interval time.Duration
	children []Stream

	windowStart time.Time
	sum         float64
	count       int
	template    event.Event
}

func (r *rate) Process(e event.Event) {
	var out *event.Event

	r.mu.Lock()
	if r.windowStart.IsZero() {
		r.windowStart = e.Time.Truncate(r.interval)
	}
	windowEnd := r.windowStart.Add(r.interval)
	if !e.Time.Before(windowEnd) {
		if r.count > 0 {
			o := r.template.Derive()
			o.Metric = event.Float(r.sum / r.interval.Seconds())
			o.Time = windowEnd
			out = &o
		}
		r.windowStart = e.Time.Truncate(r.interval)
		r.sum = 0
		r.count = 0
	}
	r.sum += e.MetricValue()
	r.count++
	r.template = e
	r.mu.Unlock()

	if out != nil {
		emit(r.children, *out)
	}
}

// Percentiles buffers metrics over fixed windows of the given interval
// and, at each window close, emits one synthetic event per quantile. The
// output service is the input service suffixed with the quantile
// ("api 0.95") and the metric is the buffered value at nearest rank
// ceil(q*(n-1)), zero-indexed, of the sorted buffer.
//
// Quantiles must lie in [0,1]. An empty window emits nothing; the buffer
// is cleared at every close regardless.
func Percentiles(interval time.Duration, quantiles []float64, children ...Stream) Stream {
	if interval <= 0 {
		panic("riverine: Percentiles interval must be positive")
	}
	if len(quantiles) == 0 {
		panic("riverine: Percentiles requires at least one quantile")
	}
	for _, q := range quantiles {
		if q < 0 || q > 1 {
			panic(fmt.Sprintf("riverine: quantile %v out of [0,1]", q))
		}
	}
	cs := requireChildren("Percentiles", children)
	qs := make([]float64, len(quantiles))
	copy(qs, quantiles)
	sort.Float64s(qs)
	return &percentiles{interval: interval, quantiles: qs, children: cs}
}

type percentiles struct {
	mu        sync.Mutex
	interval  time.Duration
	quantiles []float64
	children  []Stream

	windowStart time.Time
	values      []float64
	template    event.Event
}

func (p *percentiles) Process(e event.Event) {
	var outs []event.Event

	p.mu.Lock()
	if p.windowStart.IsZero() {
		p.windowStart = e.Time.Truncate(p.interval)
	}
	windowEnd := p.windowStart.Add(p.interval)
	if !e.Time.Before(windowEnd) {
		outs = p.close(windowEnd)
		p.windowStart = e.Time.Truncate(p.interval)
	}
	if e.HasMetric() {
		p.values = append(p.values, e.MetricValue())
	}
	p.template = e
	p.mu.Unlock()

	for _, o := range outs {
		emit(p.children, o)
	}
}

// close computes the quantile outputs for the current window and resets
// the buffer. Caller holds the lock.
func (p *percentiles) close(windowEnd time.Time) []event.Event {
	defer func() { p.values = nil }()
	if len(p.values) == 0 {
		return nil
	}
	sorted := make([]float64, len(p.values))
	copy(sorted, p.values)
	sort.Float64s(sorted)

	outs := make([]event.Event, 0, len(p.quantiles))
	for _, q := range p.quantiles {
		rank := int(math.Ceil(q * float64(len(sorted)-1)))
		o := p.template.Derive()
		o.Service = fmt.Sprintf("%s %v", p.template.Service, q)
		o.Metric = event.Float(sorted[rank])
		o.Time = windowEnd
		outs = append(outs, o)
	}
	return outs
}
