package riverine

import (
	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// With forwards a copy of each event with every listed field
// unconditionally overridden. All fields apply atomically: children only
// see the fully overridden copy.
func With(fields event.Fields, children ...Stream) Stream {
	cs := requireChildren("With", children)
	return StreamFunc(func(e event.Event) {
		emit(cs, e.With(fields))
	})
}

// Default forwards a copy of each event with every listed field set only
// where the incoming event has no value for it.
func Default(fields event.Fields, children ...Stream) Stream {
	cs := requireChildren("Default", children)
	return StreamFunc(func(e event.Event) {
		emit(cs, e.Default(fields))
	})
}

// Scale forwards a copy of each event with the metric multiplied by
// factor. Events without a metric pass through unchanged.
func Scale(factor float64, children ...Stream) Stream {
	cs := requireChildren("Scale", children)
	return StreamFunc(func(e event.Event) {
		if e.HasMetric() {
			e = e.With(event.Fields{event.FieldMetric: e.MetricValue() * factor})
		}
		emit(cs, e)
	})
}
