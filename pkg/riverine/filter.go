package riverine

import (
	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/predicate"
)

// Where forwards events matching the predicate to its children and
// silently drops the rest. The event is never mutated.
func Where(p predicate.Predicate, children ...Stream) Stream {
	if p == nil {
		panic("riverine: Where predicate cannot be nil")
	}
	cs := requireChildren("Where", children)
	return StreamFunc(func(e event.Event) {
		if p.Match(e) {
			emit(cs, e)
		}
	})
}

// WhereExpired forwards only TTL-expiry notifications.
func WhereExpired(children ...Stream) Stream {
	return Where(predicate.Expired(), children...)
}

// WhereNotExpired drops TTL-expiry notifications.
func WhereNotExpired(children ...Stream) Stream {
	return Where(predicate.Not(predicate.Expired()), children...)
}
