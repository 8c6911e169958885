// Package predicate models event filters as an expression tree evaluated
// by a single interpreter. The same tree type backs the where combinator
// inside the stream forest and the query boundary exposed to dashboards;
// Parse builds trees from the textual query language.
//
// Evaluation never faults: comparing a missing metric is simply false,
// and a predicate never mutates the event it inspects.
package predicate

import (
	"regexp"
	"time"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// Predicate decides whether an event matches.
type Predicate interface {
	Match(e event.Event) bool
}

// Func adapts an arbitrary function to a Predicate.
type Func func(e event.Event) bool

// Match implements Predicate.
func (f Func) Match(e event.Event) bool {
	return f(e)
}

// True matches every event.
func True() Predicate {
	return Func(func(event.Event) bool { return true })
}

type eq struct {
	field event.Field
	value any
}

func (p eq) Match(e event.Event) bool {
	v, ok := e.Get(p.field)
	if !ok {
		return false
	}
	if want, isNum := toFloat(p.value); isNum {
		got, isNum := toFloat(v)
		return isNum && got == want
	}
	return v == p.value
}

// Eq matches events whose field equals the given value. Numeric values
// compare numerically, everything else by interface equality.
func Eq(field event.Field, value any) Predicate {
	return eq{field: field, value: value}
}

// Host matches on the host field.
func Host(host string) Predicate {
	return Eq(event.FieldHost, host)
}

// Service matches on the service field.
func Service(service string) Predicate {
	return Eq(event.FieldService, service)
}

// State matches on the state field.
func State(state string) Predicate {
	return Eq(event.FieldState, state)
}

// Expired matches TTL-expiry notifications.
func Expired() Predicate {
	return State(event.StateExpired)
}

type cmp struct {
	field event.Field
	op    string
	value float64
}

func (p cmp) Match(e event.Event) bool {
	v, ok := e.Get(p.field)
	if !ok {
		return false
	}
	f, ok := toFloat(v)
	if !ok {
		return false
	}
	switch p.op {
	case "<":
		return f < p.value
	case "<=":
		return f <= p.value
	case ">":
		return f > p.value
	case ">=":
		return f >= p.value
	}
	return false
}

// Lt matches events whose numeric field is below the value.
// A missing or non-numeric field never matches.
func Lt(field event.Field, value float64) Predicate {
	return cmp{field: field, op: "<", value: value}
}

// Le matches events whose numeric field is at most the value.
func Le(field event.Field, value float64) Predicate {
	return cmp{field: field, op: "<=", value: value}
}

// Gt matches events whose numeric field is above the value.
func Gt(field event.Field, value float64) Predicate {
	return cmp{field: field, op: ">", value: value}
}

// Ge matches events whose numeric field is at least the value.
func Ge(field event.Field, value float64) Predicate {
	return cmp{field: field, op: ">=", value: value}
}

type match struct {
	field event.Field
	re    *regexp.Regexp
}

func (p match) Match(e event.Event) bool {
	v, ok := e.Get(p.field)
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return p.re.MatchString(s)
}

// Regex matches events whose string field matches the pattern.
// Returns an error for an invalid pattern.
func Regex(field event.Field, pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return match{field: field, re: re}, nil
}

// MustRegex is Regex that panics on an invalid pattern. Intended for
// graph construction, where misconfiguration is fatal.
func MustRegex(field event.Field, pattern string) Predicate {
	p, err := Regex(field, pattern)
	if err != nil {
		panic(err)
	}
	return p
}

type tagged struct {
	tag string
}

func (p tagged) Match(e event.Event) bool {
	return e.HasTag(p.tag)
}

// Tagged matches events carrying the given tag.
func Tagged(tag string) Predicate {
	return tagged{tag: tag}
}

// TaggedAny matches events carrying at least one of the tags.
func TaggedAny(tags ...string) Predicate {
	return Func(func(e event.Event) bool {
		for _, t := range tags {
			if e.HasTag(t) {
				return true
			}
		}
		return false
	})
}

// TaggedAll matches events carrying every one of the tags.
func TaggedAll(tags ...string) Predicate {
	return Func(func(e event.Event) bool {
		for _, t := range tags {
			if !e.HasTag(t) {
				return false
			}
		}
		return true
	})
}

type and []Predicate

func (ps and) Match(e event.Event) bool {
	for _, p := range ps {
		if !p.Match(e) {
			return false
		}
	}
	return true
}

// And matches when every child predicate matches.
func And(ps ...Predicate) Predicate {
	return and(ps)
}

type or []Predicate

func (ps or) Match(e event.Event) bool {
	for _, p := range ps {
		if p.Match(e) {
			return true
		}
	}
	return false
}

// Or matches when any child predicate matches.
func Or(ps ...Predicate) Predicate {
	return or(ps)
}

type not struct {
	p Predicate
}

func (p not) Match(e event.Event) bool {
	return !p.p.Match(e)
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return not{p: p}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case time.Duration:
		// Durations compare in seconds, matching the query language.
		return n.Seconds(), true
	}
	return 0, false
}
