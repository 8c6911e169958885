package event

import "time"

// Field names an addressable event attribute. Fields are used by the
// with/default combinators, the change detector, and grouping keys.
type Field string

// Addressable event fields.
const (
	FieldHost        Field = "host"
	FieldService     Field = "service"
	FieldState       Field = "state"
	FieldDescription Field = "description"
	FieldMetric      Field = "metric"
	FieldTags        Field = "tags"
	FieldTTL         Field = "ttl"
	FieldTime        Field = "time"
)

// Fields maps field names to replacement values for With and Default.
//
// Accepted value types per field:
//   - string fields: string
//   - metric: float64, int, or *float64
//   - tags: []string
//   - ttl: time.Duration, or float64/int seconds
//   - time: time.Time
type Fields map[Field]any

// Get returns the current value of a field, and whether the field is
// present (non-zero) on the event. Unknown fields report absent.
func (e Event) Get(f Field) (any, bool) {
	switch f {
	case FieldHost:
		return e.Host, e.Host != ""
	case FieldService:
		return e.Service, e.Service != ""
	case FieldState:
		return e.State, e.State != ""
	case FieldDescription:
		return e.Description, e.Description != ""
	case FieldMetric:
		if e.Metric == nil {
			return nil, false
		}
		return *e.Metric, true
	case FieldTags:
		return e.Tags, len(e.Tags) > 0
	case FieldTTL:
		return e.TTL, e.TTL > 0
	case FieldTime:
		return e.Time, !e.Time.IsZero()
	}
	return nil, false
}

// With returns a copy of the event with every listed field set to the
// given value. All fields are applied to the same copy, so children only
// ever observe the fully overridden event. Unknown fields and values of
// the wrong type are ignored.
func (e Event) With(fields Fields) Event {
	e.Tags = cloneTags(e.Tags)
	for f, v := range fields {
		e.set(f, v)
	}
	return e
}

// Default returns a copy of the event where each listed field is set only
// if it is currently absent on the event.
func (e Event) Default(fields Fields) Event {
	e.Tags = cloneTags(e.Tags)
	for f, v := range fields {
		if _, present := e.Get(f); !present {
			e.set(f, v)
		}
	}
	return e
}

func (e *Event) set(f Field, v any) {
	switch f {
	case FieldHost:
		if s, ok := v.(string); ok {
			e.Host = s
		}
	case FieldService:
		if s, ok := v.(string); ok {
			e.Service = s
		}
	case FieldState:
		if s, ok := v.(string); ok {
			e.State = s
		}
	case FieldDescription:
		if s, ok := v.(string); ok {
			e.Description = s
		}
	case FieldMetric:
		switch m := v.(type) {
		case float64:
			e.Metric = Float(m)
		case int:
			e.Metric = Float(float64(m))
		case *float64:
			e.Metric = m
		}
	case FieldTags:
		if tags, ok := v.([]string); ok {
			e.Tags = cloneTags(tags)
		}
	case FieldTTL:
		switch d := v.(type) {
		case time.Duration:
			e.TTL = d
		case float64:
			e.TTL = time.Duration(d * float64(time.Second))
		case int:
			e.TTL = time.Duration(d) * time.Second
		}
	case FieldTime:
		if t, ok := v.(time.Time); ok {
			e.Time = t
		}
	}
}
