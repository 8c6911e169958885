package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

func TestStamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e := event.Event{Service: "api"}.Stamp(now, 30*time.Second)
	require.NotEmpty(t, e.ID)
	assert.Equal(t, now, e.Time)
	assert.Equal(t, 30*time.Second, e.TTL)

	// Existing values survive stamping.
	orig := event.Event{
		ID:      "fixed",
		Service: "api",
		TTL:     5 * time.Second,
		Time:    now.Add(-time.Minute),
	}
	stamped := orig.Stamp(now, 30*time.Second)
	assert.Equal(t, "fixed", stamped.ID)
	assert.Equal(t, orig.Time, stamped.Time)
	assert.Equal(t, 5*time.Second, stamped.TTL)
}

func TestStampFallbackTTL(t *testing.T) {
	e := event.Event{Service: "api"}.Stamp(time.Now(), 0)
	assert.Equal(t, event.DefaultTTL, e.TTL)
}

func TestWithOverridesAtomically(t *testing.T) {
	in := event.Event{
		Host:    "web1",
		Service: "api",
		State:   "ok",
		Metric:  event.Float(1.5),
		Tags:    []string{"prod"},
	}

	out := in.With(event.Fields{
		event.FieldState:  "critical",
		event.FieldMetric: 2.0,
		event.FieldTags:   []string{"prod", "alert"},
	})

	assert.Equal(t, "critical", out.State)
	assert.Equal(t, 2.0, out.MetricValue())
	assert.Equal(t, []string{"prod", "alert"}, out.Tags)

	// The input is untouched.
	assert.Equal(t, "ok", in.State)
	assert.Equal(t, 1.5, in.MetricValue())
	assert.Equal(t, []string{"prod"}, in.Tags)
}

func TestDefaultOnlyFillsAbsent(t *testing.T) {
	in := event.Event{Service: "api", State: "ok"}

	out := in.Default(event.Fields{
		event.FieldState:  "unknown",
		event.FieldHost:   "fallback",
		event.FieldMetric: 1,
	})

	assert.Equal(t, "ok", out.State, "present field untouched")
	assert.Equal(t, "fallback", out.Host, "absent field filled")
	require.True(t, out.HasMetric())
	assert.Equal(t, 1.0, out.MetricValue())
}

func TestWithTagsDoesNotAliasInput(t *testing.T) {
	tags := []string{"a"}
	in := event.Event{Service: "api", Tags: tags}
	out := in.With(event.Fields{event.FieldState: "ok"})

	out.Tags[0] = "mutated"
	assert.Equal(t, "a", tags[0])
}

func TestExpiresAt(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	e := event.Event{Service: "api", Time: base, TTL: 10 * time.Second}
	assert.Equal(t, base.Add(10*time.Second), e.ExpiresAt())

	// No TTL falls back to the package default.
	e = event.Event{Service: "api", Time: base}
	assert.Equal(t, base.Add(event.DefaultTTL), e.ExpiresAt())
}

func TestMetricValue(t *testing.T) {
	assert.Equal(t, 0.0, event.Event{}.MetricValue())
	assert.False(t, event.Event{}.HasMetric())
	assert.Equal(t, 2.5, event.Event{Metric: event.Float(2.5)}.MetricValue())
}

func TestGet(t *testing.T) {
	e := event.Event{Host: "web1", Service: "api", TTL: 30 * time.Second}

	tests := []struct {
		field   event.Field
		want    any
		present bool
	}{
		{event.FieldHost, "web1", true},
		{event.FieldService, "api", true},
		{event.FieldState, "", false},
		{event.FieldMetric, nil, false},
		{event.FieldTTL, 30 * time.Second, true},
	}
	for _, tt := range tests {
		got, ok := e.Get(tt.field)
		assert.Equal(t, tt.present, ok, "presence of %s", tt.field)
		if tt.present {
			assert.Equal(t, tt.want, got, "value of %s", tt.field)
		}
	}
}

func TestDeriveAssignsFreshID(t *testing.T) {
	in := event.Event{ID: "orig", Service: "api", Tags: []string{"a"}}
	out := in.Derive()
	assert.NotEqual(t, in.ID, out.ID)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, in.Service, out.Service)
}

func TestExpired(t *testing.T) {
	assert.True(t, event.Event{State: event.StateExpired}.Expired())
	assert.False(t, event.Event{State: "ok"}.Expired())
}
