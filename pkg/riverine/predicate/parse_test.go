package predicate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/predicate"
)

func TestParseQueries(t *testing.T) {
	ok := event.Event{
		Host:    "web1",
		Service: "api",
		State:   "ok",
		Metric:  event.Float(0.7),
		Tags:    []string{"prod"},
	}
	critical := event.Event{
		Host:    "db3",
		Service: "postgres",
		State:   "critical",
		Metric:  event.Float(0.95),
	}
	expired := event.Event{Host: "web1", Service: "api", State: event.StateExpired}

	tests := []struct {
		query string
		match []event.Event
		skip  []event.Event
	}{
		{
			query: `service == "api"`,
			match: []event.Event{ok, expired},
			skip:  []event.Event{critical},
		},
		{
			query: `state != "ok"`,
			match: []event.Event{critical, expired},
			skip:  []event.Event{ok},
		},
		{
			query: `metric > 0.9`,
			match: []event.Event{critical},
			skip:  []event.Event{ok, expired},
		},
		{
			query: `metric >= 0.7 and metric <= 0.95`,
			match: []event.Event{ok, critical},
			skip:  []event.Event{expired},
		},
		{
			query: `host =~ "web[0-9]+"`,
			match: []event.Event{ok, expired},
			skip:  []event.Event{critical},
		},
		{
			query: `tagged "prod"`,
			match: []event.Event{ok},
			skip:  []event.Event{critical, expired},
		},
		{
			query: `expired`,
			match: []event.Event{expired},
			skip:  []event.Event{ok, critical},
		},
		{
			query: `service == "api" and not expired`,
			match: []event.Event{ok},
			skip:  []event.Event{critical, expired},
		},
		{
			query: `state == "critical" or state == "warning"`,
			match: []event.Event{critical},
			skip:  []event.Event{ok},
		},
		{
			query: `not (service == "api" and metric <= 1)`,
			match: []event.Event{critical, expired},
			skip:  []event.Event{ok},
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, err := predicate.Parse(tt.query)
			require.NoError(t, err)
			for _, e := range tt.match {
				assert.True(t, p.Match(e), "%s should match %s/%s", tt.query, e.Host, e.Service)
			}
			for _, e := range tt.skip {
				assert.False(t, p.Match(e), "%s should not match %s/%s", tt.query, e.Host, e.Service)
			}
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	// and binds tighter than or: A or (B and C).
	p := predicate.MustParse(`state == "a" or state == "b" and service == "x"`)

	assert.True(t, p.Match(event.Event{State: "a", Service: "other"}))
	assert.True(t, p.Match(event.Event{State: "b", Service: "x"}))
	assert.False(t, p.Match(event.Event{State: "b", Service: "other"}))
}

func TestParseEscapedString(t *testing.T) {
	p, err := predicate.Parse(`description == "say \"hi\""`)
	require.NoError(t, err)
	assert.True(t, p.Match(event.Event{Description: `say "hi"`}))
}

func TestParseNegativeNumber(t *testing.T) {
	p, err := predicate.Parse(`metric < -1`)
	require.NoError(t, err)
	assert.True(t, p.Match(event.Event{Metric: event.Float(-2)}))
	assert.False(t, p.Match(event.Event{Metric: event.Float(0)}))
}

func TestParseTTLSeconds(t *testing.T) {
	p, err := predicate.Parse(`ttl < 60`)
	require.NoError(t, err)
	assert.True(t, p.Match(event.Event{TTL: 30 * 1e9})) // 30s as Duration
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		``,
		`service ==`,
		`service == api`,  // unquoted string
		`metric > "high"`, // quoted number
		`bogus == "x"`,
		`service = "api"`, // single equals
		`(service == "api"`,
		`service == "api" extra`,
		`"unterminated`,
		`tagged prod`,
	}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			_, err := predicate.Parse(q)
			assert.Error(t, err)
		})
	}
}

func TestMustParsePanicsOnError(t *testing.T) {
	assert.Panics(t, func() { predicate.MustParse(`bogus == "x"`) })
}
