package sink_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/sink"
)

func TestArchiveSendAndHistory(t *testing.T) {
	a, err := sink.NewArchive(":memory:")
	require.NoError(t, err)
	defer a.Close()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	err = a.Send(ctx, []event.Event{
		{ID: "1", Host: "web1", Service: "api", State: "ok", Metric: event.Float(0.5),
			Tags: []string{"prod"}, TTL: 30 * time.Second, Time: base},
		{ID: "2", Host: "web1", Service: "api", State: "critical", Metric: event.Float(0.9),
			TTL: 30 * time.Second, Time: base.Add(time.Minute)},
		{ID: "3", Host: "db1", Service: "postgres", State: "ok",
			TTL: 60 * time.Second, Time: base},
	})
	require.NoError(t, err)

	got, err := a.History(ctx, "api", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "critical", got[0].State)
	assert.Equal(t, 0.9, got[0].MetricValue())
	assert.Equal(t, base.Add(time.Minute), got[0].Time)

	assert.Equal(t, "1", got[1].ID)
	assert.Equal(t, []string{"prod"}, got[1].Tags)
	assert.Equal(t, 30*time.Second, got[1].TTL)
}

func TestArchiveReplacesOnDuplicateID(t *testing.T) {
	a, err := sink.NewArchive(":memory:")
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	e := event.Event{ID: "dup", Service: "api", State: "ok", Time: time.Now().UTC()}
	require.NoError(t, a.Send(ctx, []event.Event{e}))
	e.State = "critical"
	require.NoError(t, a.Send(ctx, []event.Event{e}))

	got, err := a.History(ctx, "api", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "critical", got[0].State)
}

func TestArchiveHistoryLimit(t *testing.T) {
	a, err := sink.NewArchive(":memory:")
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	base := time.Now().UTC()
	var batch []event.Event
	for i := 0; i < 10; i++ {
		batch = append(batch, event.Event{
			ID:      string(rune('a' + i)),
			Service: "api",
			Time:    base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, a.Send(ctx, batch))

	got, err := a.History(ctx, "api", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestArchiveEventWithoutMetric(t *testing.T) {
	a, err := sink.NewArchive(":memory:")
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, []event.Event{{ID: "x", Service: "api", Time: time.Now().UTC()}}))

	got, err := a.History(ctx, "api", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].HasMetric())
}

func TestArchiveClosedRejectsCalls(t *testing.T) {
	a, err := sink.NewArchive(":memory:")
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "second close is a no-op")

	assert.Error(t, a.Send(context.Background(), []event.Event{{Service: "api"}}))
	_, err = a.History(context.Background(), "api", 1)
	assert.Error(t, err)
}
