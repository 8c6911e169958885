package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/transport"
)

func TestNewRedisSourceValidation(t *testing.T) {
	handler := func(event.Event) {}

	_, err := transport.NewRedisSource(transport.RedisConfig{}, handler, nil, nil)
	assert.Error(t, err, "key is required")

	_, err = transport.NewRedisSource(transport.RedisConfig{Key: "events"}, nil, nil, nil)
	assert.Error(t, err, "handler is required")

	src, err := transport.NewRedisSource(transport.RedisConfig{Key: "events"}, handler, nil, nil)
	require.NoError(t, err)
	assert.NoError(t, src.Close())
}

func TestRedisSourceRunStopsOnCancel(t *testing.T) {
	// No server is listening; Run must still return once the context is
	// cancelled instead of spinning on connection errors.
	src, err := transport.NewRedisSource(transport.RedisConfig{
		Addr:         "127.0.0.1:1",
		Key:          "events",
		BlockTimeout: 100 * time.Millisecond,
	}, func(event.Event) {}, nil, nil)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, src.Run(ctx))
}
