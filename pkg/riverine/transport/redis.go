package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/randalmurphal/riverine/pkg/riverine/observability"
)

// RedisConfig configures the Redis list source.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// RedisSource pops JSON event payloads from a Redis list and feeds them
// into the stream forest, for deployments that front ingestion with a
// queue instead of a socket.
type RedisSource struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
	handler      Handler
	log          *slog.Logger
	metrics      *observability.Metrics
}

// NewRedisSource builds a Redis list consumer. Key and handler are
// required.
func NewRedisSource(cfg RedisConfig, handler Handler, log *slog.Logger, metrics *observability.Metrics) (*RedisSource, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis source: key is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("redis source: handler is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisSource{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
		handler:      handler,
		log:          log,
		metrics:      metrics,
	}, nil
}

// Run consumes the list until the context is cancelled.
func (s *RedisSource) Run(ctx context.Context) error {
	observability.LogListenerStart(s.log, "redis", s.key)
	defer observability.LogListenerStop(s.log, "redis", s.key)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		res, err := s.client.BLPop(ctx, s.blockTimeout, s.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("redis blpop %s: %w", s.key, err)
		}
		if len(res) < 2 {
			continue
		}
		e, err := Unmarshal([]byte(res[1]))
		if err != nil {
			s.metrics.EventMalformed("redis")
			observability.LogMalformed(s.log, "redis", err)
			continue
		}
		s.metrics.EventReceived("redis")
		s.handler(e)
	}
}

// Close releases the Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
