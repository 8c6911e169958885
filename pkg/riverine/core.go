package riverine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/riverine/pkg/riverine/config"
	"github.com/randalmurphal/riverine/pkg/riverine/dashboard"
	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/index"
	"github.com/randalmurphal/riverine/pkg/riverine/observability"
	"github.com/randalmurphal/riverine/pkg/riverine/transport"

	"github.com/prometheus/client_golang/prometheus"
)

// Core wires a configuration into a running daemon: the index and its
// reaper, the ingestion listeners, the optional forwarder and
// dashboard, and the stream forest the caller supplies.
//
// Construction order matters only in that SetRoots must run before
// Start; the graph usually references the core's Index and Forwarder:
//
//	core, err := riverine.NewCore(cfg, riverine.WithLogger(log))
//	core.SetRoots(
//	    riverine.Where(predicate.Service("api"), core.IndexStream()),
//	)
//	core.Start()
//	defer core.Stop(ctx)
type Core struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *observability.Metrics
	promReg prometheus.Registerer
	spans   observability.SpanManager

	idx    *index.Index
	reaper *index.Reaper
	roots  []Stream

	tcp       *transport.TCPServer
	udp       *transport.UDPServer
	redis     *transport.RedisSource
	redisStop context.CancelFunc
	redisDone chan struct{}
	forwarder *transport.Forwarder
	dash      *dashboard.Server

	accepting atomic.Bool
	inflight  sync.WaitGroup
}

// CoreOption configures a Core.
type CoreOption func(*Core)

// WithLogger sets the core logger.
func WithLogger(log *slog.Logger) CoreOption {
	return func(c *Core) { c.log = log }
}

// WithMetrics registers the core's Prometheus instruments with the
// given registerer and exposes them on the dashboard's /metrics route
// when the registerer is also a Gatherer.
func WithMetrics(reg prometheus.Registerer) CoreOption {
	return func(c *Core) {
		c.metrics = observability.NewMetrics(reg)
		c.promReg = reg
	}
}

// WithSpans enables tracing around the ingestion boundary.
func WithSpans(spans observability.SpanManager) CoreOption {
	return func(c *Core) { c.spans = spans }
}

// NewCore builds a core from configuration. The configuration must
// already be validated; NewCore panics on settings Validate would have
// rejected, since they indicate misconfiguration rather than a runtime
// condition.
func NewCore(cfg *config.Config, opts ...CoreOption) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	c := &Core{
		cfg:   cfg,
		spans: observability.NoopSpanManager{},
		idx:   index.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.reaper = index.NewReaper(c.idx, cfg.Index.ExpiryInterval, func(e event.Event) {
		c.metrics.EventsExpired(1)
		c.Inject(e)
	}, c.log)

	if cfg.TCP.Enabled {
		c.tcp = transport.NewTCPServer(cfg.TCP.Addr, c.Inject, c.log, c.metrics, c.spans)
	}
	if cfg.UDP.Enabled {
		c.udp = transport.NewUDPServer(cfg.UDP.Addr, c.Inject, c.log, c.metrics)
	}
	if cfg.Redis.Enabled {
		src, err := transport.NewRedisSource(transport.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Key:          cfg.Redis.Key,
			BlockTimeout: cfg.Redis.BlockTimeout,
		}, c.Inject, c.log, c.metrics)
		if err != nil {
			return nil, err
		}
		c.redis = src
	}
	if cfg.Forward.Enabled {
		c.forwarder = transport.NewForwarder(cfg.Forward.Addr, cfg.Forward.QueueSize, c.log, c.metrics)
	}
	if cfg.Dashboard.Enabled {
		var gatherer prometheus.Gatherer
		// A *prometheus.Registry satisfies both interfaces, so the
		// registerer handed to WithMetrics usually gathers too.
		if g, ok := c.promReg.(prometheus.Gatherer); ok {
			gatherer = g
		}
		c.dash = dashboard.NewServer(cfg.Dashboard.Addr, c.idx, gatherer, c.log)
	}

	return c, nil
}

// Index returns the core's index, for graph construction.
func (c *Core) Index() *index.Index {
	return c.idx
}

// IndexStream returns the terminal node writing into the core's index.
func (c *Core) IndexStream() Stream {
	return IndexStream(c.idx)
}

// Forwarder returns the peer forwarder, or nil when forwarding is
// disabled. The forwarder satisfies Stream and can terminate a subtree.
func (c *Core) Forwarder() *transport.Forwarder {
	return c.forwarder
}

// Dashboard returns the dashboard server, or nil when disabled.
func (c *Core) Dashboard() *dashboard.Server {
	return c.dash
}

// TCPAddr returns the bound TCP listener address, or "" when the TCP
// listener is disabled. Useful when the configured port is 0.
func (c *Core) TCPAddr() string {
	if c.tcp == nil {
		return ""
	}
	return c.tcp.Addr()
}

// UDPAddr returns the bound UDP listener address, or "" when the UDP
// listener is disabled.
func (c *Core) UDPAddr() string {
	if c.udp == nil {
		return ""
	}
	return c.udp.Addr()
}

// SetRoots installs the stream forest roots. Must be called before
// Start.
func (c *Core) SetRoots(roots ...Stream) {
	c.roots = requireChildren("Core", roots)
}

// Inject stamps an event with ingestion defaults and delivers it to
// every root, then to connected dashboard clients. Events injected
// after shutdown began are dropped.
func (c *Core) Inject(e event.Event) {
	if !c.accepting.Load() {
		return
	}
	c.inflight.Add(1)
	defer c.inflight.Done()

	e = e.Stamp(time.Now(), c.cfg.Index.DefaultTTL)
	emit(c.roots, e)
	if c.dash != nil {
		c.dash.Publish(e)
	}
	c.metrics.SetIndexSize(c.idx.Len())
}

// Start launches the listeners, the reaper, the forwarder, and the
// dashboard. Panics if SetRoots was not called.
func (c *Core) Start() error {
	if len(c.roots) == 0 {
		panic("riverine: Core.Start before SetRoots")
	}
	c.accepting.Store(true)

	if c.forwarder != nil {
		c.forwarder.Start()
	}
	if c.tcp != nil {
		if err := c.tcp.Start(); err != nil {
			return err
		}
	}
	if c.udp != nil {
		if err := c.udp.Start(); err != nil {
			return err
		}
	}
	if c.redis != nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.redisStop = cancel
		c.redisDone = make(chan struct{})
		go func() {
			defer close(c.redisDone)
			if err := c.redis.Run(ctx); err != nil && c.log != nil {
				c.log.Error("redis source failed", slog.String("error", err.Error()))
			}
		}()
	}
	if c.dash != nil {
		if err := c.dash.Start(); err != nil {
			return err
		}
	}
	c.reaper.Start()
	return nil
}

// Stop shuts the core down gracefully: listeners stop accepting,
// in-flight traversals complete, then the reaper, forwarder, and
// dashboard stop.
func (c *Core) Stop(ctx context.Context) error {
	if c.tcp != nil {
		c.tcp.Stop()
	}
	if c.udp != nil {
		c.udp.Stop()
	}
	if c.redisStop != nil {
		c.redisStop()
		<-c.redisDone
		c.redis.Close()
	}

	c.accepting.Store(false)
	c.inflight.Wait()

	c.reaper.Stop()
	if c.forwarder != nil {
		c.forwarder.Stop()
	}
	if c.dash != nil {
		if err := c.dash.Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}
