package transport

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/observability"
)

// DefaultForwardQueue is the forwarder queue bound when none is given.
const DefaultForwardQueue = 1024

// Forwarder publishes events to a peer instance's TCP ingestion
// boundary, reusing the wire format. Delivery is fire-and-forget with
// at-most-once semantics: events are queued in a bounded buffer and the
// oldest are shed when the peer cannot keep up, so a slow peer never
// stalls the stream graph.
//
// Forwarder satisfies the stream-node contract, so it can be placed
// anywhere in the forest as a terminal node.
type Forwarder struct {
	addr    string
	log     *slog.Logger
	metrics *observability.Metrics

	queue    chan event.Event
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewForwarder builds a forwarder to the peer address. A queueSize of 0
// uses DefaultForwardQueue; logger and metrics may be nil.
func NewForwarder(addr string, queueSize int, log *slog.Logger, metrics *observability.Metrics) *Forwarder {
	if addr == "" {
		panic("transport: forwarder requires a peer address")
	}
	if queueSize <= 0 {
		queueSize = DefaultForwardQueue
	}
	return &Forwarder{
		addr:    addr,
		log:     log,
		metrics: metrics,
		queue:   make(chan event.Event, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery loop.
func (f *Forwarder) Start() {
	go f.run()
}

// Process enqueues an event for delivery. When the queue is full the
// oldest queued event is shed to make room.
func (f *Forwarder) Process(e event.Event) {
	for {
		select {
		case f.queue <- e:
			return
		default:
		}
		select {
		case dropped := <-f.queue:
			_ = dropped
			f.metrics.SinkDropped("forward", 1)
		default:
		}
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	var conn net.Conn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-f.stop:
			return
		case e := <-f.queue:
			for {
				if conn == nil {
					c, err := net.DialTimeout("tcp", f.addr, 5*time.Second)
					if err != nil {
						observability.LogForwardReconnect(f.log, f.addr, err)
						select {
						case <-f.stop:
							return
						case <-time.After(time.Second):
						}
						continue
					}
					conn = c
				}
				if err := WriteFrame(conn, e); err != nil {
					observability.LogForwardReconnect(f.log, f.addr, err)
					conn.Close()
					conn = nil
					// At-most-once: the event is not retried.
					f.metrics.SinkError("forward")
					break
				}
				f.metrics.SinkSend("forward")
				break
			}
		}
	}
}

// Stop halts the delivery loop. Queued events are discarded.
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	<-f.done
}
