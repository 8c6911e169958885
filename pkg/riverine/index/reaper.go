package index

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// DefaultSweepInterval applies when a Reaper is built without one.
const DefaultSweepInterval = 10 * time.Second

// Reaper periodically sweeps the index, removes entries whose TTL has
// elapsed, and emits one synthetic state="expired" event per removed
// entry through the emit callback — typically the root of the stream
// forest, so expiry notifications flow through the same graph as
// ingested events.
//
// Each sweep locks one shard at a time and emits outside the locks, so
// updates and queries on unrelated keys proceed during a sweep.
type Reaper struct {
	idx      *Index
	interval time.Duration
	emit     func(event.Event)
	log      *slog.Logger
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewReaper builds a reaper for the index. Emit must not be nil; a nil
// logger disables logging. Panics on a negative interval; a zero
// interval falls back to DefaultSweepInterval.
func NewReaper(idx *Index, interval time.Duration, emit func(event.Event), log *slog.Logger) *Reaper {
	if idx == nil {
		panic("index: reaper requires an index")
	}
	if emit == nil {
		panic("index: reaper requires an emit callback")
	}
	if interval < 0 {
		panic("index: reaper interval cannot be negative")
	}
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	return &Reaper{
		idx:      idx,
		interval: interval,
		emit:     emit,
		log:      log,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (r *Reaper) Start() {
	go r.run()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Reaper) run() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stop:
			return
		}
	}
}

// Sweep runs one expiry pass and returns the number of entries removed.
func (r *Reaper) Sweep() int {
	now := r.now()
	var expired []event.Event

	for i := range r.idx.shards {
		s := &r.idx.shards[i]
		s.mu.Lock()
		for k, e := range s.entries {
			if e.ExpiresAt().Before(now) {
				delete(s.entries, k)
				expired = append(expired, e)
			}
		}
		s.mu.Unlock()
	}

	for _, e := range expired {
		r.emit(event.Event{
			ID:      uuid.New().String(),
			Host:    e.Host,
			Service: e.Service,
			State:   event.StateExpired,
			TTL:     e.TTL,
			Time:    now,
		})
	}
	if len(expired) > 0 && r.log != nil {
		r.log.Debug("index entries expired", slog.Int("count", len(expired)))
	}
	return len(expired)
}
