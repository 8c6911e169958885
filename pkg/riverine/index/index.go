// Package index provides the concurrent latest-state store at the heart
// of a riverine deployment: one entry per (host, service) key, replaced
// on every update, expired by the Reaper once the entry's TTL elapses.
//
// The store is sharded so updates and queries on unrelated keys never
// contend on the same lock, and a reaper sweep never blocks the whole
// index at once.
package index

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/predicate"
)

const shardCount = 16

// Index is a sharded map of the most recently indexed event per key.
//
// Same-key concurrent updates resolve last-call-wins: whichever Update
// acquires the shard lock last owns the entry, regardless of event
// timestamps. Callers that need timestamp ordering must serialize
// upstream.
type Index struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[event.Key]event.Event
}

// New creates an empty index.
func New() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i].entries = make(map[event.Key]event.Event)
	}
	return idx
}

func (idx *Index) shardFor(k event.Key) *shard {
	h := fnv.New32a()
	h.Write([]byte(k.Host))
	h.Write([]byte{0})
	h.Write([]byte(k.Service))
	return &idx.shards[h.Sum32()%shardCount]
}

// Update upserts the entry for the event's (host, service) key,
// replacing any prior entry and its TTL-derived expiry.
func (idx *Index) Update(e event.Event) {
	s := idx.shardFor(e.Key())
	s.mu.Lock()
	s.entries[e.Key()] = e
	s.mu.Unlock()
}

// Get returns the entry for a key.
func (idx *Index) Get(k event.Key) (event.Event, bool) {
	s := idx.shardFor(k)
	s.mu.RLock()
	e, ok := s.entries[k]
	s.mu.RUnlock()
	return e, ok
}

// Delete removes the entry for a key, reporting whether it existed.
func (idx *Index) Delete(k event.Key) bool {
	s := idx.shardFor(k)
	s.mu.Lock()
	_, ok := s.entries[k]
	delete(s.entries, k)
	s.mu.Unlock()
	return ok
}

// Query returns a point-in-time snapshot of the entries matching the
// predicate, ordered by key. Writes after Query returns are not visible
// in the returned slice. A nil predicate matches everything.
func (idx *Index) Query(p predicate.Predicate) []event.Event {
	if p == nil {
		p = predicate.True()
	}
	var out []event.Event
	for i := range idx.shards {
		s := &idx.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			if p.Match(e) {
				out = append(out, e)
			}
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key(), out[j].Key()
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		return a.Service < b.Service
	})
	return out
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	n := 0
	for i := range idx.shards {
		s := &idx.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
