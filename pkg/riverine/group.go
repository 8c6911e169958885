package riverine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/randalmurphal/riverine/pkg/riverine/event"
)

// By demultiplexes events into independent per-key copies of a subtree.
// The key is the tuple of the given field values; the first event for an
// unseen key instantiates a fresh subtree from the factory, with its own
// internal state shared with no other key.
//
// Events sharing a key reach the same subtree instance in arrival order.
// Events with different keys never share windowing or rate state.
//
// The grouping table is unbounded: per-key subtrees persist for the life
// of the By node and are never evicted.
func By(fields []event.Field, factory func() Stream) Stream {
	if len(fields) == 0 {
		panic("riverine: By requires at least one field")
	}
	if factory == nil {
		panic("riverine: By factory cannot be nil")
	}
	fs := make([]event.Field, len(fields))
	copy(fs, fields)
	return &by{fields: fs, factory: factory, table: make(map[string]*groupEntry)}
}

type by struct {
	mu      sync.Mutex
	fields  []event.Field
	factory func() Stream
	table   map[string]*groupEntry
}

// groupEntry serializes delivery into one per-key subtree so arrival
// order is preserved even under concurrent producers.
type groupEntry struct {
	mu     sync.Mutex
	stream Stream
}

func (b *by) Process(e event.Event) {
	key := b.keyOf(e)

	b.mu.Lock()
	entry, ok := b.table[key]
	if !ok {
		entry = &groupEntry{stream: b.factory()}
		if entry.stream == nil {
			b.mu.Unlock()
			panic("riverine: By factory returned nil stream")
		}
		b.table[key] = entry
	}
	b.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.stream.Process(e)
}

// Len reports the number of per-key subtrees instantiated so far.
func (b *by) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.table)
}

func (b *by) keyOf(e event.Event) string {
	parts := make([]string, len(b.fields))
	for i, f := range b.fields {
		v, _ := e.Get(f)
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x00")
}
