package riverine

import (
	"github.com/randalmurphal/riverine/pkg/riverine/event"
	"github.com/randalmurphal/riverine/pkg/riverine/index"
)

// IndexStream is the terminal node that writes events into the index.
// Ordinary events upsert their (host, service) entry; expiry
// notifications remove it, so an expired key leaves the index even when
// the notification re-enters the forest through the roots.
func IndexStream(idx *index.Index) Stream {
	if idx == nil {
		panic("riverine: IndexStream requires an index")
	}
	return StreamFunc(func(e event.Event) {
		if e.Expired() {
			idx.Delete(e.Key())
			return
		}
		idx.Update(e)
	})
}
