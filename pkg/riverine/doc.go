// Package riverine is a composable event-stream processing core for
// real-time monitoring daemons.
//
// Events flow from ingestion adapters through a forest of stream nodes.
// A node receives one event, transforms, drops, splits, or forwards it,
// and passes the results to its children synchronously. Building the
// graph has no side effects; side effects (index writes, network I/O)
// live only in terminal nodes.
//
// A small graph that rates api traffic per host and keeps an index of
// the latest state per service:
//
//	idx := index.New()
//	root := riverine.Where(predicate.Service("api"),
//	    riverine.By([]event.Field{event.FieldHost}, func() riverine.Stream {
//	        return riverine.Rate(5*time.Second, printer)
//	    }),
//	    riverine.IndexStream(idx),
//	)
//
// Construction-time misconfiguration (non-positive windows, bad regex,
// empty grouping keys) panics at build time. Event processing never
// panics; a malformed payload is rejected at the ingestion boundary and
// a failing predicate is simply false.
//
// Stateful nodes (windows, grouping tables, rate limiters) own their
// state exclusively and guard it with their own locks, so multiple
// ingestion adapters may push events through the same forest
// concurrently. Per-key ordering inside a By grouping is preserved.
package riverine
