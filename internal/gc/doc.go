// Package gc implements incremental, reference-counting garbage collection
// of path edges for a long-running IFDS/IDE solver.
//
// # Collection keys
//
// Path edges are grouped by a collection key derived from each edge. The
// fine-grained key ([ContextKey]) is the pair (procedure owning the edge's
// target, fact at the edge's source), so the stale incoming-fact contexts of
// a procedure can be reclaimed while other contexts of the same procedure are
// still live. [ProcedureKeys] derives the coarser per-procedure key.
//
// # Liveness
//
// Whether a key may still receive or produce edges is decided by a
// [ReferenceProvider]. The collector only removes the edges of a key the
// provider reports as unreferenced. Providers that also implement
// [AtomicReferenceProvider] pin the key's count at zero while its edges are
// removed, so no solver thread can acquire a new reference in between.
// [RefTable] is the reference-count table the solver integration drives.
//
// # Scheduling
//
// The [Collector] sweeps in the background on a fixed interval:
//
//	collector, err := gc.NewCollector(store, gc.FineGrainedKeys[Fact, Point, Procedure](icfg), refs, gc.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	if err := collector.Initialize(ctx); err != nil { // solver initialised
//	    return err
//	}
//	...
//	report := collector.NotifyTerminated(ctx) // final sweep, report, stop
package gc
