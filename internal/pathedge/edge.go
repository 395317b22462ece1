// Package pathedge holds path edges produced by an IFDS/IDE solver and the
// concurrent multi-map the solver stores them in.
package pathedge

import "fmt"

// Edge is a path edge: fact Source holds at the procedure entry point Entry,
// and fact TargetFact holds at program point Target.
// Edges are created by the solver and never mutated afterwards.
type Edge[N comparable, D comparable] struct {
	Entry      N
	Source     D
	Target     N
	TargetFact D
}

// NewEdge creates a path edge.
func NewEdge[N comparable, D comparable](entry N, source D, target N, targetFact D) Edge[N, D] {
	return Edge[N, D]{
		Entry:      entry,
		Source:     source,
		Target:     target,
		TargetFact: targetFact,
	}
}

// FactAtSource returns the fact holding at the edge's entry point.
func (e Edge[N, D]) FactAtSource() D {
	return e.Source
}

// FactAtTarget returns the fact holding at the edge's target point.
func (e Edge[N, D]) FactAtTarget() D {
	return e.TargetFact
}

func (e Edge[N, D]) String() string {
	return fmt.Sprintf("<%v: %v> -> <%v: %v>", e.Entry, e.Source, e.Target, e.TargetFact)
}

// Store is the view of the path-edge table used by the garbage collector.
// Implementations must be safe for concurrent use; consistency is only
// required per key, never across the whole table.
type Store[K comparable, E comparable] interface {
	// Keys returns a snapshot of the keys that currently have edges.
	Keys() []K

	// Edges returns a snapshot of the edges stored under key.
	Edges(key K) []E

	// Count returns the number of edges stored under key.
	Count(key K) int

	// Remove deletes every edge stored under key and returns them.
	// Removal is all-or-nothing for the edges present when it runs.
	Remove(key K) []E
}
