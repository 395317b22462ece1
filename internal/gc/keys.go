package gc

import (
	"fmt"

	"github.com/dray-io/edgegc/internal/pathedge"
)

// KeyFunc derives the collection key of an edge. It must be pure.
type KeyFunc[E any, K comparable] func(edge E) K

// ICFG is the part of the interprocedural control-flow graph the key
// derivation needs.
type ICFG[N comparable, M comparable] interface {
	// ProcedureOf returns the procedure containing program point n.
	ProcedureOf(n N) M
}

// ICFGFunc adapts a function to ICFG.
type ICFGFunc[N comparable, M comparable] func(n N) M

// ProcedureOf calls f(n).
func (f ICFGFunc[N, M]) ProcedureOf(n N) M {
	return f(n)
}

// ContextKey identifies one calling context of a procedure: the procedure
// together with the fact that held at its entry.
type ContextKey[M comparable, D comparable] struct {
	Procedure M
	Fact      D
}

func (k ContextKey[M, D]) String() string {
	return fmt.Sprintf("(%v, %v)", k.Procedure, k.Fact)
}

// FineGrainedKeys returns a KeyFunc mapping an edge to
// (procedure of the edge's target, fact at the edge's source).
// Edges that differ only in their target fact share a key.
//
//	keyOf := gc.FineGrainedKeys[Fact, Point, Procedure](icfg)
func FineGrainedKeys[D comparable, N comparable, M comparable](icfg ICFG[N, M]) KeyFunc[pathedge.Edge[N, D], ContextKey[M, D]] {
	return func(e pathedge.Edge[N, D]) ContextKey[M, D] {
		return ContextKey[M, D]{
			Procedure: icfg.ProcedureOf(e.Target),
			Fact:      e.FactAtSource(),
		}
	}
}

// ProcedureKeys returns a KeyFunc mapping an edge to the procedure of its
// target. All contexts of a procedure are collected together.
func ProcedureKeys[D comparable, N comparable, M comparable](icfg ICFG[N, M]) KeyFunc[pathedge.Edge[N, D], M] {
	return func(e pathedge.Edge[N, D]) M {
		return icfg.ProcedureOf(e.Target)
	}
}
