// Package sim drives the collector with a synthetic IFDS solver workload.
package sim

import (
	"fmt"
	"strings"
)

// Graph is a synthetic interprocedural control-flow graph. Every procedure
// has an entry point and a straight line of body points.
type Graph struct {
	procedures []string
	bodyLen    int
}

// NewGraph creates a graph with n procedures of bodyLen points each.
func NewGraph(n, bodyLen int) *Graph {
	g := &Graph{procedures: make([]string, n), bodyLen: bodyLen}
	for i := range g.procedures {
		g.procedures[i] = fmt.Sprintf("proc%03d", i)
	}
	return g
}

// Procedures returns the procedure names.
func (g *Graph) Procedures() []string {
	return g.procedures
}

// Entry returns the entry point of proc.
func (g *Graph) Entry(proc string) string {
	return proc + ":entry"
}

// Point returns body point i of proc.
func (g *Graph) Point(proc string, i int) string {
	return fmt.Sprintf("%s:s%d", proc, i%g.bodyLen)
}

// ProcedureOf returns the procedure containing n.
func (g *Graph) ProcedureOf(n string) string {
	proc, _, _ := strings.Cut(n, ":")
	return proc
}
