// Package callgraph projects invocation edges out of a fact model and
// aggregates them into a caller-to-callees adjacency.
package callgraph

import (
	"cmp"
	"errors"
	"slices"

	"jarcalls/internal/facts"
)

// ErrRelationAbsent is returned when the model has no invocation relation.
var ErrRelationAbsent = errors.New("callgraph: methodInvocation relation absent")

// Edge is a directed invocation from a caller declaration to a callee. Site
// is the invocation location inside the caller.
type Edge struct {
	Caller facts.Location
	Callee facts.Location
	Site   facts.Location
}

// Offset returns the bytecode offset of the call site, or -1.
func (e Edge) Offset() int { return e.Site.Offset }

// Line returns the source line of the call site, or 0.
func (e Edge) Line() int { return e.Site.Line }

func compareEdges(a, b Edge) int {
	if c := facts.Compare(a.Caller, b.Caller); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Site.Line, b.Site.Line); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Site.Offset, b.Site.Offset); c != 0 {
		return c
	}
	return facts.Compare(a.Callee, b.Callee)
}

// Project returns the model's invocation edges ordered by caller, then call
// site source order: line, then bytecode offset within a line. Without a
// line table every line is 0 and offset alone decides. An empty relation
// yields no edges and no error.
func Project(model *facts.Model) ([]Edge, error) {
	tuples, ok := model.Relation(facts.RelMethodInvocation)
	if !ok {
		return nil, ErrRelationAbsent
	}
	edges := make([]Edge, 0, len(tuples))
	for _, t := range tuples {
		if len(t) < 2 {
			continue
		}
		e := Edge{Caller: t[0], Callee: t[1], Site: facts.Location{Offset: facts.NoOffset}}
		if len(t) > 2 {
			e.Site = t[2]
		}
		edges = append(edges, e)
	}
	slices.SortStableFunc(edges, compareEdges)
	return edges, nil
}
