package callgraph

import (
	"maps"
	"slices"
	"sort"

	"jarcalls/internal/facts"
)

// Adjacency maps each caller identity to its callees in call-site order.
// Repeated calls to the same callee are kept. Immutable once built.
type Adjacency struct {
	callers []string
	callees map[string][]string
	edges   int
}

// Aggregate groups edges by the caller identity rendered under naming.
func Aggregate(edges []Edge, naming facts.Naming) *Adjacency {
	adj := &Adjacency{callees: make(map[string][]string)}
	for _, e := range edges {
		caller := naming.Name(e.Caller)
		if _, ok := adj.callees[caller]; !ok {
			adj.callers = append(adj.callers, caller)
		}
		adj.callees[caller] = append(adj.callees[caller], naming.Name(e.Callee))
		adj.edges++
	}
	sort.Strings(adj.callers)
	return adj
}

// Callers returns the caller identities in lexicographic order.
func (a *Adjacency) Callers() []string { return slices.Clone(a.callers) }

// Callees returns the callees of caller in call-site order.
func (a *Adjacency) Callees(caller string) []string { return slices.Clone(a.callees[caller]) }

// Len returns the number of distinct callers.
func (a *Adjacency) Len() int { return len(a.callers) }

// EdgeCount returns the total number of edges, counting repeats.
func (a *Adjacency) EdgeCount() int { return a.edges }

// Map returns a copy of the adjacency as a plain map.
func (a *Adjacency) Map() map[string][]string {
	out := maps.Clone(a.callees)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}
