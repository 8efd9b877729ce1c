package signal

import (
	"slices"
	"sort"
	"strings"

	"jarcalls/internal/callgraph"
	"jarcalls/internal/facts"
)

// Roles of methods kept in a Graph.
const (
	RoleSignal  = "signal"  // calls a sensitive API directly
	RoleContext = "context" // within Options.Hops calls of a signal method
)

// Func is a method in the signal graph.
type Func struct {
	Name         string   `json:"name"`
	Owner        string   `json:"owner,omitempty"`
	Role         string   `json:"role"`
	Categories   []string `json:"categories,omitempty"`
	Severity     string   `json:"severity,omitempty"`
	APIs         []string `json:"apis,omitempty"` // sensitive targets called
	IsEntryPoint bool     `json:"is_entry_point,omitempty"`
}

// Edge is a call kept in the signal graph. Sensitive edges end at an API
// target rather than at a Func.
type Edge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Sensitive bool   `json:"sensitive,omitempty"`
}

// Graph is the neighborhood of every method that calls a sensitive API.
type Graph struct {
	Funcs []Func `json:"funcs"`
	Edges []Edge `json:"edges"`
	Stats Stats  `json:"stats"`
}

// Stats holds summary statistics.
type Stats struct {
	Methods        int            `json:"methods"`
	SignalFuncs    int            `json:"signal_funcs"`
	ContextFuncs   int            `json:"context_funcs"`
	Edges          int            `json:"edges"`
	SensitiveCalls int            `json:"sensitive_calls"`
	Categories     map[string]int `json:"categories"` // signal methods per category
}

// Options configures Build.
type Options struct {
	Hops       int // context hops around each signal method
	Naming     facts.Naming
	Classifier *Classifier // nil = NewClassifier(nil)
}

// Build classifies the targets of edges and returns the signal methods
// with the declared methods within opts.Hops calls of them, in either
// direction. decls lists the methods declared in the artifact; targets
// are classified whether or not the artifact declares them.
func Build(edges []callgraph.Edge, decls []facts.Location, opts Options) *Graph {
	cl := opts.Classifier
	if cl == nil {
		cl = NewClassifier(nil)
	}
	naming := opts.Naming

	owners := make(map[string]string, len(decls))
	for _, d := range decls {
		owners[naming.Name(d)] = strings.ReplaceAll(strings.TrimPrefix(d.Owner(), "/"), "/", ".")
	}

	type funcSignal struct {
		categories map[string]bool
		apis       map[string]bool
	}
	signals := make(map[string]*funcSignal)
	catCounts := make(map[string]int)
	sensitiveCalls := 0

	fwd := make(map[string][]string)
	rev := make(map[string][]string)
	hasCaller := make(map[string]bool)
	for _, e := range edges {
		from, to := naming.Name(e.Caller), naming.Name(e.Callee)
		if _, ok := owners[to]; ok {
			fwd[from] = append(fwd[from], to)
			rev[to] = append(rev[to], from)
			if from != to {
				hasCaller[to] = true
			}
		}
		cats := cl.Classify(e.Callee)
		if len(cats) == 0 {
			continue
		}
		sensitiveCalls++
		fs, ok := signals[from]
		if !ok {
			fs = &funcSignal{categories: make(map[string]bool), apis: make(map[string]bool)}
			signals[from] = fs
		}
		fs.apis[to] = true
		for _, c := range cats {
			if !fs.categories[c] {
				fs.categories[c] = true
				catCounts[c]++
			}
		}
	}

	// BFS opts.Hops from every signal method over declared calls.
	keep := make(map[string]string, len(signals))
	type queueItem struct {
		name  string
		depth int
	}
	var queue []queueItem
	for _, name := range sortedKeys(signals) {
		keep[name] = RoleSignal
		queue = append(queue, queueItem{name, 0})
	}
	contextFuncs := 0
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= opts.Hops {
			continue
		}
		for _, next := range slices.Concat(fwd[item.name], rev[item.name]) {
			if _, ok := keep[next]; ok {
				continue
			}
			keep[next] = RoleContext
			contextFuncs++
			queue = append(queue, queueItem{next, item.depth + 1})
		}
	}

	funcs := make([]Func, 0, len(keep))
	for name, role := range keep {
		f := Func{
			Name:         name,
			Owner:        owners[name],
			Role:         role,
			IsEntryPoint: !hasCaller[name],
		}
		if fs, ok := signals[name]; ok {
			f.Categories = sortedKeys(fs.categories)
			f.APIs = sortedKeys(fs.apis)
			f.Severity = MaxSeverity(f.Categories)
		}
		funcs = append(funcs, f)
	}

	// Signal before context. Signal entry points first, then severity,
	// then category count.
	roleOrd := map[string]int{RoleSignal: 0, RoleContext: 1}
	sevOrd := map[string]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2, "": 3}
	sort.Slice(funcs, func(i, j int) bool {
		fi, fj := &funcs[i], &funcs[j]
		if fi.Role != fj.Role {
			return roleOrd[fi.Role] < roleOrd[fj.Role]
		}
		if fi.Role == RoleSignal && fi.IsEntryPoint != fj.IsEntryPoint {
			return fi.IsEntryPoint
		}
		if fi.Severity != fj.Severity {
			return sevOrd[fi.Severity] < sevOrd[fj.Severity]
		}
		if len(fi.Categories) != len(fj.Categories) {
			return len(fi.Categories) > len(fj.Categories)
		}
		return fi.Name < fj.Name
	})

	seen := make(map[Edge]bool)
	var out []Edge
	add := func(e Edge) {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	for _, f := range funcs {
		for _, to := range fwd[f.Name] {
			if _, ok := keep[to]; ok {
				add(Edge{From: f.Name, To: to})
			}
		}
		for _, api := range f.APIs {
			add(Edge{From: f.Name, To: api, Sensitive: true})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return !out[i].Sensitive && out[j].Sensitive
	})

	return &Graph{
		Funcs: funcs,
		Edges: out,
		Stats: Stats{
			Methods:        len(owners),
			SignalFuncs:    len(signals),
			ContextFuncs:   contextFuncs,
			Edges:          len(out),
			SensitiveCalls: sensitiveCalls,
			Categories:     catCounts,
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
