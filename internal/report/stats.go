package report

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"slices"

	"jarcalls/internal/callgraph"
	"jarcalls/internal/extract"
)

// DefaultTopN is the number of entries kept in each ranking.
const DefaultTopN = 20

// Stats summarizes one analysis run.
type Stats struct {
	Classes         int         `json:"classes"`
	Methods         int         `json:"methods"`
	CallSites       int         `json:"call_sites"`
	Unresolved      int         `json:"unresolved"`
	Skipped         int         `json:"skipped"`
	Callers         int         `json:"callers"`
	Edges           int         `json:"edges"`
	DistinctCallees int         `json:"distinct_callees"`
	TopCallers      []NameCount `json:"top_callers"` // by outgoing edges, descending
	TopCallees      []NameCount `json:"top_callees"` // by incoming edges, descending
	TopOwners       []NameCount `json:"top_owners"`  // by callers declared in the class, descending
}

// NameCount pairs a name with a count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ComputeStats derives statistics from an adjacency and, when rep is not
// nil, the build report. n <= 0 selects DefaultTopN.
func ComputeStats(adj *callgraph.Adjacency, rep *extract.Report, n int) Stats {
	if n <= 0 {
		n = DefaultTopN
	}
	s := Stats{
		Callers: adj.Len(),
		Edges:   adj.EdgeCount(),
	}
	if rep != nil {
		s.Classes = rep.Classes
		s.Methods = rep.Methods
		s.CallSites = rep.CallSites
		s.Unresolved = rep.Unresolved
		s.Skipped = len(rep.Skipped)
	}

	out := make(map[string]int)
	in := make(map[string]int)
	owners := make(map[string]int)
	for _, caller := range adj.Callers() {
		callees := adj.Callees(caller)
		out[caller] = len(callees)
		for _, c := range callees {
			in[c]++
		}
		if owner := ownerOf(caller); owner != "" {
			owners[owner]++
		}
	}
	s.DistinctCallees = len(in)
	s.TopCallers = topN(out, n)
	s.TopCallees = topN(in, n)
	s.TopOwners = topN(owners, n)
	return s
}

// ownerOf strips the last dotted segment of a short or signature identity.
func ownerOf(name string) string {
	end := len(name)
	for i := 0; i < len(name); i++ {
		if name[i] == '(' {
			end = i
			break
		}
	}
	for i := end - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return ""
}

// topN returns the n largest entries, ties broken by name.
func topN(m map[string]int, n int) []NameCount {
	entries := make([]NameCount, 0, len(m))
	for name, count := range m {
		entries = append(entries, NameCount{name, count})
	}
	slices.SortFunc(entries, func(a, b NameCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// WriteStats writes s as aligned text.
func WriteStats(w io.Writer, s Stats) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "classes:          %d\n", s.Classes)
	fmt.Fprintf(bw, "methods:          %d\n", s.Methods)
	fmt.Fprintf(bw, "call sites:       %d\n", s.CallSites)
	fmt.Fprintf(bw, "unresolved:       %d\n", s.Unresolved)
	fmt.Fprintf(bw, "skipped classes:  %d\n", s.Skipped)
	fmt.Fprintf(bw, "callers:          %d\n", s.Callers)
	fmt.Fprintf(bw, "edges:            %d\n", s.Edges)
	fmt.Fprintf(bw, "distinct callees: %d\n", s.DistinctCallees)
	writeRanking(bw, "top callers", s.TopCallers)
	writeRanking(bw, "top callees", s.TopCallees)
	writeRanking(bw, "top classes", s.TopOwners)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("report: write stats: %w", err)
	}
	return nil
}

func writeRanking(w io.Writer, title string, entries []NameCount) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, e := range entries {
		fmt.Fprintf(w, "  %6d  %s\n", e.Count, e.Name)
	}
}
