package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/zboralski/lattice/render"

	"jarcalls/internal/callgraph"
	"jarcalls/internal/facts"
)

// EdgeRecord is one line of jsonl output.
type EdgeRecord struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	Site   string `json:"site"`
	Offset int    `json:"offset"`
	Line   int    `json:"line,omitempty"`
}

// Input is everything a report may draw on. Edges and Naming are only
// needed by FormatJSONL.
type Input struct {
	Adjacency *callgraph.Adjacency
	Edges     []callgraph.Edge
	Naming    facts.Naming
	Title     string // graph label for FormatDOT
}

// Write encodes in under format f.
func Write(w io.Writer, f Format, in Input) error {
	switch f {
	case FormatText:
		return WriteText(w, in.Adjacency)
	case FormatJSON:
		return WriteJSON(w, in.Adjacency)
	case FormatJSONL:
		return WriteJSONL(w, in.Edges, in.Naming)
	case FormatDOT:
		return WriteDOT(w, in.Adjacency, in.Title)
	}
	return fmt.Errorf("%w: %s", ErrBadFormat, f)
}

// WriteText writes one line per caller in lexicographic order:
//
//	caller -> [callee, callee]
//
// An empty adjacency writes nothing.
func WriteText(w io.Writer, adj *callgraph.Adjacency) error {
	bw := bufio.NewWriter(w)
	for _, caller := range adj.Callers() {
		fmt.Fprintf(bw, "%s -> [%s]\n", caller, strings.Join(adj.Callees(caller), ", "))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("report: write text: %w", err)
	}
	return nil
}

// WriteJSON writes the adjacency as one JSON object. Keys are sorted by
// encoding/json, which matches caller order.
func WriteJSON(w io.Writer, adj *callgraph.Adjacency) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(adj.Map()); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteJSONL writes one EdgeRecord per edge in projection order.
func WriteJSONL(w io.Writer, edges []callgraph.Edge, naming facts.Naming) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, e := range edges {
		rec := EdgeRecord{
			Caller: naming.Name(e.Caller),
			Callee: naming.Name(e.Callee),
			Site:   e.Site.String(),
			Offset: e.Offset(),
			Line:   e.Line(),
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("report: encode jsonl: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("report: write jsonl: %w", err)
	}
	return nil
}

// WriteDOT renders the adjacency as a Graphviz digraph.
func WriteDOT(w io.Writer, adj *callgraph.Adjacency, title string) error {
	if title == "" {
		title = "callgraph"
	}
	dot := render.DOT(callgraph.ToLattice(adj), title)
	if _, err := io.WriteString(w, dot); err != nil {
		return fmt.Errorf("report: write dot: %w", err)
	}
	return nil
}
