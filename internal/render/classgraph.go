package render

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

const unowned = "(unowned)"

// ClassgraphDOT renders a class-level call graph where each class is one
// node and edges aggregate inter-class calls. Classes outside the artifact
// are drawn with the abstract fill. maxNodes limits rendered classes
// (0 = all).
func ClassgraphDOT(funcs []Func, calls []Call, title string, t Theme, maxNodes int) string {
	funcOwner := make(map[string]string, len(funcs))
	methodCount := make(map[string]int)
	for _, f := range funcs {
		owner := f.Owner
		if owner == "" {
			owner = unowned
		}
		funcOwner[f.Name] = owner
		methodCount[owner]++
	}
	ownerOf := func(name string) (string, bool) {
		if o, ok := funcOwner[name]; ok {
			return o, true
		}
		if o := ownerName(name); o != "" {
			return o, false
		}
		return unowned, false
	}

	type classEdge struct{ from, to string }
	classCounts := make(map[classEdge]int)
	external := make(map[string]bool)
	for _, c := range calls {
		src, _ := ownerOf(c.From)
		dst, known := ownerOf(c.To)
		if src == dst {
			continue
		}
		if !known {
			external[dst] = true
		}
		classCounts[classEdge{src, dst}]++
	}

	involvement := make(map[string]int)
	for ce, n := range classCounts {
		involvement[ce.from] += n
		involvement[ce.to] += n
	}
	type rankedClass struct {
		name        string
		involvement int
	}
	ranked := make([]rankedClass, 0, len(involvement))
	for name, inv := range involvement {
		ranked = append(ranked, rankedClass{name, inv})
	}
	slices.SortFunc(ranked, func(a, b rankedClass) int {
		if c := cmp.Compare(b.involvement, a.involvement); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	if maxNodes > 0 && len(ranked) > maxNodes {
		ranked = ranked[:maxNodes]
	}
	renderSet := make(map[string]bool, len(ranked))
	maxMethods := 1
	for _, rc := range ranked {
		renderSet[rc.name] = true
		if n := methodCount[rc.name]; n > maxMethods {
			maxMethods = n
		}
	}

	var b strings.Builder
	writeHeader(&b, "classgraph", title, t, "shape=rect, style=\"filled,rounded\", fontsize=10, height=0.4, margin=\"0.15,0.08\"")

	for _, rc := range ranked {
		methods := methodCount[rc.name]
		// Scale node height by method count (log scale).
		height := 0.4 + 0.3*math.Log2(float64(methods)+1)/math.Log2(float64(maxMethods)+1)
		sub := fmt.Sprintf("%d methods", methods)
		if external[rc.name] {
			sub = "external"
		}
		label := fmt.Sprintf("<<font point-size=\"10\">%s</font><br/><font point-size=\"7\" color=\"%s\">%s</font>>",
			dotEscape(rc.name), t.ExternalText, sub)
		if external[rc.name] || rc.name == unowned {
			fmt.Fprintf(&b, "  %s [label=%s, fillcolor=%q, height=%.2f];\n", dotID(rc.name), label, t.AbstractFill, height)
		} else {
			fmt.Fprintf(&b, "  %s [label=%s, height=%.2f];\n", dotID(rc.name), label, height)
		}
	}
	b.WriteByte('\n')

	edges := make([]classEdge, 0, len(classCounts))
	maxEdge := 1
	for ce, n := range classCounts {
		if !renderSet[ce.from] || !renderSet[ce.to] {
			continue
		}
		edges = append(edges, ce)
		if n > maxEdge {
			maxEdge = n
		}
	}
	slices.SortFunc(edges, func(a, b classEdge) int {
		if c := cmp.Compare(a.from, b.from); c != 0 {
			return c
		}
		return cmp.Compare(a.to, b.to)
	})
	for _, ce := range edges {
		n := classCounts[ce]
		color := t.EdgeDirect
		if external[ce.to] {
			color = t.EdgeExternal
		}
		pw := 0.5 + 2.0*math.Log2(float64(n)+1)/math.Log2(float64(maxEdge)+1)
		attrs := fmt.Sprintf("color=%q, penwidth=%.1f", color, pw)
		if n > 1 {
			attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%d</font>>", t.ExternalText, n)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(ce.from), dotID(ce.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
