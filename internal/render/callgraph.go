package render

import (
	"fmt"
	"sort"
	"strings"
)

type callKey struct {
	from, to, prov string
}

// dedupCalls collapses repeated calls, keeping first-seen order.
func dedupCalls(calls []Call) ([]callKey, map[callKey]int) {
	counts := make(map[callKey]int)
	var order []callKey
	for _, c := range calls {
		if c.From == "" || c.To == "" {
			continue
		}
		k := callKey{c.From, c.To, c.Prov}
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	return order, counts
}

// CallgraphDOT renders a method-level call graph as DOT. Methods are
// clustered by declaring class; targets outside the artifact are shown as
// plaintext nodes. maxNodes limits the number of method nodes rendered
// (0 = all).
func CallgraphDOT(funcs []Func, calls []Call, title string, t Theme, maxNodes int) string {
	order, counts := dedupCalls(calls)

	// Methods that take part in at least one call.
	refNodes := make(map[string]bool)
	for _, k := range order {
		refNodes[k.from] = true
		refNodes[k.to] = true
	}
	var renderFuncs []Func
	for _, f := range funcs {
		if refNodes[f.Name] {
			renderFuncs = append(renderFuncs, f)
		}
	}
	if maxNodes > 0 && len(renderFuncs) > maxNodes {
		renderFuncs = renderFuncs[:maxNodes]
	}
	funcSet := make(map[string]bool, len(renderFuncs))
	for _, f := range renderFuncs {
		funcSet[f.Name] = true
	}

	// External nodes are targets of rendered methods that are not rendered
	// themselves.
	var externals []string
	externalSet := make(map[string]bool)
	for _, k := range order {
		if funcSet[k.from] && !funcSet[k.to] && !externalSet[k.to] {
			externalSet[k.to] = true
			externals = append(externals, k.to)
		}
	}
	sort.Strings(externals)

	ownerFuncs := make(map[string][]Func)
	var owners []string
	var loose []Func
	for _, f := range renderFuncs {
		if f.Owner == "" {
			loose = append(loose, f)
			continue
		}
		if _, ok := ownerFuncs[f.Owner]; !ok {
			owners = append(owners, f.Owner)
		}
		ownerFuncs[f.Owner] = append(ownerFuncs[f.Owner], f)
	}
	sort.Strings(owners)

	var b strings.Builder
	writeHeader(&b, "callgraph", title, t, "shape=rect, style=filled, fontsize=9, height=0.3, margin=\"0.12,0.06\"")

	writeFunc := func(indent string, f Func, label string) {
		if f.Abstract {
			fmt.Fprintf(&b, "%s%s [label=%q, fillcolor=%q, style=\"filled,dashed\"];\n", indent, dotID(f.Name), label, t.AbstractFill)
		} else {
			fmt.Fprintf(&b, "%s%s [label=%q];\n", indent, dotID(f.Name), label)
		}
	}

	for _, owner := range owners {
		members := ownerFuncs[owner]
		if len(members) < 2 {
			// Singletons go at top level.
			loose = append(loose, members...)
			continue
		}
		fmt.Fprintf(&b, "  subgraph cluster_%s {\n", dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(owner))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, f := range members {
			writeFunc("    ", f, truncLabel(stripMethodName(f.Name, owner), 50))
		}
		b.WriteString("  }\n")
	}
	for _, f := range loose {
		writeFunc("  ", f, truncLabel(f.Name, 60))
	}
	b.WriteByte('\n')

	for _, name := range externals {
		fmt.Fprintf(&b, "  %s [label=%q, shape=plaintext, style=\"\", fillcolor=none, fontcolor=%q, fontsize=8];\n",
			dotID(name), truncLabel(name, 50), t.ExternalText)
	}
	b.WriteByte('\n')

	for _, k := range order {
		if !funcSet[k.from] {
			continue
		}
		color := edgeColor(k.prov, t)
		attrs := fmt.Sprintf("color=%q, style=%q", color, edgeStyle(k.prov))
		if n := counts[k]; n > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(n)*0.1)
			if n > 2 {
				attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%dx</font>>", color, n)
			}
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
