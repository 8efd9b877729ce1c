package render

import (
	"fmt"
	"sort"
	"strings"
)

// FindEntryPoints returns methods with code that no call in the artifact
// targets, sorted.
func FindEntryPoints(funcs []Func, calls []Call) []string {
	targeted := make(map[string]bool)
	for _, c := range calls {
		if c.From != c.To {
			targeted[c.To] = true
		}
	}
	var entries []string
	for _, f := range funcs {
		if f.Abstract || targeted[f.Name] {
			continue
		}
		entries = append(entries, f.Name)
	}
	sort.Strings(entries)
	return entries
}

// ReachableSet performs a BFS from entry points over calls and returns the
// set of reachable names, including targets outside the artifact.
func ReachableSet(entryPoints []string, calls []Call) map[string]bool {
	adj := make(map[string][]string)
	for _, c := range calls {
		adj[c.From] = append(adj[c.From], c.To)
	}

	reachable := make(map[string]bool)
	queue := make([]string, 0, len(entryPoints))
	for _, ep := range entryPoints {
		if !reachable[ep] {
			reachable[ep] = true
			queue = append(queue, ep)
		}
	}
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, target := range adj[fn] {
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}
	return reachable
}

// ReachabilityDOT renders the call graph restricted to the reachable set.
// Entry points are highlighted.
func ReachabilityDOT(funcs []Func, calls []Call, reachable map[string]bool, entryPoints []string, title string, t Theme) string {
	entrySet := make(map[string]bool, len(entryPoints))
	for _, ep := range entryPoints {
		entrySet[ep] = true
	}
	funcOwner := make(map[string]string, len(funcs))
	for _, f := range funcs {
		funcOwner[f.Name] = f.Owner
	}

	type edgeKey struct{ from, to string }
	edgeCount := make(map[edgeKey]int)
	var edges []edgeKey
	for _, c := range calls {
		if !reachable[c.From] || !reachable[c.To] {
			continue
		}
		k := edgeKey{c.From, c.To}
		if edgeCount[k] == 0 {
			edges = append(edges, k)
		}
		edgeCount[k]++
	}

	refNodes := make(map[string]bool)
	for _, k := range edges {
		refNodes[k.from] = true
		refNodes[k.to] = true
	}
	for _, ep := range entryPoints {
		refNodes[ep] = true
	}

	ownerFuncs := make(map[string][]string)
	var loose []string
	for name := range refNodes {
		if owner := funcOwner[name]; owner != "" {
			ownerFuncs[owner] = append(ownerFuncs[owner], name)
		} else {
			loose = append(loose, name)
		}
	}
	owners := make([]string, 0, len(ownerFuncs))
	for owner := range ownerFuncs {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var b strings.Builder
	writeHeader(&b, "reachable", title, t, "shape=rect, style=filled, fontsize=9, height=0.3, margin=\"0.12,0.06\"")

	writeNode := func(indent, name, label string) {
		_, declared := funcOwner[name]
		switch {
		case entrySet[name]:
			fmt.Fprintf(&b, "%s%s [label=%q, penwidth=1.5, color=%q];\n", indent, dotID(name), label, t.EntryBorder)
		case !declared:
			fmt.Fprintf(&b, "%s%s [label=%q, shape=plaintext, style=\"\", fontcolor=%q];\n", indent, dotID(name), label, t.ExternalText)
		default:
			fmt.Fprintf(&b, "%s%s [label=%q];\n", indent, dotID(name), label)
		}
	}

	for _, owner := range owners {
		names := ownerFuncs[owner]
		if len(names) < 2 {
			loose = append(loose, names...)
			continue
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "  subgraph cluster_%s {\n", dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.ClusterLabel, dotEscape(owner))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, name := range names {
			writeNode("    ", name, truncLabel(stripMethodName(name, owner), 50))
		}
		b.WriteString("  }\n")
	}
	sort.Strings(loose)
	for _, name := range loose {
		writeNode("  ", name, truncLabel(name, 50))
	}
	b.WriteByte('\n')

	for _, k := range edges {
		attrs := fmt.Sprintf("color=%q", t.EdgeDirect)
		if n := edgeCount[k]; n > 1 {
			attrs += fmt.Sprintf(", penwidth=%.1f", 0.5+float64(n)*0.1)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(k.from), dotID(k.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
