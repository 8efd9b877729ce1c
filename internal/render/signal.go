package render

import (
	"fmt"
	"sort"
	"strings"

	"jarcalls/internal/signal"
)

// Severity fill, border and text colors for signal methods.
var severityStyle = map[string]string{
	signal.SeverityHigh:   `fillcolor="#FCE4EC", color="#C62828", penwidth=1.5, fontcolor="#C62828"`,
	signal.SeverityMedium: `fillcolor="#FFF3E0", color="#E65100", penwidth=1.2, fontcolor="#E65100"`,
	signal.SeverityLow:    `fillcolor="#E3F2FD", color="#1565C0", penwidth=1.0`,
}

// SignalDOT renders a signal graph: signal methods colored by severity,
// context methods in gray, and the sensitive APIs they call as leaf nodes.
func SignalDOT(g *signal.Graph, title string, t Theme) string {
	var b strings.Builder
	writeHeader(&b, "signal", title, t, "shape=rect, style=filled, fontsize=9, height=0.3, margin=\"0.10,0.05\"")

	byOwner := make(map[string][]signal.Func)
	var owners []string
	for _, f := range g.Funcs {
		if _, ok := byOwner[f.Owner]; !ok {
			owners = append(owners, f.Owner)
		}
		byOwner[f.Owner] = append(byOwner[f.Owner], f)
	}
	sort.Strings(owners)

	writeNode := func(indent string, f signal.Func) {
		label := truncLabel(stripMethodName(f.Name, f.Owner), 40)
		var attrs string
		switch {
		case f.Role == signal.RoleSignal:
			attrs = ", " + severityStyle[f.Severity]
			if len(f.Categories) > 0 {
				label += "\n" + truncLabel(strings.Join(f.Categories, ","), 30)
			}
		case f.IsEntryPoint:
			attrs = fmt.Sprintf(", penwidth=1.2, color=%q", t.EntryBorder)
		default:
			attrs = `, fillcolor="#F5F5F5", color="#BDBDBD", fontcolor="#757575"`
		}
		fmt.Fprintf(&b, "%s%s [label=%q, tooltip=%q%s];\n", indent, dotID(f.Name), label, f.Name, attrs)
	}

	for _, owner := range owners {
		funcs := byOwner[owner]
		sort.Slice(funcs, func(i, j int) bool { return funcs[i].Name < funcs[j].Name })
		if owner == "" {
			for _, f := range funcs {
				writeNode("  ", f)
			}
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s {\n", "cluster_"+dotID(owner))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n", t.ClusterLabel, dotEscape(owner))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, f := range funcs {
			writeNode("    ", f)
		}
		b.WriteString("  }\n")
	}

	apis := make(map[string]bool)
	for _, e := range g.Edges {
		if e.Sensitive && !apis[e.To] {
			apis[e.To] = true
		}
	}
	if len(apis) > 0 {
		b.WriteString("\n  // Sensitive APIs\n")
		for _, api := range sortedSet(apis) {
			fmt.Fprintf(&b, "  %s [label=%q, shape=rect, style=\"filled,rounded\", fillcolor=\"#FFF8E1\", color=%q, fontcolor=%q, fontsize=7, fontname=\"Courier,monospace\", height=0.2];\n",
				apiID(api), truncLabel(api, 60), t.EdgeExternal, t.EdgeExternal)
		}
	}
	b.WriteByte('\n')

	for _, e := range g.Edges {
		if e.Sensitive {
			fmt.Fprintf(&b, "  %s -> %s [style=dashed, penwidth=0.6, color=%q];\n", dotID(e.From), apiID(e.To), t.EdgeExternal)
			continue
		}
		fmt.Fprintf(&b, "  %s -> %s [color=%q];\n", dotID(e.From), dotID(e.To), t.EdgeDirect)
	}

	b.WriteString("}\n")
	return b.String()
}

// apiID keeps API leaves apart from method nodes of the same name.
func apiID(name string) string {
	return "api_" + dotID(name)
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
