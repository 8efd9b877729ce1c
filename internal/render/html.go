package render

import (
	"fmt"
	"io"
	"strings"

	"jarcalls/internal/report"
)

// Index is the content of the HTML summary page.
type Index struct {
	Title     string
	Stats     report.Stats
	Prov      map[string]int // calls per provenance
	Entries   []string
	Reachable int
	Graphs    []Link
	CFGs      int // per-method CFG files written under cfg/
}

// Link is a generated file shown on the index page.
type Link struct {
	Href  string
	Label string
}

var provOrder = []string{ProvDirect, ProvVirtual, ProvOverride, ProvDynamic, ProvExternal}

var provLabels = map[string]string{
	ProvDirect:   "Static / special",
	ProvVirtual:  "Virtual / interface",
	ProvOverride: "Override (dispatch)",
	ProvDynamic:  "Invokedynamic",
	ProvExternal: "External target",
}

// WriteIndexHTML writes a small HTML page summarizing one analysis.
func WriteIndexHTML(w io.Writer, idx Index, t Theme) error {
	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; font-size: 14px; color: %s; background: %s; margin: 2em; max-width: 900px; }
h1 { font-size: 18px; font-weight: 600; margin-bottom: 0.5em; }
h2 { font-size: 14px; font-weight: 600; margin-top: 1.5em; border-bottom: 1px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; margin: 0.5em 0; }
th, td { text-align: left; padding: 3px 12px 3px 0; font-size: 13px; }
th { font-weight: 600; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.prov { display: inline-block; width: 10px; height: 10px; border-radius: 2px; margin-right: 4px; vertical-align: middle; }
a { color: %s; }
.bar { height: 8px; border-radius: 2px; display: inline-block; vertical-align: middle; }
.ep { font-family: "Courier New", monospace; font-size: 12px; }
</style>
</head>
<body>
`, htmlEscape(idx.Title), t.TextColor, t.Background, t.EntryBorder)
	fmt.Fprintf(&b, "<h1>%s</h1>\n", htmlEscape(idx.Title))

	s := idx.Stats
	b.WriteString("<h2>Summary</h2>\n<table>\n")
	row := func(label string, n int) {
		fmt.Fprintf(&b, "<tr><td>%s</td><td class=\"num\">%d</td></tr>\n", label, n)
	}
	row("Classes", s.Classes)
	row("Methods", s.Methods)
	row("Call sites", s.CallSites)
	row("Unresolved sites", s.Unresolved)
	row("Skipped classes", s.Skipped)
	row("Callers", s.Callers)
	row("Edges", s.Edges)
	row("Distinct callees", s.DistinctCallees)
	row("Entry points", len(idx.Entries))
	row("Reachable methods", idx.Reachable)
	if idx.CFGs > 0 {
		row("CFGs generated", idx.CFGs)
	}
	b.WriteString("</table>\n")

	total := 0
	for _, n := range idx.Prov {
		total += n
	}
	if total > 0 {
		b.WriteString("<h2>Edge Provenance</h2>\n<table>\n")
		b.WriteString("<tr><th></th><th>Category</th><th>Count</th><th></th></tr>\n")
		for _, prov := range provOrder {
			n := idx.Prov[prov]
			if n == 0 {
				continue
			}
			color := edgeColor(prov, t)
			barW := max(n*200/total, 2)
			fmt.Fprintf(&b, "<tr><td><span class=\"prov\" style=\"background:%s\"></span></td><td>%s</td><td class=\"num\">%d</td><td><span class=\"bar\" style=\"width:%dpx;background:%s\"></span></td></tr>\n",
				color, provLabels[prov], n, barW, color)
		}
		b.WriteString("</table>\n")
	}

	if len(idx.Graphs) > 0 || idx.CFGs > 0 {
		b.WriteString("<h2>Graphs</h2>\n<p>")
		links := make([]string, 0, len(idx.Graphs)+1)
		for _, l := range idx.Graphs {
			links = append(links, fmt.Sprintf(`<a href="%s">%s</a>`, htmlEscape(l.Href), htmlEscape(l.Label)))
		}
		if idx.CFGs > 0 {
			links = append(links, `<a href="cfg/">Per-method CFGs</a>`)
		}
		b.WriteString(strings.Join(links, " | "))
		b.WriteString("</p>\n")
	}

	if len(idx.Entries) > 0 {
		b.WriteString("<h2>Entry Points</h2>\n")
		fmt.Fprintf(&b, "<p>%d methods with no incoming call in the artifact:</p>\n<table>\n", len(idx.Entries))
		limit := min(len(idx.Entries), 50)
		for _, ep := range idx.Entries[:limit] {
			fmt.Fprintf(&b, "<tr><td class=\"ep\">%s</td></tr>\n", htmlEscape(ep))
		}
		if len(idx.Entries) > limit {
			fmt.Fprintf(&b, "<tr><td>... and %d more</td></tr>\n", len(idx.Entries)-limit)
		}
		b.WriteString("</table>\n")
	}

	ranking(&b, "Top Classes", "Callers", s.TopOwners)
	ranking(&b, "Top Callers", "Outgoing", s.TopCallers)
	ranking(&b, "Top Callees", "Incoming", s.TopCallees)

	b.WriteString("</body></html>\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func ranking(b *strings.Builder, title, column string, entries []report.NameCount) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "<h2>%s</h2>\n<table>\n<tr><th>Name</th><th>%s</th></tr>\n", title, column)
	for _, nc := range entries[:min(len(entries), 15)] {
		fmt.Fprintf(b, "<tr><td class=\"ep\">%s</td><td class=\"num\">%d</td></tr>\n", htmlEscape(nc.Name), nc.Count)
	}
	b.WriteString("</table>\n")
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// SafeFilename converts a method name to a file name usable on common
// file systems.
func SafeFilename(name string) string {
	r := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	s := r.Replace(name)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
