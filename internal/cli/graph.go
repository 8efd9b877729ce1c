package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"jarcalls/internal/output"
	"jarcalls/internal/render"
	"jarcalls/internal/report"
)

// RunGraph writes callgraph.dot, classgraph.dot, reachable.dot, build.json
// and index.html to --out.
func RunGraph(cmd *cobra.Command, args []string) error {
	rc, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	defer rc.cleanup()

	outDir, err := OptionalStringFlag(cmd, "out")
	if err != nil {
		return err
	}
	if outDir == "" {
		return fmt.Errorf("--out is required")
	}
	title, err := OptionalStringFlag(cmd, "title")
	if err != nil {
		return err
	}
	if title == "" {
		title = defaultTitle(args[0])
	}
	flags := cmd.Flags()
	entries, err := flags.GetStringSlice("entry")
	if err != nil {
		return err
	}
	maxNodes, err := flags.GetInt("max-nodes")
	if err != nil {
		return err
	}
	svg, err := flags.GetBool("svg")
	if err != nil {
		return err
	}
	dumpFacts, err := flags.GetBool("facts")
	if err != nil {
		return err
	}

	rc.opts.Bodies = true
	res, err := rc.analyze(cmd, args[0])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", outDir, err)
	}

	funcs, calls := render.Collect(res.Model, res.Bodies, rc.opts.Naming)
	if len(entries) == 0 {
		entries = render.FindEntryPoints(funcs, calls)
	} else {
		sort.Strings(entries)
	}
	reachable := render.ReachableSet(entries, calls)
	rc.log.Info("graph.reachability", "entries", len(entries), "reachable", len(reachable), "methods", len(funcs))

	graphs := []struct {
		name  string
		label string
		dot   string
	}{
		{"callgraph", "Call graph", render.CallgraphDOT(funcs, calls, title, render.NASA, maxNodes)},
		{"classgraph", "Class graph", render.ClassgraphDOT(funcs, calls, title+" (class level)", render.NASA, maxNodes)},
		{"reachable", "Reachable", render.ReachabilityDOT(funcs, calls, reachable, entries, title+" (reachable)", render.NASA)},
	}
	var links []render.Link
	for _, g := range graphs {
		path, err := output.WriteDOT(outDir, g.name, g.dot)
		if err != nil {
			return err
		}
		rc.log.Info("graph.written", "path", path, "bytes", len(g.dot))
		href := filepath.Base(path)
		if svg {
			if svgPath, err := output.SVG(path); err != nil {
				rc.log.Warn("graph.svg", "graph", g.name, "err", err)
			} else {
				href = filepath.Base(svgPath)
			}
		}
		links = append(links, render.Link{Href: href, Label: g.label})
	}

	if _, err := output.WriteBuildJSON(outDir, res.Report); err != nil {
		return err
	}
	if dumpFacts {
		if _, err := output.WriteFactsJSON(outDir, res.Source, res.Model); err != nil {
			return err
		}
		links = append(links, render.Link{Href: "facts.json", Label: "Fact model"})
	}
	links = append(links, render.Link{Href: "build.json", Label: "Build report"})

	idx := render.Index{
		Title:     title,
		Stats:     report.ComputeStats(res.Adjacency, res.Report, report.DefaultTopN),
		Prov:      render.ProvCounts(calls),
		Entries:   entries,
		Reachable: len(reachable),
		Graphs:    links,
	}
	htmlPath := filepath.Join(outDir, "index.html")
	f, err := os.Create(htmlPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", htmlPath, err)
	}
	if err := render.WriteIndexHTML(f, idx, render.NASA); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", htmlPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", htmlPath, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", htmlPath)
	return nil
}
