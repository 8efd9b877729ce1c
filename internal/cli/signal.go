package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jarcalls/internal/output"
	"jarcalls/internal/render"
	"jarcalls/internal/signal"
)

// RunSignal lists methods that call sensitive platform APIs.
func RunSignal(cmd *cobra.Command, args []string) error {
	rc, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	defer rc.cleanup()

	flags := cmd.Flags()
	hops, err := flags.GetInt("hops")
	if err != nil {
		return err
	}
	asJSON, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	outDir, err := OptionalStringFlag(cmd, "out")
	if err != nil {
		return err
	}
	title, err := OptionalStringFlag(cmd, "title")
	if err != nil {
		return err
	}
	if title == "" {
		title = defaultTitle(args[0]) + " (signal)"
	}

	res, err := rc.analyze(cmd, args[0])
	if err != nil {
		return err
	}
	g := signal.Build(res.Edges, res.Model.Declarations(), signal.Options{Hops: hops, Naming: rc.opts.Naming})
	rc.log.Info("signal.built", "signal", g.Stats.SignalFuncs, "context", g.Stats.ContextFuncs)

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", outDir, err)
		}
		if _, err := output.WriteJSON(outDir, "signal", g); err != nil {
			return err
		}
		if _, err := output.WriteDOT(outDir, "signal", render.SignalDOT(g, title, render.NASA)); err != nil {
			return err
		}
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(g)
	}
	return writeSignalText(cmd, g)
}

func writeSignalText(cmd *cobra.Command, g *signal.Graph) error {
	w := bufio.NewWriter(cmd.OutOrStdout())
	for _, f := range g.Funcs {
		if f.Role != signal.RoleSignal {
			continue
		}
		fmt.Fprintf(w, "%-6s  %s [%s]\n", f.Severity, f.Name, strings.Join(f.Categories, ","))
		for _, api := range f.APIs {
			fmt.Fprintf(w, "        -> %s\n", api)
		}
	}
	return w.Flush()
}
