package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zboralski/lattice"
	latticerender "github.com/zboralski/lattice/render"

	"jarcalls/internal/bytecode"
	"jarcalls/internal/callgraph"
	"jarcalls/internal/extract"
	"jarcalls/internal/facts"
	"jarcalls/internal/output"
	"jarcalls/internal/render"
)

// RunCFG writes one control-flow graph per method body to <out>/cfg.
func RunCFG(cmd *cobra.Command, args []string) error {
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
	filter, err := OptionalStringFlag(cmd, "method")
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	asm, err := flags.GetBool("asm")
	if err != nil {
		return err
	}
	minBlocks, err := flags.GetInt("min-blocks")
	if err != nil {
		return err
	}
	svg, err := flags.GetBool("svg")
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

	files := make(map[string]int)
	count := 0
	for _, body := range res.Bodies {
		if len(body.Insts) == 0 {
			continue
		}
		name := rc.opts.Naming.Name(body.Decl)
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		calls := siteCallees(body, rc.opts.Naming)

		var dot string
		if asm {
			bcfg := bytecode.BuildCFG(name, body.Insts)
			if len(bcfg.Blocks) < minBlocks {
				continue
			}
			dot = render.CFGDOT(bcfg, calls, render.NASA)
		} else {
			fc, blocks := callgraph.MethodCFG(name, body.Insts, calls)
			if blocks < minBlocks {
				continue
			}
			dot = latticerender.DOTCFG(&lattice.CFGGraph{Funcs: []*lattice.FuncCFG{fc}}, name)
		}

		// Overloads share a name under short naming.
		file := render.SafeFilename(name)
		files[file]++
		if n := files[file]; n > 1 {
			file = fmt.Sprintf("%s_%d", file, n)
		}
		path, err := output.WriteCFG(outDir, file, dot)
		if err != nil {
			return err
		}
		if svg {
			if _, err := output.SVG(path); err != nil {
				rc.log.Warn("cfg.svg", "method", name, "err", err)
			}
		}
		count++
	}
	rc.log.Info("cfg.written", "methods", count, "dir", outDir)
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d CFGs to %s/cfg\n", count, outDir)
	return nil
}

// siteCallees maps each call offset of body to its rendered targets.
func siteCallees(body extract.Body, naming facts.Naming) map[int][]string {
	calls := make(map[int][]string, len(body.Sites))
	for _, s := range body.Sites {
		names := make([]string, 0, len(s.Callees))
		for _, c := range s.Callees {
			names = append(names, naming.Name(c))
		}
		calls[s.Offset] = names
	}
	return calls
}
