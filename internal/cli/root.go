// Package cli implements the jarcalls command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"jarcalls/internal/report"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jarcalls [jar|dir|s3://bucket/prefix]",
		Short: "Extract method call graphs from compiled JVM artifacts",
		Long: `jarcalls reads the class files of a jar, a directory or an object store
prefix, builds a fact model of declarations and invocations, and prints
the caller -> callees adjacency of every method that calls something.

With a single argument and no subcommand it behaves like "jarcalls calls".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return RunCalls(cmd, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("format", report.FormatText.String(), "Output format: text|json|jsonl|dot")
	pf.String("naming", "short", "Method identity: short|signature|uri")
	pf.String("dispatch", "declared", "Virtual call targets: declared|overrides")
	pf.Int("workers", 0, "Class decoding workers (0 = one per CPU)")
	pf.StringSlice("exclude", nil, "Gitignore-style patterns of entries to skip")
	pf.String("exclude-file", "", "File of additional exclude patterns")
	pf.Bool("nested", false, "Descend into BOOT-INF/lib and WEB-INF/lib jars")
	pf.Bool("versioned", false, "Include META-INF/versions/N entries")
	pf.Int64("max-class-bytes", 0, "Skip class files larger than this (0 = no cap)")
	pf.Bool("strict", false, "Fail on the first class that does not decode")
	pf.Bool("warnings", false, "Print skipped classes and decode warnings after the report")
	pf.String("log-level", "warn", "Log level: debug|info|warn|error")
	pf.Bool("log-json", false, "Write logs as JSON lines")
	pf.String("log-file", "", "Also append JSON logs to this file")
	pf.String("env-file", "", "Environment file to load (default .env if present)")

	callsCmd := &cobra.Command{
		Use:   "calls <ref>",
		Short: "Print caller -> callees lines",
		Args:  cobra.ExactArgs(1),
		RunE:  RunCalls,
	}
	callsCmd.Flags().String("title", "", "Graph label for --format dot (default: artifact name)")

	statsCmd := &cobra.Command{
		Use:   "stats <ref>",
		Short: "Print call graph statistics",
		Args:  cobra.ExactArgs(1),
		RunE:  RunStats,
	}
	statsCmd.Flags().Int("top", report.DefaultTopN, "Entries per ranking")
	statsCmd.Flags().Bool("json", false, "Print statistics as JSON")

	unusedCmd := &cobra.Command{
		Use:   "unused <ref>",
		Short: "List declared methods that nothing in the artifact calls",
		Args:  cobra.ExactArgs(1),
		RunE:  RunUnused,
	}

	cfgCmd := &cobra.Command{
		Use:   "cfg <ref>",
		Short: "Write per-method control-flow graphs as DOT files",
		Args:  cobra.ExactArgs(1),
		RunE:  RunCFG,
	}
	cfgCmd.Flags().String("out", "", "Output directory (required)")
	cfgCmd.Flags().String("method", "", "Only methods whose name contains this string")
	cfgCmd.Flags().Bool("asm", false, "Label blocks with instructions instead of calls")
	cfgCmd.Flags().Int("min-blocks", 1, "Skip methods with fewer basic blocks")
	cfgCmd.Flags().Bool("svg", false, "Render SVGs with Graphviz dot")
	_ = cfgCmd.MarkFlagRequired("out")

	graphCmd := &cobra.Command{
		Use:   "graph <ref>",
		Short: "Write call, class and reachability graphs with an HTML index",
		Args:  cobra.ExactArgs(1),
		RunE:  RunGraph,
	}
	graphCmd.Flags().String("out", "", "Output directory (required)")
	graphCmd.Flags().String("title", "", "Graph and page title (default: artifact name)")
	graphCmd.Flags().StringSlice("entry", nil, "Entry methods for reachability (default: methods nothing calls)")
	graphCmd.Flags().Int("max-nodes", 0, "Max method nodes in the call graph (0 = all)")
	graphCmd.Flags().Bool("svg", false, "Render SVGs with Graphviz dot")
	graphCmd.Flags().Bool("facts", false, "Also dump the fact model to facts.json")
	_ = graphCmd.MarkFlagRequired("out")

	signalCmd := &cobra.Command{
		Use:   "signal <ref>",
		Short: "List methods that call network, crypto, process or reflection APIs",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSignal,
	}
	signalCmd.Flags().Int("hops", 1, "Context hops around each signal method")
	signalCmd.Flags().Bool("json", false, "Print the signal graph as JSON")
	signalCmd.Flags().String("out", "", "Also write signal.json and signal.dot here")
	signalCmd.Flags().String("title", "", "Graph title (default: artifact name)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jarcalls %s\n", version)
		},
	}

	rootCmd.AddCommand(
		callsCmd,
		statsCmd,
		unusedCmd,
		cfgCmd,
		graphCmd,
		signalCmd,
		versionCmd,
	)

	return rootCmd
}
