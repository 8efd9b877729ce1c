package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"jarcalls/internal/pipeline"
	"jarcalls/internal/report"
)

// RunCalls prints the call adjacency of one artifact. Nothing is written
// to stdout unless every stage succeeds.
func RunCalls(cmd *cobra.Command, args []string) error {
	rc, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	defer rc.cleanup()

	title, err := OptionalStringFlag(cmd, "title")
	if err != nil {
		return err
	}
	if title == "" {
		title = defaultTitle(args[0])
	}
	rc.opts.Title = title

	r, err := pipeline.New(rc.opts)
	if err != nil {
		return err
	}
	res, err := r.Run(commandContext(cmd), args[0], cmd.OutOrStdout())
	if err != nil {
		return err
	}
	rc.printWarnings(cmd.ErrOrStderr(), res.Report)
	return nil
}

func RunStats(cmd *cobra.Command, args []string) error {
	rc, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	defer rc.cleanup()

	top, err := cmd.Flags().GetInt("top")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	res, err := rc.analyze(cmd, args[0])
	if err != nil {
		return err
	}
	stats := report.ComputeStats(res.Adjacency, res.Report, top)
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	return report.WriteStats(cmd.OutOrStdout(), stats)
}

func RunUnused(cmd *cobra.Command, args []string) error {
	rc, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	defer rc.cleanup()

	res, err := rc.analyze(cmd, args[0])
	if err != nil {
		return err
	}
	names, err := report.Unreferenced(res.Model, rc.opts.Naming)
	if err != nil {
		return err
	}
	return report.WriteList(cmd.OutOrStdout(), names)
}
