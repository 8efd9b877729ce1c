package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"jarcalls/internal/classfmt"
	"jarcalls/internal/config"
	"jarcalls/internal/extract"
	"jarcalls/internal/facts"
	"jarcalls/internal/logging"
	"jarcalls/internal/pipeline"
	"jarcalls/internal/report"
)

// OptionalStringFlag returns the trimmed value of a flag, or "" when cmd
// does not define it.
func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

// settingFlag returns the flag value when it was given on the command line
// or the environment has nothing, and the environment value otherwise.
func settingFlag(cmd *cobra.Command, name, env string) (string, error) {
	if env != "" && !cmd.Flags().Changed(name) {
		return env, nil
	}
	return OptionalStringFlag(cmd, name)
}

// runConfig is everything a subcommand needs to start a pipeline.
type runConfig struct {
	opts     pipeline.Options
	log      *slog.Logger
	warnings bool
	cleanup  func()
}

func loadRunConfig(cmd *cobra.Command) (*runConfig, error) {
	envFile, err := OptionalStringFlag(cmd, "env-file")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()

	var opts pipeline.Options

	value, err := settingFlag(cmd, "dispatch", cfg.Dispatch)
	if err != nil {
		return nil, err
	}
	if opts.Extract.Dispatch, err = extract.ParseDispatch(value); err != nil {
		return nil, err
	}
	if value, err = settingFlag(cmd, "naming", cfg.Naming); err != nil {
		return nil, err
	}
	if opts.Naming, err = facts.ParseNaming(value); err != nil {
		return nil, err
	}
	if value, err = settingFlag(cmd, "format", cfg.Format); err != nil {
		return nil, err
	}
	if opts.Format, err = report.ParseFormat(value); err != nil {
		return nil, err
	}

	opts.Extract.Workers = cfg.Workers
	if flags.Changed("workers") {
		if opts.Extract.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	opts.Extract.MaxClassBytes = cfg.MaxClassBytes
	if flags.Changed("max-class-bytes") {
		if opts.Extract.MaxClassBytes, err = flags.GetInt64("max-class-bytes"); err != nil {
			return nil, err
		}
	}
	strict, err := flags.GetBool("strict")
	if err != nil {
		return nil, err
	}
	if strict {
		opts.Extract.Mode = classfmt.ModeStrict
	}

	exclude, err := flags.GetStringSlice("exclude")
	if err != nil {
		return nil, err
	}
	opts.Artifact.Exclude = slices.Concat(cfg.Exclude, exclude)
	if opts.Artifact.ExcludeFile, err = OptionalStringFlag(cmd, "exclude-file"); err != nil {
		return nil, err
	}
	if opts.Artifact.Nested, err = flags.GetBool("nested"); err != nil {
		return nil, err
	}
	if opts.Artifact.Versioned, err = flags.GetBool("versioned"); err != nil {
		return nil, err
	}
	opts.Artifact.S3 = cfg.S3.Bucket()

	log, cleanup, err := setupLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	opts.Logger = log

	warnings, err := flags.GetBool("warnings")
	if err != nil {
		cleanup()
		return nil, err
	}
	return &runConfig{opts: opts, log: log, warnings: warnings, cleanup: cleanup}, nil
}

func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func(), error) {
	value, err := settingFlag(cmd, "log-level", cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(value)
	if err != nil {
		return nil, nil, err
	}
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return nil, nil, err
	}
	asJSON = asJSON || cfg.LogJSON
	logFile, err := settingFlag(cmd, "log-file", cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return logging.Setup(cmd.ErrOrStderr(), logFile, level, asJSON)
}

// analyze runs the pipeline through aggregation.
func (rc *runConfig) analyze(cmd *cobra.Command, ref string) (*pipeline.Result, error) {
	r, err := pipeline.New(rc.opts)
	if err != nil {
		return nil, err
	}
	res, err := r.Analyze(commandContext(cmd), ref)
	if err != nil {
		return nil, err
	}
	rc.printWarnings(cmd.ErrOrStderr(), res.Report)
	return res, nil
}

func (rc *runConfig) printWarnings(w io.Writer, rep *extract.Report) {
	if rep == nil {
		return
	}
	diags := rep.Diags()
	if len(diags) == 0 {
		return
	}
	if !rc.warnings {
		rc.log.Warn("build.diagnostics", "count", len(diags), "skipped", len(rep.Skipped))
		return
	}
	for _, d := range diags {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// defaultTitle names an artifact by its base name.
func defaultTitle(ref string) string {
	ref = strings.TrimRight(ref, "/")
	if ref == "" {
		return "callgraph"
	}
	return filepath.Base(ref)
}
