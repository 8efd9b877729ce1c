// Package pipeline runs one analysis end to end: load an artifact, build
// the fact model, project invocation edges, aggregate them per caller and
// report. A Runner is one-shot and moves through its stages in order.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"jarcalls/internal/artifact"
	"jarcalls/internal/callgraph"
	"jarcalls/internal/extract"
	"jarcalls/internal/facts"
	"jarcalls/internal/report"
)

// Stage is a pipeline state.
type Stage int

const (
	StageIdle Stage = iota
	StageLoading
	StageBuilding
	StageProjecting
	StageAggregating
	StageReporting
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageIdle:        "idle",
	StageLoading:     "loading",
	StageBuilding:    "building",
	StageProjecting:  "projecting",
	StageAggregating: "aggregating",
	StageReporting:   "reporting",
	StageDone:        "done",
	StageFailed:      "failed",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ErrAlreadyRun is returned when a Runner is started a second time.
var ErrAlreadyRun = errors.New("pipeline: runner already used")

// StageError reports the stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options configures a Runner.
type Options struct {
	Artifact artifact.Options
	Extract  extract.Options
	Naming   facts.Naming
	Format   report.Format
	Title    string // graph label for report.FormatDOT
	Bodies   bool   // keep decoded method bodies in the Result
	Logger   *slog.Logger
}

// Result is the in-memory outcome of a run.
type Result struct {
	Source    string
	Model     *facts.Model
	Report    *extract.Report
	Edges     []callgraph.Edge
	Adjacency *callgraph.Adjacency
	Bodies    []extract.Body // only with Options.Bodies
}

// Runner executes one analysis.
type Runner struct {
	opts      Options
	log       *slog.Logger
	extractor *extract.Extractor

	mu    sync.Mutex
	stage Stage
}

// New validates opts and returns an idle Runner.
func New(opts Options) (*Runner, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Extract.Logger == nil {
		opts.Extract.Logger = log
	}
	x, err := extract.New(opts.Extract)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return &Runner{opts: opts, log: log, extractor: x}, nil
}

// Stage returns the current stage.
func (r *Runner) Stage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

func (r *Runner) enter(s Stage) {
	r.mu.Lock()
	r.stage = s
	r.mu.Unlock()
	r.log.Debug("pipeline.stage", "stage", s.String())
}

func (r *Runner) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stage != StageIdle {
		return ErrAlreadyRun
	}
	r.stage = StageLoading
	return nil
}

func (r *Runner) fail(s Stage, err error) error {
	r.enter(StageFailed)
	r.log.Error("pipeline.failed", "stage", s.String(), "err", err)
	return &StageError{Stage: s, Err: err}
}

// Analyze runs every stage up to aggregation and returns the result.
func (r *Runner) Analyze(ctx context.Context, ref string) (*Result, error) {
	if err := r.start(); err != nil {
		return nil, err
	}
	res, err := r.analyze(ctx, ref)
	if err != nil {
		return nil, err
	}
	r.enter(StageDone)
	return res, nil
}

// Run analyzes ref and writes the report to w. The report is buffered and
// written only once every stage has succeeded.
func (r *Runner) Run(ctx context.Context, ref string, w io.Writer) (*Result, error) {
	if err := r.start(); err != nil {
		return nil, err
	}
	res, err := r.analyze(ctx, ref)
	if err != nil {
		return nil, err
	}

	r.enter(StageReporting)
	var buf bytes.Buffer
	in := report.Input{
		Adjacency: res.Adjacency,
		Edges:     res.Edges,
		Naming:    r.opts.Naming,
		Title:     r.opts.Title,
	}
	if err := report.Write(&buf, r.opts.Format, in); err != nil {
		return nil, r.fail(StageReporting, err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return nil, r.fail(StageReporting, err)
	}
	r.enter(StageDone)
	return res, nil
}

func (r *Runner) analyze(ctx context.Context, ref string) (*Result, error) {
	begin := time.Now()
	r.log.Info("pipeline.start", "ref", ref)

	r.enter(StageLoading)
	src, err := artifact.Resolve(ctx, ref, r.opts.Artifact)
	if err != nil {
		return nil, r.fail(StageLoading, err)
	}
	defer src.Close()
	classes, err := src.Classes(ctx)
	if err != nil {
		return nil, r.fail(StageLoading, err)
	}
	r.log.Info("pipeline.loaded", "source", src.Name(), "classes", len(classes))

	r.enter(StageBuilding)
	res := &Result{Source: src.Name()}
	if r.opts.Bodies {
		res.Model, res.Bodies, res.Report, err = r.extractor.Bodies(ctx, classes)
	} else {
		res.Model, res.Report, err = r.extractor.Build(ctx, classes)
	}
	if err != nil {
		return nil, r.fail(StageBuilding, err)
	}

	r.enter(StageProjecting)
	if res.Edges, err = callgraph.Project(res.Model); err != nil {
		return nil, r.fail(StageProjecting, err)
	}

	r.enter(StageAggregating)
	res.Adjacency = callgraph.Aggregate(res.Edges, r.opts.Naming)

	r.log.Info("pipeline.done",
		"callers", res.Adjacency.Len(),
		"edges", res.Adjacency.EdgeCount(),
		"elapsed", time.Since(begin).Round(time.Millisecond))
	return res, nil
}
