package cli

import (
	"context"
	"io"
	"slices"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/contractweave/internal/aspect"
	"github.com/roach88/contractweave/internal/compiler"
	"github.com/roach88/contractweave/internal/demo"
	"github.com/roach88/contractweave/internal/patch"
	"github.com/roach88/contractweave/internal/report"
	"github.com/roach88/contractweave/internal/store"
	"github.com/roach88/contractweave/internal/weave"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	DBPath  string
	Metrics bool
}

// AspectSummary is the state of one woven aspect after the demo ran.
type AspectSummary struct {
	Aspect        string `json:"aspect"`
	Unit          string `json:"unit"`
	Session       string `json:"session"`
	PlanningError bool   `json:"planning_error"`
}

// DemoResult is the demo command's output.
type DemoResult struct {
	Steps    int             `json:"steps"`
	Aspects  []AspectSummary `json:"aspects"`
	Expected []string        `json:"expected_violations"`
	LogPath  string          `json:"log_path,omitempty"`
	DBPath   string          `json:"db_path,omitempty"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Weave the production-planning aspects and run the demo scenario",
		Long: `Weave the built-in production-planning aspects, then run a scenario in which
three calls break a contract. Violations are written to the violation log, the
console and, with --db, a SQLite database readable by the violations command.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			if opts.DBPath == "" {
				opts.DBPath = e.cfg.Store.Path
			}
			return runDemo(cmd.Context(), e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database for the journal and violations (default: config store.path)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print contractweave metrics after the run")
	return cmd
}

func runDemo(ctx context.Context, e *env, opts *DemoOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reqs, err := demo.Aspects()
	if err != nil {
		_ = e.formatter.Error(aspect.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load demo aspects", err)
	}
	reg, err := newRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "build registry", err)
	}

	var journal weave.Journal
	var sinks []report.Sink
	if opts.DBPath != "" {
		st, err := store.Open(opts.DBPath)
		if err != nil {
			_ = e.formatter.Error(aspect.ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "open database", err)
		}
		defer st.Close()
		journal = st
		sinks = append(sinks, st)
	}

	var console io.Writer
	if e.cfg.Report.Console {
		console = e.formatter.errWriter()
	}
	reporter := report.New(report.Options{
		LogPath:     e.cfg.Report.LogPath,
		DisableFile: e.cfg.Report.DisableFile,
		Console:     console,
		Sinks:       sinks,
		Logger:      e.logger,
	})

	rt := patch.NewRuntime(e.logger)
	sessions, err := weave.WeaveAll(ctx, reqs, weave.Options{
		Registry: reg,
		Host:     rt,
		Compiler: compiler.New(compiler.Options{SourceDir: e.cfg.SourceDir, Logger: e.logger}),
		Reporter: reporter,
		Journal:  journal,
		Logger:   e.logger,
	})
	if err != nil {
		_ = e.formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "weave demo aspects", err)
	}
	e.formatter.VerboseLog("Woven %d aspect(s)", len(sessions))

	steps := demo.Steps(demo.NewWorld())
	var trace io.Writer
	if e.formatter.Verbose {
		trace = e.formatter.errWriter()
	}
	if err := demo.Run(rt, steps, trace); err != nil {
		_ = e.formatter.Error(aspect.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "run demo scenario", err)
	}

	result := DemoResult{
		Steps:    len(steps),
		Expected: demo.ExpectedViolations(steps),
		LogPath:  reporter.LogPath(),
		DBPath:   opts.DBPath,
	}
	var tripped []string
	for _, s := range sessions {
		result.Aspects = append(result.Aspects, AspectSummary{
			Aspect:        s.Spec().GuardClassName,
			Unit:          s.Unit().Name(),
			Session:       s.ID(),
			PlanningError: s.HasPlanningError(),
		})
		if s.HasPlanningError() {
			tripped = append(tripped, s.Spec().GuardClassName)
		}
	}

	expected := slices.Clone(result.Expected)
	sort.Strings(expected)
	sort.Strings(tripped)
	ok := slices.Equal(expected, tripped)

	if e.formatter.JSON() {
		if !ok {
			_ = e.formatter.Failure(aspect.ErrCodeGeneric, "unexpected planning errors", result)
			return NewExitError(ExitFailure, "unexpected planning errors")
		}
		return e.formatter.Success(result)
	}

	e.formatter.Textf("Ran %d step(s) against %d aspect(s)", result.Steps, len(result.Aspects))
	for _, a := range result.Aspects {
		mark := "✓"
		if a.PlanningError {
			mark = "✗"
		}
		e.formatter.Textf("  %s %-14s %s", mark, a.Aspect, a.Unit)
	}
	if result.LogPath != "" {
		e.formatter.Textf("Violation log: %s", result.LogPath)
	}
	if opts.Metrics {
		if err := writeMetrics(e.formatter.Writer); err != nil {
			return WrapExitError(ExitCommandError, "gather metrics", err)
		}
	}
	if !ok {
		return NewExitError(ExitFailure, "unexpected planning errors")
	}
	return nil
}
