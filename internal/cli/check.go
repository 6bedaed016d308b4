package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/contractweave/internal/aspect"
	"github.com/roach88/contractweave/internal/compiler"
	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/patch"
	"github.com/roach88/contractweave/internal/report"
	"github.com/roach88/contractweave/internal/weave"
)

// Weave error codes reported by check and demo.
const (
	ErrCodeSynthesis    = "E201"
	ErrCodeCompilation  = "E202"
	ErrCodeResolution   = "E203"
	ErrCodeInstallation = "E204"
)

// errorCode maps a weave error to its code.
func errorCode(err error) string {
	var we *ir.WeaveError
	if !errors.As(err, &we) {
		return aspect.ErrCodeGeneric
	}
	switch we.Kind {
	case ir.KindSynthesis:
		return ErrCodeSynthesis
	case ir.KindCompilation:
		return ErrCodeCompilation
	case ir.KindResolution:
		return ErrCodeResolution
	case ir.KindInstallation:
		return ErrCodeInstallation
	}
	return aspect.ErrCodeGeneric
}

// CheckResult is the outcome of weaving one aspect.
type CheckResult struct {
	Aspect      string   `json:"aspect"`
	Unit        string   `json:"unit,omitempty"`
	OK          bool     `json:"ok"`
	Code        string   `json:"code,omitempty"`
	Error       string   `json:"error,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [aspects-dir]",
		Short: "Weave every aspect into a scratch runtime",
		Long: `Resolve, synthesize, compile and install every aspect against the built-in
types without running anything. Every aspect is checked; the command fails if
any aspect does not weave.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), e, e.aspectsDir(args))
		},
	}
	return cmd
}

func runCheck(ctx context.Context, e *env, dir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := e.loadAspects(dir, aspect.LoadModeCollectAll)
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "build registry", err)
	}

	opts := weave.Options{
		Registry: reg,
		Host:     patch.NewRuntime(e.logger),
		Compiler: compiler.New(compiler.Options{SourceDir: e.cfg.SourceDir, Logger: e.logger}),
		Reporter: report.New(report.Options{DisableFile: true, Logger: e.logger}),
		Logger:   e.logger,
	}

	results := make([]CheckResult, 0, len(result.Requests))
	failed := 0
	for _, req := range result.Requests {
		e.formatter.VerboseLog("Weaving %s (%s.%s)", req.GuardClassName, req.ContextTypeName, req.HookedMethodName)
		res := CheckResult{Aspect: req.GuardClassName}
		s, err := weave.New(ctx, req, opts)
		if err == nil {
			res.Unit = s.Unit().Name()
			err = s.InvokeApply(ctx)
		}
		if err != nil {
			failed++
			res.Code = errorCode(err)
			res.Error = err.Error()
			var we *ir.WeaveError
			if errors.As(err, &we) {
				res.Diagnostics = we.Diagnostics
			}
		} else {
			res.OK = true
		}
		results = append(results, res)
	}

	if failed > 0 {
		msg := "aspect(s) failed to weave"
		if e.formatter.JSON() {
			_ = e.formatter.Failure(firstCode(results), msg, results)
		} else {
			printCheckResults(e.formatter, results)
		}
		return NewExitError(ExitFailure, msg)
	}

	if e.formatter.JSON() {
		return e.formatter.Success(results)
	}
	printCheckResults(e.formatter, results)
	return nil
}

func firstCode(results []CheckResult) string {
	for _, r := range results {
		if !r.OK {
			return r.Code
		}
	}
	return ""
}

func printCheckResults(f *OutputFormatter, results []CheckResult) {
	for _, r := range results {
		if r.OK {
			f.Textf("✓ %s (%s)", r.Aspect, r.Unit)
			continue
		}
		f.Textf("✗ %s %s: %s", r.Aspect, r.Code, r.Error)
	}
}
