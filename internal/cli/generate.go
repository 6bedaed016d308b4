package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/contractweave/internal/aspect"
	"github.com/roach88/contractweave/internal/ir"
	"github.com/roach88/contractweave/internal/registry"
	"github.com/roach88/contractweave/internal/synth"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	OutputDir string
}

// GeneratedFile is one written guard source.
type GeneratedFile struct {
	Aspect string `json:"aspect"`
	Unit   string `json:"unit"`
	Path   string `json:"path"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [aspects-dir]",
		Short: "Write the synthesized guard source of every aspect",
		Long: `Resolve every aspect against the built-in types and write the guard unit
source it synthesizes, one <import path>/<pkg>-<Guard>_generated.go file per aspect.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			out := opts.OutputDir
			if out == "" {
				out = e.cfg.SourceDir
			}
			if out == "" {
				out = "."
			}
			return runGenerate(e, e.aspectsDir(args), out)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "output directory (default: config source_dir or .)")
	return cmd
}

func runGenerate(e *env, dir, out string) error {
	result, err := e.loadAspects(dir, aspect.LoadModeFailFast)
	if err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "build registry", err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		_ = e.formatter.Error(aspect.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "create output directory", err)
	}

	files := make([]GeneratedFile, 0, len(result.Requests))
	for _, req := range result.Requests {
		src, err := synthesize(reg, req)
		if err != nil {
			_ = e.formatter.Error(errorCode(err), err.Error(), nil)
			return WrapExitError(ExitFailure, "generate "+req.GuardClassName, err)
		}
		path := filepath.Join(out, src.RelPath())
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			_ = e.formatter.Error(aspect.ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "create output directory", err)
		}
		if err := os.WriteFile(path, src.Text, 0o644); err != nil {
			_ = e.formatter.Error(aspect.ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write "+path, err)
		}
		e.formatter.VerboseLog("Wrote %s", path)
		files = append(files, GeneratedFile{Aspect: req.GuardClassName, Unit: src.UnitName, Path: path})
	}

	if e.formatter.JSON() {
		return e.formatter.Success(files)
	}
	for _, f := range files {
		e.formatter.Textf("%s -> %s", f.Aspect, f.Path)
	}
	return nil
}

// synthesize resolves req and synthesizes its guard source.
func synthesize(reg *registry.Registry, req ir.AspectRequest) (*synth.Source, error) {
	entry, err := reg.Resolve(req.ContextTypeName)
	if err != nil {
		return nil, ir.NewResolutionError(req.GuardClassName, fmt.Sprintf("context type: %v", err))
	}
	return synth.Generate(synth.Request{
		Spec:         ir.NewAspectSpec(req, entry.Type),
		ParamNames:   entry.ParamNames(req.HookedMethodName),
		PackageNames: reg.PackageNameOf,
	})
}
