package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/contractweave/internal/aspect"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Aspects []string `json:"aspects"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [aspects-dir]",
		Short: "Validate aspect definitions without weaving",
		Long: `Validate CUE aspect definitions without resolving types or compiling guards.

Checks required fields, identifier names and predicate syntax, reporting every
problem found. Use check to also resolve and compile the aspects.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return runValidate(e, e.aspectsDir(args))
		},
	}
	return cmd
}

func runValidate(e *env, dir string) error {
	result, err := e.loadAspects(dir, aspect.LoadModeCollectAll)
	if err != nil {
		return err
	}

	names := make([]string, len(result.Requests))
	for i, r := range result.Requests {
		names[i] = r.GuardClassName
	}
	if e.formatter.JSON() {
		return e.formatter.Success(ValidationResult{Valid: true, Aspects: names})
	}
	e.formatter.Textf("✓ %d aspect(s) valid", len(names))
	return nil
}
