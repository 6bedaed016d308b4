package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/contractweave/internal/aspect"
	"github.com/roach88/contractweave/internal/store"
)

// ViolationsOptions holds flags for the violations command.
type ViolationsOptions struct {
	DBPath  string
	Aspect  string
	Limit   int
	Journal bool
}

// NewViolationsCommand creates the violations command.
func NewViolationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViolationsOptions{}

	cmd := &cobra.Command{
		Use:   "violations",
		Short: "List stored violations or the weaving journal",
		Long: `List the violation records stored by a previous run, oldest first.
With --journal, list the weaving session transitions instead.`,
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
			return runViolations(cmd.Context(), e, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database (default: config store.path)")
	cmd.Flags().StringVar(&opts.Aspect, "aspect", "", "only this aspect's violations")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of records (0 = all)")
	cmd.Flags().BoolVar(&opts.Journal, "journal", false, "list weaving transitions instead of violations")
	return cmd
}

func runViolations(ctx context.Context, e *env, opts *ViolationsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.DBPath == "" {
		_ = e.formatter.Error(aspect.ErrCodeNotFound, "no database: pass --db or set store.path", nil)
		return NewExitError(ExitCommandError, "no database")
	}
	if _, err := os.Stat(opts.DBPath); err != nil {
		_ = e.formatter.Error(aspect.ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		_ = e.formatter.Error(aspect.ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	if opts.Journal {
		records, err := st.ReadWeavings(ctx, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "read journal", err)
		}
		if e.formatter.JSON() {
			return e.formatter.Success(records)
		}
		for _, r := range records {
			e.formatter.Textf("%s %-14s %-12s %s.%s %s", r.SessionID, r.Guard, r.State, r.ContextType, r.Method, r.Detail)
		}
		return nil
	}

	records, err := st.ReadViolations(ctx, opts.Aspect, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "read violations", err)
	}
	if e.formatter.JSON() {
		return e.formatter.Success(records)
	}
	if len(records) == 0 {
		e.formatter.Textf("No violations recorded")
		return nil
	}
	burst := int64(-1)
	for _, r := range records {
		if r.Burst != burst {
			burst = r.Burst
			e.formatter.Textf("# burst %d aspect=%s phase=%s call=%d", r.Burst, r.Aspect, r.Phase, r.CallID)
		}
		e.formatter.Textf("%s", r.Message)
	}
	return nil
}
