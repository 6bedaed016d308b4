package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/contractweave/internal/aspect"
	"github.com/roach88/contractweave/internal/config"
	"github.com/roach88/contractweave/internal/demo"
	"github.com/roach88/contractweave/internal/logging"
	"github.com/roach88/contractweave/internal/registry"
)

// env is what every command needs besides its own flags.
type env struct {
	cfg       *config.Config
	logger    *zap.Logger
	formatter *OutputFormatter
}

func newEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			_ = formatter.Error(aspect.ErrCodeNotFound, err.Error(), nil)
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
	}

	logger, err := newLogger(cfg.Log, opts.Verbose, cmd)
	if err != nil {
		_ = formatter.Error(aspect.ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "init logger", err)
	}
	return &env{cfg: cfg, logger: logger, formatter: formatter}, nil
}

// newLogger writes console logs to the command's stderr and JSON logs to
// the process's stderr.
func newLogger(c config.LogConfig, verbose bool, cmd *cobra.Command) (*zap.Logger, error) {
	level := c.Level
	if verbose {
		level = "debug"
	}
	if c.Format == logging.FormatJSON {
		return logging.New(level, c.Format)
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return logging.NewWriter(cmd.ErrOrStderr(), lvl), nil
}

// aspectsDir returns the directory argument or the configured directory.
func (e *env) aspectsDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return e.cfg.AspectsDir
}

// loadAspects loads the aspects of dir and reports load failures.
func (e *env) loadAspects(dir string, mode aspect.LoadMode) (*aspect.LoadResult, error) {
	result, errs := aspect.Load(dir, mode)
	if len(errs) == 0 {
		e.formatter.VerboseLog("Found %d aspect(s) in %d CUE file(s) in %s", len(result.Requests), result.FileCount, dir)
		return result, nil
	}

	var loadErr *aspect.LoadError
	if result == nil {
		if errors.As(errs[0], &loadErr) {
			_ = e.formatter.Error(loadErr.Code, loadErr.Message, nil)
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
		}
		_ = e.formatter.Error(aspect.ErrCodeGeneric, errs[0].Error(), nil)
		return nil, WrapExitError(ExitCommandError, "load aspects", errs[0])
	}

	problems := make([]string, len(errs))
	for i, err := range errs {
		problems[i] = err.Error()
	}
	code := aspect.ErrCodeGeneric
	if errors.As(errs[0], &loadErr) {
		code = loadErr.Code
	}
	if e.formatter.JSON() {
		_ = e.formatter.Failure(code, fmt.Sprintf("%d aspect error(s)", len(errs)), problems)
	} else {
		e.formatter.Textf("✗ Aspect definitions invalid")
		for _, p := range problems {
			e.formatter.Textf("  %s", p)
		}
	}
	return nil, NewExitError(ExitFailure, fmt.Sprintf("aspects invalid: %d error(s)", len(errs)))
}

// newRegistry returns the registry of types the binary was built with.
func newRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if err := demo.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
