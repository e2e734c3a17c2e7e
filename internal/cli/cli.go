package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/paramgrid/internal/app"
	"github.com/specialistvlad/paramgrid/internal/calc"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// usageError marks errors caused by bad arguments.
func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPaths []string
	format      string
	store       string
	stateDir    string
	logLevel    string
	logFormat   string
}

func (g *globalFlags) config(extra app.Config) (*app.Config, error) {
	extra.ConfigPaths = g.configPaths
	extra.Format = g.format
	extra.StoreBackend = g.store
	extra.StateDir = g.stateDir
	extra.LogLevel = g.logLevel
	extra.LogFormat = g.logFormat
	cfg, err := app.NewConfig(extra)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}

// env is what commands need from the process.
type env struct {
	out     io.Writer
	errOut  io.Writer
	modules []calc.Module
	flags   *globalFlags
}

func (e *env) newApp(ctx context.Context, cfg *app.Config) (*app.App, error) {
	a, err := app.NewApp(ctx, e.errOut, cfg, nil, e.modules...)
	if err != nil {
		return nil, &ExitError{Code: 1, Message: err.Error()}
	}
	return a, nil
}

// NewRootCommand builds the paramgrid command tree. Command output goes to
// out; logs go to errOut. modules default to the built-in rule modules.
func NewRootCommand(out, errOut io.Writer, modules ...calc.Module) *cobra.Command {
	e := &env{out: out, errOut: errOut, modules: modules, flags: &globalFlags{}}

	root := &cobra.Command{
		Use:   "paramgrid",
		Short: "Parameter dependency and recalculation engine for CNC setup configurators",
		Long: `paramgrid loads configurator definitions (HCL or YAML), keeps every
parameter consistent with its calculation rules and prints the ordered
export a downstream generator consumes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringSliceVarP(&e.flags.configPaths, "config", "c", []string{"configs"}, "Definition files or directories.")
	pf.StringVar(&e.flags.format, "format", app.FormatAuto, "Definition format: auto, hcl or yaml.")
	pf.StringVar(&e.flags.store, "store", app.BackendFile, "Saved state backend: memory, file or badger.")
	pf.StringVar(&e.flags.stateDir, "state-dir", ".paramgrid", "Directory of the file and badger state backends.")
	pf.StringVar(&e.flags.logLevel, "log-level", "warn", "Logging level: debug, info, warn or error.")
	pf.StringVar(&e.flags.logFormat, "log-format", "text", "Log output format: text or json.")

	root.AddCommand(
		newValidateCommand(e),
		newEvalCommand(e),
		newStatesCommand(e),
		newWatchCommand(e),
	)
	return root
}

// Execute runs the command tree with args and maps failures to ExitError.
func Execute(ctx context.Context, args []string, out, errOut io.Writer, modules ...calc.Module) error {
	root := NewRootCommand(out, errOut, modules...)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Flag and argument errors come from cobra itself.
	return &ExitError{Code: 2, Message: err.Error()}
}
