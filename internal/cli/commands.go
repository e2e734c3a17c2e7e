package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/specialistvlad/paramgrid/internal/app"
	"github.com/specialistvlad/paramgrid/internal/session"
	"github.com/specialistvlad/paramgrid/internal/store"
	"github.com/spf13/cobra"
	"github.com/zclconf/go-cty/cty"
)

// failure wraps a runtime error with exit code 1.
func failure(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: 1, Message: err.Error()}
}

func newValidateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the definitions and activate every tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.flags.config(app.Config{})
			if err != nil {
				return err
			}
			// validate never touches saved state.
			cfg.StoreBackend = app.BackendMemory
			a, err := e.newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, tab := range a.Manager().Tabs() {
				err := a.Manager().Do(tab, func(s *session.Session) error {
					fmt.Fprintf(e.out, "%s: %d parameters, %d active\n", tab, len(s.Keys()), len(s.ActiveOrder()))
					return nil
				})
				if err != nil {
					return failure(err)
				}
			}
			fmt.Fprintln(e.out, "OK")
			return nil
		},
	}
}

type evalOptions struct {
	tab        string
	sets       []string
	autos      []string
	manuals    []string
	activate   []string
	deactivate []string
	counts     []string
	order      []string
	restore    string
	save       string
	output     string
}

func newEvalCommand(e *env) *cobra.Command {
	o := &evalOptions{}
	cmd := &cobra.Command{
		Use:   "eval TAB",
		Short: "Apply edits to a tab and print its ordered export",
		Long: `eval activates TAB, applies the requested edits in a fixed order
(restore, counts, auto flags, values, active flags, order) and prints the
export of the active parameters.`,
		Example: `  paramgrid eval door --set L=2400 --auto H --activate hinge --order hinge,lock
  paramgrid eval cabinet --count shelves=3 --save cabinet-3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.tab = args[0]
			switch o.output {
			case "text", "json", "yaml":
			default:
				return usageError("invalid output %q: must be text, json or yaml", o.output)
			}
			cfg, err := e.flags.config(app.Config{})
			if err != nil {
				return err
			}
			a, err := e.newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return failure(runEval(cmd.Context(), e, a, o))
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&o.sets, "set", nil, "Set a parameter: KEY=VALUE. Repeatable.")
	f.StringArrayVar(&o.autos, "auto", nil, "Switch a parameter to auto. Repeatable.")
	f.StringArrayVar(&o.manuals, "manual", nil, "Switch a parameter to manual. Repeatable.")
	f.StringArrayVar(&o.activate, "activate", nil, "Activate a parameter. Repeatable.")
	f.StringArrayVar(&o.deactivate, "deactivate", nil, "Deactivate a parameter. Repeatable.")
	f.StringArrayVar(&o.counts, "count", nil, "Set the instance count of a multi attribute: NAME=N. Repeatable.")
	f.StringSliceVar(&o.order, "order", nil, "New active order, a permutation of the active parameters.")
	f.StringVar(&o.restore, "restore", "", "Restore a saved context before applying edits.")
	f.StringVar(&o.save, "save", "", "Save the resulting context under this name.")
	f.StringVarP(&o.output, "output", "o", "text", "Output format: text, json or yaml.")
	return cmd
}

func runEval(ctx context.Context, e *env, a *app.App, o *evalOptions) error {
	if o.restore != "" {
		tab, err := a.Restore(ctx, o.restore)
		if err != nil {
			return fmt.Errorf("restore %s: %w", o.restore, err)
		}
		if tab != o.tab {
			return fmt.Errorf("saved context %q belongs to tab %q, not %q", o.restore, tab, o.tab)
		}
	}

	ctx = withAppLogger(ctx, a)
	var export session.Export
	err := a.Manager().Do(o.tab, func(s *session.Session) error {
		for _, kv := range o.counts {
			name, text, err := splitPair(kv)
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(text)
			if err != nil {
				return usageError("--count %s: %v", kv, err)
			}
			if _, err := s.SetCount(ctx, name, n); err != nil {
				return err
			}
		}
		for _, key := range o.autos {
			if _, err := s.SetAuto(ctx, key, true); err != nil {
				return err
			}
		}
		for _, key := range o.manuals {
			if _, err := s.SetAuto(ctx, key, false); err != nil {
				return err
			}
		}
		for _, kv := range o.sets {
			key, text, err := splitPair(kv)
			if err != nil {
				return err
			}
			res, err := s.Set(ctx, key, cty.StringVal(text), store.SourceManual)
			if err != nil {
				return err
			}
			for _, failed := range res.Failed {
				st, _ := s.State(failed)
				fmt.Fprintf(e.errOut, "warning: %s kept its previous value: %v\n", failed, st.ComputeErr)
			}
			for _, stale := range res.Stale {
				fmt.Fprintf(e.errOut, "warning: %s is manual and may be stale\n", stale)
			}
		}
		for _, key := range o.activate {
			if err := s.SetActive(key, true); err != nil {
				return err
			}
		}
		for _, key := range o.deactivate {
			if err := s.SetActive(key, false); err != nil {
				return err
			}
		}
		if len(o.order) > 0 {
			if err := s.Reorder(o.order); err != nil {
				return err
			}
		}
		export = s.Export()
		return nil
	})
	if err != nil {
		return err
	}

	if o.save != "" {
		if err := a.Save(ctx, o.tab, o.save); err != nil {
			return fmt.Errorf("save %s: %w", o.save, err)
		}
	}
	return writeExport(e.out, export, o.output)
}

func splitPair(kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", usageError("expected KEY=VALUE, got %q", kv)
	}
	return k, v, nil
}

func newStatesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "states",
		Short: "List saved contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.flags.config(app.Config{})
			if err != nil {
				return err
			}
			states, err := app.OpenStore(cfg, app.NewLogger(cfg.LogLevel, cfg.LogFormat, e.errOut))
			if err != nil {
				return failure(err)
			}
			defer states.Close()

			names, err := states.List(cmd.Context())
			if err != nil {
				return failure(err)
			}
			for _, name := range names {
				saved, err := states.Load(cmd.Context(), name)
				if err != nil {
					fmt.Fprintf(e.out, "%s\t(unreadable: %v)\n", name, err)
					continue
				}
				fmt.Fprintf(e.out, "%s\t%s\t%s\t%s\n", name, saved.Tab, saved.SavedAt.Format("2006-01-02 15:04:05"), formatCounts(saved.Counts))
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rm NAME...",
		Short: "Delete saved contexts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.flags.config(app.Config{})
			if err != nil {
				return err
			}
			states, err := app.OpenStore(cfg, app.NewLogger(cfg.LogLevel, cfg.LogFormat, e.errOut))
			if err != nil {
				return failure(err)
			}
			defer states.Close()
			for _, name := range args {
				if err := states.Delete(cmd.Context(), name); err != nil {
					return failure(fmt.Errorf("%s: %w", name, err))
				}
			}
			return nil
		},
	})
	return cmd
}

func formatCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, counts[name]))
	}
	return strings.Join(parts, ",")
}

func newWatchCommand(e *env) *cobra.Command {
	var (
		metricsPort int
		socketURL   string
		namespace   string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Serve health and metrics and reload the definitions when they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := e.flags.config(app.Config{
				MetricsPort:       metricsPort,
				SocketIOURL:       socketURL,
				SocketIONamespace: namespace,
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := e.newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return failure(a.Serve(ctx))
		},
	}
	f := cmd.Flags()
	f.IntVar(&metricsPort, "metrics-port", 9090, "Port for /health and /metrics. 0 is disabled.")
	f.StringVar(&socketURL, "socketio-url", "", "Forward change events to this socket.io preview server.")
	f.StringVar(&namespace, "socketio-namespace", "/", "socket.io namespace of the preview server.")
	return cmd
}
