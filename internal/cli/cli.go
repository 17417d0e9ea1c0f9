// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/specialistvlad/rtgraph/internal/app"
	"github.com/specialistvlad/rtgraph/internal/registry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
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

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// Execute runs the command line described by args. Command output and help
// go to stdout, logs go to stderr. When no modules are given the built-in
// processors are used.
func Execute(ctx context.Context, stdout, stderr io.Writer, args []string, modules ...registry.Module) error {
	slog.Debug("CLI parser started.")
	root := NewRootCommand(modules...)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// globalFlags are shared by every command.
type globalFlags struct {
	logLevel  string
	logFormat string
}

// NewRootCommand builds the rtgraph command tree.
func NewRootCommand(modules ...registry.Module) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "rtgraph",
		Short: "rtgraph - a real-time audio processing graph engine.",
		Long: `rtgraph runs a graph of audio processors, declared in HCL patch files,
on a pool of DSP threads driven by a fixed-size audio callback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&g.logFormat, "log-format", "json", "Log output format. Options: 'text' or 'json'.")

	root.AddCommand(
		newRunCommand(g, modules),
		newGraphCommand(g, modules),
		newBenchCommand(g, modules),
	)
	return root
}

// appFlags locate the engine file and patch.
type appFlags struct {
	engine  string
	patches []string
	threads int
}

func (f *appFlags) bind(cmd *cobra.Command, withThreads bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.engine, "engine", "e", "", "Path to the engine configuration file.")
	fs.StringSliceVarP(&f.patches, "patch", "p", nil, "Patch file or directory. May be repeated.")
	if withThreads {
		fs.IntVarP(&f.threads, "threads", "t", 0, "Number of DSP threads. 0 uses the CPU count.")
	}
}

// config turns the parsed flags into an app.Config. Positional arguments are
// patch paths.
func (f *appFlags) config(cmd *cobra.Command, g *globalFlags, args []string) app.Config {
	cfg := app.Config{
		EnginePath: f.engine,
		PatchPaths: append(append([]string(nil), f.patches...), args...),
		LogFormat:  strings.ToLower(g.logFormat),
		LogLevel:   strings.ToLower(g.logLevel),
	}
	if cmd.Flags().Changed("threads") {
		threads := f.threads
		cfg.Threads = &threads
	}
	return cfg
}

func newApp(cmd *cobra.Command, cfg app.Config, modules []registry.Module) (*app.App, error) {
	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, usageError(err)
	}
	slog.Debug("CLI parameter validation complete.", "config", validated)
	return app.NewApp(cmd.ErrOrStderr(), validated, modules...)
}

func newRunCommand(g *globalFlags, modules []registry.Module) *cobra.Command {
	f := &appFlags{}
	var cfg app.Config
	cmd := &cobra.Command{
		Use:   "run [PATCH_PATH...]",
		Short: "Run a patch until interrupted.",
		Long: `Builds the patch, starts the DSP threads and drives the engine from a
timer-based audio callback until interrupted or --duration elapses.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := f.config(cmd, g, args)
			base.StatusAddr = cfg.StatusAddr
			base.Watch = cfg.Watch
			base.Roll = cfg.Roll
			base.Duration = cfg.Duration

			a, err := newApp(cmd, base, modules)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	f.bind(cmd, true)
	fs := cmd.Flags()
	fs.StringVar(&cfg.StatusAddr, "status-addr", "", "Serve health, metrics and the monitor on this address.")
	fs.BoolVarP(&cfg.Watch, "watch", "w", false, "Reload the patch when its files change.")
	fs.BoolVar(&cfg.Roll, "roll", false, "Start the transport rolling once the engine runs.")
	fs.DurationVar(&cfg.Duration, "duration", 0, "Stop after this long. 0 runs until interrupted.")
	return cmd
}

func newGraphCommand(g *globalFlags, modules []registry.Module) *cobra.Command {
	f := &appFlags{}
	var format string
	cmd := &cobra.Command{
		Use:   "graph [PATCH_PATH...]",
		Short: "Build a patch and print its node table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return usageError(fmt.Errorf("invalid format %q: must be 'json' or 'yaml'", format))
			}
			a, err := newApp(cmd, f.config(cmd, g, args), modules)
			if err != nil {
				return err
			}
			nodes, err := a.Graph(cmd.Context())
			if err != nil {
				return err
			}
			return encode(cmd.OutOrStdout(), format, nodes)
		},
	}
	f.bind(cmd, false)
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format. Options: 'json' or 'yaml'.")
	return cmd
}

func newBenchCommand(g *globalFlags, modules []registry.Module) *cobra.Command {
	f := &appFlags{}
	var (
		callbacks int
		format    string
	)
	cmd := &cobra.Command{
		Use:   "bench [PATCH_PATH...]",
		Short: "Run callbacks back to back and report timings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
			default:
				return usageError(fmt.Errorf("invalid format %q: must be 'text', 'json' or 'yaml'", format))
			}
			a, err := newApp(cmd, f.config(cmd, g, args), modules)
			if err != nil {
				return err
			}
			res, err := a.Bench(cmd.Context(), callbacks)
			if err != nil {
				return err
			}
			if format != "text" {
				return encode(cmd.OutOrStdout(), format, res)
			}
			return printBench(cmd.OutOrStdout(), res)
		},
	}
	f.bind(cmd, true)
	fs := cmd.Flags()
	fs.IntVarP(&callbacks, "callbacks", "n", 1000, "Number of callbacks to run.")
	fs.StringVarP(&format, "format", "f", "text", "Output format. Options: 'text', 'json' or 'yaml'.")
	return cmd
}

func encode(w io.Writer, format string, v any) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printBench(w io.Writer, res *app.BenchResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "callbacks\t%d\n", res.Callbacks)
	fmt.Fprintf(tw, "nodes\t%d\n", res.Nodes)
	fmt.Fprintf(tw, "threads\t%d\n", res.Threads)
	fmt.Fprintf(tw, "block period\t%s\n", res.BlockPeriod)
	fmt.Fprintf(tw, "mean\t%s\n", res.Mean)
	fmt.Fprintf(tw, "max\t%s\n", res.Max)
	fmt.Fprintf(tw, "load\t%.1f%%\n", res.Load*100)
	fmt.Fprintf(tw, "xruns\t%d\n", res.Xruns)
	return tw.Flush()
}
