// Package commands provides the CLI commands for fsplit.
package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-forward-split/internal/config"
	"github.com/l3aro/go-forward-split/internal/log"
	"github.com/l3aro/go-forward-split/pkg/source"
	"github.com/l3aro/go-forward-split/pkg/split"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "fsplit",
	Short: "fsplit - split Python forward methods into callable segments",
	Long: `fsplit analyzes which local values flow between the statements of a
Python method and cuts the method into segments, each a standalone function
taking the receiver and the locals it needs and returning what later
segments need.

Commands:
  flow        Show written, read and read-before-write names
  classify    Show the environment category of every name
  graph       Show the local dependency graph and its order
  args        Infer the inputs a method body needs
  split       Split a method at statement boundaries
  init        Create a configuration file interactively
  doctor      Check configuration and parser

Targets are written Class.method, Class (uses the configured method) or
function for module-level functions.

Use "fsplit [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")
	RootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	RootCmd.PersistentFlags().String("receiver", "", "Receiver name for --snippet input")
	RootCmd.PersistentFlags().StringSlice("global", nil, "Extra module-level names")
	RootCmd.PersistentFlags().StringSlice("builtin", nil, "Extra built-in names")
}

// app bundles what every analysis command needs.
type app struct {
	cfg      *config.Config
	logger   *log.DefaultLogger
	loader   *source.Loader
	splitter *split.Splitter
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("receiver") {
		cfg.Receiver, _ = flags.GetString("receiver")
	}
	if globals, _ := flags.GetStringSlice("global"); len(globals) > 0 {
		cfg.ExtraGlobals = append(cfg.ExtraGlobals, globals...)
	}
	if builtins, _ := flags.GetStringSlice("builtin"); len(builtins) > 0 {
		cfg.ExtraBuiltins = append(cfg.ExtraBuiltins, builtins...)
	}
	if flags.Lookup("strict") != nil && flags.Changed("strict") {
		cfg.Strict, _ = flags.GetBool("strict")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	if name, _ := flags.GetString("log-level"); name != "" {
		if level, err = log.ParseLevel(name); err != nil {
			return nil, err
		}
	}
	logger := log.Default()
	logger.SetLevel(level)
	logger.SetJSONOutput(cfg.LogJSON)

	loader, err := source.NewLoader(cfg.CacheSize, logger)
	if err != nil {
		return nil, err
	}

	splitter := split.New(
		split.WithReceiver(cfg.Receiver),
		split.WithNameFormat(cfg.SegmentName),
		split.WithIndent(cfg.IndentWidth),
		split.WithExtraGlobals(cfg.ExtraGlobals...),
		split.WithExtraBuiltins(cfg.ExtraBuiltins...),
		split.WithStrict(cfg.Strict),
		split.WithLogger(logger),
	)

	return &app{cfg: cfg, logger: logger, loader: loader, splitter: splitter}, nil
}

// resolved is a loaded analysis target.
type resolved struct {
	target split.Target
	module *source.Module
	fn     *source.Function
}

// resolve loads file and finds the target. With snippet set, the whole file
// is the statement sequence and name is ignored.
func (r *app) resolve(file, name string, snippet bool) (*resolved, error) {
	m, err := r.loader.Load(file)
	if err != nil {
		return nil, err
	}

	if snippet {
		stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		stmts := m.Statements()
		return &resolved{target: r.splitter.Snippet(stem, stmts), module: m}, nil
	}

	fn, err := r.lookup(m, name)
	if err != nil {
		return nil, err
	}
	return &resolved{target: split.FromFunction(fn), module: m, fn: fn}, nil
}

func (r *app) lookup(m *source.Module, name string) (*source.Function, error) {
	if className, method, ok := strings.Cut(name, "."); ok {
		c, err := m.Class(className)
		if err != nil {
			return nil, err
		}
		return c.Method(method)
	}

	if c, err := m.Class(name); err == nil {
		return c.Method(r.cfg.Method)
	}
	return m.Function(name)
}

// targetArgs validates the positional arguments of analysis commands.
func targetArgs(cmd *cobra.Command, args []string) error {
	snippet, _ := cmd.Flags().GetBool("snippet")
	if snippet {
		return cobra.ExactArgs(1)(cmd, args)
	}
	return cobra.ExactArgs(2)(cmd, args)
}

func targetName(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("snippet", false, "Treat the whole file as the statement sequence")
}
