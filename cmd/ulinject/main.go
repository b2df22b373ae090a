// Package main provides the CLI entry point for ulinject.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/AntoineGS/ulinject/internal/config"
	"github.com/AntoineGS/ulinject/internal/hook"
	"github.com/AntoineGS/ulinject/internal/injector"
	"github.com/AntoineGS/ulinject/internal/platform"
	"github.com/AntoineGS/ulinject/internal/resolve"
	"github.com/AntoineGS/ulinject/internal/state"
)

var version = "dev"

// platformsEnv is set by the Cordova CLI for hook processes.
const platformsEnv = "CORDOVA_PLATFORMS"

// options holds the flag values of one command line.
type options struct {
	configPath   string
	projectRoot  string
	pluginRoot   string
	platforms    string
	contextFile  string
	vars         []string
	historyLimit int
	verbose      bool
	noColor      bool
	dryRun       bool

	env resolve.EnvFunc
	out io.Writer
	log io.Writer
}

func main() {
	opts := &options{env: resolve.OSEnv, out: os.Stdout, log: os.Stderr}

	if err := newRootCmd(opts).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "ulinject",
		Version: version,
		Short:   "Inject universal-link settings into a hybrid app project",
		Long: `ulinject merges universal-link (deep link) settings into a hybrid mobile
app project before it is built.

Values for UL_HOST, UL_SCHEME, UL_EVENT and UL_PATHS are taken from --var
flags or a hook context file, then from a plugin_options file found in the
project, then from the environment, then from built-in defaults.

Settings are read from --config, else <project>/ulinject.yaml.
Run 'ulinject init' to write a default settings file.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetOut(opts.out)

			if opts.noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(opts.log, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Settings file (default <project>/ulinject.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Merge universal-link settings into the project",
		Long: `Resolve the link variables and merge them into config.xml, the plugin
descriptor and the iOS entitlements. Existing documents are backed up once
before their first modification.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInject(opts)
		},
	}
	runCmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "Show the changes without writing them")
	addContextFlags(runCmd, opts)

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the resolved link variables",
		Long:  `Show each link variable, its value and where the value came from. Nothing is written.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runResolve(opts)
		},
	}
	addContextFlags(resolveCmd, opts)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long:  `List the documents written by previous runs. Requires history.enabled in the settings file.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runHistory(opts)
		},
	}
	historyCmd.Flags().StringVarP(&opts.projectRoot, "project-root", "p", "", "Project root (default current directory)")
	historyCmd.Flags().IntVar(&opts.historyLimit, "limit", 20, "Maximum number of runs to show (0 for all)")

	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default settings file",
		Long:  `Write ulinject.yaml with the built-in settings to dir (default current directory).`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInit(opts, args)
		},
	}

	rootCmd.AddCommand(runCmd, resolveCmd, historyCmd, initCmd)

	return rootCmd
}

func addContextFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVarP(&opts.projectRoot, "project-root", "p", "", "Project root (default current directory)")
	cmd.Flags().StringVar(&opts.pluginRoot, "plugin-root", "", "Plugin installation directory")
	cmd.Flags().StringVar(&opts.platforms, "platform", "", "Comma separated platforms (default $"+platformsEnv+")")
	cmd.Flags().StringVar(&opts.contextFile, "context", "", "Hook context file (JSON or YAML)")
	cmd.Flags().StringArrayVar(&opts.vars, "var", nil, "Invocation variable as KEY=VALUE (repeatable)")
}

// buildContext assembles the hook context from the context file and flags.
// Flags override the file.
func buildContext(opts *options) (hook.Context, error) {
	var hc hook.Context

	if opts.contextFile != "" {
		loaded, err := hook.Load(opts.contextFile)
		if err != nil {
			return hc, err
		}
		hc = loaded
	}

	if opts.projectRoot != "" {
		hc.ProjectRoot = opts.projectRoot
	}

	root, err := absDir(hc.ProjectRoot)
	if err != nil {
		return hc, err
	}
	hc.ProjectRoot = root

	switch {
	case opts.platforms != "":
		hc.Platforms = platform.Parse(opts.platforms)
	case hc.Platforms.Empty():
		if list, ok := opts.env(platformsEnv); ok {
			hc.Platforms = platform.Parse(list)
		}
	}

	if opts.pluginRoot != "" {
		dir, err := filepath.Abs(opts.pluginRoot)
		if err != nil {
			return hc, fmt.Errorf("resolving plugin root: %w", err)
		}

		plugin := hook.PluginInfo{}
		if hc.Plugin != nil {
			plugin = *hc.Plugin
		}
		plugin.Dir = dir
		hc.Plugin = &plugin
	}

	if len(opts.vars) > 0 {
		vars, err := parseVars(opts.vars, hc.PluginVariables)
		if err != nil {
			return hc, err
		}
		hc.PluginVariables = vars
	}

	return hc, nil
}

// parseVars adds KEY=VALUE pairs to a copy of base.
func parseVars(pairs []string, base map[string]any) (map[string]any, error) {
	vars := make(map[string]any, len(base)+len(pairs))
	for k, v := range base {
		vars[k] = v
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: want KEY=VALUE", pair)
		}
		vars[key] = value
	}

	return vars, nil
}

// absDir returns dir as an absolute path, the working directory when empty.
func absDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		return wd, nil
	}

	abs, err := filepath.Abs(config.ExpandPath(dir, nil))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	return abs, nil
}

func loadConfig(opts *options, projectRoot string) (*config.Config, error) {
	cfg, path, err := config.LoadOrDefault(opts.configPath, projectRoot)
	if err != nil {
		return nil, err
	}

	if path != "" {
		slog.Debug("loaded settings", slog.String("path", path))
	}

	return cfg, nil
}

func newInjector(opts *options, cfg *config.Config) *injector.Injector {
	inj := injector.New(cfg).
		WithOutput(opts.log).
		WithVerbose(opts.verbose).
		WithEnv(opts.env)
	inj.DryRun = opts.dryRun

	return inj
}

func runInject(opts *options) error {
	hc, err := buildContext(opts)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts, hc.ProjectRoot)
	if err != nil {
		return err
	}

	inj := newInjector(opts, cfg)

	if !opts.dryRun {
		if err := inj.InitHistory(hc.ProjectRoot); err != nil {
			fmt.Fprintf(opts.log, "Warning: could not open run history: %v\n", err)
		}
	}
	defer inj.Close() //nolint:errcheck // best-effort cleanup

	if opts.dryRun {
		fmt.Fprintln(opts.out, "=== DRY RUN MODE ===")
	}

	var report *injector.Report
	err = runWithCancellation(func(ctx context.Context) error {
		var runErr error
		report, runErr = inj.RunWithContext(ctx, hc)
		return runErr
	})

	if report != nil {
		printReport(opts.out, report)
	}

	return err
}

// runWithCancellation runs a context-aware function with signal-based cancellation.
// It sets up SIGINT/SIGTERM handling and cancels the context when a signal is received.
func runWithCancellation(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nOperation canceled by user")
			cancel()
		case <-ctx.Done():
		}
	}()

	return fn(ctx)
}

func runResolve(opts *options) error {
	hc, err := buildContext(opts)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts, hc.ProjectRoot)
	if err != nil {
		return err
	}

	vars, src, err := newInjector(opts, cfg).Resolve(hc)
	if err != nil {
		return err
	}

	printVars(opts.out, vars, src)

	return nil
}

func runHistory(opts *options) error {
	root, err := absDir(opts.projectRoot)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts, root)
	if err != nil {
		return err
	}

	if !cfg.History.Enabled {
		return errors.New("run history is disabled; set history.enabled in " + config.FileName)
	}

	dbPath := config.ProjectPath(root, cfg.History.Path)
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(opts.out, "No runs recorded.")
		return nil
	}

	store, err := state.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // best-effort cleanup

	runs, err := store.ListRuns(opts.historyLimit)
	if err != nil {
		return err
	}

	printHistory(opts.out, root, runs)

	return nil
}

func runInit(opts *options, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	absPath, err := absDir(dir)
	if err != nil {
		return err
	}

	path, err := config.WriteDefault(absPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(opts.out, "Settings written to %s\n", path)

	return nil
}
