package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Downsort/internal/config"
	"github.com/Ning0612/Downsort/internal/history"
	"github.com/Ning0612/Downsort/internal/logger"
	"github.com/Ning0612/Downsort/internal/progress"
	"github.com/Ning0612/Downsort/internal/render"
	"github.com/Ning0612/Downsort/internal/service"
)

// app holds the state shared by all commands of one invocation
type app struct {
	// flags
	configPath string
	dir        string
	recursive  bool
	output     string
	logLevel   string
	progress   bool

	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	format  render.Format
	store   *history.Store
	svc     *service.QueryService
	logInit bool
}

// execute runs the CLI with args and releases everything it opened
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downsort",
		Short: "Downsort - organize and deduplicate a downloads folder",
		Long: `Downsort lists the files in a directory (your Downloads folder by default),
groups them by extension or modification date, and finds duplicate copies
such as "report (1).pdf" or byte-identical files under different names.

Nothing is ever moved or deleted.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (default: search standard locations)")
	flags.StringVarP(&a.dir, "dir", "d", "", "directory to scan (default: scan.root, usually ~/Downloads)")
	flags.BoolVarP(&a.recursive, "recursive", "r", false, "descend into subdirectories")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text, json, yaml")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&a.progress, "progress", false, "show a progress bar while hashing")

	cmd.AddCommand(
		a.listCmd(),
		a.byExtCmd(),
		a.byDateCmd(),
		a.dupesCmd(),
		a.serveCmd(),
		a.historyCmd(),
		a.versionCmd(),
	)
	return cmd
}

// setup loads configuration, applies flag overrides, and wires the
// logger, history store, and query service
func (a *app) setup(cmd *cobra.Command) error {
	format, err := render.ParseFormat(a.output)
	if err != nil {
		return err
	}
	a.format = format

	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if a.dir != "" {
		cfg.Scan.Root = config.ExpandPath(a.dir)
	}
	if cmd.Flags().Changed("recursive") {
		cfg.Scan.Recursive = a.recursive
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logInit = true

	svc, err := service.NewQueryService(cfg)
	if err != nil {
		return err
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Dir)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		a.store = store
		svc.SetRecorder(store)
	}

	if a.progress {
		svc.SetProgressReporter(progress.NewBarReporter(a.stderr, 30))
	}

	a.svc = svc
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Get().Warn("failed to close history", "error", err)
		}
	}
	if a.logInit {
		logger.Shutdown()
	}
}

func (a *app) renderer() *render.Renderer {
	return render.New(a.stdout, a.format)
}

// request builds the per-call overrides from positional args
func (a *app) request(args []string) service.Request {
	var req service.Request
	if len(args) > 0 {
		req.Root = config.ExpandPath(args[0])
	}
	return req
}

// openHistory returns the recording store, opening history.dir on demand
// when recording is disabled
func (a *app) openHistory() (*history.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.cfg.History.Dir == "" {
		return nil, errors.New("history.dir is not configured")
	}
	store, err := history.Open(a.cfg.History.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	a.store = store
	return store, nil
}
