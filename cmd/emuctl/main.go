// Package main is the entry point for emuctl, the emulator control router.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/emuctl/internal/autostart"
	"github.com/dshills/emuctl/internal/config"
	"github.com/dshills/emuctl/internal/dispatcher"
	"github.com/dshills/emuctl/internal/host/sim"
	"github.com/dshills/emuctl/internal/keys"
	"github.com/dshills/emuctl/internal/logging"
	"github.com/dshills/emuctl/internal/remote"
	"github.com/dshills/emuctl/internal/script"
	"github.com/dshills/emuctl/internal/watcher"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options holds command-line flags. Empty values leave the config alone.
type options struct {
	ConfigPath string
	LogLevel   string
	Listen     string
	Script     string
	Inbox      string
	Keys       bool
	Stdio      bool
	Strict     bool
	Metrics    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel(),
		Output: os.Stderr,
		Prefix: "emuctl",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("%v", err)
		return 1
	}
	return 0
}

// loadConfig layers the config file, environment and flags.
func loadConfig(opts options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = "emuctl.toml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Listen != "" {
		cfg.Remote.Listen = opts.Listen
	}
	if opts.Inbox != "" {
		cfg.Scripts.Inbox = opts.Inbox
	}
	if opts.Strict {
		cfg.Dispatcher.Strict = true
	}
	if opts.Metrics {
		cfg.Dispatcher.Metrics = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, opts options, logger *logging.Logger) error {
	if opts.Keys && opts.Stdio {
		return errors.New("-keys and -stdio both need the terminal")
	}

	commands := make(map[string]any, len(cfg.Commands))
	maps.Copy(commands, cfg.Commands)

	if path := cfg.ResolvePath(cfg.Scripts.Overrides); path != "" {
		overrides := script.NewOverrides(logger)
		defer overrides.Close()

		table, err := overrides.LoadFile(path)
		if err != nil {
			return err
		}
		maps.Copy(commands, table)
		logger.Info("loaded %d command overrides from %s", len(table), path)
	}

	// srv is assigned before any method can be dispatched.
	var srv *remote.Server
	observer := dispatcher.Fanout(
		func(ev dispatcher.Event) {
			if ev.Failed() {
				logger.Debug("event %s %s failed: %s", ev.OperationID, ev.Method, ev.Error)
				return
			}
			logger.Debug("event %s %s", ev.OperationID, ev.Method)
		},
		func(ev dispatcher.Event) {
			if srv != nil {
				srv.Observe(ev)
			}
		},
	)

	dopts := dispatcher.Options{
		HandlerConfig: cfg.Handler,
		NotifyUnknown: cfg.Dispatcher.NotifyUnknown,
	}.WithCommands(commands).WithObserver(observer).WithLogger(logger)
	if cfg.Dispatcher.Metrics {
		dopts = dopts.WithMetrics()
	}

	emu := sim.New(logger)
	var d *dispatcher.Dispatcher
	if cfg.Dispatcher.Strict {
		d = dispatcher.NewStrict(emu, dopts)
	} else {
		d = dispatcher.New(emu, dopts)
	}
	ex := dispatcher.NewSerial(d)
	srv = remote.NewServer(ex, logger)
	defer srv.Close()
	defer logMetrics(d, logger)

	logger.Info("emuctl %s: %d methods, strict=%v", version, len(d.Methods()), d.Strict())

	report := autostart.RunWithReport(ex, cfg.Autostart, logger)
	if err := report.Err(); err != nil {
		logger.Warn("autostart ran %d commands: %v", report.Ran(), err)
	}

	runner := script.NewRunner(ex, logger)
	if opts.Script != "" {
		if err := runner.RunFile(opts.Script); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	longRunning := false

	if cfg.Remote.Listen != "" {
		longRunning = true
		g.Go(func() error {
			err := srv.ListenAndServe(ctx, cfg.Remote.Listen)
			if errors.Is(err, remote.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	if dir := cfg.ResolvePath(cfg.Scripts.Inbox); dir != "" {
		inbox, err := watcher.New(dir, runner, logger, watcher.WithRemoveAfterRun(cfg.Scripts.RemoveAfterRun))
		if err != nil {
			return fmt.Errorf("inbox %s: %w", dir, err)
		}
		defer func() {
			inbox.Close()
			logger.Info("inbox ran %d scripts, %d failures", inbox.Runs(), inbox.Failures())
		}()

		longRunning = true
		g.Go(func() error {
			return inbox.Run(ctx)
		})
	}

	switch {
	case opts.Keys:
		bindings, err := cfg.KeyBindings()
		if err != nil {
			return err
		}
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to create terminal: %w", err)
		}
		if err := screen.Init(); err != nil {
			return fmt.Errorf("failed to initialize terminal: %w", err)
		}
		defer screen.Fini()

		// The screen owns the terminal; failures show on the status line.
		logger.SetOutput(io.Discard)
		defer logger.SetOutput(os.Stderr)

		fe := keys.New(ex, bindings, logger)
		return frontend(ctx, cancel, g, func(ctx context.Context) error {
			return fe.Run(ctx, screen)
		})

	case opts.Stdio:
		return frontend(ctx, cancel, g, func(context.Context) error {
			return srv.ServeStream(os.Stdin, os.Stdout)
		})
	}

	if !longRunning {
		return nil
	}
	return g.Wait()
}

// frontend runs fn until it returns or ctx is done, then stops the group
// and waits for it. A terminal front-end ends the whole run.
func frontend(ctx context.Context, cancel context.CancelFunc, g *errgroup.Group, fn func(context.Context) error) error {
	errc := make(chan error, 1)
	go func() { errc <- fn(ctx) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
	}
	cancel()

	if werr := g.Wait(); err == nil {
		err = werr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logMetrics(d *dispatcher.Dispatcher, logger *logging.Logger) {
	m := d.Metrics()
	if m == nil {
		return
	}
	sum := m.Summary()
	logger.Info("dispatched %d (failed %d, panics %d, unknown %d), mean %v",
		sum.Dispatches, sum.Failures, sum.Panics, sum.UnknownCalls(), sum.Mean())
	for i, ms := range sum.Methods {
		if i == 5 {
			break
		}
		logger.Info("  %-24s %6d calls  mean %v  max %v  failed %.0f%%",
			ms.Name, ms.Calls, ms.Mean(), ms.Max, 100*ms.FailureRate())
		if ms.LastError != "" {
			logger.Info("  %-24s last error: %s", "", ms.LastError)
		}
	}
	for name, n := range sum.Unknown {
		logger.Warn("unknown method %q called %d times", name, n)
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (default emuctl.toml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.Listen, "listen", "", "Remote-control TCP address")
	flag.StringVar(&opts.Script, "script", "", "Lua script to run after autostart")
	flag.StringVar(&opts.Inbox, "inbox", "", "Directory watched for Lua scripts")
	flag.BoolVar(&opts.Keys, "keys", false, "Dispatch key bindings from the terminal")
	flag.BoolVar(&opts.Stdio, "stdio", false, "Serve the remote protocol on stdin/stdout")
	flag.BoolVar(&opts.Strict, "strict", false, "Return every failure to the caller")
	flag.BoolVar(&opts.Metrics, "metrics", false, "Collect and report dispatch metrics")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "emuctl - emulator command router\n\n")
		fmt.Fprintf(os.Stderr, "Usage: emuctl [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  emuctl -keys                   Drive the emulator from the keyboard\n")
		fmt.Fprintf(os.Stderr, "  emuctl -listen :7788           Accept remote-control connections\n")
		fmt.Fprintf(os.Stderr, "  emuctl -script speedrun.lua    Run a script after autostart\n")
		fmt.Fprintf(os.Stderr, "  emuctl -inbox ./inbox -strict  Run dropped scripts, failing loudly\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("emuctl %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.LogLevel != "" && !logging.ValidLevel(opts.LogLevel) {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	return opts
}
