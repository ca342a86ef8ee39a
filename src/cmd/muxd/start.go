// FILE: muxd/src/cmd/muxd/start.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"muxd/src/internal/config"
	"muxd/src/internal/server"
	"muxd/src/internal/version"
)

// startFlags are the flags of the start command; remaining arguments go to the config loader
type startFlags struct {
	configFile string
	background bool
	quiet      bool
	logLevel   string
	logOutput  string
}

func parseStartFlags(args []string) (*startFlags, []string, error) {
	f := &startFlags{}
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&f.configFile, "config", "", "Config file path")
	fs.BoolVar(&f.background, "background", false, "Run as background process")
	fs.BoolVar(&f.quiet, "quiet", false, "Suppress all console output")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	fs.StringVar(&f.logOutput, "log-output", "", "Log output: file, stdout, stderr, both, none (overrides config)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if f.logOutput != "" {
		if !slices.Contains(config.LogOutputs, f.logOutput) {
			return nil, nil, fmt.Errorf("invalid log-output: %s (valid: %s)", f.logOutput, strings.Join(config.LogOutputs, ", "))
		}
	}

	if f.logLevel != "" {
		if _, err := parseLogLevel(f.logLevel); err != nil {
			return nil, nil, fmt.Errorf("invalid log-level: %s (valid: debug, info, warn, error)", f.logLevel)
		}
	}

	return f, fs.Args(), nil
}

func (f *startFlags) apply(cfg *config.Config) {
	if f.quiet {
		cfg.Quiet = true
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logOutput != "" {
		cfg.Logging.Output = f.logOutput
	}
}

// startCommand loads the config, builds the server and serves until stopped
type startCommand struct{}

func (c *startCommand) Description() string {
	return "Start the server (default command)"
}

func (c *startCommand) Help() string {
	return `Start Command - Start the server

Usage:
  muxd start [options] [config overrides]
  muxd [options] [config overrides]

Options:
  -config <path>       Config file path
  -background          Detach and run in the background
  -quiet               Suppress all console output
  -log-level <level>   debug, info, warn, error (overrides config)
  -log-output <mode>   file, stdout, stderr, both, none (overrides config)

Config overrides use the key path of the TOML file:
  muxd start -- --metrics_addr=127.0.0.1:9100 --stop_timeout=20
`
}

func (c *startCommand) Execute(args []string) error {
	flags, rest, err := parseStartFlags(args)
	if err != nil {
		return err
	}
	if flags.quiet {
		console.SetQuiet(true)
	}

	if flags.configFile != "" {
		if _, err := os.Stat(flags.configFile); err != nil {
			console.Fatalf(2, "Config file not found: %s\n", flags.configFile)
		}
		os.Setenv("MUXD_CONFIG_FILE", flags.configFile)
	}

	cfg, err := config.LoadWithCLI(rest)
	if err != nil {
		return err
	}
	flags.apply(cfg)
	console.SetQuiet(cfg.Quiet)

	if (flags.background || cfg.Daemon) && !isBackgroundProcess() {
		pid, err := runInBackground(args)
		if err != nil {
			return err
		}
		console.Printf("muxd started in background (PID:%d)\n", pid)
		return nil
	}

	return run(cfg)
}

// run serves cfg in the foreground until a stop signal or a fatal engine error
func run(cfg *config.Config) error {
	if err := initializeLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("msg", "muxd starting",
		"version", version.String(),
		"config_file", config.GetConfigPath(),
		"log_output", cfg.Logging.Output,
		"listeners", len(cfg.Listeners))

	srv, err := buildServer(cfg)
	if err != nil {
		logger.Error("msg", "Failed to build server", "error", err)
		return err
	}

	if cfg.MetricsAddr != "" {
		ms, err := startMetrics(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer ms.Shutdown()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := NewSignalHandler(srv, func() error { return reopenLogger(cfg) }, logger)
	defer sh.Stop()

	go func() {
		sig := sh.Handle(ctx)
		if sig == nil {
			return
		}
		logger.Info("msg", "Shutdown signal received, starting graceful shutdown...",
			"signal", sig.String())

		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout(cfg))
		defer stopCancel()
		if err := srv.Stop(stopCtx); err != nil {
			logger.Error("msg", "Shutdown timeout exceeded - forcing exit", "error", err)
			cancel()
		}
	}()

	if enableStatusReporter() {
		go statusReporter(ctx, srv)
	}

	if err := srv.Start(ctx); err != nil {
		var engErr *server.EngineError
		if errors.As(err, &engErr) {
			logger.Error("msg", "Engine failed",
				"op", engErr.Op,
				"listener", engErr.Listener,
				"error", engErr.Err)
		}
		return err
	}

	logger.Info("msg", "Shutdown complete")
	return nil
}

func stopTimeout(cfg *config.Config) time.Duration {
	if cfg.StopTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(cfg.StopTimeout) * time.Second
}
