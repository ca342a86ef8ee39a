// FILE: muxd/src/cmd/muxd/bootstrap.go
package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"muxd/src/internal/config"
	"muxd/src/internal/engine"
	"muxd/src/internal/kernel"
	"muxd/src/internal/metrics"
	"muxd/src/internal/server"
	"muxd/src/internal/strategy"
	"muxd/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// buildServer resolves the configured listeners into a server with the built-in kernels
func buildServer(cfg *config.Config) (*server.Server, error) {
	specs, err := cfg.Specs()
	if err != nil {
		return nil, err
	}

	kernels := strategy.NewKernels()
	kernel.Register(kernels, logger)

	st := strategy.New(strategy.NewRegistry(engine.Factory()), kernels, logger)
	return st.BuildServer(specs, cfg.PidFile, cfg.LogFile, cfg.Daemon)
}

// startMetrics serves the prometheus registry on addr with fasthttp
func startMetrics(addr string) (*fasthttp.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	srv := &fasthttp.Server{
		Name:    version.ServerName(),
		Handler: fasthttpadaptor.NewFastHTTPHandler(metrics.Handler()),
		Logger:  compat.NewFastHTTPAdapter(logger),
	}

	go func() {
		if err := srv.Serve(ln); err != nil {
			logger.Error("msg", "Metrics server failed",
				"component", "metrics",
				"addr", addr,
				"error", err)
		}
	}()

	logger.Info("msg", "Metrics endpoint started",
		"component", "metrics",
		"addr", ln.Addr().String())
	return srv, nil
}

// initializeLogger replaces the global logger with one built from cfg
func initializeLogger(cfg *config.Config) error {
	args, err := loggerArgs(cfg)
	if err != nil {
		return err
	}

	l := log.NewLogger()
	if err := applyLogger(l, args); err != nil {
		return err
	}
	old := logger
	logger = l
	if old != nil {
		_ = old.Shutdown(time.Second)
	}
	return nil
}

// reopenLogger re-applies the log configuration, reopening the log file
func reopenLogger(cfg *config.Config) error {
	args, err := loggerArgs(cfg)
	if err != nil {
		return err
	}
	return applyLogger(logger, args)
}

// applyLogger overrides the logger config with key=value args and starts processing
func applyLogger(l *log.Logger, args []string) error {
	if err := l.ApplyConfigString(args...); err != nil {
		return err
	}
	return l.Start()
}

// bootstrapLogger logs warnings to stderr until the config is loaded
func bootstrapLogger() *log.Logger {
	l := log.NewLogger()
	_ = applyLogger(l, []string{
		"disable_file=true",
		"enable_console=true",
		"console_target=stderr",
		fmt.Sprintf("level=%d", log.LevelWarn),
	})
	return l
}

func loggerArgs(cfg *config.Config) ([]string, error) {
	if cfg.Quiet {
		return []string{"disable_file=true", "enable_console=false", "level=255"}, nil
	}

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	args := []string{fmt.Sprintf("level=%d", levelValue)}

	switch cfg.Logging.Output {
	case "none":
		args = append(args, "disable_file=true", "enable_console=false")
	case "stdout", "stderr":
		args = append(args,
			"disable_file=true",
			"enable_console=true",
			"console_target="+cfg.Logging.Output)
	case "file":
		args = append(args, "enable_console=false")
		args = append(args, fileArgs(cfg.Logging.File)...)
	case "both":
		args = append(args, "enable_console=true")
		args = append(args, fileArgs(cfg.Logging.File)...)
		args = append(args, consoleArgs(cfg.Logging.Console)...)
	default:
		return nil, fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		args = append(args, "format="+cfg.Logging.Console.Format)
	}
	return args, nil
}

func fileArgs(f *config.LogFileConfig) []string {
	if f == nil {
		return nil
	}
	args := []string{
		"directory=" + f.Directory,
		"name=" + f.Name,
		fmt.Sprintf("max_size_mb=%d", f.MaxSizeMB),
		fmt.Sprintf("max_total_size_mb=%d", f.MaxTotalSizeMB),
	}
	if f.RetentionHours > 0 {
		args = append(args, fmt.Sprintf("retention_period_hrs=%.1f", f.RetentionHours))
	}
	return args
}

func consoleArgs(c *config.LogConsoleConfig) []string {
	target := "stderr"
	if c != nil && c.Target != "" {
		target = c.Target
	}
	return []string{"console_target=" + target}
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
