// FILE: muxd/src/internal/config/logging.go
package config

import (
	"fmt"
	"slices"
)

// LogConfig is the [logging] table: where muxd reports its own lifecycle,
// listener binds and control signals. Traffic handled by the engines is
// written to the log_file listener setting, not here.
type LogConfig struct {
	// One of LogOutputs
	Output string `toml:"output"`
	// debug, info, warn or error
	Level   string            `toml:"level"`
	File    *LogFileConfig    `toml:"file"`
	Console *LogConsoleConfig `toml:"console"`
}

// LogFileConfig applies when Output is "file" or "both". The file is
// reopened on the reopen-log signal.
type LogFileConfig struct {
	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	RetentionHours float64 `toml:"retention_hours"`
}

// LogConsoleConfig applies when Output is "stdout", "stderr" or "both".
// Target "split" sends warn and error to stderr.
type LogConsoleConfig struct {
	Target string `toml:"target"`
	Format string `toml:"format"`
}

// LogOutputs are the accepted values of logging.output and -log-output
var LogOutputs = []string{"file", "stdout", "stderr", "both", "none"}

// DefaultLogConfig logs info and above to stderr
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Output: "stderr",
		Level:  "info",
		File: &LogFileConfig{
			Directory:      "./log",
			Name:           "muxd-diag",
			MaxSizeMB:      50,
			MaxTotalSizeMB: 500,
			RetentionHours: 72,
		},
		Console: &LogConsoleConfig{Target: "stderr", Format: "txt"},
	}
}

func (c *LogConfig) validate() error {
	if !slices.Contains(LogOutputs, c.Output) {
		return fmt.Errorf("logging.output %q is not one of %v", c.Output, LogOutputs)
	}
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Level)
	}

	writesFile := c.Output == "file" || c.Output == "both"
	if writesFile && (c.File == nil || c.File.Directory == "" || c.File.Name == "") {
		return fmt.Errorf("logging.output %q needs logging.file.directory and logging.file.name", c.Output)
	}

	if c.Console == nil {
		return nil
	}
	switch c.Console.Target {
	case "stdout", "stderr", "split":
	default:
		return fmt.Errorf("logging.console.target %q is not one of stdout, stderr, split", c.Console.Target)
	}
	switch c.Console.Format {
	case "", "txt", "json":
	default:
		return fmt.Errorf("logging.console.format %q is not one of txt, json", c.Console.Format)
	}
	return nil
}
