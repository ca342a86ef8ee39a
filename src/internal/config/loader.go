// FILE: muxd/src/internal/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

func defaults() *Config {
	return &Config{
		PidFile:     "./run/muxd.pid",
		LogFile:     "./log/muxd.log",
		StopTimeout: 10,
		Logging:     DefaultLogConfig(),
		Listeners: []ListenerConfig{
			{
				Type:   "tcp",
				Host:   "0.0.0.0",
				Port:   9501,
				Kernel: "echo",
			},
		},
	}
}

// LoadWithCLI layers defaults, config file, MUXD_ environment and CLI arguments
func LoadWithCLI(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("MUXD_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		// Missing file falls through to defaults
		if !errors.Is(err, lconfig.ErrConfigNotFound) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	return "MUXD_" + env
}

// GetConfigPath resolves the config file from MUXD_CONFIG_FILE and MUXD_CONFIG_DIR
func GetConfigPath() string {
	if configFile := os.Getenv("MUXD_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("MUXD_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("MUXD_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "muxd.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "muxd.toml")
	}

	return "muxd.toml"
}
