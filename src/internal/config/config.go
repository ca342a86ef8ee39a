// FILE: muxd/src/internal/config/config.go
package config

// Config is the on-disk and CLI configuration of muxd
type Config struct {
	// Process files
	PidFile string `toml:"pid_file"`
	LogFile string `toml:"log_file"`

	// Detach into the background on start
	Daemon bool `toml:"daemon"`

	// Seconds to wait for a graceful stop before reporting failure
	StopTimeout int64 `toml:"stop_timeout"`

	// Prometheus endpoint, empty to disable
	MetricsAddr string `toml:"metrics_addr"`

	// Suppress operator console output
	Quiet bool `toml:"quiet"`

	Logging *LogConfig `toml:"logging"`

	// The first listener is not special; the master is elected
	Listeners []ListenerConfig `toml:"listeners"`
}

// Specs converts every configured listener into a ListenerSpec
func (c *Config) Specs() ([]ListenerSpec, error) {
	specs := make([]ListenerSpec, 0, len(c.Listeners))
	for i, l := range c.Listeners {
		spec, err := l.Spec()
		if err != nil {
			return nil, listenerErr(i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
