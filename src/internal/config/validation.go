// FILE: muxd/src/internal/config/validation.go
package config

import (
	"fmt"
	"net"
	"strings"
)

func (c *Config) validate() error {
	if c.Logging == nil {
		c.Logging = DefaultLogConfig()
	}
	if err := c.Logging.validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if c.StopTimeout < 0 {
		return fmt.Errorf("stop_timeout cannot be negative: %d", c.StopTimeout)
	}

	if len(c.Listeners) == 0 {
		return fmt.Errorf("no listeners configured")
	}

	for i := range c.Listeners {
		if err := validateListener(i, &c.Listeners[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateListener(index int, l *ListenerConfig) error {
	if err := nonEmpty(l.Type); err != nil {
		return listenerErr(index, fmt.Errorf("type: %w", err))
	}
	if err := nonEmpty(l.Kernel); err != nil {
		return listenerErr(index, fmt.Errorf("kernel: %w", err))
	}

	spec, err := l.Spec()
	if err != nil {
		return listenerErr(index, err)
	}

	if l.Port > 0 {
		if err := validPort(l.Port); err != nil {
			return listenerErr(index, err)
		}
	} else if l.Port < 0 {
		return listenerErr(index, fmt.Errorf("port cannot be negative: %d", l.Port))
	}

	// Unix listeners carry a path in host; without sock_type the type decides
	st := spec.SockType
	if st == nil {
		if implied, ok := ImpliedSockType(spec.Type); ok {
			st = &implied
		}
	}
	ipHost := st == nil || !st.IsUnix()
	if ipHost && l.Host != "" && l.Host != "0.0.0.0" && l.Host != "::" {
		if err := ipAddress(l.Host); err != nil {
			return listenerErr(index, err)
		}
	}

	if err := ValidateSettings(spec.Settings); err != nil {
		return listenerErr(index, err)
	}

	return nil
}

func nonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value cannot be empty")
	}
	return nil
}

func validPort(port int64) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d (valid: 1-65535)", port)
	}
	return nil
}

func ipAddress(host string) error {
	if net.ParseIP(host) == nil {
		return fmt.Errorf("invalid IP address: %s", host)
	}
	return nil
}

func listenerErr(index int, err error) error {
	return fmt.Errorf("listener[%d]: %w", index, err)
}
