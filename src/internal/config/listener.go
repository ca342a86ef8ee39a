// FILE: muxd/src/internal/config/listener.go
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Mode selects how the engine spreads work
type Mode string

const (
	// ModeProcess runs one event loop per worker
	ModeProcess Mode = "process"
	// ModeBase runs a single event loop that accepts and serves
	ModeBase Mode = "base"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeProcess || m == ModeBase
}

// SockType is the transport a listener binds
type SockType string

const (
	SockTCP        SockType = "tcp"
	SockTCP6       SockType = "tcp6"
	SockUDP        SockType = "udp"
	SockUDP6       SockType = "udp6"
	SockUnixDgram  SockType = "unix-dgram"
	SockUnixStream SockType = "unix-stream"
)

// Valid reports whether s is a known socket type
func (s SockType) Valid() bool {
	switch s {
	case SockTCP, SockTCP6, SockUDP, SockUDP6, SockUnixDgram, SockUnixStream:
		return true
	}
	return false
}

// IsUnix reports whether the host of the listener is a socket path
func (s SockType) IsUnix() bool {
	return s == SockUnixDgram || s == SockUnixStream
}

// IsDatagram reports whether the transport is message oriented
func (s SockType) IsDatagram() bool {
	return s == SockUDP || s == SockUDP6 || s == SockUnixDgram
}

// Network returns the Go network name for s
func (s SockType) Network() string {
	switch s {
	case SockUnixDgram:
		return "unixgram"
	case SockUnixStream:
		return "unix"
	default:
		return string(s)
	}
}

// builtinSockTypes is the transport each built-in listener type binds
var builtinSockTypes = map[string]SockType{
	"websocket":     SockTCP,
	"http":          SockTCP,
	"tcp":           SockTCP,
	"udp":           SockUDP,
	"unix-datagram": SockUnixDgram,
	"dgram":         SockUnixDgram,
	"unix-stream":   SockUnixStream,
	"stream":        SockUnixStream,
}

// ImpliedSockType returns the transport of a built-in listener type; ok is false for custom types
func ImpliedSockType(typ string) (st SockType, ok bool) {
	st, ok = builtinSockTypes[strings.ToLower(strings.TrimSpace(typ))]
	return st, ok
}

// ListenerSpec describes one endpoint before and after default resolution.
// Nil fields are unset and take the value of the type defaults on Merge.
type ListenerSpec struct {
	Type     string
	Host     *string
	Port     *int64
	Mode     *Mode
	SockType *SockType
	Kernel   string
	Settings Settings
}

// Ptr returns a pointer to v, for building specs inline
func Ptr[T any](v T) *T {
	return &v
}

// Merge overlays override on defaults; set fields and settings keys of override win.
// Neither input is modified.
func Merge(defaults, override ListenerSpec) ListenerSpec {
	out := ListenerSpec{
		Type:     defaults.Type,
		Host:     clonePtr(defaults.Host),
		Port:     clonePtr(defaults.Port),
		Mode:     clonePtr(defaults.Mode),
		SockType: clonePtr(defaults.SockType),
		Kernel:   defaults.Kernel,
		Settings: defaults.Settings.Merge(override.Settings),
	}

	if override.Type != "" {
		out.Type = override.Type
	}
	if override.Host != nil {
		out.Host = clonePtr(override.Host)
	}
	if override.Port != nil {
		out.Port = clonePtr(override.Port)
	}
	if override.Mode != nil {
		out.Mode = clonePtr(override.Mode)
	}
	if override.SockType != nil {
		out.SockType = clonePtr(override.SockType)
	}
	if override.Kernel != "" {
		out.Kernel = override.Kernel
	}

	return out
}

// Missing lists the endpoint fields still unset
func (s ListenerSpec) Missing() []string {
	var missing []string
	if s.Host == nil {
		missing = append(missing, "host")
	}
	if s.Port == nil {
		missing = append(missing, "port")
	}
	if s.Mode == nil {
		missing = append(missing, "mode")
	}
	if s.SockType == nil {
		missing = append(missing, "sock_type")
	}
	return missing
}

// Address renders the endpoint for logs, e.g. tcp://0.0.0.0:9501 or unix:///run/muxd.sock
func (s ListenerSpec) Address() string {
	if s.Host == nil || s.SockType == nil {
		return s.Type
	}
	if s.SockType.IsUnix() {
		return s.SockType.Network() + "://" + *s.Host
	}
	port := int64(0)
	if s.Port != nil {
		port = *s.Port
	}
	return fmt.Sprintf("%s://%s", s.SockType.Network(), net.JoinHostPort(*s.Host, strconv.FormatInt(port, 10)))
}

// ListenerConfig is the file form of a listener
type ListenerConfig struct {
	// Protocol type: websocket, http, tcp, udp, unix-datagram, unix-stream or a custom name
	Type string `toml:"type"`

	Host     string `toml:"host"`
	Port     int64  `toml:"port"`
	Mode     string `toml:"mode"`
	SockType string `toml:"sock_type"`

	// Kernel identifier resolved against the kernel registry
	Kernel string `toml:"kernel"`

	// Engine settings, opaque except for key validation
	Setting map[string]any `toml:"setting"`
}

// Spec converts the file form into a ListenerSpec; zero values stay unset
func (c ListenerConfig) Spec() (ListenerSpec, error) {
	spec := ListenerSpec{
		Type:   strings.ToLower(strings.TrimSpace(c.Type)),
		Kernel: c.Kernel,
	}

	if c.Host != "" {
		spec.Host = Ptr(c.Host)
	}
	if c.Port != 0 {
		spec.Port = Ptr(c.Port)
	}
	if c.Mode != "" {
		m := Mode(strings.ToLower(c.Mode))
		if !m.Valid() {
			return spec, fmt.Errorf("invalid mode: %s (valid: process, base)", c.Mode)
		}
		spec.Mode = &m
	}
	if c.SockType != "" {
		st := SockType(strings.ToLower(c.SockType))
		if !st.Valid() {
			return spec, fmt.Errorf("invalid sock_type: %s", c.SockType)
		}
		spec.SockType = &st
	}
	if len(c.Setting) > 0 {
		spec.Settings = Settings(c.Setting).Clone()
	}

	return spec, nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
