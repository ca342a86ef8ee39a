// FILE: muxd/src/internal/server/listener.go
package server

import (
	"strings"

	"muxd/src/internal/config"
	"muxd/src/internal/event"
)

// Listener is one endpoint with its own kernel and settings
type Listener struct {
	Spec   config.ListenerSpec
	Class  Class
	Kernel event.Kernel
}

// NewListener pairs a merged spec with its resolved kernel
func NewListener(spec config.ListenerSpec, class Class, kernel event.Kernel) *Listener {
	return &Listener{Spec: spec, Class: class, Kernel: kernel}
}

// Name is the listener type
func (l *Listener) Name() string {
	return l.Spec.Type
}

// Settings returns the listener level engine settings
func (l *Listener) Settings() config.Settings {
	return l.Spec.Settings
}

// Endpoint resolves the spec into an address; every endpoint field must be set
func (l *Listener) Endpoint() (Endpoint, error) {
	if missing := l.Spec.Missing(); len(missing) > 0 {
		return Endpoint{}, preconditionErr("listener %s missing %s", l.Spec.Type, strings.Join(missing, ", "))
	}
	return Endpoint{
		Name:     l.Spec.Type,
		Host:     *l.Spec.Host,
		Port:     *l.Spec.Port,
		SockType: *l.Spec.SockType,
		Mode:     *l.Spec.Mode,
		Class:    l.Class,
	}, nil
}
