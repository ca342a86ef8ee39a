// FILE: muxd/src/internal/engine/port.go
package engine

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"muxd/src/internal/config"
	"muxd/src/internal/event"
	"muxd/src/internal/server"
)

// port is one endpoint and the handler table bound to it
type port struct {
	ep server.Endpoint

	mu       sync.RWMutex
	handlers map[event.Kind]event.Handler
	settings config.Settings
}

func newPort(ep server.Endpoint) *port {
	return &port{ep: ep, handlers: make(map[event.Kind]event.Handler)}
}

func (p *port) Set(s config.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = p.settings.Merge(s)
}

func (p *port) On(kind event.Kind, h event.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

func (p *port) handler(kind event.Kind) event.Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handlers[kind]
}

func (p *port) has(kind event.Kind) bool {
	return p.handler(kind) != nil
}

func (p *port) snapshot() config.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings.Clone()
}

// kind classifies the port by the runtime that serves it
func (p *port) kind() portKind {
	switch {
	case p.ep.Class == server.ClassWebSocket:
		return portWebSocket
	case p.ep.Class == server.ClassHTTP:
		return portHTTP
	case p.ep.SockType == config.SockUnixDgram:
		return portPacket
	default:
		return portGnet
	}
}

type portKind int

const (
	portGnet portKind = iota
	portPacket
	portHTTP
	portWebSocket
)

// hostPort is the dial form of the endpoint, or the socket path for unix types
func (p *port) hostPort() string {
	if p.ep.SockType.IsUnix() {
		return p.ep.Host
	}
	return net.JoinHostPort(p.ep.Host, strconv.FormatInt(p.ep.Port, 10))
}

// gnetAddr is the protocol-prefixed address gnet expects
func (p *port) gnetAddr() string {
	return p.ep.SockType.Network() + "://" + p.hostPort()
}

func validateEndpoint(ep server.Endpoint) error {
	if !ep.SockType.Valid() {
		return fmt.Errorf("invalid sock_type %q for listener %s", ep.SockType, ep.Name)
	}
	if !ep.Mode.Valid() {
		return fmt.Errorf("invalid mode %q for listener %s", ep.Mode, ep.Name)
	}
	if ep.Class != server.ClassBase && ep.SockType.IsDatagram() {
		return fmt.Errorf("%s listener %s requires a stream socket, got %s", ep.Class, ep.Name, ep.SockType)
	}
	if ep.SockType.IsUnix() && ep.Host == "" {
		return fmt.Errorf("unix listener %s requires a socket path in host", ep.Name)
	}
	if !ep.SockType.IsUnix() && (ep.Port < 0 || ep.Port > 65535) {
		return fmt.Errorf("invalid port %d for listener %s", ep.Port, ep.Name)
	}
	return nil
}
