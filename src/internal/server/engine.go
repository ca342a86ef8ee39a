// FILE: muxd/src/internal/server/engine.go
package server

import (
	"context"

	"muxd/src/internal/config"
	"muxd/src/internal/event"

	"github.com/lixenwraith/log"
)

// Class is the family of server implementation a listener needs
type Class int

const (
	ClassBase Class = iota
	ClassHTTP
	ClassWebSocket
)

func (c Class) String() string {
	switch c {
	case ClassHTTP:
		return "http"
	case ClassWebSocket:
		return "websocket"
	default:
		return "base"
	}
}

// Endpoint is a fully resolved listener address
type Endpoint struct {
	// Listener type, used to label events
	Name string

	Host     string
	Port     int64
	SockType config.SockType
	Mode     config.Mode
	Class    Class
}

// ReloadScope selects which workers a reload restarts
type ReloadScope int

const (
	ReloadWorkers ReloadScope = iota
	ReloadTaskWorkers
)

func (r ReloadScope) String() string {
	if r == ReloadTaskWorkers {
		return "task_workers"
	}
	return "workers"
}

// Port is a listener handle inside a running engine
type Port interface {
	// Set applies listener level settings
	Set(settings config.Settings)
	// On binds h to kind; a second binding of the same kind replaces the first
	On(kind event.Kind, h event.Handler)
}

// Engine is the event loop runtime a Server drives
type Engine interface {
	// Set applies process level settings
	Set(settings config.Settings)
	// Master is the handle of the endpoint the engine was allocated for
	Master() Port
	// AddListener opens another endpoint in the same process tree
	AddListener(ep Endpoint) (Port, error)
	// Observe installs fn, called for every event before its handler
	Observe(fn func(ev *event.Event))
	// Serve runs the engine until shutdown; booted is called once workers are up
	Serve(ctx context.Context, booted func()) error

	Reload(scope ReloadScope) error
	// StopWorker stops worker id, or every worker when id < 0
	StopWorker(id int, wait bool) error
	Shutdown(ctx context.Context) error

	MasterPID() int
	ManagerPID() int
	WorkerNum() int
}

// EngineFactory allocates an engine for the master endpoint
type EngineFactory func(ep Endpoint, logger *log.Logger) (Engine, error)
