// FILE: muxd/src/internal/server/server.go
package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"muxd/src/internal/config"
	"muxd/src/internal/event"
	"muxd/src/internal/metrics"

	"github.com/lixenwraith/log"
)

// Server owns the elected master listener and the secondaries that share its process tree.
// It starts at most once; restarting means replacing the process.
type Server struct {
	master      *Listener
	secondaries []*Listener

	pidFile string
	logFile string
	daemon  bool

	factory EngineFactory
	logger  *log.Logger

	started atomic.Bool

	mu     sync.RWMutex
	engine Engine

	topology *Topology
}

// New creates an unstarted server for master
func New(master *Listener, factory EngineFactory, logger *log.Logger) *Server {
	return &Server{
		master:   master,
		factory:  factory,
		logger:   logger,
		topology: newTopology(),
	}
}

// AddSecondary attaches l to the master's process tree
func (s *Server) AddSecondary(l *Listener) {
	s.secondaries = append(s.secondaries, l)
}

func (s *Server) SetPidFile(path string) { s.pidFile = path }
func (s *Server) SetLogFile(path string) { s.logFile = path }
func (s *Server) SetDaemon(daemon bool)  { s.daemon = daemon }

// SetKernel replaces the master kernel
func (s *Server) SetKernel(k event.Kernel) {
	s.master.Kernel = k
}

func (s *Server) Master() *Listener { return s.master }

// Secondaries returns the secondary listeners in attach order
func (s *Server) Secondaries() []*Listener {
	out := make([]*Listener, len(s.secondaries))
	copy(out, s.secondaries)
	return out
}

func (s *Server) PidFile() string { return s.pidFile }
func (s *Server) LogFile() string { return s.logFile }
func (s *Server) Daemon() bool    { return s.daemon }

// Started reports whether Start has claimed the server
func (s *Server) Started() bool {
	return s.started.Load()
}

// Topology exposes the process bookkeeping
func (s *Server) Topology() *Topology {
	return s.topology
}

// Start allocates the engine, wires every listener and serves until shutdown.
// A second call returns nil without doing anything.
func (s *Server) Start(ctx context.Context) error {
	if s.started.Load() {
		return nil
	}

	masterEP, err := s.checkPreconditions()
	if err != nil {
		return err
	}

	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	eng, err := s.factory(masterEP, s.logger)
	if err != nil {
		return &EngineError{Op: "allocate", Listener: masterEP.Name, Err: err}
	}

	// Passthrough settings win over the process files
	base := config.Settings{
		config.KeyLogFile:   s.logFile,
		config.KeyPidFile:   s.pidFile,
		config.KeyDaemonize: s.daemon,
	}
	eng.Set(base.Merge(s.master.Settings()))

	bound := s.RegisterHandlers(eng.Master(), s.master.Kernel)
	s.logger.Debug("msg", "Master listener wired",
		"component", "server",
		"listener", s.master.Name(),
		"address", s.master.Spec.Address(),
		"handlers", bound)

	for _, l := range s.secondaries {
		ep, _ := l.Endpoint()
		port, err := eng.AddListener(ep)
		if err != nil {
			return &EngineError{Op: "add listener", Listener: l.Name(), Err: err}
		}
		if len(l.Settings()) > 0 {
			port.Set(l.Settings())
		}
		bound := s.RegisterHandlers(port, l.Kernel)
		s.logger.Debug("msg", "Secondary listener wired",
			"component", "server",
			"listener", l.Name(),
			"address", l.Spec.Address(),
			"handlers", bound)
	}

	eng.Observe(s.observe)

	s.mu.Lock()
	s.engine = eng
	s.mu.Unlock()

	metrics.RecordEngineStart()
	s.logger.Info("msg", "Starting engine",
		"component", "server",
		"master", s.master.Spec.Address(),
		"secondaries", len(s.secondaries),
		"pid_file", s.pidFile,
		"daemon", s.daemon)

	booted := func() {
		s.topology.boot(eng.MasterPID(), eng.ManagerPID(), eng.WorkerNum())
		s.logger.Info("msg", "Engine booted",
			"component", "server",
			"master_pid", eng.MasterPID(),
			"manager_pid", eng.ManagerPID(),
			"workers", eng.WorkerNum())
	}

	if err := eng.Serve(ctx, booted); err != nil {
		return &EngineError{Op: "serve", Listener: masterEP.Name, Err: err}
	}

	s.logger.Info("msg", "Engine stopped", "component", "server")
	return nil
}

func (s *Server) checkPreconditions() (Endpoint, error) {
	if s.pidFile == "" {
		return Endpoint{}, preconditionErr("pid file not set")
	}
	if s.logFile == "" {
		return Endpoint{}, preconditionErr("log file not set")
	}
	if s.factory == nil {
		return Endpoint{}, preconditionErr("no engine for listener %s", s.master.Name())
	}

	ep, err := s.master.Endpoint()
	if err != nil {
		return Endpoint{}, err
	}
	for _, l := range s.secondaries {
		if _, err := l.Endpoint(); err != nil {
			return Endpoint{}, err
		}
	}
	return ep, nil
}

// RegisterHandlers binds the kernel's discovered handlers to port in catalog order.
// It returns the number of bindings.
func (s *Server) RegisterHandlers(port Port, k event.Kernel) int {
	cursor := event.Discover(k)
	cursor.Rewind()

	n := 0
	for ; cursor.Valid(); cursor.Next() {
		b := cursor.Current()
		port.On(b.Event, b.Handler)
		n++
	}
	return n
}

func (s *Server) observe(ev *event.Event) {
	s.topology.setCurrent(ev.WorkerID)

	switch ev.Kind {
	case event.WorkerStart:
		s.topology.AddWorkMap(ev.WorkerID)
	case event.Task:
		s.topology.AddTaskMap(ev.SrcWorkerID, ev.TaskID)
	case event.Finish:
		s.topology.RemoveTaskMap(ev.WorkerID, ev.TaskID)
	}

	metrics.RecordEvent(ev.Listener, ev.Kind.String())
}

func (s *Server) running() Engine {
	if !s.started.Load() {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Reload restarts the event loop workers; master and manager keep running
func (s *Server) Reload() error {
	eng := s.running()
	if eng == nil {
		return nil
	}
	s.logger.Info("msg", "Reloading workers", "component", "server")
	return eng.Reload(ReloadWorkers)
}

// ReloadTask restarts the task workers only
func (s *Server) ReloadTask() error {
	eng := s.running()
	if eng == nil {
		return nil
	}
	s.logger.Info("msg", "Reloading task workers", "component", "server")
	return eng.Reload(ReloadTaskWorkers)
}

// Stop asks the engine to drain and shut down. It never rearms Start.
func (s *Server) Stop(ctx context.Context) error {
	eng := s.running()
	if eng == nil {
		return nil
	}
	s.logger.Info("msg", "Stopping engine", "component", "server")
	if err := eng.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop engine: %w", err)
	}
	return nil
}

// StopWork stops worker id, or all workers when id is negative
func (s *Server) StopWork(workerID int, wait bool) error {
	eng := s.running()
	if eng == nil {
		return nil
	}
	s.logger.Info("msg", "Stopping worker",
		"component", "server",
		"worker_id", workerID,
		"wait", wait)
	return eng.StopWorker(workerID, wait)
}

// Stats reports the listener layout and topology
func (s *Server) Stats() map[string]any {
	listeners := make([]map[string]any, 0, 1+len(s.secondaries))
	add := func(l *Listener, role string) {
		listeners = append(listeners, map[string]any{
			"type":    l.Name(),
			"role":    role,
			"address": l.Spec.Address(),
			"class":   l.Class.String(),
		})
	}
	add(s.master, "master")
	for _, l := range s.secondaries {
		add(l, "secondary")
	}

	return map[string]any{
		"started":        s.Started(),
		"pid_file":       s.pidFile,
		"log_file":       s.logFile,
		"daemon":         s.daemon,
		"listeners":      listeners,
		"master_pid":     s.topology.MasterPID(),
		"manager_pid":    s.topology.ManagerPID(),
		"current_worker": s.topology.CurrentWorkerID(),
		"workers":        s.topology.WorkIDMap(),
		"tasks":          s.topology.TaskIDMap(),
	}
}
