// FILE: muxd/src/internal/engine/engine.go

// Package engine is the in-process event loop runtime behind server.Engine.
// Workers are logical ids inside one OS process: 0..worker_num-1 serve connections,
// the next task_worker_num ids run tasks.
package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"muxd/src/internal/config"
	"muxd/src/internal/event"
	"muxd/src/internal/limit"
	"muxd/src/internal/process"
	"muxd/src/internal/server"
	mtls "muxd/src/internal/tls"

	"github.com/jonboulle/clockwork"
	"github.com/lixenwraith/log"
	"github.com/panjf2000/gnet/v2"
	gerrors "github.com/panjf2000/gnet/v2/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyServing = errors.New("engine already serving")
	ErrNotServing     = errors.New("engine not serving")
	ErrNoTaskHandler  = errors.New("master listener has no task handler")
	ErrTLSUnsupported = errors.New("ssl_cert_file is only supported on http and websocket listeners")
)

var _ server.Engine = (*Engine)(nil)

// Engine multiplexes every listener of one server onto gnet, fasthttp and gorilla runtimes
type Engine struct {
	logger *log.Logger
	clock  clockwork.Clock
	pid    int

	master *port
	ports  []*port

	mu       sync.RWMutex
	settings config.Settings
	observer func(*event.Event)
	opts     options
	cancel   context.CancelFunc

	serving  atomic.Bool
	booted   atomic.Bool
	bootOnce sync.Once
	onBoot   func()
	done     chan struct{}

	gnetMu  sync.Mutex
	gnetEng *gnet.Engine

	https   []*httpListener
	sockets []*wsListener
	packets []*packetListener
	tasks   *taskPool
	limiter *limit.Conns

	conns   sync.Map
	connSeq atomic.Uint64
	reqSeq  atomic.Uint64
}

// Option customizes an Engine
type Option func(*Engine)

// WithClock replaces the clock driving timers and idle checks
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Factory returns a server.EngineFactory building engines with opts
func Factory(opts ...Option) server.EngineFactory {
	return func(ep server.Endpoint, logger *log.Logger) (server.Engine, error) {
		return newEngine(ep, logger, opts...)
	}
}

// New allocates an engine for the master endpoint ep
func New(ep server.Endpoint, logger *log.Logger) (server.Engine, error) {
	return newEngine(ep, logger)
}

func newEngine(ep server.Endpoint, logger *log.Logger, opts ...Option) (*Engine, error) {
	if err := validateEndpoint(ep); err != nil {
		return nil, err
	}

	master := newPort(ep)
	e := &Engine{
		logger: logger,
		clock:  clockwork.NewRealClock(),
		pid:    os.Getpid(),
		master: master,
		ports:  []*port{master},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Set(s config.Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = e.settings.Merge(s)
}

func (e *Engine) Master() server.Port {
	return e.master
}

func (e *Engine) AddListener(ep server.Endpoint) (server.Port, error) {
	if e.serving.Load() {
		return nil, fmt.Errorf("cannot add listener %s: %w", ep.Name, ErrAlreadyServing)
	}
	if err := validateEndpoint(ep); err != nil {
		return nil, err
	}
	p := newPort(ep)
	e.ports = append(e.ports, p)
	return p, nil
}

func (e *Engine) Observe(fn func(ev *event.Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = fn
}

func (e *Engine) MasterPID() int  { return e.pid }
func (e *Engine) ManagerPID() int { return e.pid }

func (e *Engine) WorkerNum() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts.workerNum
}

func (e *Engine) options() options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts
}

// portOptions resolves the options of p: process settings overlaid with its own
func (e *Engine) portOptions(p *port) options {
	return parseOptions(e.portSettings(p), p.ep.Mode)
}

func (e *Engine) portSettings(p *port) config.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.Merge(p.snapshot())
}

// listen opens a stream listener for p, wrapped in TLS when ssl_cert_file is set
func (e *Engine) listen(p *port) (net.Listener, error) {
	ln, err := net.Listen(p.ep.SockType.Network(), p.hostPort())
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", p.ep.Name, err)
	}

	topts, ok := mtls.FromSettings(e.portSettings(p))
	if !ok {
		return ln, nil
	}
	cfg, err := topts.ServerConfig()
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("listener %s: %w", p.ep.Name, err)
	}
	e.logger.Debug("msg", "TLS enabled",
		"component", "engine",
		"listener", p.ep.Name,
		"tls", mtls.Describe(cfg))
	return tls.NewListener(ln, cfg), nil
}

// Serve opens every listener and blocks until Shutdown or a fatal listener error
func (e *Engine) Serve(ctx context.Context, booted func()) error {
	if !e.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}
	defer close(e.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.opts = parseOptions(e.settings, e.master.ep.Mode)
	e.limiter = limit.NewConns(e.opts.maxConn)
	e.cancel = cancel
	e.onBoot = booted
	e.mu.Unlock()
	opts := e.options()

	var gnetPorts []*port
	for _, p := range e.ports {
		if p.ep.SockType.IsUnix() {
			removeStaleSocket(p.ep.Host)
		}
		if p.kind() == portGnet {
			gnetPorts = append(gnetPorts, p)
		}
	}

	if err := e.openListeners(); err != nil {
		e.closeListeners()
		return err
	}

	if opts.taskWorkerNum > 0 {
		tasks, err := newTaskPool(e, opts.workerNum, opts.taskWorkerNum)
		if err != nil {
			e.closeListeners()
			return err
		}
		e.tasks = tasks
	}

	if opts.pidFile != "" {
		if err := process.WritePidFile(opts.pidFile, e.pid); err != nil {
			e.closeListeners()
			return err
		}
		defer func() {
			if err := process.RemovePidFile(opts.pidFile, e.pid); err != nil {
				e.logger.Warn("msg", "Failed to remove pid file",
					"component", "engine",
					"pid_file", opts.pidFile,
					"error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(gnetPorts) > 0 {
		h := newGnetHandler(e, gnetPorts)
		g.Go(func() error {
			err := gnet.Rotate(h, h.addrs(), opts.gnetOptions(e.logger)...)
			if errors.Is(err, gerrors.ErrEngineShutdown) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("gnet listeners: %w", err)
			}
			return nil
		})
	} else {
		e.boot()
		if opts.heartbeatCheck > 0 {
			g.Go(func() error {
				e.tickLoop(gctx, opts.heartbeatCheck)
				return nil
			})
		}
	}

	for _, l := range e.https {
		g.Go(l.serve)
	}
	for _, l := range e.sockets {
		g.Go(l.serve)
	}
	for _, l := range e.packets {
		g.Go(func() error { return l.serve(e) })
	}

	g.Go(func() error {
		<-gctx.Done()
		return e.stopAll()
	})

	e.logger.Info("msg", "Engine serving",
		"component", "engine",
		"listeners", len(e.ports),
		"workers", opts.workerNum,
		"task_workers", opts.taskWorkerNum)

	err := g.Wait()

	if e.booted.Load() {
		e.emitShutdown()
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// boot raises the startup events once and reports readiness
func (e *Engine) boot() {
	e.bootOnce.Do(func() {
		opts := e.options()

		e.emit(&event.Event{Kind: event.Start})
		e.emit(&event.Event{Kind: event.ManagerStart})
		for id := 0; id < opts.workerNum+opts.taskWorkerNum; id++ {
			e.emit(&event.Event{Kind: event.WorkerStart, WorkerID: id})
		}

		e.booted.Store(true)

		e.mu.RLock()
		cb := e.onBoot
		e.mu.RUnlock()
		if cb != nil {
			cb()
		}
	})
}

func (e *Engine) emitShutdown() {
	opts := e.options()
	for id := 0; id < opts.workerNum+opts.taskWorkerNum; id++ {
		e.emit(&event.Event{Kind: event.WorkerStop, WorkerID: id})
	}
	e.emit(&event.Event{Kind: event.ManagerStop})
	e.emit(&event.Event{Kind: event.Shutdown})
}

// Shutdown stops every listener and waits for Serve to return
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopAll shuts every runtime down concurrently within max_wait_time
func (e *Engine) stopAll() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.options().maxWait)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	e.gnetMu.Lock()
	eng := e.gnetEng
	e.gnetMu.Unlock()
	if eng != nil {
		g.Go(func() error {
			err := eng.Stop(gctx)
			if errors.Is(err, gerrors.ErrEngineInShutdown) {
				return nil
			}
			return err
		})
	}
	for _, l := range e.https {
		g.Go(func() error { return l.shutdown(gctx) })
	}
	for _, l := range e.sockets {
		g.Go(func() error { return l.shutdown(gctx) })
	}
	for _, l := range e.packets {
		g.Go(l.close)
	}
	if e.tasks != nil {
		g.Go(func() error { return e.tasks.release(e.options().maxWait) })
	}

	if err := g.Wait(); err != nil {
		e.logger.Warn("msg", "Engine stopped with errors",
			"component", "engine",
			"error", err)
		return err
	}
	return nil
}

// Reload restarts the workers in scope; listeners stay open
func (e *Engine) Reload(scope server.ReloadScope) error {
	if !e.booted.Load() {
		return ErrNotServing
	}
	opts := e.options()

	switch scope {
	case server.ReloadTaskWorkers:
		if e.tasks == nil {
			return nil
		}
		return e.tasks.reload(opts.maxWait)
	default:
		var g errgroup.Group
		for id := 0; id < opts.workerNum; id++ {
			g.Go(func() error {
				e.emit(&event.Event{Kind: event.WorkerStop, WorkerID: id})
				e.emit(&event.Event{Kind: event.WorkerStart, WorkerID: id})
				return nil
			})
		}
		return g.Wait()
	}
}

// StopWorker retires worker id, or every worker when id < 0, and starts a replacement.
// Without wait the restart runs in the background.
func (e *Engine) StopWorker(id int, wait bool) error {
	if !e.booted.Load() {
		return ErrNotServing
	}
	opts := e.options()
	total := opts.workerNum + opts.taskWorkerNum

	var ids []int
	switch {
	case id < 0:
		for i := 0; i < total; i++ {
			ids = append(ids, i)
		}
	case id < total:
		ids = []int{id}
	default:
		return fmt.Errorf("worker %d out of range (%d workers)", id, total)
	}

	run := func() error {
		var g errgroup.Group
		for _, wid := range ids {
			g.Go(func() error {
				e.emit(&event.Event{Kind: event.WorkerStop, WorkerID: wid})
				e.emit(&event.Event{Kind: event.WorkerExit, WorkerID: wid})
				e.emit(&event.Event{Kind: event.WorkerStart, WorkerID: wid})
				return nil
			})
		}
		return g.Wait()
	}

	if wait {
		return run()
	}
	go func() {
		if err := run(); err != nil {
			e.logger.Warn("msg", "Worker restart failed",
				"component", "engine",
				"worker_id", id,
				"error", err)
		}
	}()
	return nil
}

// Task implements event.Dispatcher
func (e *Engine) Task(fromWorker int, data []byte) (int, error) {
	if e.tasks == nil {
		return -1, event.ErrNoTaskWorkers
	}
	if !e.master.has(event.Task) {
		return -1, ErrNoTaskHandler
	}
	return e.tasks.submit(fromWorker, data)
}

// SendMessage implements event.Dispatcher; delivery is asynchronous
func (e *Engine) SendMessage(fromWorker, to int, data []byte) error {
	opts := e.options()
	if to < 0 || to >= opts.workerNum+opts.taskWorkerNum {
		return fmt.Errorf("worker %d out of range", to)
	}
	if to == fromWorker {
		return fmt.Errorf("worker %d cannot message itself", to)
	}
	go e.emit(&event.Event{
		Kind:        event.PipeMessage,
		WorkerID:    to,
		SrcWorkerID: fromWorker,
		Data:        data,
	})
	return nil
}

// emit raises a process level event on the master listener
func (e *Engine) emit(ev *event.Event) event.Action {
	return e.dispatch(e.master, ev)
}

// notify runs only the observer for ev, as if it arrived on p
func (e *Engine) notify(p *port, ev *event.Event) {
	ev.Listener = p.ep.Name
	if ev.Dispatcher == nil {
		ev.Dispatcher = e
	}

	e.mu.RLock()
	observe := e.observer
	e.mu.RUnlock()
	if observe != nil {
		observe(ev)
	}
}

// dispatch runs the observer, then the handler bound on p for ev.Kind.
// A panicking handler is reported as a WorkerError event.
func (e *Engine) dispatch(p *port, ev *event.Event) (act event.Action) {
	e.notify(p, ev)

	h := p.handler(ev.Kind)
	if h == nil {
		return event.None
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err := fmt.Errorf("handler panic on %s: %v", ev.Kind, r)
		e.logger.Error("msg", "Handler panicked",
			"component", "engine",
			"listener", p.ep.Name,
			"event", ev.Kind.String(),
			"worker_id", ev.WorkerID,
			"error", err,
			"stack", string(debug.Stack()))

		if ev.Kind != event.WorkerError {
			e.emit(&event.Event{Kind: event.WorkerError, WorkerID: ev.WorkerID, Err: err})
		}

		act = event.None
		if ev.Conn != nil {
			act = event.CloseConn
		}
	}()

	act = h(ev)
	if act == event.ShutdownEngine {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), e.options().maxWait)
			defer cancel()
			_ = e.Shutdown(ctx)
		}()
	}
	return act
}

func (e *Engine) workerFor(seq uint64) int {
	n := e.options().workerNum
	if n <= 1 {
		return 0
	}
	return int(seq % uint64(n))
}

func (e *Engine) nextConnID() uint64 {
	return e.connSeq.Add(1)
}

func (e *Engine) track(st *connState) {
	st.touch(e.clock.Now())
	e.conns.Store(st.id, st)
}

func (e *Engine) untrack(id uint64) {
	e.conns.Delete(id)
}

// ConnCount reports the tracked live connections
func (e *Engine) ConnCount() int {
	n := 0
	e.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (e *Engine) tickLoop(ctx context.Context, every time.Duration) {
	ticker := e.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.tick()
		}
	}
}

// tick raises the timer event and closes connections idle past heartbeat_idle_time
func (e *Engine) tick() {
	e.emit(&event.Event{Kind: event.Timer})

	idle := e.options().heartbeatIdle
	if idle <= 0 {
		return
	}
	now := e.clock.Now()
	e.conns.Range(func(_, v any) bool {
		st := v.(*connState)
		if st.idle(now) > idle && st.close != nil {
			e.logger.Debug("msg", "Closing idle connection",
				"component", "engine",
				"listener", st.port.ep.Name,
				"conn_id", st.id)
			_ = st.close()
		}
		return true
	})
}

func (e *Engine) openListeners() error {
	for _, p := range e.ports {
		switch p.kind() {
		case portHTTP:
			ln, err := e.listen(p)
			if err != nil {
				return err
			}
			e.https = append(e.https, newHTTPListener(e, p, ln))
		case portWebSocket:
			ln, err := e.listen(p)
			if err != nil {
				return err
			}
			e.sockets = append(e.sockets, newWSListener(e, p, ln))
		case portGnet:
			if _, ok := mtls.FromSettings(e.portSettings(p)); ok {
				return fmt.Errorf("listener %s: %w", p.ep.Name, ErrTLSUnsupported)
			}
		case portPacket:
			if _, ok := mtls.FromSettings(e.portSettings(p)); ok {
				return fmt.Errorf("listener %s: %w", p.ep.Name, ErrTLSUnsupported)
			}
			pc, err := net.ListenPacket(p.ep.SockType.Network(), p.hostPort())
			if err != nil {
				return fmt.Errorf("listen %s: %w", p.ep.Name, err)
			}
			e.packets = append(e.packets, &packetListener{p: p, pc: pc})
		}
	}
	return nil
}

func (e *Engine) closeListeners() {
	for _, l := range e.https {
		_ = l.ln.Close()
	}
	for _, l := range e.sockets {
		_ = l.ln.Close()
	}
	for _, l := range e.packets {
		_ = l.close()
	}
}

func (e *Engine) setGnet(eng gnet.Engine) {
	e.gnetMu.Lock()
	defer e.gnetMu.Unlock()
	e.gnetEng = &eng
}

// removeStaleSocket unlinks a leftover unix socket file at path
func removeStaleSocket(path string) {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSocket == 0 {
		return
	}
	_ = os.Remove(path)
}
