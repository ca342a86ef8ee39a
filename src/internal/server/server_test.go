// FILE: muxd/src/internal/server/server_test.go
package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"muxd/src/internal/config"
	"muxd/src/internal/event"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	settings []config.Settings
	order    []event.Kind
	bound    map[event.Kind]event.Handler
}

func newFakePort() *fakePort {
	return &fakePort{bound: make(map[event.Kind]event.Handler)}
}

func (p *fakePort) Set(s config.Settings) { p.settings = append(p.settings, s) }

func (p *fakePort) On(kind event.Kind, h event.Handler) {
	p.order = append(p.order, kind)
	p.bound[kind] = h
}

type fakeEngine struct {
	mu sync.Mutex

	endpoint  Endpoint
	settings  config.Settings
	master    *fakePort
	listeners []Endpoint
	ports     []*fakePort
	observer  func(*event.Event)

	addErr    error
	serveErr  error
	onServe   func(e *fakeEngine)
	reloads   []ReloadScope
	stopped   []int
	shutdowns int
}

func (e *fakeEngine) Set(s config.Settings) { e.settings = s }
func (e *fakeEngine) Master() Port          { return e.master }

func (e *fakeEngine) AddListener(ep Endpoint) (Port, error) {
	if e.addErr != nil {
		return nil, e.addErr
	}
	p := newFakePort()
	e.listeners = append(e.listeners, ep)
	e.ports = append(e.ports, p)
	return p, nil
}

func (e *fakeEngine) Observe(fn func(*event.Event)) { e.observer = fn }

func (e *fakeEngine) Serve(ctx context.Context, booted func()) error {
	if e.serveErr != nil {
		return e.serveErr
	}
	booted()
	if e.onServe != nil {
		e.onServe(e)
	}
	return nil
}

func (e *fakeEngine) Reload(scope ReloadScope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reloads = append(e.reloads, scope)
	return nil
}

func (e *fakeEngine) StopWorker(id int, wait bool) error {
	e.stopped = append(e.stopped, id)
	return nil
}

func (e *fakeEngine) Shutdown(ctx context.Context) error {
	e.shutdowns++
	return nil
}

func (e *fakeEngine) MasterPID() int  { return 100 }
func (e *fakeEngine) ManagerPID() int { return 101 }
func (e *fakeEngine) WorkerNum() int  { return 2 }

type factoryRecorder struct {
	calls  int
	engine *fakeEngine
	err    error
}

func (f *factoryRecorder) factory(ep Endpoint, logger *log.Logger) (Engine, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.engine.endpoint = ep
	return f.engine, nil
}

func spec(typ string, port int64, sock config.SockType) config.ListenerSpec {
	return config.ListenerSpec{
		Type:     typ,
		Host:     config.Ptr("127.0.0.1"),
		Port:     config.Ptr(port),
		Mode:     config.Ptr(config.ModeProcess),
		SockType: config.Ptr(sock),
	}
}

func noop(*event.Event) event.Action { return event.None }

func newTestServer(t *testing.T, rec *factoryRecorder) *Server {
	t.Helper()
	if rec.engine == nil {
		rec.engine = &fakeEngine{master: newFakePort()}
	}
	master := NewListener(spec("websocket", 9001, config.SockTCP), ClassWebSocket,
		event.NewBundle().On(event.Message, noop).On(event.Open, noop))
	s := New(master, rec.factory, log.NewLogger())
	s.SetPidFile("/tmp/muxd-test.pid")
	s.SetLogFile("/tmp/muxd-test.log")
	return s
}

func TestStart(t *testing.T) {
	t.Run("AllocatesOnce", func(t *testing.T) {
		rec := &factoryRecorder{}
		s := newTestServer(t, rec)

		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.Start(context.Background()))

		assert.Equal(t, 1, rec.calls)
		assert.True(t, s.Started())
	})

	t.Run("ProcessSettings", func(t *testing.T) {
		rec := &factoryRecorder{}
		s := newTestServer(t, rec)
		s.SetDaemon(true)
		s.master.Spec.Settings = config.Settings{config.KeyWorkerNum: 4, config.KeyLogFile: "/var/log/override.log"}

		require.NoError(t, s.Start(context.Background()))

		got := rec.engine.settings
		assert.Equal(t, "/var/log/override.log", got[config.KeyLogFile])
		assert.Equal(t, "/tmp/muxd-test.pid", got[config.KeyPidFile])
		assert.Equal(t, true, got[config.KeyDaemonize])
		assert.Equal(t, 4, got[config.KeyWorkerNum])
		assert.Equal(t, "websocket", rec.engine.endpoint.Name)
		assert.Equal(t, ClassWebSocket, rec.engine.endpoint.Class)
	})

	t.Run("SecondariesOwnKernels", func(t *testing.T) {
		rec := &factoryRecorder{}
		s := newTestServer(t, rec)

		tcp := NewListener(spec("tcp", 9000, config.SockTCP), ClassBase,
			event.NewBundle().On(event.Close, noop).On(event.Receive, noop))
		tcp.Spec.Settings = config.Settings{config.KeyOpenTCPNoDelay: true}
		udp := NewListener(spec("udp", 9002, config.SockUDP), ClassBase, event.NewBundle())
		s.AddSecondary(tcp)
		s.AddSecondary(udp)

		require.NoError(t, s.Start(context.Background()))

		eng := rec.engine
		assert.Equal(t, []event.Kind{event.Message, event.Open}, eng.master.order)
		require.Len(t, eng.listeners, 2)
		assert.Equal(t, int64(9000), eng.listeners[0].Port)
		assert.Equal(t, int64(9002), eng.listeners[1].Port)

		assert.Equal(t, []event.Kind{event.Receive, event.Close}, eng.ports[0].order)
		assert.Equal(t, []config.Settings{{config.KeyOpenTCPNoDelay: true}}, eng.ports[0].settings)

		assert.Empty(t, eng.ports[1].order)
		assert.Empty(t, eng.ports[1].settings)
	})

	t.Run("Preconditions", func(t *testing.T) {
		cases := map[string]func(s *Server){
			"NoPidFile": func(s *Server) { s.SetPidFile("") },
			"NoLogFile": func(s *Server) { s.SetLogFile("") },
			"NoHost":    func(s *Server) { s.master.Spec.Host = nil },
			"NoMode":    func(s *Server) { s.master.Spec.Mode = nil },
			"SecondaryNoPort": func(s *Server) {
				l := NewListener(spec("tcp", 1, config.SockTCP), ClassBase, event.NewBundle())
				l.Spec.Port = nil
				s.AddSecondary(l)
			},
		}

		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				rec := &factoryRecorder{}
				s := newTestServer(t, rec)
				mutate(s)

				err := s.Start(context.Background())
				assert.ErrorIs(t, err, ErrPrecondition)
				assert.Equal(t, 0, rec.calls)
				assert.False(t, s.Started())
			})
		}
	})

	t.Run("AllocationFailure", func(t *testing.T) {
		rec := &factoryRecorder{err: errors.New("bind: address in use")}
		s := newTestServer(t, rec)

		err := s.Start(context.Background())
		assert.ErrorIs(t, err, ErrEngineStart)
		var engErr *EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, "allocate", engErr.Op)

		// The latch does not reset
		rec.err = nil
		assert.NoError(t, s.Start(context.Background()))
		assert.Equal(t, 1, rec.calls)
	})

	t.Run("AddListenerFailure", func(t *testing.T) {
		rec := &factoryRecorder{engine: &fakeEngine{master: newFakePort(), addErr: errors.New("boom")}}
		s := newTestServer(t, rec)
		s.AddSecondary(NewListener(spec("tcp", 9000, config.SockTCP), ClassBase, event.NewBundle()))

		err := s.Start(context.Background())
		assert.ErrorIs(t, err, ErrEngineStart)
		assert.ErrorContains(t, err, "tcp")
	})

	t.Run("ServeFailure", func(t *testing.T) {
		rec := &factoryRecorder{engine: &fakeEngine{master: newFakePort(), serveErr: errors.New("listen failed")}}
		s := newTestServer(t, rec)

		assert.ErrorIs(t, s.Start(context.Background()), ErrEngineStart)
	})
}

func TestControlBeforeStart(t *testing.T) {
	rec := &factoryRecorder{}
	s := newTestServer(t, rec)

	assert.NoError(t, s.Reload())
	assert.NoError(t, s.ReloadTask())
	assert.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.StopWork(-1, true))

	assert.Equal(t, 0, rec.calls)
	assert.Equal(t, 0, s.Topology().MasterPID())
	assert.Equal(t, 0, s.Topology().ManagerPID())
	assert.Equal(t, -1, s.Topology().CurrentWorkerID())
	assert.Empty(t, s.Topology().WorkIDMap())
	assert.Empty(t, s.Topology().TaskIDMap())
}

func TestControlAfterStart(t *testing.T) {
	rec := &factoryRecorder{}
	s := newTestServer(t, rec)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Reload())
	require.NoError(t, s.ReloadTask())
	require.NoError(t, s.StopWork(1, false))
	require.NoError(t, s.StopWork(-1, true))
	require.NoError(t, s.Stop(context.Background()))

	assert.Equal(t, []ReloadScope{ReloadWorkers, ReloadTaskWorkers}, rec.engine.reloads)
	assert.Equal(t, []int{1, -1}, rec.engine.stopped)
	assert.Equal(t, 1, rec.engine.shutdowns)

	// Stop never rearms Start
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, rec.calls)
}

func TestTopologyObserver(t *testing.T) {
	rec := &factoryRecorder{engine: &fakeEngine{master: newFakePort()}}
	rec.engine.onServe = func(e *fakeEngine) {
		e.observer(&event.Event{Kind: event.WorkerStart, WorkerID: 0, Listener: "websocket"})
		e.observer(&event.Event{Kind: event.WorkerStart, WorkerID: 1, Listener: "websocket"})
		e.observer(&event.Event{Kind: event.Task, WorkerID: 2, SrcWorkerID: 1, TaskID: 7})
		e.observer(&event.Event{Kind: event.Task, WorkerID: 2, SrcWorkerID: 1, TaskID: 3})
		e.observer(&event.Event{Kind: event.Finish, WorkerID: 1, TaskID: 7})
		// Ended without a result
		e.observer(&event.Event{Kind: event.Task, WorkerID: 2, SrcWorkerID: 0, TaskID: 9})
		e.observer(&event.Event{Kind: event.Finish, WorkerID: 0, TaskID: 9})
		e.observer(&event.Event{Kind: event.Finish, WorkerID: 1, TaskID: 99})
	}
	s := newTestServer(t, rec)
	require.NoError(t, s.Start(context.Background()))

	topo := s.Topology()
	assert.Equal(t, 100, topo.MasterPID())
	assert.Equal(t, 101, topo.ManagerPID())
	assert.Len(t, topo.WorkIDMap(), 2)
	assert.Equal(t, map[int][]int{1: {3}}, topo.TaskIDMap())
	assert.Equal(t, 1, topo.CurrentWorkerID())

	assert.Equal(t, RoleRegularWorker, topo.WorkerRole(0))
	assert.Equal(t, RoleRegularWorker, topo.WorkerRole(1))
	assert.Equal(t, RoleTaskWorker, topo.WorkerRole(2))
	assert.Equal(t, RoleUnknown, topo.WorkerRole(-1))
}

func TestTopology(t *testing.T) {
	topo := newTopology()
	topo.pid = func() int { return 4242 }

	t.Run("UnknownBeforeBoot", func(t *testing.T) {
		assert.Equal(t, RoleUnknown, topo.WorkerRole(0))
		assert.Equal(t, RoleUnknown, topo.CurrentWorkerRole())
	})

	t.Run("CurrentWorkerDefault", func(t *testing.T) {
		topo.AddWorkMap(-1)
		assert.Empty(t, topo.WorkIDMap())

		topo.setCurrent(3)
		topo.AddWorkMap(-1)
		assert.Equal(t, map[int]int{3: 4242}, topo.WorkIDMap())
		assert.Equal(t, 4242, topo.CurrentWorkerPID())
	})

	t.Run("TaskMembership", func(t *testing.T) {
		topo.AddTaskMap(0, 1)
		topo.AddTaskMap(0, 2)
		topo.RemoveTaskMap(0, 1)
		topo.RemoveTaskMap(5, 1)
		assert.Equal(t, map[int][]int{0: {2}}, topo.TaskIDMap())

		topo.RemoveTaskMap(0, 2)
		assert.Empty(t, topo.TaskIDMap())
	})

	t.Run("CopiesAreIsolated", func(t *testing.T) {
		m := topo.WorkIDMap()
		m[99] = 1
		assert.NotContains(t, topo.WorkIDMap(), 99)
	})

	t.Run("RolesAfterBoot", func(t *testing.T) {
		topo.boot(1, 2, 4)
		assert.Equal(t, RoleRegularWorker, topo.WorkerRole(3))
		assert.Equal(t, RoleTaskWorker, topo.WorkerRole(4))
		assert.Equal(t, RoleRegularWorker, topo.CurrentWorkerRole())
	})
}

func TestRegisterHandlers(t *testing.T) {
	s := New(NewListener(spec("tcp", 1, config.SockTCP), ClassBase, nil), nil, log.NewLogger())
	port := newFakePort()

	k := event.NewBundle().
		On(event.Close, noop).
		On(event.Connect, noop).
		On(event.Start, noop)

	assert.Equal(t, 3, s.RegisterHandlers(port, k))
	assert.Equal(t, []event.Kind{event.Start, event.Connect, event.Close}, port.order)

	assert.Equal(t, 0, s.RegisterHandlers(newFakePort(), nil))
}

func TestEngineError(t *testing.T) {
	inner := errors.New("inner")
	err := &EngineError{Op: "serve", Listener: "http", Err: inner}

	assert.Equal(t, "engine serve (http): inner", err.Error())
	assert.ErrorIs(t, err, ErrEngineStart)
	assert.ErrorIs(t, err, inner)
	assert.NotErrorIs(t, err, ErrPrecondition)
}
