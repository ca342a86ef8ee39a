// FILE: muxd/src/internal/engine/engine_test.go
package engine

import (
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"muxd/src/internal/config"
	"muxd/src/internal/event"
	"muxd/src/internal/server"

	"github.com/jonboulle/clockwork"
	"github.com/lixenwraith/log"
	"github.com/panjf2000/gnet/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpEndpoint(port int64) server.Endpoint {
	return server.Endpoint{
		Name:     "tcp",
		Host:     "127.0.0.1",
		Port:     port,
		SockType: config.SockTCP,
		Mode:     config.ModeProcess,
		Class:    server.ClassBase,
	}
}

type recorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recorder) observe(ev *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind event.Kind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func TestParseOptions(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		o := parseOptions(nil, config.ModeProcess)
		assert.Positive(t, o.workerNum)
		assert.Zero(t, o.taskWorkerNum)
		assert.True(t, o.tcpNoDelay)
		assert.Equal(t, defaultBufferOutputSize, o.outputBuffer)
		assert.Equal(t, defaultMaxWait, o.maxWait)
		assert.Equal(t, gnet.SourceAddrHash, o.loadBalancing())
	})

	t.Run("LenientTypes", func(t *testing.T) {
		o := parseOptions(config.Settings{
			config.KeyWorkerNum:              "4",
			config.KeyTaskWorkerNum:          int64(2),
			config.KeyDispatchMode:           3.0,
			config.KeyEnableReusePort:        "true",
			config.KeyOpenTCPNoDelay:         false,
			config.KeySocketBufferSize:       8192,
			config.KeyPackageMaxLength:       "1048576",
			config.KeyHeartbeatCheckInterval: 5,
			config.KeyMaxWaitTime:            0.5,
			config.KeyPidFile:                "/run/muxd.pid",
			config.KeyDaemonize:              1,
			config.KeyMaxConnection:          "64",
		}, config.ModeProcess)

		assert.Equal(t, 4, o.workerNum)
		assert.Equal(t, 2, o.taskWorkerNum)
		assert.Equal(t, gnet.LeastConnections, o.loadBalancing())
		assert.True(t, o.reusePort)
		assert.False(t, o.tcpNoDelay)
		assert.Equal(t, 8192, o.socketBuffer)
		assert.Equal(t, 1048576, o.maxPackage)
		assert.Equal(t, 5*time.Second, o.heartbeatCheck)
		assert.Equal(t, 10*time.Second, o.heartbeatIdle)
		assert.Equal(t, 500*time.Millisecond, o.maxWait)
		assert.Equal(t, "/run/muxd.pid", o.pidFile)
		assert.True(t, o.daemon)
		assert.Equal(t, int64(64), o.maxConn)
	})

	t.Run("WorkerNumOverReactorNum", func(t *testing.T) {
		o := parseOptions(config.Settings{config.KeyReactorNum: 8, config.KeyWorkerNum: 3}, config.ModeProcess)
		assert.Equal(t, 3, o.workerNum)
		o = parseOptions(config.Settings{config.KeyReactorNum: 8}, config.ModeProcess)
		assert.Equal(t, 8, o.workerNum)
	})

	t.Run("BaseModeSingleLoop", func(t *testing.T) {
		o := parseOptions(config.Settings{config.KeyWorkerNum: 16}, config.ModeBase)
		assert.Equal(t, 1, o.workerNum)
	})

	t.Run("InvalidValuesIgnored", func(t *testing.T) {
		o := parseOptions(config.Settings{
			config.KeyWorkerNum:        "many",
			config.KeyTaskWorkerNum:    -3,
			config.KeySocketBufferSize: -1,
		}, config.ModeProcess)
		assert.Positive(t, o.workerNum)
		assert.Zero(t, o.taskWorkerNum)
		assert.Zero(t, o.socketBuffer)
	})

	t.Run("DispatchModes", func(t *testing.T) {
		for mode, want := range map[int]gnet.LoadBalancing{
			1: gnet.RoundRobin,
			2: gnet.SourceAddrHash,
			3: gnet.LeastConnections,
			4: gnet.SourceAddrHash,
			7: gnet.RoundRobin,
		} {
			o := parseOptions(config.Settings{config.KeyDispatchMode: mode}, config.ModeProcess)
			assert.Equal(t, want, o.loadBalancing(), "mode %d", mode)
		}
	})

	t.Run("GnetOptions", func(t *testing.T) {
		o := parseOptions(config.Settings{
			config.KeySocketBufferSize:       1024,
			config.KeyPackageMaxLength:       4096,
			config.KeyHeartbeatCheckInterval: 1,
		}, config.ModeProcess)
		// logger, multicore, loops, lb, reuseport, write cap, ticker, nodelay, 2 socket buffers, read cap, keepalive
		assert.Len(t, o.gnetOptions(log.NewLogger()), 12)
	})
}

func TestValidateEndpoint(t *testing.T) {
	ok := tcpEndpoint(9000)
	require.NoError(t, validateEndpoint(ok))

	tests := map[string]func(ep *server.Endpoint){
		"SockType":     func(ep *server.Endpoint) { ep.SockType = "sctp" },
		"Mode":         func(ep *server.Endpoint) { ep.Mode = "thread" },
		"HTTPOverUDP":  func(ep *server.Endpoint) { ep.Class = server.ClassHTTP; ep.SockType = config.SockUDP },
		"UnixNoPath":   func(ep *server.Endpoint) { ep.SockType = config.SockUnixStream; ep.Host = "" },
		"PortTooLarge": func(ep *server.Endpoint) { ep.Port = 70000 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			ep := tcpEndpoint(9000)
			mutate(&ep)
			assert.Error(t, validateEndpoint(ep))
		})
	}

	_, err := New(server.Endpoint{Name: "bad"}, log.NewLogger())
	assert.Error(t, err)
}

func TestPortKind(t *testing.T) {
	ep := tcpEndpoint(1)
	assert.Equal(t, portGnet, newPort(ep).kind())

	ep.SockType = config.SockUnixDgram
	ep.Host = "/tmp/muxd.sock"
	assert.Equal(t, portPacket, newPort(ep).kind())
	assert.Equal(t, "unixgram:///tmp/muxd.sock", newPort(ep).gnetAddr())

	ep = tcpEndpoint(80)
	ep.Class = server.ClassHTTP
	assert.Equal(t, portHTTP, newPort(ep).kind())
	ep.Class = server.ClassWebSocket
	assert.Equal(t, portWebSocket, newPort(ep).kind())
	assert.Equal(t, "tcp://127.0.0.1:80", newPort(ep).gnetAddr())
}

func TestPortSettings(t *testing.T) {
	e, err := newEngine(tcpEndpoint(1), log.NewLogger())
	require.NoError(t, err)

	e.Set(config.Settings{config.KeyWorkerNum: 2, config.KeyPackageMaxLength: 100})
	e.Set(config.Settings{config.KeyTaskWorkerNum: 1})

	p, err := e.AddListener(tcpEndpoint(2))
	require.NoError(t, err)
	p.Set(config.Settings{config.KeyPackageMaxLength: 200})

	po := e.portOptions(p.(*port))
	assert.Equal(t, 2, po.workerNum)
	assert.Equal(t, 1, po.taskWorkerNum)
	assert.Equal(t, 200, po.maxPackage)
	assert.Equal(t, 100, e.portOptions(e.master).maxPackage)
}

func TestDispatch(t *testing.T) {
	e, err := newEngine(tcpEndpoint(1), log.NewLogger())
	require.NoError(t, err)
	rec := &recorder{}
	e.Observe(rec.observe)

	t.Run("ObserverSeesUnboundEvents", func(t *testing.T) {
		act := e.emit(&event.Event{Kind: event.Start})
		assert.Equal(t, event.None, act)
		assert.Equal(t, []event.Kind{event.Start}, rec.kinds())
	})

	t.Run("LastBindingWins", func(t *testing.T) {
		e.master.On(event.Receive, func(*event.Event) event.Action { return event.None })
		e.master.On(event.Receive, func(*event.Event) event.Action { return event.CloseConn })
		assert.Equal(t, event.CloseConn, e.dispatch(e.master, &event.Event{Kind: event.Receive}))
	})

	t.Run("ListenerAndDispatcherFilled", func(t *testing.T) {
		var got *event.Event
		e.master.On(event.Connect, func(ev *event.Event) event.Action {
			got = ev
			return event.None
		})
		e.dispatch(e.master, &event.Event{Kind: event.Connect})
		require.NotNil(t, got)
		assert.Equal(t, "tcp", got.Listener)
		assert.Same(t, e, got.Dispatcher)
	})

	t.Run("PanicBecomesWorkerError", func(t *testing.T) {
		var reported error
		e.master.On(event.WorkerError, func(ev *event.Event) event.Action {
			reported = ev.Err
			return event.None
		})
		e.master.On(event.Packet, func(*event.Event) event.Action { panic("boom") })

		act := e.dispatch(e.master, &event.Event{Kind: event.Packet, WorkerID: 3, Conn: &packetConn{}})
		assert.Equal(t, event.CloseConn, act)
		require.Error(t, reported)
		assert.Contains(t, reported.Error(), "boom")
	})

	t.Run("PanickingErrorHandlerDoesNotRecurse", func(t *testing.T) {
		e.master.On(event.WorkerError, func(*event.Event) event.Action { panic("again") })
		assert.Equal(t, event.None, e.emit(&event.Event{Kind: event.WorkerError}))
	})
}

func TestTaskWithoutWorkers(t *testing.T) {
	e, err := newEngine(tcpEndpoint(1), log.NewLogger())
	require.NoError(t, err)

	_, err = e.Task(0, []byte("x"))
	assert.ErrorIs(t, err, event.ErrNoTaskWorkers)

	ev := &event.Event{Dispatcher: e}
	_, err = ev.Task([]byte("x"))
	assert.ErrorIs(t, err, event.ErrNoTaskWorkers)
}

func TestTaskWithoutResult(t *testing.T) {
	e, err := newEngine(tcpEndpoint(1), log.NewLogger())
	require.NoError(t, err)
	rec := &recorder{}
	e.Observe(rec.observe)

	handled := make(chan struct{}, 1)
	e.master.On(event.Task, func(*event.Event) event.Action { return event.None })
	e.master.On(event.Finish, func(*event.Event) event.Action {
		handled <- struct{}{}
		return event.None
	})

	pool, err := newTaskPool(e, 1, 1)
	require.NoError(t, err)
	defer pool.release(time.Second)

	id, err := pool.submit(0, []byte("x"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count(event.Finish) == 1 }, time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	last := rec.events[len(rec.events)-1]
	rec.mu.Unlock()
	assert.Equal(t, event.Finish, last.Kind)
	assert.Equal(t, id, last.TaskID)
	assert.Equal(t, 0, last.WorkerID)
	assert.Nil(t, last.Data)
	assert.Empty(t, handled)
}

func TestNotServing(t *testing.T) {
	e, err := newEngine(tcpEndpoint(1), log.NewLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, e.Reload(server.ReloadWorkers), ErrNotServing)
	assert.ErrorIs(t, e.StopWorker(-1, true), ErrNotServing)
	assert.NoError(t, e.Shutdown(t.Context()))
	assert.Zero(t, e.WorkerNum())
	assert.Equal(t, e.MasterPID(), e.ManagerPID())
}

func TestGnetLookup(t *testing.T) {
	e, err := newEngine(tcpEndpoint(9000), log.NewLogger())
	require.NoError(t, err)

	udp := tcpEndpoint(9000)
	udp.Name, udp.SockType = "udp", config.SockUDP
	wild := tcpEndpoint(0)
	wild.Name = "tcp-any"
	unix := tcpEndpoint(0)
	unix.Name, unix.SockType, unix.Host = "unix-stream", config.SockUnixStream, "/tmp/muxd.sock"

	ports := []*port{e.master, newPort(udp), newPort(wild), newPort(unix)}
	h := newGnetHandler(e, ports)

	assert.Same(t, ports[0], h.lookup(&net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 9000}))
	assert.Same(t, ports[1], h.lookup(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}))
	assert.Same(t, ports[2], h.lookup(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 41234}))
	assert.Same(t, ports[3], h.lookup(&net.UnixAddr{Name: "/tmp/muxd.sock", Net: "unix"}))
	assert.Nil(t, h.lookup(&net.UDPAddr{Port: 1}))
	assert.Nil(t, h.lookup(&net.IPAddr{}))

	assert.Equal(t, []string{
		"tcp://127.0.0.1:9000",
		"udp://127.0.0.1:9000",
		"tcp://127.0.0.1:0",
		"unix:///tmp/muxd.sock",
	}, h.addrs())
}

func TestTickClosesIdle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	e, err := newEngine(tcpEndpoint(1), log.NewLogger(), WithClock(clock))
	require.NoError(t, err)
	e.opts = parseOptions(config.Settings{
		config.KeyHeartbeatCheckInterval: 1,
		config.KeyHeartbeatIdleTime:      3,
	}, config.ModeProcess)

	rec := &recorder{}
	e.Observe(rec.observe)

	closed := map[uint64]bool{}
	newState := func(id uint64) *connState {
		return &connState{id: id, port: e.master, close: func() error {
			closed[id] = true
			return nil
		}}
	}

	e.track(newState(1))
	clock.Advance(2 * time.Second)
	fresh := newState(2)
	e.track(fresh)
	assert.Equal(t, 2, e.ConnCount())

	clock.Advance(2 * time.Second)
	e.tick()
	assert.True(t, closed[1])
	assert.False(t, closed[2])
	assert.Equal(t, 1, rec.count(event.Timer))

	fresh.touch(clock.Now())
	clock.Advance(2 * time.Second)
	e.tick()
	assert.False(t, closed[2])

	e.untrack(1)
	e.untrack(2)
	assert.Zero(t, e.ConnCount())
}

func TestWorkerFor(t *testing.T) {
	e, err := newEngine(tcpEndpoint(1), log.NewLogger())
	require.NoError(t, err)

	e.opts.workerNum = 1
	assert.Equal(t, 0, e.workerFor(7))

	e.opts.workerNum = 4
	assert.Equal(t, 3, e.workerFor(7))
	assert.Equal(t, 0, e.workerFor(8))
}

func TestStdRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/rpc?x=1", strings.NewReader("payload"))
	r.Header.Set("X-Trace", "abc")

	var req event.HTTPRequest = newStdRequest(r)
	ev := &event.Event{Kind: event.Request, Request: req}
	assert.Equal(t, "POST", ev.Request.Method())
	assert.Equal(t, "/rpc", ev.Request.Path())
	assert.Equal(t, "abc", ev.Request.Header("X-Trace"))
	assert.Equal(t, "payload", string(ev.Request.Body()))
}

func TestStdResponse(t *testing.T) {
	t.Run("HeadersBeforeBody", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newStdResponse(w)
		r.SetStatus(201)
		r.SetHeader("X-Muxd", "1")
		_, err := r.Write([]byte("ok"))
		require.NoError(t, err)
		_, _ = r.Write([]byte("!"))

		assert.Equal(t, 201, w.Code)
		assert.Equal(t, "1", w.Header().Get("X-Muxd"))
		assert.Equal(t, "ok!", w.Body.String())
	})

	t.Run("RejectUsesFallback", func(t *testing.T) {
		w := httptest.NewRecorder()
		newStdResponse(w).reject(403)
		assert.Equal(t, 403, w.Code)
	})

	t.Run("RejectKeepsHandlerStatus", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := newStdResponse(w)
		r.SetStatus(401)
		r.reject(403)
		assert.Equal(t, 401, w.Code)
	})
}
