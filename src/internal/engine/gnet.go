// FILE: muxd/src/internal/engine/gnet.go
package engine

import (
	"bytes"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"muxd/src/internal/config"
	"muxd/src/internal/event"

	"github.com/panjf2000/gnet/v2"
)

// gnetHandler serves every stream and udp listener from one set of event loops
// and routes each connection to the port it was accepted on
type gnetHandler struct {
	gnet.BuiltinEventEngine

	e     *Engine
	ports []*port

	// family:port or unix:path
	byAddr map[string]*port
	// first port-0 listener per family
	wildcard map[string]*port

	packetSeq atomic.Uint64
}

func newGnetHandler(e *Engine, ports []*port) *gnetHandler {
	h := &gnetHandler{
		e:        e,
		ports:    ports,
		byAddr:   make(map[string]*port),
		wildcard: make(map[string]*port),
	}
	for _, p := range ports {
		family := familyOf(p.ep.SockType)
		if p.ep.SockType.IsUnix() {
			h.byAddr["unix:"+p.ep.Host] = p
			continue
		}
		if p.ep.Port == 0 {
			if _, ok := h.wildcard[family]; !ok {
				h.wildcard[family] = p
			}
			continue
		}
		h.byAddr[family+":"+strconv.FormatInt(p.ep.Port, 10)] = p
	}
	return h
}

func familyOf(st config.SockType) string {
	switch st {
	case config.SockUDP, config.SockUDP6:
		return "udp"
	case config.SockUnixStream, config.SockUnixDgram:
		return "unix"
	default:
		return "tcp"
	}
}

func (h *gnetHandler) addrs() []string {
	out := make([]string, 0, len(h.ports))
	for _, p := range h.ports {
		out = append(out, p.gnetAddr())
	}
	return out
}

// lookup finds the port owning a connection from its local address
func (h *gnetHandler) lookup(addr net.Addr) *port {
	var family, key string
	switch a := addr.(type) {
	case *net.TCPAddr:
		family, key = "tcp", "tcp:"+strconv.Itoa(a.Port)
	case *net.UDPAddr:
		family, key = "udp", "udp:"+strconv.Itoa(a.Port)
	case *net.UnixAddr:
		family, key = "unix", "unix:"+a.Name
	default:
		return nil
	}
	if p, ok := h.byAddr[key]; ok {
		return p
	}
	return h.wildcard[family]
}

func (h *gnetHandler) OnBoot(eng gnet.Engine) gnet.Action {
	h.e.setGnet(eng)
	h.e.logger.Debug("msg", "gnet listeners booted",
		"component", "engine",
		"addrs", h.addrs())
	h.e.boot()
	return gnet.None
}

func (h *gnetHandler) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	p := h.lookup(c.LocalAddr())
	if p == nil {
		h.e.logger.Warn("msg", "Connection on unknown listener",
			"component", "engine",
			"local_addr", c.LocalAddr().String())
		return nil, gnet.Close
	}
	if !h.e.limiter.Acquire() {
		h.e.logger.Debug("msg", "Connection limit reached",
			"component", "engine",
			"listener", p.ep.Name,
			"remote_addr", c.RemoteAddr().String(),
			"max_conn", h.e.limiter.Max())
		return nil, gnet.Close
	}

	id := h.e.nextConnID()
	st := &connState{
		id:     id,
		port:   p,
		worker: h.e.workerFor(id),
		close:  c.Close,
	}
	c.SetContext(st)
	h.e.track(st)

	conn := newGnetConn(c, id, false)
	act := h.e.dispatch(p, &event.Event{Kind: event.Connect, WorkerID: st.worker, Conn: conn})
	conn.leaveLoop()

	return nil, toGnet(act)
}

func (h *gnetHandler) OnTraffic(c gnet.Conn) gnet.Action {
	data, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}
	payload := bytes.Clone(data)

	st, _ := c.Context().(*connState)
	if st == nil {
		return h.onPacket(c, payload)
	}

	st.touch(h.e.clock.Now())
	conn := newGnetConn(c, st.id, false)
	act := h.e.dispatch(st.port, &event.Event{
		Kind:     event.Receive,
		WorkerID: st.worker,
		Conn:     conn,
		Data:     payload,
	})
	conn.leaveLoop()

	h.checkBuffer(c, st, conn)
	return toGnet(act)
}

// onPacket handles udp traffic, which has no open or close
func (h *gnetHandler) onPacket(c gnet.Conn, payload []byte) gnet.Action {
	p := h.lookup(c.LocalAddr())
	if p == nil {
		return gnet.None
	}

	seq := h.packetSeq.Add(1)
	conn := newGnetConn(c, h.e.nextConnID(), true)
	h.e.dispatch(p, &event.Event{
		Kind:     event.Packet,
		WorkerID: h.e.workerFor(seq),
		Conn:     conn,
		Data:     payload,
	})
	conn.leaveLoop()

	// Closing a datagram peer would tear down nothing useful
	return gnet.None
}

// checkBuffer raises BufferFull past the output high watermark and BufferEmpty once drained
func (h *gnetHandler) checkBuffer(c gnet.Conn, st *connState, conn *gnetConn) {
	pending := c.OutboundBuffered()
	high := h.e.options().outputBuffer

	switch {
	case pending >= high && st.full.CompareAndSwap(false, true):
		h.e.dispatch(st.port, &event.Event{Kind: event.BufferFull, WorkerID: st.worker, Conn: conn})
	case pending == 0 && st.full.CompareAndSwap(true, false):
		h.e.dispatch(st.port, &event.Event{Kind: event.BufferEmpty, WorkerID: st.worker, Conn: conn})
	}
}

func (h *gnetHandler) OnClose(c gnet.Conn, err error) gnet.Action {
	st, _ := c.Context().(*connState)
	if st == nil {
		return gnet.None
	}
	h.e.untrack(st.id)
	h.e.limiter.Release()

	conn := newGnetConn(c, st.id, false)
	h.e.dispatch(st.port, &event.Event{Kind: event.Close, WorkerID: st.worker, Conn: conn, Err: err})
	conn.leaveLoop()
	return gnet.None
}

func (h *gnetHandler) OnTick() (time.Duration, gnet.Action) {
	h.e.tick()
	return h.e.options().heartbeatCheck, gnet.None
}

func toGnet(act event.Action) gnet.Action {
	switch act {
	case event.CloseConn:
		return gnet.Close
	default:
		// ShutdownEngine is carried out by dispatch
		return gnet.None
	}
}
