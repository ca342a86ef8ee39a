// FILE: muxd/src/internal/engine/conn.go
package engine

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/panjf2000/gnet/v2"
)

var (
	errDatagramExpired = errors.New("datagram peer is only writable inside its handler")
	errPeerUnbound     = errors.New("datagram sender has no address")
)

// connState is the engine side bookkeeping of one live connection
type connState struct {
	id     uint64
	port   *port
	worker int

	lastActive atomic.Int64
	full       atomic.Bool

	close func() error
}

func (s *connState) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

func (s *connState) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastActive.Load()))
}

// gnetConn adapts a gnet connection; writes go straight to the loop buffer
// while the handler runs on the loop and through AsyncWrite afterwards
type gnetConn struct {
	c        gnet.Conn
	id       uint64
	datagram bool
	inLoop   atomic.Bool
}

func newGnetConn(c gnet.Conn, id uint64, datagram bool) *gnetConn {
	g := &gnetConn{c: c, id: id, datagram: datagram}
	g.inLoop.Store(true)
	return g
}

func (g *gnetConn) leaveLoop() { g.inLoop.Store(false) }

func (g *gnetConn) ID() uint64           { return g.id }
func (g *gnetConn) LocalAddr() net.Addr  { return g.c.LocalAddr() }
func (g *gnetConn) RemoteAddr() net.Addr { return g.c.RemoteAddr() }

func (g *gnetConn) Write(p []byte) (int, error) {
	if g.inLoop.Load() {
		return g.c.Write(p)
	}
	if g.datagram {
		return 0, errDatagramExpired
	}
	if err := g.c.AsyncWrite(bytes.Clone(p), nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (g *gnetConn) Close() error {
	if g.datagram {
		return nil
	}
	return g.c.Close()
}

// packetConn answers one unix datagram peer
type packetConn struct {
	pc     net.PacketConn
	remote net.Addr
	id     uint64
}

func (p *packetConn) ID() uint64           { return p.id }
func (p *packetConn) LocalAddr() net.Addr  { return p.pc.LocalAddr() }
func (p *packetConn) RemoteAddr() net.Addr { return p.remote }

func (p *packetConn) Write(b []byte) (int, error) {
	if p.remote == nil {
		return 0, errPeerUnbound
	}
	return p.pc.WriteTo(b, p.remote)
}

// Close is a no-op; the socket is shared by every peer
func (p *packetConn) Close() error { return nil }

// wsConn writes whole frames using the type of the last frame received
type wsConn struct {
	ws      *websocket.Conn
	id      uint64
	msgType atomic.Int32

	mu     sync.Mutex
	closed bool
}

func newWSConn(ws *websocket.Conn, id uint64) *wsConn {
	c := &wsConn{ws: ws, id: id}
	c.msgType.Store(websocket.TextMessage)
	return c
}

func (c *wsConn) ID() uint64           { return c.id }
func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) setType(mt int) {
	if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
		c.msgType.Store(int32(mt))
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, websocket.ErrCloseSent
	}
	if err := c.ws.WriteMessage(int(c.msgType.Load()), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
