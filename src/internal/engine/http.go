// FILE: muxd/src/internal/engine/http.go
package engine

import (
	"context"
	"net"
	"sync"

	"muxd/src/internal/event"
	"muxd/src/internal/version"

	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// httpListener serves one http port with fasthttp
type httpListener struct {
	e   *Engine
	p   *port
	ln  net.Listener
	srv *fasthttp.Server

	connMu sync.Mutex
	conns  map[net.Conn]*connState
}

func newHTTPListener(e *Engine, p *port, ln net.Listener) *httpListener {
	opts := e.portOptions(p)
	l := &httpListener{
		e:     e,
		p:     p,
		ln:    ln,
		conns: make(map[net.Conn]*connState),
	}

	l.srv = &fasthttp.Server{
		Name:            version.ServerName(),
		Handler:         l.handle,
		Logger:          compat.NewFastHTTPAdapter(e.logger),
		CloseOnShutdown: true,
		IdleTimeout:     opts.heartbeatIdle,
		ConnState:       l.connState,
	}
	if opts.maxPackage > 0 {
		l.srv.MaxRequestBodySize = opts.maxPackage
	}
	if opts.maxConn > 0 {
		l.srv.Concurrency = int(opts.maxConn)
	}
	if opts.socketBuffer > 0 {
		l.srv.ReadBufferSize = opts.socketBuffer
		l.srv.WriteBufferSize = opts.socketBuffer
	}
	return l
}

func (l *httpListener) serve() error {
	l.e.logger.Info("msg", "HTTP listener started",
		"component", "engine",
		"listener", l.p.ep.Name,
		"addr", l.ln.Addr().String())
	return l.srv.Serve(l.ln)
}

func (l *httpListener) shutdown(ctx context.Context) error {
	return l.srv.ShutdownWithContext(ctx)
}

// connState raises connect and close around each keep-alive connection
func (l *httpListener) connState(c net.Conn, state fasthttp.ConnState) {
	switch state {
	case fasthttp.StateNew:
		id := l.e.nextConnID()
		st := &connState{id: id, port: l.p, worker: l.e.workerFor(id), close: c.Close}
		l.connMu.Lock()
		l.conns[c] = st
		l.connMu.Unlock()
		l.e.dispatch(l.p, &event.Event{Kind: event.Connect, WorkerID: st.worker, Conn: &netConn{c: c, id: id}})
	case fasthttp.StateClosed, fasthttp.StateHijacked:
		l.connMu.Lock()
		st, ok := l.conns[c]
		delete(l.conns, c)
		l.connMu.Unlock()
		if ok {
			l.e.dispatch(l.p, &event.Event{Kind: event.Close, WorkerID: st.worker, Conn: &netConn{c: c, id: st.id}})
		}
	}
}

func (l *httpListener) handle(ctx *fasthttp.RequestCtx) {
	if !l.p.has(event.Request) {
		l.e.dispatch(l.p, &event.Event{Kind: event.Request, WorkerID: l.e.workerFor(ctx.ConnID())})
		ctx.Error(fasthttp.StatusMessage(fasthttp.StatusNotFound), fasthttp.StatusNotFound)
		return
	}

	act := l.e.dispatch(l.p, &event.Event{
		Kind:     event.Request,
		WorkerID: l.e.workerFor(ctx.ConnID()),
		Conn:     fastConn{ctx: ctx},
		Request:  fastRequest{ctx: ctx},
		Response: fastResponse{ctx: ctx},
	})
	if act == event.CloseConn {
		ctx.SetConnectionClose()
	}
}

type fastRequest struct{ ctx *fasthttp.RequestCtx }

func (r fastRequest) Method() string           { return string(r.ctx.Method()) }
func (r fastRequest) Path() string             { return string(r.ctx.Path()) }
func (r fastRequest) Header(key string) string { return string(r.ctx.Request.Header.Peek(key)) }
func (r fastRequest) Body() []byte             { return r.ctx.PostBody() }

type fastResponse struct{ ctx *fasthttp.RequestCtx }

func (r fastResponse) SetStatus(code int)          { r.ctx.SetStatusCode(code) }
func (r fastResponse) SetHeader(key, value string) { r.ctx.Response.Header.Set(key, value) }
func (r fastResponse) Write(p []byte) (int, error) { return r.ctx.Write(p) }

// fastConn exposes the connection of a request; writes append to the response body
type fastConn struct{ ctx *fasthttp.RequestCtx }

func (c fastConn) ID() uint64                  { return c.ctx.ConnID() }
func (c fastConn) LocalAddr() net.Addr         { return c.ctx.LocalAddr() }
func (c fastConn) RemoteAddr() net.Addr        { return c.ctx.RemoteAddr() }
func (c fastConn) Write(p []byte) (int, error) { return c.ctx.Write(p) }

func (c fastConn) Close() error {
	c.ctx.SetConnectionClose()
	return nil
}

// netConn wraps a raw connection outside a request
type netConn struct {
	c  net.Conn
	id uint64
}

func (c *netConn) ID() uint64                  { return c.id }
func (c *netConn) LocalAddr() net.Addr         { return c.c.LocalAddr() }
func (c *netConn) RemoteAddr() net.Addr        { return c.c.RemoteAddr() }
func (c *netConn) Write(p []byte) (int, error) { return c.c.Write(p) }
func (c *netConn) Close() error                { return c.c.Close() }
