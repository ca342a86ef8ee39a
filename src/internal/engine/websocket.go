// FILE: muxd/src/internal/engine/websocket.go
package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"muxd/src/internal/event"

	"github.com/gorilla/websocket"
)

// wsListener serves one websocket port; plain requests raise request events
type wsListener struct {
	e        *Engine
	p        *port
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader
	readMax  int64

	conns sync.Map
}

func newWSListener(e *Engine, p *port, ln net.Listener) *wsListener {
	opts := e.portOptions(p)
	l := &wsListener{
		e:       e,
		p:       p,
		ln:      ln,
		readMax: int64(opts.maxPackage),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.socketBuffer,
			WriteBufferSize: opts.socketBuffer,
			// The handshake event decides who may connect
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	l.srv = &http.Server{
		Handler:     l,
		IdleTimeout: opts.heartbeatIdle,
	}
	return l
}

func (l *wsListener) serve() error {
	l.e.logger.Info("msg", "WebSocket listener started",
		"component", "engine",
		"listener", l.p.ep.Name,
		"addr", l.ln.Addr().String())
	err := l.srv.Serve(l.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// shutdown stops accepting, then closes the upgraded connections http.Server no longer owns
func (l *wsListener) shutdown(ctx context.Context) error {
	err := l.srv.Shutdown(ctx)
	l.conns.Range(func(_, v any) bool {
		_ = v.(*wsConn).Close()
		return true
	})
	return err
}

func (l *wsListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := l.e.nextConnID()
	worker := l.e.workerFor(id)

	if !websocket.IsWebSocketUpgrade(r) {
		l.serveRequest(w, r, worker)
		return
	}

	req := newStdRequest(r)
	resp := newStdResponse(w)
	if l.p.has(event.Handshake) {
		act := l.e.dispatch(l.p, &event.Event{
			Kind:     event.Handshake,
			WorkerID: worker,
			Request:  req,
			Response: resp,
		})
		if act == event.CloseConn {
			resp.reject(http.StatusForbidden)
			return
		}
	}

	if !l.e.limiter.Acquire() {
		resp.reject(http.StatusServiceUnavailable)
		return
	}
	ws, err := l.upgrader.Upgrade(w, r, resp.header)
	if err != nil {
		l.e.limiter.Release()
		// Upgrade has already answered the client
		l.e.logger.Debug("msg", "WebSocket upgrade failed",
			"component", "engine",
			"listener", l.p.ep.Name,
			"remote_addr", r.RemoteAddr,
			"error", err)
		return
	}
	if l.readMax > 0 {
		ws.SetReadLimit(l.readMax)
	}

	conn := newWSConn(ws, id)
	st := &connState{id: id, port: l.p, worker: worker, close: conn.Close}
	l.e.track(st)
	l.conns.Store(id, conn)

	var closeErr error
	defer func() {
		l.conns.Delete(id)
		l.e.untrack(id)
		l.e.limiter.Release()
		l.e.dispatch(l.p, &event.Event{Kind: event.Close, WorkerID: worker, Conn: conn, Err: closeErr})
		_ = conn.Close()
	}()

	if act := l.e.dispatch(l.p, &event.Event{Kind: event.Open, WorkerID: worker, Conn: conn, Request: req}); act == event.CloseConn {
		return
	}

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				closeErr = err
			}
			return
		}
		st.touch(l.e.clock.Now())
		conn.setType(mt)

		act := l.e.dispatch(l.p, &event.Event{
			Kind:        event.Message,
			WorkerID:    worker,
			Conn:        conn,
			Data:        data,
			MessageType: mt,
		})
		if act == event.CloseConn {
			return
		}
	}
}

func (l *wsListener) serveRequest(w http.ResponseWriter, r *http.Request, worker int) {
	resp := newStdResponse(w)
	l.e.dispatch(l.p, &event.Event{
		Kind:     event.Request,
		WorkerID: worker,
		Request:  newStdRequest(r),
		Response: resp,
	})
	if !l.p.has(event.Request) {
		resp.reject(http.StatusNotFound)
		return
	}
	resp.flush()
}

// stdRequest reads the body eagerly so handlers see a plain byte slice
type stdRequest struct {
	r    *http.Request
	body []byte
}

func newStdRequest(r *http.Request) *stdRequest {
	req := &stdRequest{r: r}
	if r.Body != nil {
		req.body, _ = io.ReadAll(r.Body)
	}
	return req
}

func (r *stdRequest) Method() string           { return r.r.Method }
func (r *stdRequest) Path() string             { return r.r.URL.Path }
func (r *stdRequest) Header(key string) string { return r.r.Header.Get(key) }
func (r *stdRequest) Body() []byte             { return r.body }

// stdResponse buffers status and headers until the first write.
// Headers set during a handshake go out with the upgrade response.
type stdResponse struct {
	w       http.ResponseWriter
	header  http.Header
	status  int
	written bool
}

func newStdResponse(w http.ResponseWriter) *stdResponse {
	return &stdResponse{w: w, header: make(http.Header), status: http.StatusOK}
}

func (r *stdResponse) SetStatus(code int)          { r.status = code }
func (r *stdResponse) SetHeader(key, value string) { r.header.Set(key, value) }

func (r *stdResponse) Write(p []byte) (int, error) {
	r.flush()
	return r.w.Write(p)
}

func (r *stdResponse) flush() {
	if r.written {
		return
	}
	r.written = true
	for k, v := range r.header {
		r.w.Header()[k] = v
	}
	r.w.WriteHeader(r.status)
}

func (r *stdResponse) reject(fallback int) {
	if r.written {
		return
	}
	if r.status == http.StatusOK {
		r.status = fallback
	}
	r.flush()
}
