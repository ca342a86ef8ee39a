// FILE: muxd/src/internal/kernel/kernel.go

// Package kernel provides the built-in handler bundles
package kernel

import (
	"muxd/src/internal/event"
	"muxd/src/internal/strategy"

	"github.com/lixenwraith/log"
)

const (
	Echo    = "echo"
	Discard = "discard"
	Trace   = "trace"
)

// Register adds the built-in kernels to k
func Register(k *strategy.Kernels, logger *log.Logger) {
	k.Register(Echo, NewEcho)
	k.Register(Discard, NewDiscard)
	k.Register(Trace, func() event.Kernel { return NewTrace(logger) })
}

// NewEcho writes every payload back where it came from
func NewEcho() event.Kernel {
	echo := func(ev *event.Event) event.Action {
		if ev.Conn == nil || len(ev.Data) == 0 {
			return event.None
		}
		if _, err := ev.Conn.Write(ev.Data); err != nil {
			return event.CloseConn
		}
		return event.None
	}

	return event.NewBundle().
		On(event.Receive, echo).
		On(event.Packet, echo).
		On(event.Message, echo).
		On(event.Request, func(ev *event.Event) event.Action {
			if ev.Response == nil {
				return event.None
			}
			ev.Response.SetStatus(200)
			body := ev.Request.Body()
			if len(body) == 0 {
				body = []byte(ev.Request.Path())
			}
			ev.Response.SetHeader("Content-Type", "application/octet-stream")
			_, _ = ev.Response.Write(body)
			return event.None
		}).
		On(event.Task, func(ev *event.Event) event.Action {
			ev.Result = ev.Data
			return event.None
		})
}

// NewDiscard consumes every payload without answering
func NewDiscard() event.Kernel {
	drop := func(*event.Event) event.Action { return event.None }

	return event.NewBundle().
		On(event.Receive, drop).
		On(event.Packet, drop).
		On(event.Message, drop).
		On(event.Request, func(ev *event.Event) event.Action {
			if ev.Response != nil {
				ev.Response.SetStatus(204)
			}
			return event.None
		})
}

// NewTrace logs every catalog event and otherwise leaves the engine defaults
func NewTrace(logger *log.Logger) event.Kernel {
	b := event.NewBundle()
	for _, kind := range event.Catalog() {
		b.On(kind, func(ev *event.Event) event.Action {
			fields := []any{
				"msg", "Event",
				"component", "kernel",
				"kernel", Trace,
				"event", ev.Kind.String(),
				"listener", ev.Listener,
				"worker_id", ev.WorkerID,
			}
			if ev.Conn != nil {
				fields = append(fields, "conn_id", ev.Conn.ID())
				if addr := ev.Conn.RemoteAddr(); addr != nil {
					fields = append(fields, "remote", addr.String())
				}
			}
			if len(ev.Data) > 0 {
				fields = append(fields, "bytes", len(ev.Data))
			}
			if ev.Err != nil {
				fields = append(fields, "error", ev.Err)
				logger.Warn(fields...)
				return event.None
			}
			logger.Debug(fields...)
			return event.None
		})
	}
	return b
}
