// FILE: muxd/src/internal/event/event.go
package event

import (
	"net"
)

// Action tells the engine what to do after a handler returns
type Action int

const (
	// None continues normally
	None Action = iota
	// CloseConn closes the connection the event belongs to
	CloseConn
	// ShutdownEngine stops the whole engine
	ShutdownEngine
)

// Conn is the connection an event was raised on
type Conn interface {
	ID() uint64
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	Write(p []byte) (int, error)
	Close() error
}

// HTTPRequest is the read side of an HTTP exchange
type HTTPRequest interface {
	Method() string
	Path() string
	Header(key string) string
	Body() []byte
}

// Response is the write side of an HTTP exchange
type Response interface {
	SetStatus(code int)
	SetHeader(key, value string)
	Write(p []byte) (int, error)
}

// Dispatcher routes work between workers
type Dispatcher interface {
	// Task submits data to a task worker and returns the task id.
	// The task handler's Result comes back as a Finish event on the calling worker.
	Task(fromWorker int, data []byte) (int, error)
	// SendMessage raises a PipeMessage event on worker to
	SendMessage(fromWorker, to int, data []byte) error
}

// Event carries one occurrence of a catalog event to its handler.
// Fields not meaningful for a kind are left zero.
type Event struct {
	Kind     Kind
	Listener string
	WorkerID int
	TaskID   int

	// Worker that submitted the task, on Task events
	SrcWorkerID int

	Conn Conn
	Data []byte
	Err  error

	// HTTP and websocket listeners
	Request     HTTPRequest
	Response    Response
	MessageType int

	// Set by a Task handler, delivered as Data of the matching Finish event
	Result []byte

	Dispatcher Dispatcher
}

// Task submits data to a task worker on behalf of the worker handling this event
func (e *Event) Task(data []byte) (int, error) {
	if e.Dispatcher == nil {
		return -1, ErrNoTaskWorkers
	}
	return e.Dispatcher.Task(e.WorkerID, data)
}

// SendMessage forwards data to another worker as a PipeMessage event
func (e *Event) SendMessage(to int, data []byte) error {
	if e.Dispatcher == nil {
		return ErrNoDispatcher
	}
	return e.Dispatcher.SendMessage(e.WorkerID, to, data)
}

// Handler reacts to one event
type Handler func(ev *Event) Action
