// FILE: muxd/src/internal/event/catalog.go
package event

import "fmt"

// Kind identifies one lifecycle event of the engine
type Kind uint8

// The catalog is closed and ordered; bindings are always produced in this order.
const (
	Start Kind = iota + 1
	Shutdown
	WorkerStart
	WorkerStop
	WorkerExit
	Timer
	Connect
	Receive
	Packet
	Close
	BufferFull
	BufferEmpty
	Task
	Finish
	PipeMessage
	WorkerError
	ManagerStart
	ManagerStop
	Request
	Handshake
	Message
	Open
)

var names = [...]string{
	Start:        "start",
	Shutdown:     "shutdown",
	WorkerStart:  "workerStart",
	WorkerStop:   "workerStop",
	WorkerExit:   "workerExit",
	Timer:        "timer",
	Connect:      "connect",
	Receive:      "receive",
	Packet:       "packet",
	Close:        "close",
	BufferFull:   "bufferFull",
	BufferEmpty:  "bufferEmpty",
	Task:         "task",
	Finish:       "finish",
	PipeMessage:  "pipeMessage",
	WorkerError:  "workerError",
	ManagerStart: "managerStart",
	ManagerStop:  "managerStop",
	Request:      "request",
	Handshake:    "handshake",
	Message:      "message",
	Open:         "open",
}

// Catalog returns every event kind in catalog order
func Catalog() []Kind {
	kinds := make([]Kind, 0, len(names)-1)
	for k := Start; k <= Open; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k belongs to the catalog
func (k Kind) Valid() bool {
	return k >= Start && k <= Open
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return names[k]
}

// ParseKind resolves a catalog event by its name
func ParseKind(name string) (Kind, error) {
	for k := Start; k <= Open; k++ {
		if names[k] == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event: %s", name)
}
