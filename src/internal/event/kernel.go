// FILE: muxd/src/internal/event/kernel.go
package event

import (
	"errors"
	"fmt"
)

var (
	ErrNilKernel     = errors.New("kernel is nil")
	ErrNoTaskWorkers = errors.New("no task workers configured")
	ErrNoDispatcher  = errors.New("event has no dispatcher")
)

// Handlers is the capability descriptor of a kernel: which events it handles and how
type Handlers map[Kind]Handler

// Kernel is a bundle of lifecycle handlers for one listener.
// Capability is decided by presence in the descriptor, not by type.
type Kernel interface {
	Handlers() Handlers
}

// Bundle is a Kernel assembled at construction time
type Bundle struct {
	handlers Handlers
}

// NewBundle creates an empty bundle; an empty bundle leaves every event to the engine
func NewBundle() *Bundle {
	return &Bundle{handlers: make(Handlers)}
}

// On sets the handler for kind, replacing any previous one
func (b *Bundle) On(kind Kind, h Handler) *Bundle {
	b.handlers[kind] = h
	return b
}

// Handlers returns a copy of the descriptor
func (b *Bundle) Handlers() Handlers {
	out := make(Handlers, len(b.handlers))
	for k, h := range b.handlers {
		out[k] = h
	}
	return out
}

// Validate checks that k satisfies the kernel contract
func Validate(k Kernel) error {
	if k == nil {
		return ErrNilKernel
	}
	for kind, h := range k.Handlers() {
		if !kind.Valid() {
			return fmt.Errorf("handler registered for %s outside the event catalog", kind)
		}
		if h == nil {
			return fmt.Errorf("nil handler for event %s", kind)
		}
	}
	return nil
}
