// FILE: muxd/src/internal/strategy/kernels.go
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"muxd/src/internal/event"
)

// KernelFactory builds a fresh kernel instance
type KernelFactory func() event.Kernel

// Kernels maps kernel identifiers to constructors
type Kernels struct {
	mu        sync.RWMutex
	factories map[string]KernelFactory
}

func NewKernels() *Kernels {
	return &Kernels{factories: make(map[string]KernelFactory)}
}

// Register binds id to f; the last registration wins
func (k *Kernels) Register(id string, f KernelFactory) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.factories[id] = f
}

// Names lists the registered identifiers
func (k *Kernels) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	names := make([]string, 0, len(k.factories))
	for id := range k.factories {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Resolve instantiates id and checks it against the kernel contract
func (k *Kernels) Resolve(id string) (event.Kernel, error) {
	k.mu.RLock()
	f, ok := k.factories[id]
	k.mu.RUnlock()

	if !ok || f == nil {
		return nil, fmt.Errorf("kernel %q is not registered", id)
	}

	kernel := f()
	if err := event.Validate(kernel); err != nil {
		return nil, fmt.Errorf("kernel %q: %w", id, err)
	}
	return kernel, nil
}
