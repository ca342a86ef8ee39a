// FILE: muxd/src/internal/strategy/registry.go
package strategy

import (
	"strings"
	"sync"

	"muxd/src/internal/server"
)

// Implementation is what a listener type resolves to
type Implementation struct {
	Name   string
	Class  server.Class
	Engine server.EngineFactory
}

// Registry maps listener types to implementations.
// Custom registrations shadow built-ins; the last registration of a name wins.
type Registry struct {
	mu      sync.RWMutex
	builtin map[string]Implementation
	custom  map[string]Implementation
}

// NewRegistry creates a registry with the built-in types bound to factory
func NewRegistry(factory server.EngineFactory) *Registry {
	r := &Registry{
		builtin: make(map[string]Implementation),
		custom:  make(map[string]Implementation),
	}

	for _, b := range []struct {
		names []string
		class server.Class
	}{
		{[]string{TypeWebSocket}, server.ClassWebSocket},
		{[]string{TypeHTTP}, server.ClassHTTP},
		{[]string{TypeTCP}, server.ClassBase},
		{[]string{TypeUDP}, server.ClassBase},
		{[]string{TypeUnixDatagram, "dgram"}, server.ClassBase},
		{[]string{TypeUnixStream, "stream"}, server.ClassBase},
	} {
		for _, name := range b.names {
			r.builtin[name] = Implementation{Name: b.names[0], Class: b.class, Engine: factory}
		}
	}

	return r
}

// Register binds name to impl, overriding any earlier binding including built-ins
func (r *Registry) Register(name string, impl Implementation) {
	name = normalize(name)
	if impl.Name == "" {
		impl.Name = name
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[name] = impl
}

// Unregister removes a custom registration; built-ins cannot be removed
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.custom, normalize(name))
}

// Lookup resolves name, custom registrations first
func (r *Registry) Lookup(name string) (Implementation, bool) {
	name = normalize(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if impl, ok := r.custom[name]; ok {
		return impl, true
	}
	impl, ok := r.builtin[name]
	return impl, ok
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
