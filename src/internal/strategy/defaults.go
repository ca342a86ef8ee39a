// FILE: muxd/src/internal/strategy/defaults.go
package strategy

import (
	"sync"

	"muxd/src/internal/config"
)

// Built-in listener types
const (
	TypeWebSocket    = "websocket"
	TypeHTTP         = "http"
	TypeTCP          = "tcp"
	TypeUDP          = "udp"
	TypeUnixDatagram = "unix-datagram"
	TypeUnixStream   = "unix-stream"
)

type defaultsTable struct {
	mu    sync.RWMutex
	specs map[string]config.ListenerSpec
}

func newDefaultsTable() *defaultsTable {
	t := &defaultsTable{specs: make(map[string]config.ListenerSpec)}

	for _, typ := range []string{TypeWebSocket, TypeHTTP, TypeTCP, TypeUDP, TypeUnixDatagram, "dgram", TypeUnixStream, "stream"} {
		st, _ := config.ImpliedSockType(typ)
		t.specs[typ] = config.ListenerSpec{
			Type:     typ,
			Host:     config.Ptr("0.0.0.0"),
			Port:     config.Ptr(int64(0)),
			Mode:     config.Ptr(config.ModeProcess),
			SockType: config.Ptr(st),
		}
	}

	return t
}

// set merges spec over any existing defaults for typ
func (t *defaultsTable) set(typ string, spec config.ListenerSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.specs[typ] = config.Merge(t.specs[typ], spec)
}

func (t *defaultsTable) get(typ string) config.ListenerSpec {
	t.mu.RLock()
	defer t.mu.RUnlock()
	// Merging with an empty override yields an independent copy
	return config.Merge(t.specs[typ], config.ListenerSpec{})
}
