// FILE: muxd/src/internal/limit/conns.go

// Package limit caps the live connections of an engine.
package limit

import (
	"sync/atomic"
)

// Conns admits at most max concurrent connections. A nil *Conns admits everything.
type Conns struct {
	max      int64
	active   atomic.Int64
	admitted atomic.Uint64
	rejected atomic.Uint64
}

// NewConns returns nil when max is not positive
func NewConns(max int64) *Conns {
	if max <= 0 {
		return nil
	}
	return &Conns{max: max}
}

// Acquire reserves one slot; every true result must be paired with Release
func (c *Conns) Acquire() bool {
	if c == nil {
		return true
	}
	for {
		cur := c.active.Load()
		if cur >= c.max {
			c.rejected.Add(1)
			return false
		}
		if c.active.CompareAndSwap(cur, cur+1) {
			c.admitted.Add(1)
			return true
		}
	}
}

func (c *Conns) Release() {
	if c == nil {
		return
	}
	if c.active.Add(-1) < 0 {
		c.active.Store(0)
	}
}

func (c *Conns) Active() int64 {
	if c == nil {
		return 0
	}
	return c.active.Load()
}

func (c *Conns) Max() int64 {
	if c == nil {
		return 0
	}
	return c.max
}

// Stats returns counters for status reporting
func (c *Conns) Stats() map[string]any {
	if c == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":  true,
		"max":      c.max,
		"active":   c.active.Load(),
		"admitted": c.admitted.Load(),
		"rejected": c.rejected.Load(),
	}
}
