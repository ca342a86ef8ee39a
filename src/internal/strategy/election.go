// FILE: muxd/src/internal/strategy/election.go
package strategy

import "muxd/src/internal/config"

// ElectionPolicy picks the master listener from a non-empty spec list
type ElectionPolicy interface {
	Elect(specs []config.ListenerSpec) int
}

// PriorityPolicy elects the first spec of the highest priority type present,
// falling back to the first spec
type PriorityPolicy []string

// DefaultPolicy anchors the process on the richest protocol class
var DefaultPolicy = PriorityPolicy{TypeWebSocket, TypeHTTP}

func (p PriorityPolicy) Elect(specs []config.ListenerSpec) int {
	if len(specs) <= 1 {
		return 0
	}
	for _, typ := range p {
		for i, s := range specs {
			if normalize(s.Type) == typ {
				return i
			}
		}
	}
	return 0
}
