// FILE: muxd/src/internal/process/signal.go
package process

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Control signals understood by a muxd process tree.
// The identities are the contract; changing the mapping breaks running deployments.
const (
	SignalProbe         = syscall.Signal(0)
	SignalKill          = unix.SIGKILL
	SignalStop          = unix.SIGTERM
	SignalReloadWorkers = unix.SIGUSR1
	SignalReloadTasks   = unix.SIGUSR2
	SignalReopenLog     = reopenLogSignal
)

// SignalName returns the vocabulary name of sig, or the OS name for anything else
func SignalName(sig syscall.Signal) string {
	switch sig {
	case SignalProbe:
		return "probe"
	case SignalKill:
		return "kill"
	case SignalStop:
		return "stop"
	case SignalReloadWorkers:
		return "reload-workers"
	case SignalReloadTasks:
		return "reload-tasks"
	case SignalReopenLog:
		return "reopen-log"
	default:
		return sig.String()
	}
}

// Outcome is the result of a signal operation. It is never an error: callers decide
// whether to retry, alert or escalate.
type Outcome int

const (
	// Absent means there is no such process
	Absent Outcome = iota
	// Accepted means the signal was delivered (and confirmed, where confirmation applies)
	Accepted
	// Failed means delivery or confirmation did not happen in time
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Absent:
		return "absent"
	case Accepted:
		return "accepted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle performs the raw OS operations on a pid
type Handle interface {
	// Probe sends the zero signal; true means the process exists and accepts signals
	Probe(pid int) bool
	// Signal delivers sig to pid
	Signal(pid int, sig syscall.Signal) bool
	// Confirmations subscribes to incoming sig on this process.
	// The returned stop function must be called to release the subscription.
	Confirmations(sig syscall.Signal) (<-chan struct{}, func())
}
