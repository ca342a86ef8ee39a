// FILE: muxd/src/internal/process/controller.go
package process

import (
	"fmt"
	"io"
	"syscall"
	"time"

	"muxd/src/internal/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/lixenwraith/log"
)

const (
	// MaxWait bounds every retry and confirmation loop
	MaxWait = 30 * time.Second

	defaultRetryInterval = time.Second
)

// Controller sends control signals to other processes by pid.
// Waiting parks only the calling goroutine, so it is safe to use from a goroutine
// that shares the process with request-serving event loops.
type Controller struct {
	handle   Handle
	clock    clockwork.Clock
	interval time.Duration
	logger   *log.Logger
}

// Option customizes a Controller
type Option func(*Controller)

// WithHandle replaces the OS handle, mainly for tests
func WithHandle(h Handle) Option {
	return func(c *Controller) { c.handle = h }
}

// WithClock replaces the wall clock used for waiting
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithRetryInterval sets the pause between retries
func WithRetryInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewController creates a controller over the system process handle
func NewController(logger *log.Logger, opts ...Option) *Controller {
	c := &Controller{
		handle:   SystemHandle(),
		clock:    clockwork.NewRealClock(),
		interval: defaultRetryInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRunning reports whether pid exists and accepts signals
func (c *Controller) IsRunning(pid int) bool {
	return pid > 0 && c.handle.Probe(pid)
}

// SendSignal delivers sig to pid, retrying until timeout when the first attempt fails
func (c *Controller) SendSignal(pid int, sig syscall.Signal, timeout time.Duration) Outcome {
	outcome := c.sendSignal(pid, sig, timeout)
	c.record("send", pid, sig, outcome)
	return outcome
}

func (c *Controller) sendSignal(pid int, sig syscall.Signal, timeout time.Duration) Outcome {
	if !c.IsRunning(pid) {
		return Absent
	}

	if c.handle.Signal(pid, sig) {
		return Accepted
	}

	if timeout <= 0 {
		return Failed
	}

	timeout = clampWait(timeout)
	start := c.clock.Now()

	for {
		// Liveness loss wins over a delivery attempt in the same round
		if !c.handle.Probe(pid) {
			return Absent
		}

		if c.clock.Since(start) >= timeout {
			return Failed
		}

		if c.handle.Signal(pid, sig) {
			return Accepted
		}

		c.clock.Sleep(c.interval)
	}
}

// SafeSendSignal delivers sig and waits for the target to answer with confirm.
// With retry set, sig is re-sent every round until confirmed.
func (c *Controller) SafeSendSignal(pid int, sig, confirm syscall.Signal, retry bool, wait time.Duration) Outcome {
	outcome := c.safeSendSignal(pid, sig, confirm, retry, wait)
	c.record("safe_send", pid, sig, outcome)
	return outcome
}

func (c *Controller) safeSendSignal(pid int, sig, confirm syscall.Signal, retry bool, wait time.Duration) Outcome {
	if pid <= 0 {
		return Absent
	}

	// Subscribe before sending so a fast answer is not lost
	confirmed, stop := c.handle.Confirmations(confirm)
	defer stop()

	if !c.handle.Probe(pid) {
		return Absent
	}

	if !c.handle.Signal(pid, sig) {
		return Failed
	}

	if wait <= 0 {
		return Accepted
	}

	wait = clampWait(wait)
	start := c.clock.Now()

	for {
		if !c.handle.Probe(pid) {
			return Absent
		}

		select {
		case <-confirmed:
			return Accepted
		default:
		}

		if c.clock.Since(start) > wait {
			return Failed
		}

		if retry && !c.handle.Signal(pid, sig) {
			return Failed
		}

		select {
		case <-confirmed:
			return Accepted
		case <-c.clock.After(c.interval):
		}
	}
}

// SafeStop asks pid to stop gracefully and waits for it to exit.
// It returns true only when the process is observed gone.
func (c *Controller) SafeStop(pid int, wait time.Duration) bool {
	if pid <= 0 {
		return false
	}

	if !c.handle.Probe(pid) {
		return true
	}

	if !c.handle.Signal(pid, SignalStop) {
		c.record("safe_stop", pid, SignalStop, Failed)
		return false
	}

	wait = clampWait(wait)
	start := c.clock.Now()

	for {
		if !c.handle.Probe(pid) {
			c.record("safe_stop", pid, SignalStop, Accepted)
			return true
		}

		if c.clock.Since(start) > wait {
			c.record("safe_stop", pid, SignalStop, Failed)
			return false
		}

		c.clock.Sleep(c.interval)
	}
}

// SafeStopAndOutput is SafeStop with progress written to an operator stream.
// A wait of zero reports the process stopped once the signal is delivered.
func (c *Controller) SafeStopAndOutput(w io.Writer, pid int, name string, wait time.Duration) bool {
	if pid <= 0 {
		fmt.Fprintf(w, "Stop the %s(PID:%d) failed!\n", name, pid)
		return false
	}

	if !c.handle.Probe(pid) {
		fmt.Fprintf(w, "The %s process stopped.\n", name)
		return true
	}

	if !c.handle.Signal(pid, SignalStop) {
		fmt.Fprintf(w, "Stop the %s(PID:%d) failed!\n", name, pid)
		return false
	}

	wait = clampWait(wait)
	if wait == 0 {
		// Signal sent, exit not awaited
		fmt.Fprintf(w, "The %s process stopped.\n", name)
		return true
	}

	start := c.clock.Now()
	fmt.Fprint(w, "Stopping .")

	var errMsg string
	for {
		if !c.handle.Probe(pid) {
			break
		}

		if c.clock.Since(start) > wait {
			errMsg = fmt.Sprintf("Stop the %s(PID:%d) failed(timeout:%ds)!", name, pid, int(wait/time.Second))
			break
		}

		fmt.Fprint(w, ".")
		c.clock.Sleep(c.interval)
	}

	if errMsg != "" {
		fmt.Fprintf(w, "\n%s\n", errMsg)
		return false
	}

	fmt.Fprintln(w, " Successful!")
	return true
}

func (c *Controller) record(op string, pid int, sig syscall.Signal, outcome Outcome) {
	name := SignalName(sig)
	metrics.RecordSignal(name, outcome.String())

	if c.logger == nil {
		return
	}
	if outcome == Failed {
		c.logger.Warn("msg", "Signal not accepted",
			"component", "process",
			"op", op,
			"pid", pid,
			"signal", name)
		return
	}
	c.logger.Debug("msg", "Signal sent",
		"component", "process",
		"op", op,
		"pid", pid,
		"signal", name,
		"outcome", outcome.String())
}

func clampWait(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxWait {
		return MaxWait
	}
	return d
}
