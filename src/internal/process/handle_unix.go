// FILE: muxd/src/internal/process/handle_unix.go

//go:build unix

package process

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// systemHandle talks to real processes with kill(2)
type systemHandle struct{}

// SystemHandle returns the Handle backed by the operating system
func SystemHandle() Handle {
	return systemHandle{}
}

func (systemHandle) Probe(pid int) bool {
	return unix.Kill(pid, SignalProbe) == nil
}

func (systemHandle) Signal(pid int, sig syscall.Signal) bool {
	return unix.Kill(pid, sig) == nil
}

func (systemHandle) Confirmations(sig syscall.Signal) (<-chan struct{}, func()) {
	raw := make(chan os.Signal, 1)
	out := make(chan struct{}, 1)
	done := make(chan struct{})

	signal.Notify(raw, sig)
	go func() {
		for {
			select {
			case <-raw:
				select {
				case out <- struct{}{}:
				default:
				}
			case <-done:
				return
			}
		}
	}()

	return out, func() {
		signal.Stop(raw)
		close(done)
	}
}
