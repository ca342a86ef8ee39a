// FILE: muxd/src/internal/process/signal_other.go

//go:build unix && !linux

package process

import "golang.org/x/sys/unix"

// No real-time signals; SIGHUP carries log reopen on these platforms
const reopenLogSignal = unix.SIGHUP
