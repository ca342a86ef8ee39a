// FILE: muxd/src/internal/process/signal_linux.go
package process

import "syscall"

// SIGRTMIN as seen by Go programs on linux; glibc reserves 32 and 33
const reopenLogSignal = syscall.Signal(34)
