// FILE: muxd/src/cmd/muxd/output.go
package main

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// operatorConsole carries what muxd tells the person at the terminal: the
// background start banner and the progress of stop, reload and status.
// Diagnostics go to the logger instead. Quiet mode (-quiet or quiet = true)
// silences the console but never a fatal error.
type operatorConsole struct {
	mu     sync.RWMutex
	quiet  bool
	out    io.Writer
	errOut io.Writer
}

var console = &operatorConsole{out: os.Stdout, errOut: os.Stderr}

// Write lets control commands print through the console, so quiet mode set
// after the router is built still applies
func (c *operatorConsole) Write(p []byte) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.quiet {
		return len(p), nil
	}
	return c.out.Write(p)
}

func (c *operatorConsole) Printf(format string, args ...any) {
	fmt.Fprintf(c, format, args...)
}

// Warnf writes to stderr unless quiet
func (c *operatorConsole) Warnf(format string, args ...any) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.quiet {
		fmt.Fprintf(c.errOut, format, args...)
	}
}

// Fatalf writes to stderr even when quiet, then exits with code
func (c *operatorConsole) Fatalf(code int, format string, args ...any) {
	c.mu.RLock()
	fmt.Fprintf(c.errOut, format, args...)
	c.mu.RUnlock()
	os.Exit(code)
}

func (c *operatorConsole) Quiet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quiet
}

func (c *operatorConsole) SetQuiet(quiet bool) {
	c.mu.Lock()
	c.quiet = quiet
	c.mu.Unlock()
}
