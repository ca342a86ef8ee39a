// FILE: muxd/src/cmd/muxd/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"muxd/src/internal/process"

	"github.com/lixenwraith/log"
)

// Controls is what the signal handler drives on a running server
type Controls interface {
	Reload() error
	ReloadTask() error
}

// SignalHandler maps control signals onto the running server
type SignalHandler struct {
	srv     Controls
	reopen  func() error
	logger  *log.Logger
	sigChan chan os.Signal
}

func NewSignalHandler(srv Controls, reopen func() error, logger *log.Logger) *SignalHandler {
	sh := &SignalHandler{
		srv:     srv,
		reopen:  reopen,
		logger:  logger,
		sigChan: make(chan os.Signal, 4),
	}

	signal.Notify(sh.sigChan,
		syscall.SIGINT,
		process.SignalStop,
		process.SignalReloadWorkers,
		process.SignalReloadTasks,
		process.SignalReopenLog,
	)

	return sh
}

// Handle serves reload and reopen signals until a stop signal arrives, which it returns.
// It returns nil when ctx ends first.
func (sh *SignalHandler) Handle(ctx context.Context) os.Signal {
	for {
		select {
		case sig := <-sh.sigChan:
			if stop := sh.dispatch(sig); stop {
				return sig
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (sh *SignalHandler) dispatch(sig os.Signal) bool {
	s, _ := sig.(syscall.Signal)
	sh.logger.Info("msg", "Control signal received",
		"component", "signal",
		"signal", process.SignalName(s))

	var err error
	switch s {
	case process.SignalReloadWorkers:
		err = sh.srv.Reload()
	case process.SignalReloadTasks:
		err = sh.srv.ReloadTask()
	case process.SignalReopenLog:
		if sh.reopen != nil {
			err = sh.reopen()
		}
	default:
		return true
	}

	if err != nil {
		sh.logger.Error("msg", "Control signal failed",
			"component", "signal",
			"signal", process.SignalName(s),
			"error", err)
	}
	return false
}

func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
}
