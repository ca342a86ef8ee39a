// FILE: muxd/src/cmd/muxd/commands/control.go
package commands

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"muxd/src/internal/config"
	"muxd/src/internal/process"
)

// ErrNotRunning is returned when the pid file names no live process
var ErrNotRunning = errors.New("muxd is not running")

const defaultWait = 10 * time.Second

// target is the running server a control command acts on
type target struct {
	pidFile string
	pid     int
	wait    time.Duration
}

// ControlCommand acts on a running server through its pid file
type ControlCommand struct {
	name        string
	description string
	help        string
	env         Env
	run         func(c *ControlCommand, t target) error
}

func newControlCommand(env Env, name, description, help string, run func(*ControlCommand, target) error) *ControlCommand {
	return &ControlCommand{
		name:        name,
		description: description,
		help:        help,
		env:         env,
		run:         run,
	}
}

func (c *ControlCommand) Execute(args []string) error {
	t, err := c.resolve(args)
	if err != nil {
		return err
	}
	return c.run(c, t)
}

func (c *ControlCommand) Description() string { return c.description }
func (c *ControlCommand) Help() string        { return c.help }

func (c *ControlCommand) controller() *process.Controller {
	if c.env.Control != nil {
		return c.env.Control
	}
	return process.NewController(c.env.Logger)
}

// resolve finds the pid file from flags or config and reads the pid
func (c *ControlCommand) resolve(args []string) (target, error) {
	fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
	fs.SetOutput(c.env.Out)
	configFile := fs.String("config", "", "Config file path")
	pidFile := fs.String("pid-file", "", "Pid file of the running server")
	wait := fs.Int("wait", -1, "Seconds to wait for the server")
	if err := fs.Parse(args); err != nil {
		return target{}, err
	}

	t := target{pidFile: *pidFile, wait: defaultWait}
	if *wait >= 0 {
		t.wait = time.Duration(*wait) * time.Second
	}

	if t.pidFile == "" {
		if *configFile != "" {
			os.Setenv("MUXD_CONFIG_FILE", *configFile)
		}
		cfg, err := config.LoadWithCLI(fs.Args())
		if err != nil {
			return target{}, err
		}
		t.pidFile = cfg.PidFile
		if *wait < 0 && cfg.StopTimeout > 0 {
			t.wait = time.Duration(cfg.StopTimeout) * time.Second
		}
	}

	pid, err := process.ReadPidFile(t.pidFile)
	if err != nil {
		return target{}, fmt.Errorf("%w (pid file %s): %v", ErrNotRunning, t.pidFile, err)
	}
	t.pid = pid
	return t, nil
}

// signal delivers sig and reports the outcome on the operator stream
func (c *ControlCommand) signal(t target, sig syscall.Signal) error {
	switch c.controller().SendSignal(t.pid, sig, t.wait) {
	case process.Accepted:
		fmt.Fprintf(c.env.Out, "Sent %s to muxd(PID:%d)\n", process.SignalName(sig), t.pid)
		return nil
	case process.Absent:
		return fmt.Errorf("%w (PID:%d)", ErrNotRunning, t.pid)
	default:
		return fmt.Errorf("failed to send %s to muxd(PID:%d)", process.SignalName(sig), t.pid)
	}
}

const controlFlags = `
Options:
  -config <path>     Read pid_file and stop_timeout from this config
  -pid-file <path>   Pid file of the running server (overrides config)
  -wait <seconds>    How long to wait (default: stop_timeout, capped at 30)
`

func NewStopCommand(env Env) *ControlCommand {
	return newControlCommand(env, "stop", "Gracefully stop a running server", `Stop Command - Gracefully stop a running server

Usage:
  muxd stop [options]

Sends the stop signal and waits until the process exits; -wait 0 returns
once the signal is delivered.
`+controlFlags,
		func(c *ControlCommand, t target) error {
			if !c.controller().SafeStopAndOutput(c.env.Out, t.pid, "muxd", t.wait) {
				return fmt.Errorf("muxd(PID:%d) did not stop", t.pid)
			}
			return nil
		})
}

func NewReloadCommand(env Env) *ControlCommand {
	return newControlCommand(env, "reload", "Restart the event workers of a running server", `Reload Command - Restart event workers

Usage:
  muxd reload [options]

Listeners stay open; every event worker is stopped and started again.
`+controlFlags,
		func(c *ControlCommand, t target) error {
			return c.signal(t, process.SignalReloadWorkers)
		})
}

func NewReloadTaskCommand(env Env) *ControlCommand {
	return newControlCommand(env, "reload-task", "Restart the task workers of a running server", `Reload-Task Command - Restart task workers

Usage:
  muxd reload-task [options]

Running tasks are drained before the task workers restart.
`+controlFlags,
		func(c *ControlCommand, t target) error {
			return c.signal(t, process.SignalReloadTasks)
		})
}

func NewReopenLogCommand(env Env) *ControlCommand {
	return newControlCommand(env, "reopen-log", "Reopen the log files of a running server", `Reopen-Log Command - Reopen log files

Usage:
  muxd reopen-log [options]

Use after an external tool rotated the log files.
`+controlFlags,
		func(c *ControlCommand, t target) error {
			return c.signal(t, process.SignalReopenLog)
		})
}

func NewStatusCommand(env Env) *ControlCommand {
	return newControlCommand(env, "status", "Report whether a server is running", `Status Command - Report whether a server is running

Usage:
  muxd status [options]

Exits non-zero when no live process owns the pid file.
`+controlFlags,
		func(c *ControlCommand, t target) error {
			if !c.controller().IsRunning(t.pid) {
				return fmt.Errorf("%w (stale pid file %s, PID:%d)", ErrNotRunning, t.pidFile, t.pid)
			}
			fmt.Fprintf(c.env.Out, "muxd is running (PID:%d, pid_file:%s)\n", t.pid, coalesceString(t.pidFile, "-"))
			return nil
		})
}
