// FILE: muxd/src/cmd/muxd/commands/router.go
package commands

import (
	"fmt"
	"io"
	"os"
	"sort"

	"muxd/src/internal/process"

	"github.com/lixenwraith/log"
)

// Handler defines the interface required for all subcommands.
type Handler interface {
	Execute(args []string) error
	Description() string
	Help() string
}

// Env carries what subcommands share with the main program
type Env struct {
	Logger *log.Logger
	Out    io.Writer
	// Start runs the server; it is also the default command
	Start Handler
	// Control overrides the process controller of the control commands
	Control *process.Controller
}

// CommandRouter handles the routing of CLI arguments to the appropriate subcommand handler.
type CommandRouter struct {
	commands map[string]Handler
	start    Handler
	out      io.Writer
}

// NewCommandRouter creates the router with every muxd subcommand.
func NewCommandRouter(env Env) *CommandRouter {
	if env.Out == nil {
		env.Out = os.Stdout
	}

	router := &CommandRouter{
		commands: make(map[string]Handler),
		start:    env.Start,
		out:      env.Out,
	}

	if env.Start != nil {
		router.commands["start"] = env.Start
	}
	router.commands["stop"] = NewStopCommand(env)
	router.commands["reload"] = NewReloadCommand(env)
	router.commands["reload-task"] = NewReloadTaskCommand(env)
	router.commands["reopen-log"] = NewReopenLogCommand(env)
	router.commands["status"] = NewStatusCommand(env)
	router.commands["cert"] = NewCertCommand(env.Out)
	router.commands["version"] = NewVersionCommand(env.Out)
	router.commands["help"] = NewHelpCommand(router, env.Out)

	return router
}

// Route executes the subcommand named by args[1].
// With no subcommand, or a flag in its place, the start command receives args[1:].
func (r *CommandRouter) Route(args []string) error {
	if len(args) < 2 || args[1] == "" || args[1][0] == '-' {
		if hasHelpFlag(args) {
			return r.commands["help"].Execute(nil)
		}
		if r.start == nil {
			return fmt.Errorf("no command given\n\nRun 'muxd help' for usage")
		}
		return r.start.Execute(args[min(1, len(args)):])
	}

	cmdName := args[1]
	handler, exists := r.commands[cmdName]
	if !exists {
		return fmt.Errorf("unknown command: %s\n\nRun 'muxd help' for usage", cmdName)
	}

	if cmdName != "help" && hasHelpFlag(args[2:]) {
		fmt.Fprint(r.out, handler.Help())
		return nil
	}

	return handler.Execute(args[2:])
}

// GetCommand returns a specific command handler by its name.
func (r *CommandRouter) GetCommand(name string) (Handler, bool) {
	cmd, exists := r.commands[name]
	return cmd, exists
}

// Names returns the registered command names in sorted order
func (r *CommandRouter) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}

// coalesceString returns the first non-empty string from a list of arguments.
func coalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
