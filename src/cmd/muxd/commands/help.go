// FILE: muxd/src/cmd/muxd/commands/help.go
package commands

import (
	"fmt"
	"io"
	"strings"
)

// generalHelpTemplate is the default help message shown when no specific command is requested.
const generalHelpTemplate = `muxd: a multi-listener network event server.

Usage:
  muxd [command] [options]
  muxd [options]                 Same as 'muxd start'

Commands:
%s

Start Options:
  -config <path>           Path to configuration file (default: ~/.config/muxd.toml)
  -background              Detach and run in the background
  -quiet                   Suppress all console output, including errors
  -log-level <level>       debug, info, warn, error (overrides config)
  -log-output <mode>       file, stdout, stderr, both, none (overrides config)

Control Options (stop, reload, reload-task, reopen-log, status):
  -config <path>           Read pid_file and stop_timeout from this config
  -pid-file <path>         Pid file of the running server (overrides config)
  -wait <seconds>          How long to wait for the server to react

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  - CLI arguments after the flags, e.g. --metrics_addr=:9100
  - MUXD_ environment variables, e.g. MUXD_PID_FILE
  - TOML configuration file

Examples:
  # Start with a custom config in the background
  muxd start -config /etc/muxd/muxd.toml -background

  # Restart event workers without dropping listeners
  muxd reload -config /etc/muxd/muxd.toml

  # Graceful stop, giving up after 20 seconds
  muxd stop -pid-file /run/muxd.pid -wait 20
`

// HelpCommand handles the display of general or command-specific help messages.
type HelpCommand struct {
	router *CommandRouter
	out    io.Writer
}

func NewHelpCommand(router *CommandRouter, out io.Writer) *HelpCommand {
	return &HelpCommand{router: router, out: out}
}

// Execute displays the general help, or the help of the command named in args.
func (c *HelpCommand) Execute(args []string) error {
	if len(args) > 0 && args[0] != "" {
		cmdName := args[0]

		if handler, exists := c.router.GetCommand(cmdName); exists {
			fmt.Fprint(c.out, handler.Help())
			return nil
		}

		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Fprintf(c.out, generalHelpTemplate, c.formatCommandList())
	return nil
}

func (c *HelpCommand) Description() string {
	return "Display help information"
}

func (c *HelpCommand) Help() string {
	return `Help Command - Display help information

Usage:
  muxd help              Show general help
  muxd help <command>    Show help for a specific command

Examples:
  muxd help stop         # Show stop command help
  muxd stop --help       # Alternative way to get command help
`
}

// formatCommandList creates an aligned list of all available commands.
func (c *HelpCommand) formatCommandList() string {
	names := c.router.Names()
	maxLen := 0
	for _, name := range names {
		maxLen = max(maxLen, len(name))
	}

	lines := make([]string, 0, len(names))
	for _, name := range names {
		handler, _ := c.router.GetCommand(name)
		padding := strings.Repeat(" ", maxLen-len(name)+2)
		lines = append(lines, fmt.Sprintf("  %s%s%s", name, padding, handler.Description()))
	}

	return strings.Join(lines, "\n")
}
