// FILE: muxd/src/cmd/muxd/commands/version.go
package commands

import (
	"fmt"
	"io"

	"muxd/src/internal/version"
)

// VersionCommand handles version display
type VersionCommand struct {
	out io.Writer
}

func NewVersionCommand(out io.Writer) *VersionCommand {
	return &VersionCommand{out: out}
}

func (c *VersionCommand) Execute(args []string) error {
	fmt.Fprintf(c.out, "muxd %s\n", version.String())
	return nil
}

func (c *VersionCommand) Description() string {
	return "Show version information"
}

func (c *VersionCommand) Help() string {
	return `Version Command - Show muxd version information

Usage:
  muxd version

Output includes:
  - Version number
  - Build date
  - Git commit hash (if available)
  - Go version and platform
`
}
