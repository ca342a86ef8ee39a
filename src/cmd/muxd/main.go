// FILE: muxd/src/cmd/muxd/main.go
package main

import (
	"os"
	"time"

	"muxd/src/cmd/muxd/commands"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	logger = bootstrapLogger()
	console.SetQuiet(quietRequested(os.Args[1:]))

	router := commands.NewCommandRouter(commands.Env{
		Logger: logger,
		Out:    console,
		Start:  &startCommand{},
	})

	err := router.Route(os.Args)
	shutdownLogger()
	if err != nil {
		console.Fatalf(1, "Error: %v\n", err)
	}
}

// quietRequested looks for -quiet before flags are parsed
func quietRequested(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-quiet", "--quiet", "-quiet=true", "--quiet=true":
			return true
		}
	}
	return false
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			// Best effort - can't log the shutdown error
			console.Warnf("Logger shutdown error: %v\n", err)
		}
	}
}
