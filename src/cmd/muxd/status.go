// FILE: muxd/src/cmd/muxd/status.go
package main

import (
	"context"
	"os"
	"time"

	"muxd/src/internal/server"
)

const statusInterval = 30 * time.Second

func enableStatusReporter() bool {
	return os.Getenv("MUXD_DISABLE_STATUS_REPORTER") != "1"
}

// statusReporter periodically logs the server layout and topology
func statusReporter(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !srv.Started() {
				continue
			}

			stats := srv.Stats()
			logger.Debug("msg", "Status report",
				"component", "status_reporter",
				"master_pid", stats["master_pid"],
				"current_worker", stats["current_worker"],
				"workers", stats["workers"],
				"tasks", stats["tasks"])

			if listeners, ok := stats["listeners"].([]map[string]any); ok {
				for _, l := range listeners {
					logger.Debug("msg", "Listener status",
						"component", "status_reporter",
						"type", l["type"],
						"role", l["role"],
						"address", l["address"])
				}
			}
		}
	}
}
