// FILE: muxd/src/cmd/muxd/background.go
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

const backgroundEnv = "MUXD_BACKGROUND"

func isBackgroundProcess() bool {
	return os.Getenv(backgroundEnv) == "1"
}

// runInBackground re-executes muxd start with args in a new session and returns its pid
func runInBackground(args []string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve executable: %w", err)
	}

	cmd := exec.Command(exe, append([]string{"start"}, args...)...)
	cmd.Env = append(os.Environ(), backgroundEnv+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start background process: %w", err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release background process: %w", err)
	}
	return pid, nil
}
