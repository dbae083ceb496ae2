//go:build !windows

package lockfile

import (
	"errors"
	"os"
	"strings"
	"syscall"
)

// isProcessRunning checks whether a process with the given PID is alive.
func isProcessRunning(pid int) (bool, string) {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, "process not found"
	}

	// Signal 0 probes without delivering anything
	err = process.Signal(syscall.Signal(0))
	if err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return false, "process has finished"
		}
		if strings.Contains(err.Error(), "operation not permitted") {
			// Exists, but owned by someone else
			return true, ""
		}
		return false, "cannot signal process"
	}

	return true, ""
}
