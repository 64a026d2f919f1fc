//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// terminateProcess asks the server for a graceful shutdown.
func terminateProcess(process *os.Process) error {
	return process.Signal(syscall.SIGTERM)
}
