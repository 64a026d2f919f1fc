//go:build windows

package cli

import "os"

// terminateProcess stops the server. Windows has no reliable SIGTERM
// delivery, so this terminates the process directly.
func terminateProcess(process *os.Process) error {
	return process.Kill()
}
