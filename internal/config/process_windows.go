//go:build windows

package config

import "os"

// processAlive reports whether a process with the given pid exists.
// Signal probing is not reliable on Windows; FindProcess opens a real
// process handle there, so its error is the liveness check.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
