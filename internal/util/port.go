package util

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// IsPortAvailable checks if a port is available for listening
func IsPortAvailable(host string, port int) bool {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		// Port is not available
		return false
	}
	// Successfully bound to port, now close and report as available
	listener.Close()
	return true
}

// FindAvailablePort returns the preferred port when free, otherwise probes
// the next maxAttempts-1 ports sequentially and finally falls back to an
// OS-assigned random port.
func FindAvailablePort(host string, preferred int, maxAttempts int) (int, error) {
	for offset := 0; offset < maxAttempts; offset++ {
		if IsPortAvailable(host, preferred+offset) {
			return preferred + offset, nil
		}
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("no available port near %d: %w", preferred, err)
	}
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", listener.Addr())
	}
	return addr.Port, nil
}

// WaitForPortReady waits until a listener answers on host:port or the
// timeout elapses. Used to confirm server startup.
func WaitForPortReady(host string, port int, timeout time.Duration) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", address, 250*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("port %d not ready after %v", port, timeout)
}
