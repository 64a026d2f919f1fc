package util

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPortAvailable(t *testing.T) {
	// Grab a random free port, hold it, and verify detection
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	assert.False(t, IsPortAvailable("127.0.0.1", port), "occupied port reported available")

	listener.Close()
	assert.True(t, IsPortAvailable("127.0.0.1", port), "freed port reported unavailable")
}

func TestFindAvailablePortPrefersRequested(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	probe := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	port, err := FindAvailablePort("127.0.0.1", probe, 20)
	require.NoError(t, err)
	assert.Equal(t, probe, port)
}

func TestFindAvailablePortSkipsOccupied(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	occupied := listener.Addr().(*net.TCPAddr).Port

	port, err := FindAvailablePort("127.0.0.1", occupied, 20)
	require.NoError(t, err)
	assert.NotEqual(t, occupied, port)
}

func TestWaitForPortReady(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	assert.NoError(t, WaitForPortReady("127.0.0.1", port, 2*time.Second))
}
