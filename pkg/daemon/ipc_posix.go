//go:build !windows
// +build !windows

package daemon

import (
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
)

func dialTimeout(timeout time.Duration) (net.Conn, error) {
	socketPath, err := subpath(socketName)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compute socket path")
	}
	return net.DialTimeout("unix", socketPath, timeout)
}

// newListener creates the daemon's IPC listener. The caller should hold the
// SSF data directory lock, since a stale socket from a crashed daemon is
// removed here rather than left to block the bind.
func newListener() (net.Listener, error) {
	socketPath, err := subpath(socketName)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compute socket path")
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "unable to remove stale socket")
	}

	return net.Listen("unix", socketPath)
}
