// Package daemon implements the local control-plane IPC that lets a short-
// lived `ssf` CLI invocation attach to and detach from a long-running `ssf
// agent` process: a tiny request/reply layer with its own gob-encoded
// Request/Response codec, carried over a Unix domain socket (or a named pipe
// on Windows). It does not use pkg/control's codec.
package daemon

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/filesystem"
)

const socketName = "daemon.sock"

func subpath(name string) (string, error) {
	daemonRoot, err := filesystem.SSF(true, filesystem.SSFDaemonDirectoryName)
	if err != nil {
		return "", errors.Wrap(err, "unable to compute daemon directory")
	}
	return filepath.Join(daemonRoot, name), nil
}
