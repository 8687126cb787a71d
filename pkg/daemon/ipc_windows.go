//go:build windows
// +build windows

package daemon

import (
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/google/uuid"
	"github.com/hectane/go-acl"
	"github.com/pkg/errors"
)

const pipeNameRecordName = "daemon.pipe"

func dialTimeout(timeout time.Duration) (net.Conn, error) {
	pipeNameRecordPath, err := subpath(pipeNameRecordName)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compute pipe name record path")
	}

	pipeNameBytes, err := ioutil.ReadFile(pipeNameRecordPath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read pipe name")
	}

	return winio.DialPipe(string(pipeNameBytes), &timeout)
}

type daemonListener struct {
	net.Listener
	pipeNameRecordPath string
}

func (l *daemonListener) Close() error {
	if l.pipeNameRecordPath != "" {
		os.Remove(l.pipeNameRecordPath)
	}
	return l.Listener.Close()
}

// newListener creates the daemon's named-pipe IPC listener. The pipe's
// security descriptor restricts access to the current user, and the pipe
// name record written alongside it is further locked down with an explicit
// ACL, since anyone who can read the record can dial the pipe.
func newListener() (net.Listener, error) {
	pipeName := fmt.Sprintf(`\\.\pipe\ssf-%s`, uuid.New().String())

	pipeNameRecordPath, err := subpath(pipeNameRecordName)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compute pipe name record path")
	}

	rawListener, err := winio.ListenPipe(pipeName, &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)",
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to listen on named pipe")
	}
	listener := &daemonListener{Listener: rawListener}

	if err := ioutil.WriteFile(pipeNameRecordPath, []byte(pipeName), 0600); err != nil {
		listener.Close()
		return nil, errors.Wrap(err, "unable to record pipe name")
	}
	if err := acl.Chmod(pipeNameRecordPath, 0600); err != nil {
		listener.Close()
		return nil, errors.Wrap(err, "unable to restrict pipe name record permissions")
	}
	listener.pipeNameRecordPath = pipeNameRecordPath

	return listener, nil
}
