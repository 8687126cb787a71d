package shell

import (
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/process"
)

// session wraps a plain standard-input/output pipe pair. Windows has no
// direct analogue of golang.org/x/sys/unix's pty ioctls in this module's
// dependency set, so sessions here run without real terminal semantics
// (no echo suppression, no SIGWINCH-style resize, no job control) the same
// way the teacher's own pkg/process.Stream operates: it wraps stdin/stdout
// pipes unconditionally rather than branching on a pty capability.
type session struct {
	stream *process.Stream
}

func (s *session) Read(buffer []byte) (int, error)  { return s.stream.Read(buffer) }
func (s *session) Write(buffer []byte) (int, error) { return s.stream.Write(buffer) }
func (s *session) Close() error                     { return s.stream.Close() }

// Resize is a no-op on this platform: there is no pty to resize.
func (s *session) Resize(cols, rows int) error { return nil }

// startSession starts cmd with its standard streams redirected through a
// process.Stream, using the teacher's DetachedProcessAttributes so the
// shell process doesn't inherit a console that could block its own exit.
func startSession(cmd *exec.Cmd, cols, rows int) (*session, error) {
	cmd.SysProcAttr = process.DetachedProcessAttributes()

	stream, err := process.NewStream(cmd, 5*time.Second)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create process stream")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "unable to start shell process")
	}

	return &session{stream: stream}, nil
}
