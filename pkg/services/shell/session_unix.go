// +build !windows

package shell

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// session wraps a pty master endpoint, allowing its window size to be
// adjusted and satisfying io.ReadWriteCloser for the byte-pump in shell.go.
type session struct {
	master *os.File
}

func (s *session) Read(buffer []byte) (int, error)  { return s.master.Read(buffer) }
func (s *session) Write(buffer []byte) (int, error) { return s.master.Write(buffer) }
func (s *session) Close() error                     { return s.master.Close() }

// Resize adjusts the pty's reported window size. Not currently driven by
// anything (the wire protocol carries only raw terminal bytes), but kept as
// the natural hook for a future in-band resize control message.
func (s *session) Resize(cols, rows int) error {
	winsize := &unix.Winsize{Col: uint16(cols), Row: uint16(rows)}
	return unix.IoctlSetWinsize(int(s.master.Fd()), unix.TIOCSWINSZ, winsize)
}

var _ io.ReadWriteCloser = (*session)(nil)

// startSession allocates a pty, attaches cmd's standard streams to its slave
// end, starts cmd as the session leader of a new controlling terminal, and
// returns the master end for the caller to pump bytes through.
//
// This opens /dev/ptmx and walks the unlockpt/ptsname sequence by hand with
// golang.org/x/sys/unix ioctls, the same low-level approach command-line pty
// tools in the ecosystem use when they don't want a dedicated pty library.
func startSession(cmd *exec.Cmd, cols, rows int) (*session, error) {
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open pty master")
	}

	if err := unix.IoctlSetInt(int(master.Fd()), unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		return nil, errors.Wrap(err, "unable to unlock pty")
	}

	number, err := unix.IoctlGetInt(int(master.Fd()), unix.TIOCGPTN)
	if err != nil {
		master.Close()
		return nil, errors.Wrap(err, "unable to determine pty slave number")
	}

	slave, err := os.OpenFile(fmt.Sprintf("/dev/pts/%d", number), os.O_RDWR, 0)
	if err != nil {
		master.Close()
		return nil, errors.Wrap(err, "unable to open pty slave")
	}
	defer slave.Close()

	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}

	result := &session{master: master}
	result.Resize(cols, rows)

	if err := cmd.Start(); err != nil {
		master.Close()
		return nil, errors.Wrap(err, "unable to start shell process")
	}

	return result, nil
}
