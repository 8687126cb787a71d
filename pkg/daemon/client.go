package daemon

import (
	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/ipc"
)

// DialTimeout is the default timeout used when a short-lived `ssf`
// invocation attaches to a running daemon. It is a multiple of
// ipc.RecommendedDialTimeout since, unlike a typical local IPC dial, this one
// may also be racing a daemon that has only just started listening.
const DialTimeout = 5 * ipc.RecommendedDialTimeout

// Status dials the daemon and returns whether it holds a running session
// and, if so, the session's status string.
func Status() (running bool, status string, err error) {
	conn, err := dialTimeout(DialTimeout)
	if err != nil {
		return false, "", errors.Wrap(err, "unable to connect to daemon")
	}
	defer conn.Close()

	codec := newCodec(conn)
	if err := codec.sendRequest(Request{Command: CommandStatus}); err != nil {
		return false, "", err
	}
	response, err := codec.receiveResponse()
	if err != nil {
		return false, "", errors.Wrap(err, "unable to read daemon response")
	}
	if response.Error != "" {
		return false, "", errors.New(response.Error)
	}
	return response.Running, response.Status, nil
}

// Shutdown dials the daemon and asks it to stop its session and exit.
func Shutdown() error {
	conn, err := dialTimeout(DialTimeout)
	if err != nil {
		return errors.Wrap(err, "unable to connect to daemon")
	}
	defer conn.Close()

	codec := newCodec(conn)
	if err := codec.sendRequest(Request{Command: CommandShutdown}); err != nil {
		return err
	}
	response, err := codec.receiveResponse()
	if err != nil {
		return errors.Wrap(err, "unable to read daemon response")
	}
	if response.Error != "" {
		return errors.New(response.Error)
	}
	return nil
}
