package daemon

import (
	"encoding/gob"
	"net"

	"github.com/pkg/errors"
)

// Command identifies a daemon IPC request. Unlike pkg/control's fixed wire
// command ids (which are a cross-implementation contract), these are
// local-process-only and may be renumbered freely.
type Command uint8

const (
	// CommandStatus asks the daemon to report whether it holds a running
	// session and, if so, the session's current status.
	CommandStatus Command = iota + 1
	// CommandShutdown asks the daemon to stop its session and exit.
	CommandShutdown
)

// Request is the gob-encoded unit sent from an `ssf` CLI invocation to the
// daemon process.
type Request struct {
	Command Command
}

// Response is the gob-encoded reply to a Request.
type Response struct {
	// Running reports whether the daemon currently holds a session.
	Running bool
	// Status is the session's current status string, valid only when
	// Running is true.
	Status string
	// Error carries a failure message, if any.
	Error string
}

// codec implements the gob request/reply exchange over a daemon IPC
// connection, mirroring the Envelope-over-gob approach pkg/control uses for
// its own admin-fiber protocol, adapted to a plain net.Conn transport
// instead of a fiber.StreamFiber.
type codec struct {
	conn    net.Conn
	encoder *gob.Encoder
	decoder *gob.Decoder
}

func newCodec(conn net.Conn) *codec {
	return &codec{
		conn:    conn,
		encoder: gob.NewEncoder(conn),
		decoder: gob.NewDecoder(conn),
	}
}

func (c *codec) sendRequest(request Request) error {
	if err := c.encoder.Encode(&request); err != nil {
		return errors.Wrap(err, "unable to encode daemon request")
	}
	return nil
}

func (c *codec) receiveRequest() (Request, error) {
	var request Request
	if err := c.decoder.Decode(&request); err != nil {
		return Request{}, err
	}
	return request, nil
}

func (c *codec) sendResponse(response Response) error {
	if err := c.encoder.Encode(&response); err != nil {
		return errors.Wrap(err, "unable to encode daemon response")
	}
	return nil
}

func (c *codec) receiveResponse() (Response, error) {
	var response Response
	if err := c.decoder.Decode(&response); err != nil {
		return Response{}, err
	}
	return response, nil
}

func (c *codec) Close() error {
	return c.conn.Close()
}
