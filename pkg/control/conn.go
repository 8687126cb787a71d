package control

import (
	"context"
	"encoding/gob"
	"sync"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/fiber"
)

// streamAdapter adapts a *fiber.StreamFiber's context-taking Read/Write
// methods to the plain io.Reader/io.Writer interface gob's Encoder/Decoder
// require.
type streamAdapter struct {
	ctx    context.Context
	stream *fiber.StreamFiber
}

func (a streamAdapter) Read(p []byte) (int, error) {
	return a.stream.Read(a.ctx, p)
}

func (a streamAdapter) Write(p []byte) (int, error) {
	return a.stream.Write(a.ctx, p)
}

// conn is the gob transport for a single control connection.
type conn struct {
	stream *fiber.StreamFiber

	writeMu sync.Mutex
	encoder *gob.Encoder
	decoder *gob.Decoder
}

func newConn(stream *fiber.StreamFiber) *conn {
	adapter := streamAdapter{ctx: context.Background(), stream: stream}
	return &conn{
		stream:  stream,
		encoder: gob.NewEncoder(adapter),
		decoder: gob.NewDecoder(adapter),
	}
}

func (c *conn) send(envelope Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.encoder.Encode(&envelope); err != nil {
		return errors.Wrap(err, "unable to encode control envelope")
	}
	return nil
}

func (c *conn) receive() (Envelope, error) {
	var envelope Envelope
	if err := c.decoder.Decode(&envelope); err != nil {
		return Envelope{}, err
	}
	return envelope, nil
}

func (c *conn) Close() error {
	return c.stream.Close()
}
