package fiber

import (
	"bufio"
	"io"
)

// Carrier is the byte-oriented, reliable, ordered stream that a
// Demultiplexer multiplexes fibers over. Its Close method must
// unblock any pending Read or Write. NewCarrierFromStream adapts any
// io.ReadWriteCloser with that property (TCP and TLS connections, and
// net.Pipe endpoints, all qualify).
type Carrier interface {
	io.Reader
	// Discard skips the next n bytes of the carrier, returning the number of
	// bytes actually discarded and a non-nil error if and only if that count
	// is less than n. The Demultiplexer itself does not call it.
	Discard(n int) (int, error)
	io.Writer
	io.Closer
}

// bufferedCarrier adapts an io.ReadWriteCloser into a Carrier using a
// bufio.Reader, whose Discard method already implements the required
// semantics.
type bufferedCarrier struct {
	*bufio.Reader
	io.Writer
	io.Closer
}

// NewCarrierFromStream constructs a Carrier by wrapping an underlying
// io.ReadWriteCloser. The stream's Close method must unblock any pending
// Read or Write calls (true of net.Conn implementations and net.Pipe).
func NewCarrierFromStream(stream io.ReadWriteCloser) Carrier {
	return &bufferedCarrier{
		Reader: bufio.NewReaderSize(stream, 64*1024),
		Writer: stream,
		Closer: stream,
	}
}
