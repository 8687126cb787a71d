package fiber

import "errors"

// Error kinds surfaced to callers of this package. Callers should compare
// against these with errors.Is rather than on message text.
var (
	// ErrBrokenPipe indicates an operation on a demultiplexer whose carrier is
	// no longer usable.
	ErrBrokenPipe = errors.New("fiber: broken pipe")
	// ErrDeviceOrResourceBusy indicates a bind/listen conflict, or an attempt
	// to listen on a port that is already listening.
	ErrDeviceOrResourceBusy = errors.New("fiber: device or resource busy")
	// ErrProtocolError indicates a malformed request, an unsupported frame, or
	// a listen attempted on a port that was never bound.
	ErrProtocolError = errors.New("fiber: protocol error")
	// ErrConnectionRefused indicates that the peer sent RST while the fiber
	// was Connecting.
	ErrConnectionRefused = errors.New("fiber: connection refused")
	// ErrConnectionReset indicates that the peer sent RST after the fiber was
	// Connected.
	ErrConnectionReset = errors.New("fiber: connection reset")
	// ErrConnectionAborted indicates that the demultiplexer was closed while
	// an operation was pending.
	ErrConnectionAborted = errors.New("fiber: connection aborted")
	// ErrNotConnected indicates a send or receive attempted on a fiber that
	// is not in the Connected state.
	ErrNotConnected = errors.New("fiber: not connected")
	// ErrMessageTooLong indicates a datagram payload exceeding the negotiated
	// MTU.
	ErrMessageTooLong = errors.New("fiber: message too long")
	// ErrInterrupted indicates that a pending operation was cancelled by a
	// call to Close on its owning fiber.
	ErrInterrupted = errors.New("fiber: interrupted")
)
