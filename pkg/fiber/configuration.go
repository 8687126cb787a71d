package fiber

import "time"

const (
	// highWaterMark is the soft limit on a fiber's receive buffer. Crossing
	// it from below disables the peer's send readiness.
	highWaterMark = 60 * 1024 * 1024
	// lowWaterMark is the point below which a fiber's receive buffer must
	// fall before its peer's send readiness is re-enabled.
	lowWaterMark = 40 * 1024 * 1024

	// dynamicPortAttempts bounds the number of random draws attempted when
	// allocating a dynamic local port.
	dynamicPortAttempts = 100
)

// flowControlProbeInterval is how often a Write that is blocked by the peer's
// flow control re-checks readiness. Write keeps waiting inside the call until
// the peer is ready, the fiber closes or ctx is done; it never completes with
// a zero-byte result.
const flowControlProbeInterval = 10 * time.Millisecond

// Configuration controls tunable Demultiplexer parameters.
type Configuration struct {
	// MTU is the maximum payload size, in bytes, for any single frame. It is
	// capped to DefaultMTU regardless of the requested value.
	MTU uint16
}

// DefaultConfiguration returns the default Demultiplexer configuration.
func DefaultConfiguration() *Configuration {
	return &Configuration{MTU: DefaultMTU}
}

// normalize clamps out-of-range configuration values.
func (c *Configuration) normalize() {
	if c.MTU == 0 || c.MTU > DefaultMTU {
		c.MTU = DefaultMTU
	}
}
