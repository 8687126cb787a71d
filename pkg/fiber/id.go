package fiber

import "fmt"

// wellKnownPortCeiling is the exclusive upper bound of the well-known port
// range. Ports below this value are reserved for built-in and registered
// services; dynamically allocated ports are always drawn from above it.
const wellKnownPortCeiling = 1 << 17

// dynamicPortFloor is the inclusive lower bound of the dynamic port
// allocation range.
const dynamicPortFloor = wellKnownPortCeiling + 1024

// DynamicPortFloor exposes dynamicPortFloor so that callers outside this
// package (the stream-forward, datagram-forward and SOCKS services) can derive deterministic fiber port
// numbers from a CLI-specified local port without colliding with the
// well-known/reserved band below it.
const DynamicPortFloor uint32 = dynamicPortFloor

// AdminPort is the reserved local port for the control fiber on both ends of
// a session.
const AdminPort uint32 = wellKnownPortCeiling + 1

// Reserved well-known fiber ports for the file-copy, file-enquirer, and
// process/shell microservices (registry service ids 7 through 10), in the
// 40s range of the reserved band below wellKnownPortCeiling.
const (
	FiberToFilePort   uint32 = 40
	FileToFiberPort   uint32 = 41
	FileEnquirerPort  uint32 = 42
	ProcessPort       uint32 = 43
)

// ID identifies a fiber by the pair of ports it binds: the port this side
// considers local, and the port this side considers remote (the peer's
// local port, or 0 for a listening/unconnected fiber).
type ID struct {
	Local  uint32
	Remote uint32
}

// Returning swaps the local and remote ports. It is the key used to look up
// the local owner of an inbound frame: a frame's header carries the sender's
// notion of (local, remote), so the receiver must flip it to find its own
// binding.
func (id ID) Returning() ID {
	return ID{Local: id.Remote, Remote: id.Local}
}

// String provides a human-readable representation of an ID.
func (id ID) String() string {
	return fmt.Sprintf("%d<->%d", id.Local, id.Remote)
}

// acceptorID returns the listening-form identifier for a local port (i.e. the
// identifier under which a listening fiber is bound, with no remote peer).
func acceptorID(localPort uint32) ID {
	return ID{Local: localPort, Remote: 0}
}
