package adapter

import (
	"strconv"

	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/registry"
)

// LocalShell implements Adapter for `-X [bind:]port`: a local TCP listener
// on port that connects each accepted connection to the shell microservice
// already running on the peer at its fixed fiber port, instead of a
// per-invocation fibersToSockets instance. The shell microservice is
// session-wide and config-gated, not started per `-X`/`-Y` flag, so there is
// no peer request to send here.
type LocalShell struct {
	Specification ListenSpecification
}

// PeerRequests is empty: the shell microservice the peer runs is started by
// session configuration, not by this adapter.
func (f LocalShell) PeerRequests() []PeerRequest {
	return nil
}

// LocalServices runs the sockets-to-fibers half, pointed at the peer's fixed
// shell fiber port rather than a derived one.
func (f LocalShell) LocalServices() []LocalService {
	return []LocalService{{
		ServiceID: registry.ServiceSocketsToFibers,
		Arguments: map[string]string{
			"local_port":        strconv.FormatUint(uint64(f.Specification.Port), 10),
			"bind_address":      f.Specification.BindAddress,
			"remote_fiber_port": strconv.FormatUint(uint64(fiber.ProcessPort), 10),
		},
	}}
}

// ReverseShell implements Adapter for `-Y [bind:]port`: the peer's
// sockets-to-fibers half listens on port and connects each accepted
// connection back to this side's own shell microservice.
type ReverseShell struct {
	Specification ListenSpecification
}

// PeerRequests asks the peer to run the sockets-to-fibers half, pointed at
// this side's fixed shell fiber port.
func (f ReverseShell) PeerRequests() []PeerRequest {
	return []PeerRequest{{
		ServiceID: registry.ServiceSocketsToFibers,
		Arguments: map[string]string{
			"local_port":        strconv.FormatUint(uint64(f.Specification.Port), 10),
			"bind_address":      f.Specification.BindAddress,
			"remote_fiber_port": strconv.FormatUint(uint64(fiber.ProcessPort), 10),
		},
	}}
}

// LocalServices is empty: this side's shell microservice is started by
// session configuration, not by this adapter.
func (f ReverseShell) LocalServices() []LocalService {
	return nil
}
