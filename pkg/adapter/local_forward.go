package adapter

import (
	"strconv"

	"github.com/ssfcore/ssf/pkg/registry"
)

// LocalForward implements Adapter for `-L [bind:]lport:host:rport`: a local
// TCP listener bound to lport (and, optionally, bind) that opens a fiber to
// the peer for each connection accepted, which the peer then forwards to
// host:rport.
type LocalForward struct {
	Specification ForwardSpecification
}

// PeerRequests asks the peer to run the fibers-to-sockets half, dialing
// host:rport for every fiber this side opens to it.
func (f LocalForward) PeerRequests() []PeerRequest {
	return []PeerRequest{{
		ServiceID: registry.ServiceFibersToSockets,
		Arguments: map[string]string{
			"local_port":  strconv.FormatUint(uint64(f.Specification.LocalPort), 10),
			"remote_ip":   f.Specification.RemoteHost,
			"remote_port": strconv.FormatUint(uint64(f.Specification.RemotePort), 10),
		},
	}}
}

// LocalServices runs the sockets-to-fibers half, listening locally on lport.
func (f LocalForward) LocalServices() []LocalService {
	return []LocalService{{
		ServiceID: registry.ServiceSocketsToFibers,
		Arguments: map[string]string{
			"local_port":   strconv.FormatUint(uint64(f.Specification.LocalPort), 10),
			"bind_address": f.Specification.BindAddress,
		},
	}}
}
