package adapter

import (
	"strconv"

	"github.com/ssfcore/ssf/pkg/registry"
)

// ReverseForward implements Adapter for `-R [bind:]lport:host:rport`: the
// peer listens on lport, and every connection it accepts is forwarded back
// through a fiber to this side, which dials host:rport locally.
type ReverseForward struct {
	Specification ForwardSpecification
}

// PeerRequests asks the peer to run the sockets-to-fibers half, listening
// on lport.
func (f ReverseForward) PeerRequests() []PeerRequest {
	return []PeerRequest{{
		ServiceID: registry.ServiceSocketsToFibers,
		Arguments: map[string]string{
			"local_port":   strconv.FormatUint(uint64(f.Specification.LocalPort), 10),
			"bind_address": f.Specification.BindAddress,
		},
	}}
}

// LocalServices runs the fibers-to-sockets half, dialing host:rport for
// every fiber the peer opens.
func (f ReverseForward) LocalServices() []LocalService {
	return []LocalService{{
		ServiceID: registry.ServiceFibersToSockets,
		Arguments: map[string]string{
			"local_port":  strconv.FormatUint(uint64(f.Specification.LocalPort), 10),
			"remote_ip":   f.Specification.RemoteHost,
			"remote_port": strconv.FormatUint(uint64(f.Specification.RemotePort), 10),
		},
	}}
}
