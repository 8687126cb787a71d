package adapter

import (
	"strconv"

	"github.com/ssfcore/ssf/pkg/registry"
)

// ReverseDatagram implements Adapter for `-V [bind:]lport:host:rport`: the
// peer listens for UDP datagrams on lport, relaying each one back through a
// fiber to this side, which relays it on to host:rport.
type ReverseDatagram struct {
	Specification ForwardSpecification
}

// PeerRequests asks the peer to run the datagrams-to-fibers half, listening
// on lport.
func (f ReverseDatagram) PeerRequests() []PeerRequest {
	return []PeerRequest{{
		ServiceID: registry.ServiceDatagramsToFibers,
		Arguments: map[string]string{
			"local_port":   strconv.FormatUint(uint64(f.Specification.LocalPort), 10),
			"bind_address": f.Specification.BindAddress,
		},
	}}
}

// LocalServices runs the fibers-to-datagrams half, relaying to host:rport
// for every datagram the peer forwards.
func (f ReverseDatagram) LocalServices() []LocalService {
	return []LocalService{{
		ServiceID: registry.ServiceFibersToDatagrams,
		Arguments: map[string]string{
			"local_port":  strconv.FormatUint(uint64(f.Specification.LocalPort), 10),
			"remote_ip":   f.Specification.RemoteHost,
			"remote_port": strconv.FormatUint(uint64(f.Specification.RemotePort), 10),
		},
	}}
}
