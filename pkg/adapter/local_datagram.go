package adapter

import (
	"strconv"

	"github.com/ssfcore/ssf/pkg/registry"
)

// LocalDatagram implements Adapter for `-U [bind:]lport:host:rport`: a local
// UDP socket bound to lport (and, optionally, bind) that relays each
// datagram to the peer, which relays it on to host:rport.
type LocalDatagram struct {
	Specification ForwardSpecification
}

// PeerRequests asks the peer to run the fibers-to-datagrams half, relaying
// to host:rport for every datagram this side forwards.
func (f LocalDatagram) PeerRequests() []PeerRequest {
	return []PeerRequest{{
		ServiceID: registry.ServiceFibersToDatagrams,
		Arguments: map[string]string{
			"local_port":  strconv.FormatUint(uint64(f.Specification.LocalPort), 10),
			"remote_ip":   f.Specification.RemoteHost,
			"remote_port": strconv.FormatUint(uint64(f.Specification.RemotePort), 10),
		},
	}}
}

// LocalServices runs the datagrams-to-fibers half, listening locally on
// lport.
func (f LocalDatagram) LocalServices() []LocalService {
	return []LocalService{{
		ServiceID: registry.ServiceDatagramsToFibers,
		Arguments: map[string]string{
			"local_port":   strconv.FormatUint(uint64(f.Specification.LocalPort), 10),
			"bind_address": f.Specification.BindAddress,
		},
	}}
}
