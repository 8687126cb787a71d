package adapter

import (
	"strconv"

	"github.com/ssfcore/ssf/pkg/registry"
)

// socksRoleKey names the "role" construction argument registry.ServiceSOCKS
// dispatches on; socksRoleListen and socksRoleDial are its values.
const (
	socksRoleKey    = "role"
	socksRoleListen = "listen"
	socksRoleDial   = "dial"
)

// LocalSocks implements Adapter for `-D [bind:]port`: a SOCKS4/5 server
// listening locally on port, dialing every requested destination through
// the peer.
type LocalSocks struct {
	Specification ListenSpecification
}

// PeerRequests asks the peer to run the dialing role.
func (f LocalSocks) PeerRequests() []PeerRequest {
	return []PeerRequest{{
		ServiceID: registry.ServiceSOCKS,
		Arguments: map[string]string{
			socksRoleKey: socksRoleDial,
			"local_port": strconv.FormatUint(uint64(f.Specification.Port), 10),
		},
	}}
}

// LocalServices runs the listening role, accepting SOCKS clients locally on
// port.
func (f LocalSocks) LocalServices() []LocalService {
	return []LocalService{{
		ServiceID: registry.ServiceSOCKS,
		Arguments: map[string]string{
			socksRoleKey:   socksRoleListen,
			"local_port":   strconv.FormatUint(uint64(f.Specification.Port), 10),
			"bind_address": f.Specification.BindAddress,
		},
	}}
}

// ReverseSocks implements Adapter for `-F [bind:]port`: a SOCKS4/5 server
// listening on the peer on port, dialing every requested destination from
// this side.
type ReverseSocks struct {
	Specification ListenSpecification
}

// PeerRequests asks the peer to run the listening role.
func (f ReverseSocks) PeerRequests() []PeerRequest {
	return []PeerRequest{{
		ServiceID: registry.ServiceSOCKS,
		Arguments: map[string]string{
			socksRoleKey:   socksRoleListen,
			"local_port":   strconv.FormatUint(uint64(f.Specification.Port), 10),
			"bind_address": f.Specification.BindAddress,
		},
	}}
}

// LocalServices runs the dialing role.
func (f ReverseSocks) LocalServices() []LocalService {
	return []LocalService{{
		ServiceID: registry.ServiceSOCKS,
		Arguments: map[string]string{
			socksRoleKey: socksRoleDial,
			"local_port": strconv.FormatUint(uint64(f.Specification.Port), 10),
		},
	}}
}
