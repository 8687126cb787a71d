// Package control implements the request/reply protocol carried on the
// reserved admin fiber of a session: service lifecycle management
// (create/stop/status) and keepalive.
package control

import "time"

// KeepaliveInterval is how often an endpoint sends a Keepalive envelope to
// its peer, whether or not other traffic is flowing.
const KeepaliveInterval = 120 * time.Second

// KeepaliveTimeout is how long an endpoint waits for any traffic (a
// keepalive or otherwise) before treating the peer as unresponsive.
const KeepaliveTimeout = 3 * KeepaliveInterval

// Kind identifies the payload carried by an Envelope. Values below
// KindError are fixed on the wire; KindError is a local-only addition for
// signaling a failed call since ServiceStatus alone has no error channel of
// its own.
type Kind uint8

const (
	KindKeepalive Kind = iota
	KindCreateServiceRequest
	KindServiceStatus
	KindStopServiceRequest
	KindError
)

// CreateServiceRequest asks the peer to start an instance of a registered
// service.
type CreateServiceRequest struct {
	ServiceID uint32
	Arguments map[string]string
}

// ServiceStatus reports the outcome of a CreateServiceRequest or
// StopServiceRequest, or an asynchronous state change pushed by the peer.
// Parameters carries service-specific reply data (e.g. a dynamically bound
// fiber port the requester needs to complete its side of the forward), the
// analogue of spec.md §4.3's ServiceStatus params field.
type ServiceStatus struct {
	InstanceID uint32
	ServiceID  uint32
	Running    bool
	Parameters map[string]string
}

// StopServiceRequest asks the peer to terminate a running service instance.
type StopServiceRequest struct {
	InstanceID uint32
}

// Envelope is the single gob-encoded unit exchanged over a control
// connection. Exactly one of the pointer fields is populated, per Kind.
type Envelope struct {
	Serial uint64
	Kind   Kind

	Create *CreateServiceRequest
	Status *ServiceStatus
	Stop   *StopServiceRequest

	ErrorMessage string
}
