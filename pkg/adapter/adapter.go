// Package adapter implements the user-service adapters behind the `-L`,
// `-R`, `-U`, `-V`, `-D`, `-F`, `-X`, and `-Y` CLI flags. Each adapter is a
// value that names which CreateServiceRequests to send to the peer and
// which microservice ids to start locally; Run enforces the creation
// ordering the contract requires (every peer create must succeed before any
// local service starts) and Session.Stop unwinds both sides on teardown.
package adapter

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/control"
	"github.com/ssfcore/ssf/pkg/registry"
)

// PeerRequest is one CreateServiceRequest an adapter sends to the peer.
type PeerRequest struct {
	ServiceID uint32
	Arguments map[string]string
}

// LocalService is one microservice an adapter starts on this side of the
// session via registry.Manager.Start.
type LocalService struct {
	ServiceID uint32
	Arguments map[string]string
}

// Adapter is the contract a user-service adapter satisfies: the peer-side
// requests it needs granted before it can run, and the microservices it
// runs locally once they are.
type Adapter interface {
	// PeerRequests lists the CreateServiceRequests to send to the peer, in
	// the order they should be issued.
	PeerRequests() []PeerRequest
	// LocalServices lists the microservice ids to start locally, in the
	// order they should be started. Run does not begin starting these
	// until every peer request above has succeeded.
	LocalServices() []LocalService
}

// Session tracks the peer and local service instances an adapter started,
// so Stop can unwind both in one call.
type Session struct {
	admin    *control.Endpoint
	services *registry.Manager

	mu             sync.Mutex
	peerInstances  []uint32
	localInstances []uint32
	stopped        bool
}

// Run grants an adapter's peer requests in order, then starts its local
// services in order, only once every peer request has succeeded. If any
// peer request is refused, or any local service fails to start, everything
// already started is stopped before Run returns the originating error.
func Run(ctx context.Context, admin *control.Endpoint, services *registry.Manager, a Adapter) (*Session, error) {
	session := &Session{admin: admin, services: services}

	for _, request := range a.PeerRequests() {
		status, err := admin.CreateService(ctx, request.ServiceID, request.Arguments)
		if err != nil {
			session.Stop()
			return nil, errors.Wrapf(err, "peer refused service %d", request.ServiceID)
		}
		if status.InstanceID == 0 {
			session.Stop()
			return nil, errors.Errorf("peer returned invalid instance id for service %d", request.ServiceID)
		}
		session.peerInstances = append(session.peerInstances, status.InstanceID)
	}

	for _, local := range a.LocalServices() {
		instanceID, _, err := services.Start(local.ServiceID, local.Arguments)
		if err != nil {
			session.Stop()
			return nil, errors.Wrapf(err, "unable to start local service %d", local.ServiceID)
		}
		session.localInstances = append(session.localInstances, instanceID)
	}

	return session, nil
}

// Stop terminates every local service this session started and asks the
// peer to stop every service it granted. Safe to call multiple times and
// safe to call on a partially-started session (Run calls it internally on
// failure).
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	localInstances := s.localInstances
	peerInstances := s.peerInstances
	s.mu.Unlock()

	for _, instanceID := range localInstances {
		s.services.Stop(instanceID)
	}
	for _, instanceID := range peerInstances {
		s.admin.StopService(context.Background(), instanceID)
	}
}
