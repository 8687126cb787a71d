// Package registry implements the service registry: the mapping from
// well-known and dynamically assigned service identifiers to the
// constructors that instantiate them, and the per-session bookkeeping of
// running instances.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/ssfcore/ssf/pkg/fiber"
)

// Well-known service identifiers. These are on the wire; do not renumber.
const (
	ServiceAdmin              uint32 = 1
	ServiceSOCKS              uint32 = 2
	ServiceFibersToSockets    uint32 = 3
	ServiceSocketsToFibers    uint32 = 4
	ServiceFibersToDatagrams  uint32 = 5
	ServiceDatagramsToFibers  uint32 = 6
	ServiceFiberToFile        uint32 = 7
	ServiceFileToFiber        uint32 = 8
	ServiceFileEnquirer       uint32 = 9
	ServiceProcess            uint32 = 10
)

// Service is a running service instance. Stop must be safe to call multiple
// times and must unblock any in-progress Run.
type Service interface {
	Run(ctx context.Context) error
	Stop() error
}

// Constructor builds a new Service instance bound to demux (the session's
// Demultiplexer, so the service can open or accept fibers of its own) from
// the arguments supplied in a CreateServiceRequest.
type Constructor func(demux *fiber.Demultiplexer, arguments map[string]string) (Service, error)

// ParameterReporter is implemented by services that need to return data to
// the peer alongside their initial ServiceStatus reply (for example, a
// dynamically bound fiber port the peer must connect to in order to
// complete its side of a forward). Parameters is called once by
// Manager.Start, after the constructor has succeeded and the service's Run
// goroutine has been launched, and before the reply is sent, so a service
// whose listening port is assigned at bind time can report it.
type ParameterReporter interface {
	Parameters() map[string]string
}

// registryLock guards constructors.
var registryLock sync.RWMutex

// constructors maps service identifiers to their constructors.
var constructors = make(map[uint32]Constructor)

// Register associates a service identifier with a constructor. It is
// intended to be called from package init functions; it panics if the
// identifier is already registered.
func Register(serviceID uint32, constructor Constructor) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, exists := constructors[serviceID]; exists {
		panic(fmt.Sprintf("service %d already registered", serviceID))
	}
	constructors[serviceID] = constructor
}

// Lookup returns the constructor registered for a service identifier.
func Lookup(serviceID uint32) (Constructor, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	constructor, ok := constructors[serviceID]
	return constructor, ok
}
