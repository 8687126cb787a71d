package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/logging"
)

// ErrServiceNotFound indicates that a CreateServiceRequest named an
// unregistered service identifier.
var ErrServiceNotFound = errors.New("registry: service not found")

// ErrServiceNotStarted indicates that a StopServiceRequest named an instance
// identifier with no running service.
var ErrServiceNotStarted = errors.New("registry: service instance not running")

// instance tracks one running Service and the goroutine driving its Run
// loop.
type instance struct {
	id      uint32
	service Service
	done    chan struct{}
	runErr  error
}

// Manager tracks the running service instances for a single session. Its
// methods are safe for concurrent use.
type Manager struct {
	demux  *fiber.Demultiplexer
	logger *logging.Logger

	mu             sync.Mutex
	nextInstanceID uint32
	instances      map[uint32]*instance
}

// NewManager creates an empty instance manager bound to demux. Every
// service it starts is constructed with this same demux.
func NewManager(demux *fiber.Demultiplexer, logger *logging.Logger) *Manager {
	return &Manager{
		demux:          demux,
		logger:         logger,
		nextInstanceID: 1,
		instances:      make(map[uint32]*instance),
	}
}

// Start looks up the constructor for serviceID, instantiates it, and begins
// running it on its own goroutine. It returns the instance identifier
// assigned to the new service and, if the service implements
// ParameterReporter, the parameters it wants returned to the peer alongside
// the initial ServiceStatus reply.
func (m *Manager) Start(serviceID uint32, arguments map[string]string) (uint32, map[string]string, error) {
	constructor, ok := Lookup(serviceID)
	if !ok {
		return 0, nil, ErrServiceNotFound
	}

	service, err := constructor(m.demux, arguments)
	if err != nil {
		return 0, nil, err
	}

	m.mu.Lock()
	instanceID := m.nextInstanceID
	m.nextInstanceID++
	inst := &instance{id: instanceID, service: service, done: make(chan struct{})}
	m.instances[instanceID] = inst
	m.mu.Unlock()

	go func() {
		defer close(inst.done)
		inst.runErr = service.Run(context.Background())
	}()

	m.logger.Debugf("started service %d as instance %d", serviceID, instanceID)

	var parameters map[string]string
	if reporter, ok := service.(ParameterReporter); ok {
		parameters = reporter.Parameters()
	}
	return instanceID, parameters, nil
}

// Stop terminates the given instance, blocking until its Run loop has
// returned.
func (m *Manager) Stop(instanceID uint32) error {
	m.mu.Lock()
	inst, ok := m.instances[instanceID]
	if ok {
		delete(m.instances, instanceID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrServiceNotStarted
	}

	stopErr := inst.service.Stop()
	<-inst.done
	if stopErr != nil {
		return stopErr
	}
	return inst.runErr
}

// Shutdown stops every running instance.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	instances := make([]*instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.instances = make(map[uint32]*instance)
	m.mu.Unlock()

	for _, inst := range instances {
		inst.service.Stop()
		<-inst.done
	}
}
