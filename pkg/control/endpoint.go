package control

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/fiber"
)

// ErrClosed is returned from CreateService and StopService when the endpoint
// has already shut down.
var ErrClosed = errors.New("control: endpoint closed")

// CreateServiceHandler services an inbound CreateServiceRequest.
type CreateServiceHandler func(ctx context.Context, request CreateServiceRequest) (ServiceStatus, error)

// StopServiceHandler services an inbound StopServiceRequest.
type StopServiceHandler func(ctx context.Context, request StopServiceRequest) (ServiceStatus, error)

// Endpoint is one side of a control connection. Either side may originate a
// CreateServiceRequest or StopServiceRequest; replies are correlated back to
// the originating request by Envelope.Serial.
type Endpoint struct {
	conn *conn

	onCreate CreateServiceHandler
	onStop   StopServiceHandler

	mu         sync.Mutex
	nextSerial uint64
	pending    map[uint64]chan Envelope
	closed     chan struct{}
	closeOnce  sync.Once
	closeErr   error

	lastActivity   time.Time
	activityMu     sync.Mutex
}

// NewEndpoint wraps a connected admin stream fiber and starts its read and
// keepalive loops. isClient selects the serial-numbering parity (odd for
// clients, even for servers) so the two sides never allocate colliding
// serials.
func NewEndpoint(stream *fiber.StreamFiber, isClient bool, onCreate CreateServiceHandler, onStop StopServiceHandler) *Endpoint {
	start := uint64(2)
	if isClient {
		start = 1
	}
	e := &Endpoint{
		conn:       newConn(stream),
		onCreate:   onCreate,
		onStop:     onStop,
		nextSerial: start,
		pending:    make(map[uint64]chan Envelope),
		closed:     make(chan struct{}),
	}
	e.touch()
	go e.readLoop()
	go e.keepaliveLoop()
	return e
}

func (e *Endpoint) touch() {
	e.activityMu.Lock()
	e.lastActivity = time.Now()
	e.activityMu.Unlock()
}

func (e *Endpoint) allocateSerial() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	serial := e.nextSerial
	e.nextSerial += 2
	return serial
}

// Close shuts the endpoint down, failing any outstanding Call.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.conn.Close()
		e.mu.Lock()
		pending := e.pending
		e.pending = nil
		e.mu.Unlock()
		for _, ch := range pending {
			close(ch)
		}
		close(e.closed)
	})
	return e.closeErr
}

func (e *Endpoint) readLoop() {
	for {
		envelope, err := e.conn.receive()
		if err != nil {
			e.Close()
			return
		}
		e.touch()

		e.mu.Lock()
		waiter, isReply := e.pending[envelope.Serial]
		if isReply {
			delete(e.pending, envelope.Serial)
		}
		e.mu.Unlock()

		if isReply {
			waiter <- envelope
			continue
		}

		switch envelope.Kind {
		case KindKeepalive:
			// No reply required; receipt alone resets the activity clock.
		case KindCreateServiceRequest:
			go e.serveCreate(envelope)
		case KindStopServiceRequest:
			go e.serveStop(envelope)
		}
	}
}

func (e *Endpoint) serveCreate(envelope Envelope) {
	var status ServiceStatus
	var err error
	if e.onCreate != nil && envelope.Create != nil {
		status, err = e.onCreate(context.Background(), *envelope.Create)
	} else {
		err = errors.New("no handler registered for create-service requests")
	}
	e.reply(envelope.Serial, status, err)
}

func (e *Endpoint) serveStop(envelope Envelope) {
	var status ServiceStatus
	var err error
	if e.onStop != nil && envelope.Stop != nil {
		status, err = e.onStop(context.Background(), *envelope.Stop)
	} else {
		err = errors.New("no handler registered for stop-service requests")
	}
	e.reply(envelope.Serial, status, err)
}

func (e *Endpoint) reply(serial uint64, status ServiceStatus, err error) {
	reply := Envelope{Serial: serial}
	if err != nil {
		reply.Kind = KindError
		reply.ErrorMessage = err.Error()
	} else {
		reply.Kind = KindServiceStatus
		reply.Status = &status
	}
	e.conn.send(reply)
}

func (e *Endpoint) keepaliveLoop() {
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.activityMu.Lock()
			idle := time.Since(e.lastActivity)
			e.activityMu.Unlock()
			if idle > KeepaliveTimeout {
				e.Close()
				return
			}
			e.conn.send(Envelope{Serial: e.allocateSerial(), Kind: KindKeepalive})
		case <-e.closed:
			return
		}
	}
}

// call sends a request envelope and waits for its correlated reply.
func (e *Endpoint) call(ctx context.Context, envelope Envelope) (ServiceStatus, error) {
	waiter := make(chan Envelope, 1)

	e.mu.Lock()
	if e.pending == nil {
		e.mu.Unlock()
		return ServiceStatus{}, ErrClosed
	}
	e.pending[envelope.Serial] = waiter
	e.mu.Unlock()

	if err := e.conn.send(envelope); err != nil {
		e.mu.Lock()
		delete(e.pending, envelope.Serial)
		e.mu.Unlock()
		return ServiceStatus{}, err
	}

	select {
	case reply, ok := <-waiter:
		if !ok {
			return ServiceStatus{}, ErrClosed
		}
		if reply.Kind == KindError {
			return ServiceStatus{}, errors.New(reply.ErrorMessage)
		}
		if reply.Status == nil {
			return ServiceStatus{}, errors.New("control: reply missing status")
		}
		return *reply.Status, nil
	case <-ctx.Done():
		return ServiceStatus{}, ctx.Err()
	case <-e.closed:
		return ServiceStatus{}, ErrClosed
	}
}

// CreateService asks the peer to start an instance of the given service,
// blocking until it replies with the resulting status.
func (e *Endpoint) CreateService(ctx context.Context, serviceID uint32, arguments map[string]string) (ServiceStatus, error) {
	serial := e.allocateSerial()
	return e.call(ctx, Envelope{
		Serial: serial,
		Kind:   KindCreateServiceRequest,
		Create: &CreateServiceRequest{ServiceID: serviceID, Arguments: arguments},
	})
}

// StopService asks the peer to terminate a running service instance,
// blocking until it replies with the resulting status.
func (e *Endpoint) StopService(ctx context.Context, instanceID uint32) (ServiceStatus, error) {
	serial := e.allocateSerial()
	return e.call(ctx, Envelope{
		Serial: serial,
		Kind:   KindStopServiceRequest,
		Stop:   &StopServiceRequest{InstanceID: instanceID},
	})
}
