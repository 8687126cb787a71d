package fiber

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// controlPriority is the send-queue priority given to SYN/ACK/RST frames, so
// that connection control traffic is never stuck behind a backlog of bulk
// PUSH frames.
const controlPriority uint8 = 255

// outboundFrame is an entry in the Demultiplexer's send queue.
type outboundFrame struct {
	header  Header
	payload []byte
	seq     uint64
}

// Demultiplexer implements the fiber multiplexer: it owns a single Carrier
// and presents independent, flow-controlled stream and datagram fibers over
// it. A Demultiplexer is safe for concurrent use by multiple goroutines.
type Demultiplexer struct {
	config *Configuration
	conn   Carrier

	closeOnce sync.Once
	closed    chan struct{}
	errLock   sync.Mutex
	err       error

	mu              sync.Mutex
	fibers          map[ID]*fiberState
	nextSeq         uint64

	sendMu    sync.Mutex
	sendCond  *sync.Cond
	sendQueue []outboundFrame
}

// NewDemultiplexer constructs a Demultiplexer over the given carrier and
// immediately begins servicing it. The Demultiplexer takes ownership of the
// carrier: it must not be used directly afterward.
func NewDemultiplexer(carrier Carrier, config *Configuration) *Demultiplexer {
	if config == nil {
		config = DefaultConfiguration()
	} else {
		configCopy := *config
		config = &configCopy
		config.normalize()
	}
	d := &Demultiplexer{
		config: config,
		conn:   carrier,
		closed: make(chan struct{}),
		fibers: make(map[ID]*fiberState),
	}
	d.sendCond = sync.NewCond(&d.sendMu)
	go d.readLoop()
	go d.writeLoop()
	return d
}

// Closed returns a channel that is closed once the Demultiplexer has shut
// down, either due to an explicit Close call or a carrier-level error.
func (d *Demultiplexer) Closed() <-chan struct{} {
	return d.closed
}

// InternalError returns the error that caused the Demultiplexer to shut down,
// or nil if it was closed explicitly or has not yet shut down.
func (d *Demultiplexer) InternalError() error {
	d.errLock.Lock()
	defer d.errLock.Unlock()
	return d.err
}

// Close shuts the Demultiplexer down, closing the underlying carrier and
// failing every pending operation on every fiber.
func (d *Demultiplexer) Close() error {
	return d.closeWithError(nil)
}

func (d *Demultiplexer) closeWithError(cause error) error {
	var closeErr error
	d.closeOnce.Do(func() {
		d.errLock.Lock()
		d.err = cause
		d.errLock.Unlock()

		closeErr = d.conn.Close()

		close(d.closed)

		d.sendMu.Lock()
		d.sendCond.Broadcast()
		d.sendMu.Unlock()

		d.mu.Lock()
		fibers := make([]*fiberState, 0, len(d.fibers))
		for _, f := range d.fibers {
			fibers = append(fibers, f)
		}
		d.fibers = make(map[ID]*fiberState)
		d.mu.Unlock()

		for _, f := range fibers {
			f.stateMu.Lock()
			f.setStateLocked(stateDisconnected)
			f.stateMu.Unlock()
			f.failPendingOps(ErrConnectionAborted)
			f.fireCloseHandler(ErrConnectionAborted)
		}
	})
	return closeErr
}

// enqueueFrame appends a frame to the send queue and wakes the writer.
func (d *Demultiplexer) enqueueFrame(header Header, payload []byte) {
	d.mu.Lock()
	seq := d.nextSeq
	d.nextSeq++
	d.mu.Unlock()

	d.sendMu.Lock()
	d.sendQueue = append(d.sendQueue, outboundFrame{header: header, payload: payload, seq: seq})
	d.sendCond.Signal()
	d.sendMu.Unlock()
}

// writeLoop is the Demultiplexer's single writer goroutine: it guarantees
// that at most one carrier write is ever in flight, picking the
// highest-priority, earliest-enqueued frame available at each dispatch.
func (d *Demultiplexer) writeLoop() {
	for {
		d.sendMu.Lock()
		for len(d.sendQueue) == 0 {
			select {
			case <-d.closed:
				d.sendMu.Unlock()
				return
			default:
			}
			d.sendCond.Wait()
		}
		best := 0
		for i := 1; i < len(d.sendQueue); i++ {
			if priorityOf(d.sendQueue[i].header) > priorityOf(d.sendQueue[best].header) {
				best = i
			}
		}
		frame := d.sendQueue[best]
		d.sendQueue = append(d.sendQueue[:best], d.sendQueue[best+1:]...)
		d.sendMu.Unlock()

		if err := WriteFrame(d.conn, frame.header, frame.payload); err != nil {
			d.closeWithError(errors.Wrap(err, "carrier write failed"))
			return
		}
	}
}

func priorityOf(h Header) uint8 {
	if h.Flags == FlagPush || h.Flags == FlagDatagram {
		return 0
	}
	return controlPriority
}

// readLoop is the Demultiplexer's single reader goroutine: it decodes frames
// from the carrier and dispatches each to its bound fiber.
func (d *Demultiplexer) readLoop() {
	for {
		frame, err := ReadFrame(d.conn)
		if err != nil {
			if err == io.EOF {
				d.closeWithError(nil)
			} else {
				d.closeWithError(errors.Wrap(err, "carrier read failed"))
			}
			return
		}
		d.dispatch(frame)
	}
}

// dispatch routes a decoded frame to its local fiber. The wire header always
// carries the sender's own (local, remote) view; ownID flips it into the
// receiver's view.
func (d *Demultiplexer) dispatch(frame Frame) {
	ownID := frame.Header.ID.Returning()

	switch frame.Header.Flags {
	case FlagSYN:
		d.mu.Lock()
		listener, ok := d.fibers[acceptorID(ownID.Local)]
		d.mu.Unlock()
		if !ok {
			d.enqueueFrame(Header{Version: protocolVersion, ID: ownID, Flags: FlagRST}, nil)
			return
		}
		listener.enqueuePendingRemotePort(ownID.Remote)

	case FlagACK:
		d.mu.Lock()
		f, ok := d.fibers[ownID]
		d.mu.Unlock()
		if !ok {
			return
		}
		f.stateMu.Lock()
		switch f.state {
		case stateConnecting:
			f.setStateLocked(stateConnected)
			waiter := f.connectResult
			f.connectResult = nil
			f.stateMu.Unlock()
			if waiter != nil {
				waiter <- nil
			}
			f.fireConnectHandler(nil)
		case stateConnected:
			ready := len(frame.Payload) > 0 && frame.Payload[0] != 0
			f.readyOut = ready
			notify := f.readyOutChanged
			f.stateMu.Unlock()
			if notify != nil {
				select {
				case notify <- struct{}{}:
				default:
				}
			}
		default:
			f.stateMu.Unlock()
		}

	case FlagRST:
		d.mu.Lock()
		f, ok := d.fibers[ownID]
		if ok {
			delete(d.fibers, ownID)
		}
		d.mu.Unlock()
		if !ok {
			return
		}
		f.stateMu.Lock()
		previous := f.setStateLocked(stateDisconnected)
		waiter := f.connectResult
		f.connectResult = nil
		f.stateMu.Unlock()

		var failure error
		if previous == stateConnecting {
			failure = ErrConnectionRefused
		} else {
			failure = ErrConnectionReset
			if previous == stateConnected {
				d.enqueueFrame(Header{Version: protocolVersion, ID: ownID, Flags: FlagRST}, nil)
			}
		}
		if waiter != nil {
			waiter <- failure
		}
		f.failPendingOps(failure)
		f.fireCloseHandler(failure)

	case FlagPush:
		d.mu.Lock()
		f, ok := d.fibers[ownID]
		d.mu.Unlock()
		if !ok {
			d.enqueueFrame(Header{Version: protocolVersion, ID: ownID, Flags: FlagRST}, nil)
			return
		}
		if f.deliverData(frame.Payload) {
			d.enqueueFrame(Header{Version: protocolVersion, ID: ownID, Flags: FlagACK}, []byte{0})
		}

	case FlagDatagram:
		d.mu.Lock()
		f, ok := d.fibers[ownID]
		if !ok {
			f, ok = d.fibers[acceptorID(ownID.Local)]
		}
		d.mu.Unlock()
		if !ok {
			return
		}
		f.enqueueDatagram(frame.Payload, ownID.Remote)
	}
}

// sendFlowControlAck sends the peer an ACK carrying this fiber's receive
// readiness: payload 1 when ready is true, 0 otherwise. StreamFiber.Read
// calls it with ready=true once the data queue drains below lowWaterMark.
func (d *Demultiplexer) sendFlowControlAck(f *fiberState, ready bool) {
	payload := []byte{0}
	if ready {
		payload[0] = 1
	}
	f.stateMu.Lock()
	id := f.id
	f.stateMu.Unlock()
	d.enqueueFrame(Header{Version: protocolVersion, ID: id, Flags: FlagACK}, payload)
}

// pairAccept completes an inbound SYN against a waiting Accept call,
// registering the resulting connected fiber and notifying the peer.
func (d *Demultiplexer) pairAccept(listener *fiberState, remotePort uint32) (*fiberState, error) {
	id := ID{Local: listener.id.Local, Remote: remotePort}

	d.mu.Lock()
	if _, exists := d.fibers[id]; exists {
		d.mu.Unlock()
		return nil, ErrDeviceOrResourceBusy
	}
	peer := newFiberState(d, id, false)
	peer.state = stateConnected
	peer.readyOut = true
	d.fibers[id] = peer
	d.mu.Unlock()

	d.enqueueFrame(Header{Version: protocolVersion, ID: id, Flags: FlagACK}, []byte{1})
	peer.fireConnectHandler(nil)
	return peer, nil
}

// allocateDynamicPortLocked draws a free local port from the dynamic range. The
// caller must hold d.mu.
func (d *Demultiplexer) allocateDynamicPortLocked() (uint32, error) {
	var buffer [4]byte
	for attempt := 0; attempt < dynamicPortAttempts; attempt++ {
		if _, err := rand.Read(buffer[:]); err != nil {
			return 0, errors.Wrap(err, "unable to generate random port")
		}
		// Span the full remainder of the uint32 space above the floor (the
		// spec's dynamic range is [dynamicPortFloor, 2^32)); computed via
		// wraparound arithmetic since 1<<32 doesn't fit in a uint32 literal.
		span := ^uint32(0) - dynamicPortFloor + 1
		candidate := dynamicPortFloor + binary.LittleEndian.Uint32(buffer[:])%span
		collision := false
		for existing := range d.fibers {
			if existing.Local == candidate {
				collision = true
				break
			}
		}
		if !collision {
			return candidate, nil
		}
	}
	return 0, errors.New("unable to allocate a dynamic local port")
}

// Connect opens a stream fiber to the given remote (listening) port,
// optionally from a specific local port (0 selects one dynamically).
func (d *Demultiplexer) Connect(ctx context.Context, localPort, remotePort uint32) (*StreamFiber, error) {
	select {
	case <-d.closed:
		return nil, ErrBrokenPipe
	default:
	}

	d.mu.Lock()
	if localPort == 0 {
		allocated, err := d.allocateDynamicPortLocked()
		if err != nil {
			d.mu.Unlock()
			return nil, err
		}
		localPort = allocated
	}
	id := ID{Local: localPort, Remote: remotePort}
	if _, exists := d.fibers[id]; exists {
		d.mu.Unlock()
		return nil, ErrDeviceOrResourceBusy
	}
	f := newFiberState(d, id, false)
	f.state = stateConnecting
	f.connectResult = make(chan error, 1)
	d.fibers[id] = f
	d.mu.Unlock()

	d.enqueueFrame(Header{Version: protocolVersion, ID: id, Flags: FlagSYN}, nil)

	select {
	case err := <-f.connectResult:
		if err != nil {
			d.mu.Lock()
			delete(d.fibers, id)
			d.mu.Unlock()
			return nil, err
		}
		return &StreamFiber{state: f}, nil
	case <-ctx.Done():
		d.mu.Lock()
		delete(d.fibers, id)
		d.mu.Unlock()
		return nil, ctx.Err()
	case <-d.closed:
		return nil, ErrConnectionAborted
	}
}

// Listener accepts inbound stream fibers on a bound local port.
type Listener struct {
	demux     *Demultiplexer
	state     *fiberState
	localPort uint32
}

// LocalPort returns the local port this listener is bound to, useful when it
// was bound dynamically (localPort 0 at Listen time).
func (l *Listener) LocalPort() uint32 {
	return l.localPort
}

// Listen binds a local port to accept inbound stream fiber connections. A
// localPort of 0 selects one dynamically from the reserved dynamic range.
func (d *Demultiplexer) Listen(localPort uint32) (*Listener, error) {
	d.mu.Lock()
	if localPort == 0 {
		allocated, err := d.allocateDynamicPortLocked()
		if err != nil {
			d.mu.Unlock()
			return nil, err
		}
		localPort = allocated
	}
	id := acceptorID(localPort)
	if _, exists := d.fibers[id]; exists {
		d.mu.Unlock()
		return nil, ErrDeviceOrResourceBusy
	}
	f := newFiberState(d, id, false)
	f.state = stateConnected
	d.fibers[id] = f
	d.mu.Unlock()
	return &Listener{demux: d, state: f, localPort: localPort}, nil
}

// Accept waits for and returns the next inbound stream fiber.
func (l *Listener) Accept(ctx context.Context) (*StreamFiber, error) {
	op := &acceptOp{result: make(chan acceptResult, 1)}
	l.state.acceptMu.Lock()
	l.state.acceptQueue = append(l.state.acceptQueue, op)
	l.state.pumpAcceptsLocked()
	l.state.acceptMu.Unlock()

	select {
	case result := <-op.result:
		if result.err != nil {
			return nil, result.err
		}
		return &StreamFiber{state: result.peer}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.demux.closed:
		return nil, ErrConnectionAborted
	}
}

// Close stops accepting new connections on this listener's port.
func (l *Listener) Close() error {
	l.demux.mu.Lock()
	delete(l.demux.fibers, l.state.id)
	l.demux.mu.Unlock()
	l.state.failPendingOps(ErrConnectionAborted)
	return nil
}

// BindDatagram binds a local port for sending and receiving datagrams. A
// localPort of 0 selects one dynamically.
func (d *Demultiplexer) BindDatagram(localPort uint32) (*DatagramFiber, error) {
	d.mu.Lock()
	if localPort == 0 {
		allocated, err := d.allocateDynamicPortLocked()
		if err != nil {
			d.mu.Unlock()
			return nil, err
		}
		localPort = allocated
	}
	id := acceptorID(localPort)
	if _, exists := d.fibers[id]; exists {
		d.mu.Unlock()
		return nil, ErrDeviceOrResourceBusy
	}
	f := newFiberState(d, id, true)
	f.state = stateConnected
	d.fibers[id] = f
	d.mu.Unlock()
	return &DatagramFiber{state: f}, nil
}
