package fiber

import (
	"bytes"
	"sync"
)

// connState is a fiber's position in its connection lifecycle.
type connState uint8

const (
	stateClosed connState = iota
	stateConnecting
	stateConnected
	stateDisconnecting
	stateDisconnected
)

func (s connState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateDisconnecting:
		return "disconnecting"
	case stateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// readOp is a pending stream-read request: a destination buffer and the
// channel its result will be posted to. Overlapping reads on the same fiber
// are served strictly in the order they were submitted.
type readOp struct {
	buffer []byte
	result chan readResult
}

type readResult struct {
	n   int
	err error
}

// acceptOp is a pending accept request on a listening fiber.
type acceptOp struct {
	result chan acceptResult
}

type acceptResult struct {
	peer *fiberState
	err  error
}

// datagramMessage is a single received datagram awaiting delivery.
type datagramMessage struct {
	payload      []byte
	senderRemote uint32
}

// datagramReadOp is a pending datagram-read request.
type datagramReadOp struct {
	buffer []byte
	result chan datagramReadResult
}

type datagramReadResult struct {
	n      int
	sender uint32
	err    error
}

// fiberState is the per-virtual-connection record shared between the owning
// facade (StreamFiber/DatagramFiber) and the Demultiplexer, which indexes it
// in its bound table; the facade holds only a non-owning pointer.
type fiberState struct {
	demux *Demultiplexer

	// stateMu guards id, state, readyIn, readyOut, priority and the handler
	// callbacks.
	stateMu        sync.Mutex
	id             ID
	state          connState
	readyIn        bool
	readyOut       bool
	priority       uint8
	datagram       bool
	connectHandler func(error)
	closeHandler   func(error)
	errorHandler   func(error)

	// connectResult receives the outcome of an in-flight Connect call; it is
	// non-nil only while state is stateConnecting.
	connectResult chan error
	// readyOutChanged is signaled, non-blockingly, whenever readyOut is
	// updated by an inbound flow-control ACK.
	readyOutChanged chan struct{}

	// closed is closed exactly once, when the fiber reaches Disconnected, to
	// unblock anything selecting on it.
	closeOnce sync.Once
	closed    chan struct{}

	// recvMu guards dataQueue and pendingReads for stream fibers.
	recvMu       sync.Mutex
	dataQueue    bytes.Buffer
	pendingReads []*readOp
	remoteClosed bool

	// acceptMu guards pendingRemotePorts and acceptQueue for listening
	// fibers.
	acceptMu            sync.Mutex
	pendingRemotePorts  []uint32
	acceptQueue         []*acceptOp

	// datagramMu guards datagramQueue and pendingDatagramReads for datagram
	// fibers.
	datagramMu           sync.Mutex
	datagramQueue        []datagramMessage
	pendingDatagramReads []*datagramReadOp
}

// newFiberState constructs a fiber in the Closed state.
func newFiberState(demux *Demultiplexer, id ID, datagram bool) *fiberState {
	return &fiberState{
		demux:           demux,
		id:              id,
		state:           stateClosed,
		readyOut:        true,
		priority:        128,
		datagram:        datagram,
		closed:          make(chan struct{}),
		readyOutChanged: make(chan struct{}, 1),
	}
}

// setStateLocked transitions the fiber to a new state and returns the previous
// state. It must be called with stateMu held.
func (f *fiberState) setStateLocked(next connState) connState {
	previous := f.state
	f.state = next
	if next == stateDisconnected {
		f.closeOnce.Do(func() { close(f.closed) })
	}
	return previous
}

func (f *fiberState) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fiberState) currentState() connState {
	f.stateMu.Lock()
	defer f.stateMu.Unlock()
	return f.state
}

// fireConnectHandler invokes the connect handler, if any, on its own
// goroutine so that callers never block on user code.
func (f *fiberState) fireConnectHandler(err error) {
	f.stateMu.Lock()
	handler := f.connectHandler
	f.stateMu.Unlock()
	if handler != nil {
		go handler(err)
	}
}

// fireCloseHandler invokes the close handler, if any, on its own goroutine.
func (f *fiberState) fireCloseHandler(err error) {
	f.stateMu.Lock()
	handler := f.closeHandler
	f.stateMu.Unlock()
	if handler != nil {
		go handler(err)
	}
}

// fireErrorHandler invokes the error handler, if any, on its own goroutine.
func (f *fiberState) fireErrorHandler(err error) {
	f.stateMu.Lock()
	handler := f.errorHandler
	f.stateMu.Unlock()
	if handler != nil {
		go handler(err)
	}
}

// deliverData appends received PUSH payload to the data queue and drives the
// read pump. It also returns whether a flow-control ACK should be sent (the
// data queue crossed highWaterMark upward).
func (f *fiberState) deliverData(payload []byte) (sendReadyInFalse bool) {
	f.recvMu.Lock()
	before := f.dataQueue.Len()
	f.dataQueue.Write(payload)
	after := f.dataQueue.Len()
	f.pumpReadsLocked()
	f.recvMu.Unlock()

	if before < highWaterMark && after >= highWaterMark {
		f.stateMu.Lock()
		wasReady := f.readyIn
		f.readyIn = false
		f.stateMu.Unlock()
		return wasReady
	}
	return false
}

// pumpReadsLocked serves as many pending reads as possible from the data
// queue. It must be called with recvMu held.
func (f *fiberState) pumpReadsLocked() {
	for len(f.pendingReads) > 0 && (f.dataQueue.Len() > 0 || f.remoteClosed) {
		op := f.pendingReads[0]
		n, _ := f.dataQueue.Read(op.buffer)
		if n == 0 && !f.remoteClosed {
			break
		}
		f.pendingReads = f.pendingReads[1:]
		op.result <- readResult{n: n}
	}
}

// queueLenLocked returns the number of received bytes waiting in the data
// queue. Must be called with recvMu held; the read path in stream.go uses it
// to decide whether the queue has drained below lowWaterMark, and then
// separately updates readyIn under stateMu.
func (f *fiberState) queueLenLocked() int {
	return f.dataQueue.Len()
}

// enqueueDatagram appends a received datagram and drives the datagram read
// pump.
func (f *fiberState) enqueueDatagram(payload []byte, senderRemote uint32) {
	f.datagramMu.Lock()
	defer f.datagramMu.Unlock()
	f.datagramQueue = append(f.datagramQueue, datagramMessage{payload: payload, senderRemote: senderRemote})
	f.pumpDatagramReadsLocked()
}

// pumpDatagramReadsLocked serves as many pending datagram reads as possible.
// Must be called with datagramMu held.
func (f *fiberState) pumpDatagramReadsLocked() {
	for len(f.pendingDatagramReads) > 0 && len(f.datagramQueue) > 0 {
		op := f.pendingDatagramReads[0]
		msg := f.datagramQueue[0]
		f.pendingDatagramReads = f.pendingDatagramReads[1:]
		f.datagramQueue = f.datagramQueue[1:]
		n := copy(op.buffer, msg.payload)
		op.result <- datagramReadResult{n: n, sender: msg.senderRemote}
	}
}

// enqueuePendingRemotePort records an inbound SYN's remote port on a
// listening fiber and drives the accept pump.
func (f *fiberState) enqueuePendingRemotePort(remotePort uint32) {
	f.acceptMu.Lock()
	defer f.acceptMu.Unlock()
	f.pendingRemotePorts = append(f.pendingRemotePorts, remotePort)
	f.pumpAcceptsLocked()
}

// pumpAcceptsLocked pairs queued inbound remote ports with waiting Accept
// calls, in FIFO order, through Demultiplexer.pairAccept. Must be called with
// acceptMu held.
func (f *fiberState) pumpAcceptsLocked() {
	// Actual pairing (binding the new peer fiber, sending ACK) requires
	// demux-level state and is performed by Demultiplexer.pairAccept, which
	// this method delegates to while still holding acceptMu to preserve FIFO
	// ordering between pendingRemotePorts and acceptQueue.
	for len(f.pendingRemotePorts) > 0 && len(f.acceptQueue) > 0 {
		remotePort := f.pendingRemotePorts[0]
		op := f.acceptQueue[0]
		f.pendingRemotePorts = f.pendingRemotePorts[1:]
		f.acceptQueue = f.acceptQueue[1:]
		peer, err := f.demux.pairAccept(f, remotePort)
		op.result <- acceptResult{peer: peer, err: err}
	}
}

// failPendingOps completes every outstanding read, datagram-read, and accept
// operation with the given error. It is called when the fiber transitions to
// Disconnected.
func (f *fiberState) failPendingOps(err error) {
	f.recvMu.Lock()
	reads := f.pendingReads
	f.pendingReads = nil
	f.recvMu.Unlock()
	for _, op := range reads {
		op.result <- readResult{err: err}
	}

	f.datagramMu.Lock()
	datagramReads := f.pendingDatagramReads
	f.pendingDatagramReads = nil
	f.datagramMu.Unlock()
	for _, op := range datagramReads {
		op.result <- datagramReadResult{err: err}
	}

	f.acceptMu.Lock()
	accepts := f.acceptQueue
	f.acceptQueue = nil
	f.acceptMu.Unlock()
	for _, op := range accepts {
		op.result <- acceptResult{err: err}
	}
}
