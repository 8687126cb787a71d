package fiber

import (
	"context"
	"time"
)

// StreamFiber is a single, flow-controlled, ordered byte stream multiplexed
// over a Demultiplexer's carrier. Its Read and Write methods have the same
// contract as io.Reader and io.Writer.
type StreamFiber struct {
	state *fiberState
}

// LocalPort returns the fiber's local port.
func (s *StreamFiber) LocalPort() uint32 { return s.state.id.Local }

// RemotePort returns the fiber's remote port.
func (s *StreamFiber) RemotePort() uint32 { return s.state.id.Remote }

// SetConnectHandler installs a callback invoked, on its own goroutine, when
// the fiber finishes connecting (only meaningful for accepted fibers, whose
// connect handshake completes before the facade is returned to the caller,
// and for fibers still awaiting Connect's reply).
func (s *StreamFiber) SetConnectHandler(handler func(error)) {
	s.state.stateMu.Lock()
	s.state.connectHandler = handler
	s.state.stateMu.Unlock()
}

// SetCloseHandler installs a callback invoked, on its own goroutine, when the
// fiber transitions to Disconnected.
func (s *StreamFiber) SetCloseHandler(handler func(error)) {
	s.state.stateMu.Lock()
	s.state.closeHandler = handler
	s.state.stateMu.Unlock()
}

// Read reads up to len(buffer) bytes, blocking until at least one byte is
// available, the fiber is closed or reset, or ctx is done.
func (s *StreamFiber) Read(ctx context.Context, buffer []byte) (int, error) {
	if s.state.currentState() != stateConnected {
		return 0, ErrNotConnected
	}
	if len(buffer) == 0 {
		return 0, nil
	}

	op := &readOp{buffer: buffer, result: make(chan readResult, 1)}
	s.state.recvMu.Lock()
	s.state.pendingReads = append(s.state.pendingReads, op)
	s.state.pumpReadsLocked()
	s.state.recvMu.Unlock()

	select {
	case result := <-op.result:
		if result.n > 0 {
			s.maybeReopenFlowControl()
		}
		if result.err != nil {
			return result.n, result.err
		}
		if result.n == 0 {
			return 0, ErrConnectionAborted
		}
		return result.n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.state.closed:
		return 0, ErrConnectionAborted
	}
}

// maybeReopenFlowControl re-enables the peer's send readiness once the
// receive queue has drained back below lowWaterMark.
func (s *StreamFiber) maybeReopenFlowControl() {
	s.state.recvMu.Lock()
	length := s.state.queueLenLocked()
	s.state.recvMu.Unlock()
	if length >= lowWaterMark {
		return
	}
	s.state.stateMu.Lock()
	wasDisabled := !s.state.readyIn
	s.state.readyIn = true
	s.state.stateMu.Unlock()
	if wasDisabled {
		s.state.demux.sendFlowControlAck(s.state, true)
	}
}

// Write writes the entirety of payload, splitting it into MTU-sized PUSH
// frames and waiting out the peer's flow-control backpressure internally.
// It always returns len(payload) when err is nil, per the io.Writer
// contract.
func (s *StreamFiber) Write(ctx context.Context, payload []byte) (int, error) {
	if s.state.currentState() != stateConnected {
		return 0, ErrNotConnected
	}

	mtu := int(s.state.demux.config.MTU)
	written := 0
	for written < len(payload) {
		if err := s.waitSendReady(ctx); err != nil {
			return written, err
		}
		end := written + mtu
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[written:end]
		s.state.demux.enqueueFrame(Header{Version: protocolVersion, ID: s.state.id, Flags: FlagPush}, chunk)
		written = end
	}
	return written, nil
}

// waitSendReady blocks until the peer has signalled send readiness, polling
// at flowControlProbeInterval in case an ACK was missed due to a race with a
// concurrent low-water recovery on the peer side.
func (s *StreamFiber) waitSendReady(ctx context.Context) error {
	for {
		s.state.stateMu.Lock()
		ready := s.state.readyOut
		notify := s.state.readyOutChanged
		s.state.stateMu.Unlock()
		if ready {
			return nil
		}

		timer := time.NewTimer(flowControlProbeInterval)
		select {
		case <-notify:
			timer.Stop()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.state.closed:
			timer.Stop()
			return ErrConnectionAborted
		}
	}
}

// Close tears down the fiber, sending RST to the peer if it is still
// connected and failing any pending operations.
func (s *StreamFiber) Close() error {
	s.state.stateMu.Lock()
	previous := s.state.state
	s.state.setStateLocked(stateDisconnecting)
	id := s.state.id
	s.state.stateMu.Unlock()

	if previous == stateConnected || previous == stateConnecting {
		s.state.demux.enqueueFrame(Header{Version: protocolVersion, ID: id, Flags: FlagRST}, nil)
	}

	s.state.demux.mu.Lock()
	delete(s.state.demux.fibers, id)
	s.state.demux.mu.Unlock()

	s.state.stateMu.Lock()
	s.state.setStateLocked(stateDisconnected)
	s.state.stateMu.Unlock()

	s.state.failPendingOps(ErrConnectionAborted)
	s.state.fireCloseHandler(nil)
	return nil
}
