package fiber

import "context"

// DatagramFiber sends and receives unordered, boundary-preserving datagrams
// on a bound local port.
type DatagramFiber struct {
	state *fiberState
}

// LocalPort returns the fiber's local port.
func (d *DatagramFiber) LocalPort() uint32 { return d.state.id.Local }

// SendTo sends a single datagram to the given remote port. The payload must
// not exceed the negotiated MTU.
func (d *DatagramFiber) SendTo(remotePort uint32, payload []byte) error {
	if int(uint16(len(payload))) != len(payload) || len(payload) > int(d.state.demux.config.MTU) {
		return ErrMessageTooLong
	}
	header := Header{
		Version: protocolVersion,
		ID:      ID{Local: d.state.id.Local, Remote: remotePort},
		Flags:   FlagDatagram,
	}
	d.state.demux.enqueueFrame(header, payload)
	return nil
}

// ReceiveFrom blocks until a datagram arrives, copying it into buffer and
// returning its length along with the sender's remote port. If buffer is too
// small, the datagram is truncated to fit, consistent with UDP socket
// semantics.
func (d *DatagramFiber) ReceiveFrom(ctx context.Context, buffer []byte) (int, uint32, error) {
	op := &datagramReadOp{buffer: buffer, result: make(chan datagramReadResult, 1)}
	d.state.datagramMu.Lock()
	d.state.pendingDatagramReads = append(d.state.pendingDatagramReads, op)
	d.state.pumpDatagramReadsLocked()
	d.state.datagramMu.Unlock()

	select {
	case result := <-op.result:
		return result.n, result.sender, result.err
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	case <-d.state.closed:
		return 0, 0, ErrConnectionAborted
	}
}

// Close releases the bound port.
func (d *DatagramFiber) Close() error {
	d.state.demux.mu.Lock()
	delete(d.state.demux.fibers, d.state.id)
	d.state.demux.mu.Unlock()

	d.state.stateMu.Lock()
	d.state.setStateLocked(stateDisconnected)
	d.state.stateMu.Unlock()

	d.state.failPendingOps(ErrConnectionAborted)
	return nil
}
