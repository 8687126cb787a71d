// Package datagramfwd implements the datagram-forwarding microservice pair
// behind the `-U`/`-V` flags: registry.ServiceFibersToDatagrams (id 5)
// relays between a datagram fiber and a fixed UDP destination, and
// registry.ServiceDatagramsToFibers (id 6) relays between a local UDP
// socket and a fixed remote datagram fiber port. A local datagram forward
// (`-U`) runs DatagramsToFibers locally and FibersToDatagrams on the peer; a
// reverse datagram forward (`-V`) runs the pair the other way.
//
// Both sides track only the single most recent remote UDP address, the
// same single-peer simplification ordinary UDP port forwarders use; nothing
// in the forwarding contract requires multiplexing several independent UDP
// clients over one fiber.
package datagramfwd

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/registry"
)

func init() {
	registry.Register(registry.ServiceFibersToDatagrams, newFibersToDatagrams)
	registry.Register(registry.ServiceDatagramsToFibers, newDatagramsToFibers)
}

// datagramPortOffset shifts datagram-forward fiber ports away from the
// stream-forward band so a TCP and UDP forward sharing the same CLI local
// port number don't bind the same fiber port. Mirrors
// original_source/src/services/user_services/udp_port_forwarding.h's
// relay_fiber_port_ = remote_port_ + (1 << 16), which exists for the same
// reason.
const datagramPortOffset = 1 << 16

// datagramFiberPort derives the fiber port both halves of a datagram-forward
// pair rendezvous on from the CLI-specified local port.
func datagramFiberPort(localPort uint16) uint32 {
	return fiber.DynamicPortFloor + datagramPortOffset + uint32(localPort)
}

// fibersToDatagrams is registry.ServiceFibersToDatagrams (id 5): it accepts
// datagrams on the fiber port derived from local_port, relays each payload to a
// fixed UDP destination, and relays replies back to whichever remote fiber
// port last sent one.
type fibersToDatagrams struct {
	destination *net.UDPAddr

	fiber *fiber.DatagramFiber
	udp   *net.UDPConn

	lastSender uint32 // accessed via sync/atomic

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// newFibersToDatagrams reads "local_port", "remote_ip", and "remote_port"
// from arguments, matching the CreateServiceRequest parameters a
// datagram-forward adapter sends to its peer.
func newFibersToDatagrams(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	localPort, err := strconv.ParseUint(arguments["local_port"], 10, 16)
	if err != nil {
		return nil, errors.Wrap(err, "datagramfwd: fibers-to-datagrams requires a numeric local_port argument")
	}
	remoteIP := arguments["remote_ip"]
	remotePort := arguments["remote_port"]
	if remoteIP == "" || remotePort == "" {
		return nil, errors.New("datagramfwd: fibers-to-datagrams requires remote_ip and remote_port arguments")
	}
	destination, err := net.ResolveUDPAddr("udp", net.JoinHostPort(remoteIP, remotePort))
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve destination address")
	}

	udpConn, err := net.DialUDP("udp", nil, destination)
	if err != nil {
		return nil, errors.Wrap(err, "unable to dial destination")
	}

	datagramFiber, err := demux.BindDatagram(datagramFiberPort(uint16(localPort)))
	if err != nil {
		udpConn.Close()
		return nil, errors.Wrap(err, "unable to bind datagram fiber")
	}

	return &fibersToDatagrams{
		destination: destination,
		fiber:       datagramFiber,
		udp:         udpConn,
		stopped:     make(chan struct{}),
	}, nil
}

func (f *fibersToDatagrams) Run(ctx context.Context) error {
	f.wg.Add(1)
	go f.pumpReplies()

	buffer := make([]byte, 64*1024)
	for {
		n, sender, err := f.fiber.ReceiveFrom(ctx, buffer)
		if err != nil {
			select {
			case <-f.stopped:
				return nil
			default:
				return err
			}
		}
		atomic.StoreUint32(&f.lastSender, sender)
		if _, err := f.udp.Write(buffer[:n]); err != nil {
			continue
		}
	}
}

// pumpReplies reads responses from the destination and relays them back to
// whichever remote fiber port most recently sent a datagram.
func (f *fibersToDatagrams) pumpReplies() {
	defer f.wg.Done()
	buffer := make([]byte, 64*1024)
	for {
		n, err := f.udp.Read(buffer)
		if err != nil {
			return
		}
		sender := atomic.LoadUint32(&f.lastSender)
		if sender == 0 {
			continue
		}
		f.fiber.SendTo(sender, buffer[:n])
	}
}

func (f *fibersToDatagrams) Stop() error {
	f.stopOnce.Do(func() {
		close(f.stopped)
		f.fiber.Close()
		f.udp.Close()
	})
	f.wg.Wait()
	return nil
}

// datagramsToFibers is registry.ServiceDatagramsToFibers (id 6): it accepts
// UDP packets on a local socket, relays each payload to a fixed remote fiber
// port, and relays replies back to whichever local UDP client most recently
// sent one.
type datagramsToFibers struct {
	remotePort uint32

	fiber *fiber.DatagramFiber
	udp   *net.UDPConn

	lastClient atomic.Value // *net.UDPAddr

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// newDatagramsToFibers reads "local_port" and an optional "bind_address"
// from arguments (the latter defaulting to loopback). local_port both names
// the local UDP port to listen on and derives the fiber port the peer's
// fibers-to-datagrams half is bound to.
func newDatagramsToFibers(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	localPort, err := strconv.ParseUint(arguments["local_port"], 10, 16)
	if err != nil {
		return nil, errors.Wrap(err, "datagramfwd: datagrams-to-fibers requires a numeric local_port argument")
	}

	bindAddress := arguments["bind_address"]
	if bindAddress == "" {
		bindAddress = "127.0.0.1"
	}

	localAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(bindAddress, arguments["local_port"]))
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve bind address")
	}
	udpConn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, errors.Wrap(err, "unable to bind local UDP socket")
	}

	datagramFiber, err := demux.BindDatagram(0)
	if err != nil {
		udpConn.Close()
		return nil, errors.Wrap(err, "unable to bind datagram fiber")
	}

	return &datagramsToFibers{
		remotePort: datagramFiberPort(uint16(localPort)),
		fiber:      datagramFiber,
		udp:        udpConn,
		stopped:    make(chan struct{}),
	}, nil
}

func (d *datagramsToFibers) Run(ctx context.Context) error {
	d.wg.Add(1)
	go d.pumpReplies(ctx)

	buffer := make([]byte, 64*1024)
	for {
		n, clientAddr, err := d.udp.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-d.stopped:
				return nil
			default:
				return err
			}
		}
		d.lastClient.Store(clientAddr)
		d.fiber.SendTo(d.remotePort, buffer[:n])
	}
}

// pumpReplies reads datagrams arriving on the fiber and relays them back to
// whichever local UDP client most recently sent one.
func (d *datagramsToFibers) pumpReplies(ctx context.Context) {
	defer d.wg.Done()
	buffer := make([]byte, 64*1024)
	for {
		n, _, err := d.fiber.ReceiveFrom(ctx, buffer)
		if err != nil {
			return
		}
		clientAddr, ok := d.lastClient.Load().(*net.UDPAddr)
		if !ok {
			continue
		}
		d.udp.WriteToUDP(buffer[:n], clientAddr)
	}
}

func (d *datagramsToFibers) Stop() error {
	d.stopOnce.Do(func() {
		close(d.stopped)
		d.fiber.Close()
		d.udp.Close()
	})
	d.wg.Wait()
	return nil
}
