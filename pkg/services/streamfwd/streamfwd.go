// Package streamfwd implements the stream-forwarding microservice pair
// behind the `-L`/`-R` flags: registry.ServiceFibersToSockets (id 3) dials a
// fixed TCP destination for every fiber a peer opens to it, and
// registry.ServiceSocketsToFibers (id 4) opens a fiber for every local TCP
// connection it accepts. A local forward (`-L`) runs SocketsToFibers
// locally and FibersToSockets on the peer; a reverse forward (`-R`) runs the
// two the other way around.
package streamfwd

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/registry"
)

func init() {
	registry.Register(registry.ServiceFibersToSockets, newFibersToSockets)
	registry.Register(registry.ServiceSocketsToFibers, newSocketsToFibers)
}

// copyPair pumps bytes both ways between a fiber stream and a plain TCP
// socket until either side is done, then closes both.
func copyPair(stream *fiber.StreamFiber, socket net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		buffer := make([]byte, 32*1024)
		for {
			n, err := socket.Read(buffer)
			if n > 0 {
				if _, werr := stream.Write(context.Background(), buffer[:n]); werr != nil {
					break
				}
			}
			if err != nil {
				break
			}
		}
		stream.Close()
	}()

	go func() {
		defer wg.Done()
		buffer := make([]byte, 32*1024)
		for {
			n, err := stream.Read(context.Background(), buffer)
			if n > 0 {
				if _, werr := socket.Write(buffer[:n]); werr != nil {
					break
				}
			} else if n == 0 && err == nil {
				// StreamFiber.Read returns (0, nil) only for an empty
				// buffer; keep reading.
				continue
			}
			if err != nil {
				break
			}
		}
		socket.Close()
	}()

	wg.Wait()
}

// streamFiberPort derives the fiber port both halves of a stream-forward
// pair rendezvous on from the CLI-specified local port, the same way
// original_source/src/services/user_services/port_forwarding.h sets
// relay_fiber_port_ = local_port_: since the number is a pure function of a
// value both the client and peer already carry (the local port named in the
// -L/-R invocation), neither side needs to allocate a port dynamically and
// report it back before the other can connect. That matters because the
// creation-ordering contract requires the peer's service to exist before
// the local one starts, which only works if the local side can already
// name the fiber port it's about to connect to.
func streamFiberPort(localPort uint16) uint32 {
	return fiber.DynamicPortFloor + uint32(localPort)
}

// fibersToSockets is registry.ServiceFibersToSockets (id 3): it listens on
// the fiber port derived from local_port and, for every fiber a peer
// connects to it, dials remote_ip:remote_port and pipes bytes between the
// two.
type fibersToSockets struct {
	destination string

	listener *fiber.Listener

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// newFibersToSockets reads "local_port", "remote_ip", and "remote_port" from
// arguments, matching the CreateServiceRequest parameters a stream-forward
// adapter sends to its peer, and binds the fiber port the other half of the
// pair is expecting to connect to.
func newFibersToSockets(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	localPort, err := strconv.ParseUint(arguments["local_port"], 10, 16)
	if err != nil {
		return nil, errors.Wrap(err, "streamfwd: fibers-to-sockets requires a numeric local_port argument")
	}
	remoteIP := arguments["remote_ip"]
	remotePort := arguments["remote_port"]
	if remoteIP == "" || remotePort == "" {
		return nil, errors.New("streamfwd: fibers-to-sockets requires remote_ip and remote_port arguments")
	}

	listener, err := demux.Listen(streamFiberPort(uint16(localPort)))
	if err != nil {
		return nil, errors.Wrap(err, "unable to bind fiber listener")
	}

	return &fibersToSockets{
		destination: net.JoinHostPort(remoteIP, remotePort),
		listener:    listener,
		stopped:     make(chan struct{}),
	}, nil
}

// Run accepts fibers until Stop is called.
func (s *fibersToSockets) Run(ctx context.Context) error {
	for {
		stream, err := s.listener.Accept(ctx)
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			default:
				return err
			}
		}

		socket, err := net.Dial("tcp", s.destination)
		if err != nil {
			stream.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			copyPair(stream, socket)
		}()
	}
}

// Stop closes the fiber listener and waits for in-flight connections to
// finish.
func (s *fibersToSockets) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.listener.Close()
	})
	s.wg.Wait()
	return nil
}

// socketsToFibers is registry.ServiceSocketsToFibers (id 4): it listens on a
// local TCP address and, for every connection it accepts, opens a fiber to
// the peer's fiber-to-sockets half (derived from the same local_port) and
// pipes bytes between the two.
type socketsToFibers struct {
	demux      *fiber.Demultiplexer
	remotePort uint32

	listener net.Listener

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// newSocketsToFibers reads "local_port" and an optional "bind_address" from
// arguments (the latter defaulting to loopback; a configuration's
// gatewayPorts setting, if enabled, supplies a non-loopback address instead).
// local_port both names the local TCP port to listen on and, ordinarily,
// derives the fiber port the peer's fibers-to-sockets half is bound to. An
// optional "remote_fiber_port" overrides that derivation with a literal
// fiber port instead, which the shell-exposing adapters use to target the
// fixed fiber.ProcessPort of an already-running shell microservice rather
// than a paired fibersToSockets instance.
func newSocketsToFibers(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	localPort, err := strconv.ParseUint(arguments["local_port"], 10, 16)
	if err != nil {
		return nil, errors.Wrap(err, "streamfwd: sockets-to-fibers requires a numeric local_port argument")
	}

	remotePort := streamFiberPort(uint16(localPort))
	if override := arguments["remote_fiber_port"]; override != "" {
		parsed, err := strconv.ParseUint(override, 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, "streamfwd: sockets-to-fibers requires a numeric remote_fiber_port argument")
		}
		remotePort = uint32(parsed)
	}

	bindAddress := arguments["bind_address"]
	if bindAddress == "" {
		bindAddress = "127.0.0.1"
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(bindAddress, arguments["local_port"]))
	if err != nil {
		return nil, errors.Wrap(err, "unable to bind local listener")
	}

	return &socketsToFibers{
		demux:      demux,
		remotePort: remotePort,
		listener:   listener,
		stopped:    make(chan struct{}),
	}, nil
}

// Run accepts local connections until Stop is called.
func (s *socketsToFibers) Run(ctx context.Context) error {
	for {
		socket, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			default:
				return err
			}
		}

		stream, err := s.demux.Connect(ctx, 0, s.remotePort)
		if err != nil {
			socket.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			copyPair(stream, socket)
		}()
	}
}

// Stop closes the local listener and waits for in-flight connections to
// finish.
func (s *socketsToFibers) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.listener.Close()
	})
	s.wg.Wait()
	return nil
}
