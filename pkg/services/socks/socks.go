// Package socks implements registry.ServiceSOCKS (id 2), a SOCKS4/5 proxy
// pair behind the `-D`/`-F` flags. A local SOCKS server (`-D`) runs the
// listening role on the machine issuing the flag and the dialing role on
// the peer; a reverse SOCKS server (`-F`) runs the two the other way
// around. Both roles share one registry id, selected by the "role"
// construction argument, because unlike the stream- and datagram-forward
// pairs the two sides of a SOCKS proxy are not separately addressable by
// the CLI.
package socks

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/registry"
)

func init() {
	registry.Register(registry.ServiceSOCKS, newSOCKS)
}

// socksPortOffset shifts SOCKS fiber ports away from the stream- and
// datagram-forward bands so a SOCKS proxy sharing a CLI local port number
// with an unrelated forward doesn't collide with it. Mirrors the same
// derive-from-local-port convention those packages use, with a different
// constant offset.
const socksPortOffset = 2 << 16

// socksFiberPort derives the fiber port both roles of a SOCKS proxy pair
// rendezvous on from the CLI-specified local port.
func socksFiberPort(localPort uint16) uint32 {
	return fiber.DynamicPortFloor + socksPortOffset + uint32(localPort)
}

const (
	roleListen = "listen"
	roleDial   = "dial"

	socksVersion5 = 0x05
	socksVersion4 = 0x04

	cmdConnect = 0x01

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04

	replySucceeded        = 0x00
	replyCommandNotSupported = 0x07
	replyAddressNotSupported = 0x08
	replyHostUnreachable     = 0x04
)

// newSOCKS dispatches on arguments["role"] to build either the listening or
// dialing half of the proxy.
func newSOCKS(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	switch arguments["role"] {
	case roleListen:
		return newListener(demux, arguments)
	case roleDial:
		return newDialer(demux, arguments)
	default:
		return nil, errors.Errorf("socks: unrecognized role %q", arguments["role"])
	}
}

// writeDestination frames a "host:port" destination as a 2-byte big-endian
// length prefix followed by its UTF-8 bytes, sent once at the start of
// every fiber the listening role opens, so the dialing role on the peer
// knows where to connect before raw bytes start flowing.
func writeDestination(ctx context.Context, stream *fiber.StreamFiber, destination string) error {
	if len(destination) > 0xffff {
		return errors.New("socks: destination address too long")
	}
	header := make([]byte, 2+len(destination))
	binary.BigEndian.PutUint16(header, uint16(len(destination)))
	copy(header[2:], destination)
	_, err := stream.Write(ctx, header)
	return err
}

// readDestination is the dialing role's counterpart to writeDestination.
func readDestination(ctx context.Context, stream *fiber.StreamFiber) (string, error) {
	lengthBuf := make([]byte, 2)
	if err := readFull(ctx, stream, lengthBuf); err != nil {
		return "", err
	}
	length := binary.BigEndian.Uint16(lengthBuf)
	destBuf := make([]byte, length)
	if err := readFull(ctx, stream, destBuf); err != nil {
		return "", err
	}
	return string(destBuf), nil
}

// readFull reads exactly len(buffer) bytes from a stream fiber, looping over
// short reads.
func readFull(ctx context.Context, stream *fiber.StreamFiber, buffer []byte) error {
	for read := 0; read < len(buffer); {
		n, err := stream.Read(ctx, buffer[read:])
		if n > 0 {
			read += n
		} else if err == nil {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
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

// listener is the SOCKS-listening role: it accepts local TCP connections,
// speaks SOCKS4/5 to each, and for every CONNECT request opens a fiber to
// remotePort carrying the parsed destination.
type listener struct {
	demux      *fiber.Demultiplexer
	remotePort uint32

	net net.Listener

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// newListener reads "local_port" and an optional "bind_address" from
// arguments. local_port both names the local TCP port to listen on and
// derives the fiber port the peer's dialing role is bound to.
func newListener(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	localPort, err := strconv.ParseUint(arguments["local_port"], 10, 16)
	if err != nil {
		return nil, errors.Wrap(err, "socks: listening role requires a numeric local_port argument")
	}

	bindAddress := arguments["bind_address"]
	if bindAddress == "" {
		bindAddress = "127.0.0.1"
	}

	netListener, err := net.Listen("tcp", net.JoinHostPort(bindAddress, arguments["local_port"]))
	if err != nil {
		return nil, errors.Wrap(err, "unable to bind SOCKS listener")
	}

	return &listener{
		demux:      demux,
		remotePort: socksFiberPort(uint16(localPort)),
		net:        netListener,
		stopped:    make(chan struct{}),
	}, nil
}

func (l *listener) Run(ctx context.Context) error {
	for {
		conn, err := l.net.Accept()
		if err != nil {
			select {
			case <-l.stopped:
				return nil
			default:
				return err
			}
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handle(ctx, conn)
		}()
	}
}

func (l *listener) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	destination, err := socksHandshake(conn)
	if err != nil {
		return
	}

	stream, err := l.demux.Connect(ctx, 0, l.remotePort)
	if err != nil {
		writeSOCKS5Reply(conn, replyHostUnreachable)
		return
	}

	if err := writeDestination(ctx, stream, destination); err != nil {
		stream.Close()
		return
	}

	if err := writeSOCKS5Reply(conn, replySucceeded); err != nil {
		stream.Close()
		return
	}

	copyPair(stream, conn)
}

func (l *listener) Stop() error {
	l.stopOnce.Do(func() {
		close(l.stopped)
		l.net.Close()
	})
	l.wg.Wait()
	return nil
}

// dialer is the SOCKS-dialing role: it accepts fibers on the fiber port
// derived from local_port, reads the destination each one carries, dials it, and
// relays bytes.
type dialer struct {
	fiberListener *fiber.Listener

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// newDialer reads "local_port" from arguments, matching the
// CreateServiceRequest parameters a SOCKS adapter sends to its peer, and
// binds the fiber port the listening role is expecting to connect to.
func newDialer(demux *fiber.Demultiplexer, arguments map[string]string) (registry.Service, error) {
	localPort, err := strconv.ParseUint(arguments["local_port"], 10, 16)
	if err != nil {
		return nil, errors.Wrap(err, "socks: dialing role requires a numeric local_port argument")
	}

	fiberListener, err := demux.Listen(socksFiberPort(uint16(localPort)))
	if err != nil {
		return nil, errors.Wrap(err, "unable to bind fiber listener")
	}
	return &dialer{
		fiberListener: fiberListener,
		stopped:       make(chan struct{}),
	}, nil
}

func (d *dialer) Run(ctx context.Context) error {
	for {
		stream, err := d.fiberListener.Accept(ctx)
		if err != nil {
			select {
			case <-d.stopped:
				return nil
			default:
				return err
			}
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handle(ctx, stream)
		}()
	}
}

func (d *dialer) handle(ctx context.Context, stream *fiber.StreamFiber) {
	destination, err := readDestination(ctx, stream)
	if err != nil {
		stream.Close()
		return
	}

	socket, err := net.Dial("tcp", destination)
	if err != nil {
		stream.Close()
		return
	}

	copyPair(stream, socket)
}

func (d *dialer) Stop() error {
	d.stopOnce.Do(func() {
		close(d.stopped)
		d.fiberListener.Close()
	})
	d.wg.Wait()
	return nil
}

// socksHandshake speaks enough of SOCKS4 and SOCKS5 to extract a CONNECT
// request's destination address, replying with a SOCKS5 failure on any
// unsupported command or address type. SOCKS4 requests are answered with a
// SOCKS4 reply; SOCKS5 success is left to the caller, which only knows
// success once the remote dial has actually been attempted.
func socksHandshake(conn net.Conn) (string, error) {
	versionBuf := make([]byte, 1)
	if _, err := io.ReadFull(conn, versionBuf); err != nil {
		return "", errors.Wrap(err, "unable to read SOCKS version")
	}

	switch versionBuf[0] {
	case socksVersion5:
		return socks5Handshake(conn)
	case socksVersion4:
		return socks4Handshake(conn)
	default:
		return "", errors.Errorf("socks: unsupported version %d", versionBuf[0])
	}
}

func socks5Handshake(conn net.Conn) (string, error) {
	header := make([]byte, 1)
	if _, err := io.ReadFull(conn, header); err != nil {
		return "", errors.Wrap(err, "unable to read method count")
	}
	methods := make([]byte, header[0])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return "", errors.Wrap(err, "unable to read methods")
	}

	if _, err := conn.Write([]byte{socksVersion5, 0x00}); err != nil {
		return "", errors.Wrap(err, "unable to write method selection")
	}

	request := make([]byte, 4)
	if _, err := io.ReadFull(conn, request); err != nil {
		return "", errors.Wrap(err, "unable to read request")
	}
	if request[0] != socksVersion5 {
		return "", errors.Errorf("socks: invalid version %d in request", request[0])
	}
	if request[1] != cmdConnect {
		writeSOCKS5Reply(conn, replyCommandNotSupported)
		return "", errors.Errorf("socks: unsupported command %d", request[1])
	}

	switch request[3] {
	case atypIPv4:
		addr := make([]byte, 4+2)
		if _, err := io.ReadFull(conn, addr); err != nil {
			return "", errors.Wrap(err, "unable to read IPv4 address")
		}
		port := int(addr[4])<<8 | int(addr[5])
		return net.JoinHostPort(net.IP(addr[:4]).String(), strconv.Itoa(port)), nil
	case atypDomain:
		lengthBuf := make([]byte, 1)
		if _, err := io.ReadFull(conn, lengthBuf); err != nil {
			return "", errors.Wrap(err, "unable to read domain length")
		}
		domainAndPort := make([]byte, int(lengthBuf[0])+2)
		if _, err := io.ReadFull(conn, domainAndPort); err != nil {
			return "", errors.Wrap(err, "unable to read domain and port")
		}
		domain := string(domainAndPort[:lengthBuf[0]])
		port := int(domainAndPort[lengthBuf[0]])<<8 | int(domainAndPort[lengthBuf[0]+1])
		return net.JoinHostPort(domain, strconv.Itoa(port)), nil
	case atypIPv6:
		addr := make([]byte, 16+2)
		if _, err := io.ReadFull(conn, addr); err != nil {
			return "", errors.Wrap(err, "unable to read IPv6 address")
		}
		port := int(addr[16])<<8 | int(addr[17])
		return net.JoinHostPort(net.IP(addr[:16]).String(), strconv.Itoa(port)), nil
	default:
		writeSOCKS5Reply(conn, replyAddressNotSupported)
		return "", errors.Errorf("socks: unsupported address type %d", request[3])
	}
}

// socks4Handshake handles the legacy SOCKS4 CONNECT request (no
// authentication negotiation, IPv4 only, a NUL-terminated user-id field).
func socks4Handshake(conn net.Conn) (string, error) {
	request := make([]byte, 1+2+4)
	if _, err := io.ReadFull(conn, request); err != nil {
		return "", errors.Wrap(err, "unable to read SOCKS4 request")
	}
	if request[0] != cmdConnect {
		writeSOCKS4Reply(conn, 0x5b)
		return "", errors.Errorf("socks: unsupported SOCKS4 command %d", request[0])
	}
	port := int(request[1])<<8 | int(request[2])
	ip := net.IP(request[3:7])

	userID := make([]byte, 0, 16)
	b := make([]byte, 1)
	for {
		if _, err := io.ReadFull(conn, b); err != nil {
			return "", errors.Wrap(err, "unable to read SOCKS4 user id")
		}
		if b[0] == 0 {
			break
		}
		userID = append(userID, b[0])
	}

	if _, err := conn.Write([]byte{0x00, 0x5a, 0x00, 0x00, 0, 0, 0, 0}); err != nil {
		return "", errors.Wrap(err, "unable to write SOCKS4 reply")
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(port)), nil
}

func writeSOCKS5Reply(conn net.Conn, code byte) error {
	reply := []byte{socksVersion5, code, 0x00, atypIPv4, 0, 0, 0, 0, 0, 0}
	_, err := conn.Write(reply)
	return err
}

func writeSOCKS4Reply(conn net.Conn, code byte) error {
	reply := []byte{0x00, code, 0, 0, 0, 0, 0, 0}
	_, err := conn.Write(reply)
	return err
}
