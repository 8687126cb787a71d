package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/control"
	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/logging"
	"github.com/ssfcore/ssf/pkg/registry"
)

// Acceptor accepts a single fresh carrier-level connection. It is supplied by
// the outer CLI/daemon, which owns the listening socket.
type Acceptor func(ctx context.Context) (io.ReadWriteCloser, error)

// ServerConfiguration parameterizes a Server's accept loop.
type ServerConfiguration struct {
	// Accept blocks until a new carrier-level connection arrives.
	Accept Acceptor
	// Handshake is invoked on each accepted connection, before it is handed
	// to the multiplexer. May be nil.
	Handshake Handshake
	// RelayOnly, if set, rejects every accepted connection by closing it
	// immediately after accept, before any handshake or multiplexing is
	// attempted. It exists so a relay-chained server can refuse to also act
	// as a terminal endpoint.
	RelayOnly bool
	// FiberConfig configures each connection's Demultiplexer. May be nil.
	FiberConfig *fiber.Configuration
	// OnStatus is invoked on every status transition of every accepted
	// connection. May be nil.
	OnStatus func(Status)
	// OnConnected is invoked once a connection's admin fiber reaches
	// StatusRunning, with the admin endpoint and service manager for that
	// connection, so a caller can grant peer-requested services and start
	// its own adapters against it. May be nil. Unlike Client, where
	// Admin()/Services() expose the single current connection, a Server may
	// run several connections concurrently, so this hook is the only way to
	// reach a given connection's endpoint.
	OnConnected func(admin *control.Endpoint, services *registry.Manager)
	// OnDisconnected is invoked when a connection that reached OnConnected
	// is about to shut down, before its admin endpoint and service manager
	// are closed. May be nil.
	OnDisconnected func(admin *control.Endpoint, services *registry.Manager)
	// Logger receives session lifecycle messages. May be nil.
	Logger *logging.Logger
}

// Server accepts carrier-level connections in a loop, standing up an
// independent Demultiplexer, admin endpoint, and service manager for each
// one. Unlike Client, a Server does not reconnect: each accepted connection
// runs until it closes, and the loop simply accepts the next one.
type Server struct {
	config ServerConfiguration

	stopOnce sync.Once
	stopped  chan struct{}
	cancel   context.CancelFunc

	mu          sync.Mutex
	connections map[*fiber.Demultiplexer]struct{}

	lastStatus atomic.Value // Status
}

// NewServer constructs a Server. Call Run to begin accepting.
func NewServer(config ServerConfiguration) *Server {
	return &Server{
		config:      config,
		stopped:     make(chan struct{}),
		connections: make(map[*fiber.Demultiplexer]struct{}),
	}
}

func (s *Server) reportStatus(status Status) {
	s.lastStatus.Store(status)
	if s.config.OnStatus != nil {
		s.config.OnStatus(status)
	}
}

// CurrentStatus reports whether any connection is currently accepted and the
// most recent status reported across all of them, satisfying pkg/daemon's
// StatusProvider. A Server holding no connections reports running as false,
// even while its accept loop is active.
func (s *Server) CurrentStatus() (running bool, status string) {
	s.mu.Lock()
	count := len(s.connections)
	s.mu.Unlock()

	value, ok := s.lastStatus.Load().(Status)
	if !ok {
		return count > 0, StatusInitialized.String()
	}
	return count > 0, value.String()
}

// Shutdown stops the server, satisfying pkg/daemon's StatusProvider.
func (s *Server) Shutdown() {
	s.Stop()
}

// Run accepts connections until the context is canceled or Stop is called.
// It returns once the accept loop has exited and every in-flight connection
// has finished shutting down.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-s.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := s.config.Accept(ctx)
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return errors.Wrap(err, "unable to accept carrier connection")
		}

		if s.config.RelayOnly {
			conn.Close()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn)
		}()
	}
}

// serve drives a single accepted connection through handshake, admin fiber
// setup, and service lifecycle, until the connection closes.
func (s *Server) serve(ctx context.Context, conn io.ReadWriteCloser) {
	if s.config.Handshake != nil {
		if err := s.config.Handshake(ctx, conn); err != nil {
			conn.Close()
			s.reportStatus(StatusServerNotSupported)
			return
		}
	}

	s.reportStatus(StatusConnected)

	demux := fiber.NewDemultiplexer(fiber.NewCarrierFromStream(conn), s.config.FiberConfig)
	services := registry.NewManager(demux, s.config.Logger)

	s.mu.Lock()
	s.connections[demux] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.connections, demux)
		s.mu.Unlock()
	}()

	adminStream, err := demux.Connect(ctx, 0, fiber.AdminPort)
	if err != nil {
		demux.Close()
		s.reportStatus(StatusServerNotSupported)
		return
	}

	admin := control.NewEndpoint(adminStream, false,
		adminCreateHandler(services, s.config.Logger),
		adminStopHandler(services, s.config.Logger),
	)

	s.reportStatus(StatusRunning)
	if s.config.OnConnected != nil {
		s.config.OnConnected(admin, services)
	}

	select {
	case <-demux.Closed():
	case <-s.stopped:
		demux.Close()
	case <-ctx.Done():
		demux.Close()
	}

	if s.config.OnDisconnected != nil {
		s.config.OnDisconnected(admin, services)
	}

	admin.Close()
	services.Shutdown()
	s.reportStatus(StatusDisconnected)
}

// Stop causes Run to stop accepting new connections and every in-flight
// connection to close.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		if s.cancel != nil {
			s.cancel()
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for demux := range s.connections {
		demux.Close()
	}
}
