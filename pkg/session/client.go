// Package session implements the client and server session controllers
// that give the fiber multiplexer its carrier: the client side's
// attempts-with-backoff reconnection policy, and the server side's accept
// loop, each standing up a per-connection Demultiplexer and admin
// microservice.
package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/contextutil"
	"github.com/ssfcore/ssf/pkg/control"
	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/logging"
	"github.com/ssfcore/ssf/pkg/registry"
	"github.com/ssfcore/ssf/pkg/timeutil"
)

// Dialer establishes a fresh carrier-level connection. It is supplied by the
// outer CLI/daemon, which owns address resolution and TLS/relay chaining.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Handshake performs any carrier-level negotiation (e.g. a TLS handshake)
// before the connection is handed to the multiplexer.
type Handshake func(ctx context.Context, conn io.ReadWriteCloser) error

// ClientConfiguration parameterizes a Client's reconnection policy.
type ClientConfiguration struct {
	// Dial opens a new carrier-level connection on each attempt.
	Dial Dialer
	// Handshake is invoked on each freshly dialed connection, before it is
	// handed to the multiplexer. May be nil.
	Handshake Handshake
	// MaxAttempts bounds the number of connection attempts. Zero means
	// unlimited.
	MaxAttempts int
	// ReconnectDelay is how long the client waits between a disconnection
	// and its next attempt.
	ReconnectDelay time.Duration
	// NoReconnection disables reconnection entirely: the session stops after
	// its first disconnection, successful or not.
	NoReconnection bool
	// FiberConfig configures the per-connection Demultiplexer. May be nil
	// (defaults are used).
	FiberConfig *fiber.Configuration
	// OnStatus is invoked on every status transition. May be nil.
	OnStatus func(Status)
	// Logger receives session lifecycle messages. May be nil.
	Logger *logging.Logger
}

// Client owns the reconnecting carrier and the current connection's
// Demultiplexer, admin control endpoint, and service manager.
type Client struct {
	config ClientConfiguration

	stopOnce sync.Once
	stopped  chan struct{}
	cancel   context.CancelFunc

	mu       sync.Mutex
	demux    *fiber.Demultiplexer
	admin    *control.Endpoint
	services *registry.Manager

	status atomic.Value // Status
}

// NewClient constructs a Client. Call Run to begin connecting.
func NewClient(config ClientConfiguration) *Client {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 5 * time.Second
	}
	return &Client{
		config:  config,
		stopped: make(chan struct{}),
	}
}

func (c *Client) reportStatus(status Status) {
	c.status.Store(status)
	if c.config.OnStatus != nil {
		c.config.OnStatus(status)
	}
}

// CurrentStatus reports the client's most recent status, satisfying
// pkg/daemon's StatusProvider. A Client is always considered "running" once
// constructed; the distinction daemon.Status reports to callers is carried
// in the status string itself (e.g. "Disconnected" after attempts are
// exhausted).
func (c *Client) CurrentStatus() (running bool, status string) {
	value, ok := c.status.Load().(Status)
	if !ok {
		value = StatusInitialized
	}
	return true, value.String()
}

// Demultiplexer returns the Demultiplexer for the current connection, or nil
// if the client is not currently connected.
func (c *Client) Demultiplexer() *fiber.Demultiplexer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.demux
}

// Admin returns the control endpoint for the current connection, or nil if
// the client is not currently connected.
func (c *Client) Admin() *control.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admin
}

// Services returns the service manager for the current connection, or nil if
// the client is not currently connected.
func (c *Client) Services() *registry.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.services
}

// Run executes the connect/run/reconnect loop until the session is stopped
// or its attempts are exhausted. It blocks until the session reaches
// StatusDisconnected.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	c.reportStatus(StatusInitialized)

	var lastErr error
	for attempt := 1; ; attempt++ {
		if contextutil.IsCancelled(ctx) {
			c.reportStatus(StatusDisconnected)
			return lastErr
		}
		select {
		case <-c.stopped:
			c.reportStatus(StatusDisconnected)
			return lastErr
		default:
		}

		conn, err := c.config.Dial(ctx)
		if err != nil {
			lastErr = errors.Wrap(err, "unable to dial carrier")
			c.reportStatus(StatusServerUnreachable)
			if !c.retryAfterFailure(ctx, attempt) {
				c.reportStatus(StatusDisconnected)
				return lastErr
			}
			continue
		}

		if c.config.Handshake != nil {
			if err := c.config.Handshake(ctx, conn); err != nil {
				conn.Close()
				lastErr = errors.Wrap(err, "carrier handshake failed")
				c.reportStatus(StatusServerNotSupported)
				if !c.retryAfterFailure(ctx, attempt) {
					c.reportStatus(StatusDisconnected)
					return lastErr
				}
				continue
			}
		}

		c.reportStatus(StatusConnected)

		demux := fiber.NewDemultiplexer(fiber.NewCarrierFromStream(conn), c.config.FiberConfig)
		services := registry.NewManager(demux, c.config.Logger)

		adminStream, err := demux.Connect(ctx, 0, fiber.AdminPort)
		if err != nil {
			demux.Close()
			lastErr = errors.Wrap(err, "unable to connect admin fiber")
			c.reportStatus(StatusServerNotSupported)
			if !c.retryAfterFailure(ctx, attempt) {
				c.reportStatus(StatusDisconnected)
				return lastErr
			}
			continue
		}

		admin := control.NewEndpoint(adminStream, true,
			adminCreateHandler(services, c.config.Logger),
			adminStopHandler(services, c.config.Logger),
		)

		c.mu.Lock()
		c.demux = demux
		c.admin = admin
		c.services = services
		c.mu.Unlock()

		c.reportStatus(StatusRunning)

		select {
		case <-demux.Closed():
		case <-c.stopped:
			demux.Close()
		case <-ctx.Done():
			demux.Close()
		}

		lastErr = demux.InternalError()
		admin.Close()
		services.Shutdown()

		c.mu.Lock()
		c.demux = nil
		c.admin = nil
		c.services = nil
		c.mu.Unlock()

		select {
		case <-c.stopped:
			c.reportStatus(StatusDisconnected)
			return lastErr
		default:
		}

		if !c.retryAfterFailure(ctx, attempt) {
			c.reportStatus(StatusDisconnected)
			return lastErr
		}
	}
}

// retryAfterFailure reports whether another attempt should be made, sleeping
// for the reconnect delay if so.
func (c *Client) retryAfterFailure(ctx context.Context, attempt int) bool {
	if c.config.NoReconnection {
		return false
	}
	if c.config.MaxAttempts > 0 && attempt >= c.config.MaxAttempts {
		return false
	}
	timer := time.NewTimer(c.config.ReconnectDelay)
	defer timeutil.StopAndDrainTimer(timer)
	select {
	case <-timer.C:
		return true
	case <-c.stopped:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stop shuts the session down: it cancels any in-progress reconnect wait,
// closes the current connection's Demultiplexer, and causes Run to return.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		if c.cancel != nil {
			c.cancel()
		}
	})
	if demux := c.Demultiplexer(); demux != nil {
		demux.Close()
	}
}

// Shutdown is an alias for Stop, satisfying pkg/daemon's StatusProvider.
func (c *Client) Shutdown() {
	c.Stop()
}

// adminCreateHandler builds the control.CreateServiceHandler that starts a
// microservice via the registry in response to a peer-initiated request.
func adminCreateHandler(services *registry.Manager, logger *logging.Logger) control.CreateServiceHandler {
	return func(ctx context.Context, request control.CreateServiceRequest) (control.ServiceStatus, error) {
		id, parameters, err := services.Start(request.ServiceID, request.Arguments)
		if err != nil {
			logger.Debugf("failed to start service %d: %v", request.ServiceID, err)
			return control.ServiceStatus{}, err
		}
		return control.ServiceStatus{
			InstanceID: id,
			ServiceID:  request.ServiceID,
			Running:    true,
			Parameters: parameters,
		}, nil
	}
}

// adminStopHandler builds the control.StopServiceHandler that stops a
// running microservice instance in response to a peer-initiated request.
func adminStopHandler(services *registry.Manager, logger *logging.Logger) control.StopServiceHandler {
	return func(ctx context.Context, request control.StopServiceRequest) (control.ServiceStatus, error) {
		if err := services.Stop(request.InstanceID); err != nil {
			logger.Debugf("failed to stop service instance %d: %v", request.InstanceID, err)
			return control.ServiceStatus{}, err
		}
		return control.ServiceStatus{InstanceID: request.InstanceID, Running: false}, nil
	}
}
