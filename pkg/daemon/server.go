package daemon

import (
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/logging"
)

// StatusProvider reports the current status of the session an `ssf agent`
// process holds. session.Client and session.Server satisfy it directly.
type StatusProvider interface {
	// CurrentStatus returns whether a session is currently running and, if
	// so, its status string.
	CurrentStatus() (running bool, status string)
	// Shutdown stops the held session.
	Shutdown()
}

// Server accepts local IPC connections and answers Status/Shutdown
// requests against a StatusProvider.
type Server struct {
	provider StatusProvider
	logger   *logging.Logger

	listener net.Listener

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewServer creates the daemon's IPC listener and a Server bound to it.
func NewServer(provider StatusProvider, logger *logging.Logger) (*Server, error) {
	listener, err := newListener()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create daemon ipc listener")
	}
	return &Server{
		provider: provider,
		logger:   logger,
		listener: listener,
		stopped:  make(chan struct{}),
	}, nil
}

// Run accepts and services IPC connections until Stop is called.
func (s *Server) Run() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			default:
				return errors.Wrap(err, "unable to accept ipc connection")
			}
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()
	codec := newCodec(conn)

	request, err := codec.receiveRequest()
	if err != nil {
		return
	}

	switch request.Command {
	case CommandStatus:
		running, status := s.provider.CurrentStatus()
		codec.sendResponse(Response{Running: running, Status: status})
	case CommandShutdown:
		s.provider.Shutdown()
		codec.sendResponse(Response{})
	default:
		codec.sendResponse(Response{Error: "unrecognized command"})
	}
}

// Stop closes the listener, causing Run to return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopped)
		s.listener.Close()
	})
}
