// Package sshrelay implements an intermediate-relay carrier: an SSH
// connection to a relay host, with a remote command's stdin/stdout wired up
// as a raw byte pipe to whatever sits on the other side of that command (for
// example, the relay host's own "nc" to the next hop, or the final TLS
// endpoint). Chaining N of these in front of a pkg/carrier/tcptls connection
// realizes spec.md §6's "stack of N such relays composed via a data-link
// circuit layer".
package sshrelay

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/ssfcore/ssf/pkg/connectivity"
)

// Relay describes one SSH hop: the address of the relay host, the
// credentials to authenticate with it, and the command whose stdin/stdout
// carries the byte stream onward (typically something that itself dials the
// next hop, such as "nc nexthost nextport").
type Relay struct {
	Address      string
	ClientConfig *ssh.ClientConfig
	Command      string
	Timeout      time.Duration
}

// dial connects to the relay host over transport (a fresh TCP connection for
// the first hop, or the previous hop's pipe for subsequent ones),
// authenticates, and starts Command, returning a net.Conn wired to its
// stdin/stdout via pkg/connectivity's stream adapter.
func (r Relay) dial(ctx context.Context, transport net.Conn) (net.Conn, error) {
	sshConn, chans, reqs, err := ssh.NewClientConn(transport, r.Address, r.ClientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "ssh handshake with relay host failed")
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "unable to open ssh session on relay host")
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, errors.Wrap(err, "unable to open relay command stdin")
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return nil, errors.Wrap(err, "unable to open relay command stdout")
	}

	if err := session.Start(r.Command); err != nil {
		session.Close()
		client.Close()
		return nil, errors.Wrap(err, "unable to start relay command")
	}

	conn, _ := connectivity.NewIOConnection(stdout, stdin, stdin, session, client)
	return conn, nil
}

// Dial connects directly to the relay host over a fresh TCP connection and
// starts Command, returning a carrier stream wired to its stdin/stdout.
func (r Relay) Dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: r.Timeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", r.Address)
	if err != nil {
		return nil, errors.Wrap(err, "unable to dial ssh relay host")
	}
	conn, err := r.dial(ctx, tcpConn)
	if err != nil {
		tcpConn.Close()
		return nil, err
	}
	return conn, nil
}

// Chain dials a stack of relays in order, tunneling each subsequent hop's
// SSH connection over the previous hop's pipe, then hands the final pipe to
// finalDial so the actual TLS carrier can be established through the whole
// circuit. If finalDial is nil, the last relay's own pipe is returned as the
// carrier.
func Chain(ctx context.Context, relays []Relay, finalDial func(ctx context.Context, transport net.Conn) (net.Conn, error)) (net.Conn, error) {
	if len(relays) == 0 {
		return nil, errors.New("sshrelay: chain requires at least one relay")
	}

	conn, err := relays[0].Dial(ctx)
	if err != nil {
		return nil, err
	}

	for _, relay := range relays[1:] {
		next, err := relay.dial(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		conn = next
	}

	if finalDial == nil {
		return conn, nil
	}

	final, err := finalDial(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return final, nil
}
