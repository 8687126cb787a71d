// Package tcptls implements the default carrier instantiation named in
// spec.md §6: plain TCP for local/unauthenticated use, and TLS over TCP with
// mutual X.509 authentication for the normal client/server case.
package tcptls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Credentials bundles the certificate material needed to set up mutual
// X.509 authentication: this side's own certificate/key pair, and the CA
// pool used to verify the peer's certificate.
type Credentials struct {
	CertificatePath string
	KeyPath         string
	CACertificatePath string
}

// LoadTLSConfig builds a *tls.Config enforcing mutual authentication from a
// Credentials value. ServerName is used for client-side hostname
// verification; it is ignored when configuring a listener.
func LoadTLSConfig(creds Credentials, serverName string) (*tls.Config, error) {
	certificate, err := tls.LoadX509KeyPair(creds.CertificatePath, creds.KeyPath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load certificate/key pair")
	}

	caBytes, err := ioutil.ReadFile(creds.CACertificatePath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read CA certificate")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, errors.New("unable to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{certificate},
		RootCAs:      pool,
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Dialer opens plain or TLS-wrapped TCP connections to a fixed address.
type Dialer struct {
	Address string
	Timeout time.Duration
	// TLSConfig, if non-nil, causes Dial to perform a TLS handshake over the
	// raw TCP connection before returning it. Handshake completion is
	// spec.md §6's carrier_handshake call for this carrier instantiation.
	TLSConfig *tls.Config
}

// Dial establishes one carrier-level connection. The returned
// io.ReadWriteCloser satisfies pkg/fiber's Carrier-stream contract: Close
// unblocks any pending Read or Write.
func (d Dialer) Dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, errors.Wrap(err, "unable to dial tcp carrier")
	}

	if d.TLSConfig == nil {
		return conn, nil
	}

	tlsConn := tls.Client(conn, d.TLSConfig)
	if err := handshake(ctx, tlsConn); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// WrapClient performs a client-side TLS handshake over an already-connected
// transport, for carriers whose transport was established by something
// other than Dialer (for example, pkg/carrier/sshrelay's relay chain).
// If tlsConfig is nil, conn is returned unwrapped.
func WrapClient(ctx context.Context, conn net.Conn, tlsConfig *tls.Config) (net.Conn, error) {
	if tlsConfig == nil {
		return conn, nil
	}
	tlsConn := tls.Client(conn, tlsConfig)
	if err := handshake(ctx, tlsConn); err != nil {
		return nil, err
	}
	return tlsConn, nil
}

// Listener accepts plain or TLS-wrapped TCP connections on a fixed address.
type Listener struct {
	net.Listener
	// TLSConfig, if non-nil, causes Accept to perform a TLS handshake over
	// each accepted raw TCP connection before returning it.
	TLSConfig *tls.Config
}

// Listen opens a TCP listener at address, optionally wrapped for TLS.
func Listen(address string, tlsConfig *tls.Config) (*Listener, error) {
	raw, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "unable to listen on tcp address")
	}
	return &Listener{Listener: raw, TLSConfig: tlsConfig}, nil
}

// Accept blocks for the next incoming connection, performing the TLS
// handshake (if configured) before returning it.
func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, errors.Wrap(err, "unable to accept tcp connection")
	}

	if l.TLSConfig == nil {
		return conn, nil
	}

	tlsConn := tls.Server(conn, l.TLSConfig)
	if err := handshake(ctx, tlsConn); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// handshake drives a *tls.Conn's handshake to completion, respecting ctx
// cancellation via the connection's deadline.
func handshake(ctx context.Context, conn *tls.Conn) error {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	if err := conn.HandshakeContext(ctx); err != nil {
		return errors.Wrap(err, "tls handshake failed")
	}
	return nil
}
