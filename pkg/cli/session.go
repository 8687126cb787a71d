package cli

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/ssfcore/ssf/pkg/carrier/sshrelay"
	"github.com/ssfcore/ssf/pkg/carrier/tcptls"
	"github.com/ssfcore/ssf/pkg/configuration/ssf"
	"github.com/ssfcore/ssf/pkg/fiber"
	"github.com/ssfcore/ssf/pkg/session"
	"github.com/ssfcore/ssf/pkg/utility"
)

// BuildClientDialer constructs the session.Dialer for address from a
// CarrierConfiguration and an optional relay chain (config.Carrier.RelayChain
// followed by any additional relaySpecs, closest hop first): a direct
// pkg/carrier/tcptls.Dialer when no relay is configured, or an
// sshrelay.Chain whose final hop wraps a TLS handshake over the last pipe.
// Shared by `ssf client` and `ssf-agent`, the two callers that dial rather
// than listen.
func BuildClientDialer(address string, config *ssf.Configuration, relaySpecs []string, dialTimeout time.Duration) (session.Dialer, error) {
	tlsConfig, err := LoadTLSConfig(config.Carrier, hostOnly(address))
	if err != nil {
		return nil, err
	}

	relays, err := BuildRelayChain(
		append(utility.CopyStringSlice(config.Carrier.RelayChain), relaySpecs...),
		address, dialTimeout,
	)
	if err != nil {
		return nil, err
	}

	if len(relays) == 0 {
		dialer := tcptls.Dialer{Address: address, Timeout: dialTimeout, TLSConfig: tlsConfig}
		return func(ctx context.Context) (io.ReadWriteCloser, error) {
			return dialer.Dial(ctx)
		}, nil
	}

	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		return sshrelay.Chain(ctx, relays, func(ctx context.Context, transport net.Conn) (net.Conn, error) {
			return tcptls.WrapClient(ctx, transport, tlsConfig)
		})
	}, nil
}

// BuildServerListener opens a tcptls.Listener at listenAddress using the
// CarrierConfiguration's credentials, shared by `ssf server` and
// `ssf-agent`.
func BuildServerListener(listenAddress string, config *ssf.Configuration) (*tcptls.Listener, error) {
	tlsConfig, err := LoadTLSConfig(config.Carrier, "")
	if err != nil {
		return nil, err
	}
	return tcptls.Listen(listenAddress, tlsConfig)
}

// FiberConfigurationFor builds the *fiber.Configuration a carrier's
// Demultiplexer should use, applying the carrier.maximumTransmissionUnit
// override if one is configured, or nil (pkg/fiber's defaults) otherwise.
func FiberConfigurationFor(config *ssf.Configuration) *fiber.Configuration {
	if config.Carrier.MaximumTransmissionUnit == 0 {
		return nil
	}
	fiberConfig := fiber.DefaultConfiguration()
	fiberConfig.MTU = uint16(config.Carrier.MaximumTransmissionUnit)
	return fiberConfig
}

// hostOnly strips the port from a "host:port" address for use as a TLS
// ServerName, falling back to the address unchanged if it isn't in that
// form.
func hostOnly(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}
