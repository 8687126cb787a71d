package cli

import (
	"github.com/spf13/pflag"

	"github.com/ssfcore/ssf/pkg/adapter"
	"github.com/ssfcore/ssf/pkg/configuration/ssf"
)

// AdapterFlags holds the raw repeatable flag values behind `-L`, `-R`, `-U`,
// `-V`, `-D`, `-F`, `-X`, and `-Y`, the CLI surface described in spec.md §6.
type AdapterFlags struct {
	LocalForward    []string
	ReverseForward  []string
	LocalDatagram   []string
	ReverseDatagram []string
	LocalSocks      []string
	ReverseSocks    []string
	LocalShell      []string
	ReverseShell    []string
}

// RegisterAdapterFlags wires AdapterFlags into a command's flag set, shared
// by both `ssf client` and `ssf server` so the two subcommands expose an
// identical forwarding surface.
func RegisterAdapterFlags(flags *pflag.FlagSet, set *AdapterFlags) {
	flags.StringArrayVarP(&set.LocalForward, "local-forward", "L", nil, "Forward a local port to a peer-side destination ([bind:]lport:host:rport)")
	flags.StringArrayVarP(&set.ReverseForward, "reverse-forward", "R", nil, "Forward a peer-side port to a local destination ([bind:]lport:host:rport)")
	flags.StringArrayVarP(&set.LocalDatagram, "local-datagram", "U", nil, "Forward local datagrams to a peer-side destination ([bind:]lport:host:rport)")
	flags.StringArrayVarP(&set.ReverseDatagram, "reverse-datagram", "V", nil, "Forward peer-side datagrams to a local destination ([bind:]lport:host:rport)")
	flags.StringArrayVarP(&set.LocalSocks, "local-socks", "D", nil, "Run a local SOCKS proxy dialing out through the peer ([bind:]port)")
	flags.StringArrayVarP(&set.ReverseSocks, "reverse-socks", "F", nil, "Run a peer-side SOCKS proxy dialing out through this side ([bind:]port)")
	flags.StringArrayVarP(&set.LocalShell, "local-shell", "X", nil, "Expose the peer's interactive shell on a local port ([bind:]port)")
	flags.StringArrayVarP(&set.ReverseShell, "reverse-shell", "Y", nil, "Expose this side's interactive shell on a peer-side port ([bind:]port)")
}

// CollectAdapters parses every configured flag value into its adapter.Adapter
// and applies the ssf.services.{streamListener,datagramListener}.gatewayPorts
// policy to each one's bind address before construction.
func CollectAdapters(set *AdapterFlags, config *ssf.Configuration) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	for _, raw := range set.LocalForward {
		spec, err := adapter.ParseForwardSpecification(raw)
		if err != nil {
			return nil, err
		}
		spec.BindAddress = ApplyGatewayPorts(spec.BindAddress, config.Services.StreamListener.GatewayPorts)
		adapters = append(adapters, adapter.LocalForward{Specification: spec})
	}
	for _, raw := range set.ReverseForward {
		spec, err := adapter.ParseForwardSpecification(raw)
		if err != nil {
			return nil, err
		}
		spec.BindAddress = ApplyGatewayPorts(spec.BindAddress, config.Services.StreamListener.GatewayPorts)
		adapters = append(adapters, adapter.ReverseForward{Specification: spec})
	}
	for _, raw := range set.LocalDatagram {
		spec, err := adapter.ParseForwardSpecification(raw)
		if err != nil {
			return nil, err
		}
		spec.BindAddress = ApplyGatewayPorts(spec.BindAddress, config.Services.DatagramListener.GatewayPorts)
		adapters = append(adapters, adapter.LocalDatagram{Specification: spec})
	}
	for _, raw := range set.ReverseDatagram {
		spec, err := adapter.ParseForwardSpecification(raw)
		if err != nil {
			return nil, err
		}
		spec.BindAddress = ApplyGatewayPorts(spec.BindAddress, config.Services.DatagramListener.GatewayPorts)
		adapters = append(adapters, adapter.ReverseDatagram{Specification: spec})
	}
	for _, raw := range set.LocalSocks {
		spec, err := adapter.ParseListenSpecification(raw)
		if err != nil {
			return nil, err
		}
		spec.BindAddress = ApplyGatewayPorts(spec.BindAddress, config.Services.StreamListener.GatewayPorts)
		adapters = append(adapters, adapter.LocalSocks{Specification: spec})
	}
	for _, raw := range set.ReverseSocks {
		spec, err := adapter.ParseListenSpecification(raw)
		if err != nil {
			return nil, err
		}
		spec.BindAddress = ApplyGatewayPorts(spec.BindAddress, config.Services.StreamListener.GatewayPorts)
		adapters = append(adapters, adapter.ReverseSocks{Specification: spec})
	}
	for _, raw := range set.LocalShell {
		spec, err := adapter.ParseListenSpecification(raw)
		if err != nil {
			return nil, err
		}
		spec.BindAddress = ApplyGatewayPorts(spec.BindAddress, config.Services.StreamListener.GatewayPorts)
		adapters = append(adapters, adapter.LocalShell{Specification: spec})
	}
	for _, raw := range set.ReverseShell {
		spec, err := adapter.ParseListenSpecification(raw)
		if err != nil {
			return nil, err
		}
		spec.BindAddress = ApplyGatewayPorts(spec.BindAddress, config.Services.StreamListener.GatewayPorts)
		adapters = append(adapters, adapter.ReverseShell{Specification: spec})
	}

	return adapters, nil
}
