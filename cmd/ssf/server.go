package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ssfcore/ssf/cmd"
	"github.com/ssfcore/ssf/pkg/adapter"
	"github.com/ssfcore/ssf/pkg/cli"
	"github.com/ssfcore/ssf/pkg/configuration/ssf"
	"github.com/ssfcore/ssf/pkg/control"
	"github.com/ssfcore/ssf/pkg/registry"
	"github.com/ssfcore/ssf/pkg/session"
)

var serverConfiguration struct {
	listen       string
	configPath   string
	certificate  string
	key          string
	ca           string
	adapterFlags cli.AdapterFlags
}

var serverCommand = &cobra.Command{
	Use:   "server",
	Short: "Accept connections from an ssf client and run the configured forwards",
	Args:  cmd.DisallowArguments,
	Run:   cmd.Mainify(serverMain),
}

func init() {
	flags := serverCommand.Flags()
	flags.StringVarP(&serverConfiguration.listen, "listen", "a", ":8022", "Address to listen on")
	flags.StringVarP(&serverConfiguration.configPath, "config", "c", "", "Path to configuration file (defaults to the global configuration path)")
	flags.StringVar(&serverConfiguration.certificate, "certificate", "", "Override the configured carrier certificate path")
	flags.StringVar(&serverConfiguration.key, "key", "", "Override the configured carrier key path")
	flags.StringVar(&serverConfiguration.ca, "ca", "", "Override the configured carrier CA certificate path")
	cli.RegisterAdapterFlags(flags, &serverConfiguration.adapterFlags)
}

func serverMain(command *cobra.Command, arguments []string) error {
	applyLogLevel()

	config, err := cli.LoadConfiguration(serverConfiguration.configPath,
		serverConfiguration.certificate, serverConfiguration.key, serverConfiguration.ca)
	if err != nil {
		return err
	}

	requested, err := cli.CollectAdapters(&serverConfiguration.adapterFlags, config)
	if err != nil {
		return err
	}

	listener, err := cli.BuildServerListener(serverConfiguration.listen, config)
	if err != nil {
		return err
	}
	defer listener.Close()

	ctx, stop := signal.NotifyContext(context.Background(), cmd.TerminationSignals...)
	defer stop()

	server := session.NewServer(session.ServerConfiguration{
		Accept: func(ctx context.Context) (io.ReadWriteCloser, error) {
			return listener.Accept(ctx)
		},
		FiberConfig: cli.FiberConfigurationFor(config),
		OnStatus: func(status session.Status) {
			fmt.Fprintln(os.Stderr, "Status:", status)
		},
		OnConnected: func(admin *control.Endpoint, services *registry.Manager) {
			runServerAdapters(ctx, admin, services, requested, config)
		},
	})

	return server.Run(ctx)
}

// runServerAdapters starts the configuration-gated session-wide services and
// every requested adapter against one accepted connection's admin endpoint
// and service manager. Unlike the client side, a server connection never
// reconnects, so there is nothing to tear down and restart here; the
// adapter.Session values stop themselves implicitly when the connection's
// Demultiplexer closes and its fibers go with it.
func runServerAdapters(ctx context.Context, admin *control.Endpoint, services *registry.Manager, requested []adapter.Adapter, config *ssf.Configuration) {
	cli.StartConfiguredServices(services, config)
	for _, a := range requested {
		if _, err := adapter.Run(ctx, admin, services, a); err != nil {
			cmd.Warning(fmt.Sprintf("unable to start adapter: %v", err))
		}
	}
}
