package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssfcore/ssf/cmd"
	"github.com/ssfcore/ssf/pkg/adapter"
	"github.com/ssfcore/ssf/pkg/cli"
	"github.com/ssfcore/ssf/pkg/configuration/ssf"
	"github.com/ssfcore/ssf/pkg/control"
	"github.com/ssfcore/ssf/pkg/registry"
	"github.com/ssfcore/ssf/pkg/session"
)

var clientConfiguration struct {
	configPath     string
	certificate    string
	key            string
	ca             string
	relays         []string
	dialTimeout    time.Duration
	noReconnect    bool
	reconnectDelay time.Duration
	maxAttempts    int
	adapterFlags   cli.AdapterFlags
}

var clientCommand = &cobra.Command{
	Use:   "client <address>",
	Short: "Connect to an ssf server and run the configured forwards",
	Args:  cobra.ExactArgs(1),
	Run:   cmd.Mainify(clientMain),
}

func init() {
	flags := clientCommand.Flags()
	flags.StringVarP(&clientConfiguration.configPath, "config", "c", "", "Path to configuration file (defaults to the global configuration path)")
	flags.StringVar(&clientConfiguration.certificate, "certificate", "", "Override the configured carrier certificate path")
	flags.StringVar(&clientConfiguration.key, "key", "", "Override the configured carrier key path")
	flags.StringVar(&clientConfiguration.ca, "ca", "", "Override the configured carrier CA certificate path")
	flags.StringArrayVar(&clientConfiguration.relays, "relay", nil, "SSH relay hop ([user@]host[:port]), repeatable, closest hop first")
	flags.DurationVar(&clientConfiguration.dialTimeout, "timeout", 10*time.Second, "Timeout for the carrier dial and each SSH relay hop")
	flags.BoolVar(&clientConfiguration.noReconnect, "no-reconnect", false, "Stop instead of reconnecting once the connection is lost")
	flags.DurationVar(&clientConfiguration.reconnectDelay, "reconnect-delay", 5*time.Second, "Delay between reconnection attempts")
	flags.IntVar(&clientConfiguration.maxAttempts, "max-attempts", 0, "Maximum connection attempts, 0 for unlimited")
	cli.RegisterAdapterFlags(flags, &clientConfiguration.adapterFlags)
}

func clientMain(command *cobra.Command, arguments []string) error {
	applyLogLevel()
	address := arguments[0]

	config, err := cli.LoadConfiguration(clientConfiguration.configPath,
		clientConfiguration.certificate, clientConfiguration.key, clientConfiguration.ca)
	if err != nil {
		return err
	}

	requested, err := cli.CollectAdapters(&clientConfiguration.adapterFlags, config)
	if err != nil {
		return err
	}

	dial, err := cli.BuildClientDialer(address, config, clientConfiguration.relays, clientConfiguration.dialTimeout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), cmd.TerminationSignals...)
	defer stop()

	var adapterSessions []*adapter.Session
	var client *session.Client
	client = session.NewClient(session.ClientConfiguration{
		Dial:           dial,
		FiberConfig:    cli.FiberConfigurationFor(config),
		MaxAttempts:    clientConfiguration.maxAttempts,
		ReconnectDelay: clientConfiguration.reconnectDelay,
		NoReconnection: clientConfiguration.noReconnect,
		OnStatus: func(status session.Status) {
			fmt.Fprintln(os.Stderr, "Status:", status)
			if status == session.StatusRunning {
				startAdapters(ctx, client.Admin(), client.Services(), requested, &adapterSessions, config)
			}
		},
	})

	err = client.Run(ctx)
	stopAdapters(&adapterSessions)
	return err
}

// startAdapters stops any adapters left running from a prior connection (on
// reconnect), starts the configuration-gated session-wide services, and runs
// every requested adapter against the freshly connected admin endpoint and
// service manager.
func startAdapters(ctx context.Context, admin *control.Endpoint, services *registry.Manager, requested []adapter.Adapter, sessions *[]*adapter.Session, config *ssf.Configuration) {
	stopAdapters(sessions)
	cli.StartConfiguredServices(services, config)
	for _, a := range requested {
		s, err := adapter.Run(ctx, admin, services, a)
		if err != nil {
			cmd.Warning(fmt.Sprintf("unable to start adapter: %v", err))
			continue
		}
		*sessions = append(*sessions, s)
	}
}

func stopAdapters(sessions *[]*adapter.Session) {
	for _, s := range *sessions {
		s.Stop()
	}
	*sessions = nil
}
