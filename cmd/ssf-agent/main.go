// Command ssf-agent is the background counterpart to ssf: it holds a
// single long-running client or server session and exposes its status and
// a shutdown switch over local IPC via pkg/daemon, so a short-lived ssf
// invocation can query or stop it without staying attached to its
// terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/ssfcore/ssf/cmd"
	"github.com/ssfcore/ssf/pkg/adapter"
	"github.com/ssfcore/ssf/pkg/cli"
	"github.com/ssfcore/ssf/pkg/configuration/ssf"
	"github.com/ssfcore/ssf/pkg/control"
	"github.com/ssfcore/ssf/pkg/daemon"
	"github.com/ssfcore/ssf/pkg/profile"
	"github.com/ssfcore/ssf/pkg/registry"
	"github.com/ssfcore/ssf/pkg/session"
)

var agentConfiguration struct {
	mode           string
	address        string
	listen         string
	configPath     string
	certificate    string
	key            string
	ca             string
	relays         []string
	dialTimeout    time.Duration
	reconnectDelay time.Duration
	profileName    string
	adapterFlags   cli.AdapterFlags
}

func main() {
	flags := pflag.NewFlagSet("ssf-agent", pflag.ContinueOnError)
	flags.StringVar(&agentConfiguration.mode, "mode", "client", "Session mode: client or server")
	flags.StringVar(&agentConfiguration.address, "address", "", "Carrier address to dial (client mode)")
	flags.StringVar(&agentConfiguration.listen, "listen", ":8022", "Address to listen on (server mode)")
	flags.StringVarP(&agentConfiguration.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&agentConfiguration.certificate, "certificate", "", "Override the configured carrier certificate path")
	flags.StringVar(&agentConfiguration.key, "key", "", "Override the configured carrier key path")
	flags.StringVar(&agentConfiguration.ca, "ca", "", "Override the configured carrier CA certificate path")
	flags.StringArrayVar(&agentConfiguration.relays, "relay", nil, "SSH relay hop ([user@]host[:port]), repeatable, closest hop first")
	flags.DurationVar(&agentConfiguration.dialTimeout, "timeout", 10*time.Second, "Timeout for the carrier dial and each SSH relay hop")
	flags.DurationVar(&agentConfiguration.reconnectDelay, "reconnect-delay", 5*time.Second, "Delay between reconnection attempts (client mode)")
	flags.StringVar(&agentConfiguration.profileName, "profile", "", "Base name for a CPU/heap profile written alongside the agent's working directory")
	cli.RegisterAdapterFlags(flags, &agentConfiguration.adapterFlags)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		cmd.Fatal(err)
	}

	if agentConfiguration.profileName != "" {
		prof, err := profile.New(agentConfiguration.profileName)
		if err != nil {
			cmd.Fatal(err)
		}
		defer prof.Finalize()
	}

	if err := run(); err != nil {
		cmd.Fatal(err)
	}
}

func run() error {
	config, err := cli.LoadConfiguration(agentConfiguration.configPath,
		agentConfiguration.certificate, agentConfiguration.key, agentConfiguration.ca)
	if err != nil {
		return err
	}

	requested, err := cli.CollectAdapters(&agentConfiguration.adapterFlags, config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), cmd.TerminationSignals...)
	defer stop()

	var provider daemon.StatusProvider
	switch agentConfiguration.mode {
	case "client":
		provider, err = runClient(ctx, config, requested)
	case "server":
		provider, err = runServer(ctx, config, requested)
	default:
		return fmt.Errorf("unknown mode %q: expected client or server", agentConfiguration.mode)
	}
	if err != nil {
		return err
	}

	ipc, err := daemon.NewServer(provider, nil)
	if err != nil {
		return err
	}
	go func() {
		if err := ipc.Run(); err != nil {
			cmd.Warning(fmt.Sprintf("daemon ipc server stopped: %v", err))
		}
	}()
	defer ipc.Stop()

	<-ctx.Done()
	provider.Shutdown()
	return nil
}

// runClient starts the client session in the background (its Run loop keeps
// going on its own goroutine) and returns it as the daemon.StatusProvider.
func runClient(ctx context.Context, config *ssf.Configuration, requested []adapter.Adapter) (daemon.StatusProvider, error) {
	if agentConfiguration.address == "" {
		return nil, fmt.Errorf("client mode requires --address")
	}

	dial, err := cli.BuildClientDialer(agentConfiguration.address, config, agentConfiguration.relays, agentConfiguration.dialTimeout)
	if err != nil {
		return nil, err
	}

	var adapterSessions []*adapter.Session
	var client *session.Client
	client = session.NewClient(session.ClientConfiguration{
		Dial:           dial,
		FiberConfig:    cli.FiberConfigurationFor(config),
		ReconnectDelay: agentConfiguration.reconnectDelay,
		OnStatus: func(status session.Status) {
			if status == session.StatusRunning {
				for _, s := range adapterSessions {
					s.Stop()
				}
				adapterSessions = nil
				cli.StartConfiguredServices(client.Services(), config)
				for _, a := range requested {
					s, err := adapter.Run(ctx, client.Admin(), client.Services(), a)
					if err != nil {
						cmd.Warning(fmt.Sprintf("unable to start adapter: %v", err))
						continue
					}
					adapterSessions = append(adapterSessions, s)
				}
			}
		},
	})

	go client.Run(ctx)
	return client, nil
}

// runServer starts the accept loop in the background and returns it as the
// daemon.StatusProvider.
func runServer(ctx context.Context, config *ssf.Configuration, requested []adapter.Adapter) (daemon.StatusProvider, error) {
	listener, err := cli.BuildServerListener(agentConfiguration.listen, config)
	if err != nil {
		return nil, err
	}

	server := session.NewServer(session.ServerConfiguration{
		Accept: func(ctx context.Context) (io.ReadWriteCloser, error) {
			return listener.Accept(ctx)
		},
		FiberConfig: cli.FiberConfigurationFor(config),
		OnConnected: func(admin *control.Endpoint, services *registry.Manager) {
			cli.StartConfiguredServices(services, config)
			for _, a := range requested {
				if _, err := adapter.Run(ctx, admin, services, a); err != nil {
					cmd.Warning(fmt.Sprintf("unable to start adapter: %v", err))
				}
			}
		},
	})

	go func() {
		server.Run(ctx)
		listener.Close()
	}()
	return server, nil
}
