package cli

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/ssfcore/ssf/pkg/carrier/sshrelay"
)

// BuildRelayChain parses every "[user@]host[:port]" hop in specs into an
// sshrelay.Relay stack, each hop's Command set to tunnel onward to the next
// hop's address (or, for the last hop, to finalAddress, the actual carrier
// endpoint), the "nc"-style circuit-layer relaying described in spec.md §6.
// An empty specs returns a nil chain, meaning no relaying is configured.
func BuildRelayChain(specs []string, finalAddress string, timeout time.Duration) ([]sshrelay.Relay, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	relays := make([]sshrelay.Relay, len(specs))
	for i, raw := range specs {
		relay, err := ParseRelaySpecification(raw, "", timeout)
		if err != nil {
			return nil, err
		}
		relays[i] = relay
	}

	for i := range relays {
		nextAddress := finalAddress
		if i+1 < len(relays) {
			nextAddress = relays[i+1].Address
		}
		host, port, err := net.SplitHostPort(nextAddress)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid next-hop address %q", nextAddress)
		}
		relays[i].Command = fmt.Sprintf("nc -q0 %s %s", host, port)
	}

	return relays, nil
}

// ParseRelaySpecification parses one `--relay` value of the form
// "[user@]host[:port]" into an sshrelay.Relay authenticated against the
// running ssh-agent, the same credential source OpenSSH itself defaults to
// when no explicit identity file is given. command is the remote command
// whose stdin/stdout carries the next hop (another relay's dial, or the
// final TLS carrier).
func ParseRelaySpecification(raw, command string, timeout time.Duration) (sshrelay.Relay, error) {
	user := ""
	hostPort := raw
	if at := strings.IndexByte(raw, '@'); at >= 0 {
		user, hostPort = raw[:at], raw[at+1:]
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	if !strings.Contains(hostPort, ":") {
		hostPort = net.JoinHostPort(hostPort, "22")
	}

	clientConfig, err := agentClientConfig(user)
	if err != nil {
		return sshrelay.Relay{}, err
	}

	return sshrelay.Relay{
		Address:      hostPort,
		ClientConfig: clientConfig,
		Command:      command,
		Timeout:      timeout,
	}, nil
}

// agentClientConfig builds an ssh.ClientConfig authenticating as user via
// whatever identities the running ssh-agent offers, the conventional
// default credential source for a relay hop that doesn't supply its own
// key material.
func agentClientConfig(user string) (*ssh.ClientConfig, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, errors.New("ssh relay requires a running ssh-agent (SSH_AUTH_SOCK is not set)")
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to ssh-agent")
	}

	agentClient := agent.NewClient(conn)
	return &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}, nil
}
