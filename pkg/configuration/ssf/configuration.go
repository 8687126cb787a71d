// Package ssf defines the YAML-decoded global configuration file
// recognized by the ssf command line: exactly the "ssf.services.*" keys
// from spec.md §6, plus a "carrier" section that owns the TLS credential
// and relay-chain details the core multiplexing/session packages
// deliberately stay ignorant of.
package ssf

import (
	"os"

	"github.com/ssfcore/ssf/pkg/configuration"
	"github.com/ssfcore/ssf/pkg/encoding"
)

// ListenerConfiguration controls whether a forwarding listener bound to a
// non-loopback interface is demoted to loopback-only.
type ListenerConfiguration struct {
	// GatewayPorts allows a listener to bind non-loopback interfaces when
	// true. When false (the default), any requested bind address other
	// than loopback is silently replaced with loopback.
	GatewayPorts bool `yaml:"gatewayPorts"`
}

// FileCopyConfiguration controls the file-copy microservice pair.
type FileCopyConfiguration struct {
	// Enable gates whether the fiber-to-file and file-enquirer services are
	// started for the session.
	Enable bool `yaml:"enable"`
}

// ShellConfiguration supplies the implementation-specific process spawn
// parameters for the interactive shell microservice. Fields are passed
// through to pkg/services/shell verbatim as construction arguments.
type ShellConfiguration struct {
	// Path is the program to run in place of the platform's default shell.
	Path string `yaml:"path"`
	// Args is a space-separated argument list passed to Path.
	Args string `yaml:"args"`
	// Cwd is the working directory for spawned sessions.
	Cwd string `yaml:"cwd"`
	// EnvFile is an optional dotenv file merged into the spawned session's
	// environment.
	EnvFile string `yaml:"envFile"`
	// Cols and Rows set the initial pty window size.
	Cols int `yaml:"cols"`
	Rows int `yaml:"rows"`
}

// ServicesConfiguration groups the "ssf.services.*" keys.
type ServicesConfiguration struct {
	DatagramListener ListenerConfiguration `yaml:"datagramListener"`
	StreamListener   ListenerConfiguration `yaml:"streamListener"`
	FileCopy         FileCopyConfiguration `yaml:"fileCopy"`
	Shell            ShellConfiguration    `yaml:"shell"`
}

// CarrierConfiguration supplies the TLS credentials and SSH relay chain
// used to establish the underlying carrier connection. None of this is
// interpreted by pkg/fiber, pkg/control, or pkg/session, which only ever
// see an already-constructed fiber.Carrier; it's parsed here, at the CLI
// boundary, and used to build that carrier before a session starts.
type CarrierConfiguration struct {
	// CertificatePath and KeyPath locate the PEM-encoded TLS certificate
	// and private key used to authenticate this end of the carrier.
	CertificatePath string `yaml:"certificate"`
	KeyPath         string `yaml:"key"`
	// CertificateAuthorityPath locates a PEM bundle of certificate
	// authorities trusted for the peer's certificate.
	CertificateAuthorityPath string `yaml:"certificateAuthority"`
	// RelayChain lists intermediate SSH-reachable hosts the carrier
	// connection is chained through before reaching its final endpoint,
	// realizing spec.md §6's "chained through intermediate relays"
	// carrier instantiation.
	RelayChain []string `yaml:"relayChain"`
	// MaximumTransmissionUnit overrides pkg/fiber's default frame payload
	// bound, specified as a human-friendly byte size (e.g. "60KiB").
	MaximumTransmissionUnit configuration.ByteSize `yaml:"maximumTransmissionUnit"`
}

// Configuration is the decoded contents of the global SSF configuration
// file.
type Configuration struct {
	Services ServicesConfiguration `yaml:"services"`
	Carrier  CarrierConfiguration  `yaml:"carrier"`
}

// Load reads and decodes the configuration file at path. A missing file is
// not an error: Load returns a zero-value Configuration representing
// platform defaults, since none of spec.md §6's recognized keys are
// required.
func Load(path string) (*Configuration, error) {
	result := &Configuration{}
	if err := encoding.LoadAndUnmarshalYAML(path, result); err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, err
	}
	return result, nil
}
