package cli

import (
	"github.com/ssfcore/ssf/pkg/configuration"
	"github.com/ssfcore/ssf/pkg/configuration/ssf"
)

// LoadConfiguration loads the global configuration file (or the file at
// path, if non-empty) and applies any certificate/key/ca overrides supplied
// on the command line, shared by `ssf client`, `ssf server`, and
// `ssf-agent`.
func LoadConfiguration(path, certificate, key, ca string) (*ssf.Configuration, error) {
	if path == "" {
		var err error
		path, err = configuration.GlobalConfigurationPath()
		if err != nil {
			return nil, err
		}
	}

	config, err := ssf.Load(path)
	if err != nil {
		return nil, err
	}

	if certificate != "" {
		config.Carrier.CertificatePath = certificate
	}
	if key != "" {
		config.Carrier.KeyPath = key
	}
	if ca != "" {
		config.Carrier.CertificateAuthorityPath = ca
	}

	return config, nil
}
