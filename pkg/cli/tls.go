// Package cli holds the CLI-boundary glue shared by cmd/ssf and
// cmd/ssf-agent: carrier credential loading (including passphrase-protected
// keys, a Non-goal for pkg/fiber/pkg/control/pkg/session themselves), SSH
// relay-chain construction, and starting the configuration-gated
// session-wide microservices neither a `-L`-style flag nor the core
// multiplexer know about.
package cli

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io/ioutil"

	"github.com/mutagen-io/gopass"
	"github.com/pkg/errors"

	"github.com/ssfcore/ssf/pkg/configuration/ssf"
)

// LoadCertificate reads a certificate/private-key pair, prompting for a
// passphrase via gopass if the key is PEM-encrypted. TLS config construction
// itself stays in pkg/carrier/tcptls; this is the CLI-only passphrase
// prompting step that package deliberately omits (pkg/fiber, pkg/control,
// and pkg/session never see raw key material, only an already-built
// *tls.Config).
func LoadCertificate(certificatePath, keyPath string) (tls.Certificate, error) {
	certificateBytes, err := ioutil.ReadFile(certificatePath)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "unable to read certificate")
	}

	keyBytes, err := ioutil.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "unable to read private key")
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return tls.Certificate{}, errors.New("unable to decode private key PEM block")
	}

	if x509.IsEncryptedPEMBlock(block) {
		fmt.Print("Enter passphrase for " + keyPath + ": ")
		passphrase, err := gopass.GetPasswd()
		if err != nil {
			return tls.Certificate{}, errors.Wrap(err, "unable to read passphrase")
		}

		decrypted, err := x509.DecryptPEMBlock(block, passphrase)
		if err != nil {
			return tls.Certificate{}, errors.Wrap(err, "unable to decrypt private key")
		}
		keyBytes = pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: decrypted})
	}

	certificate, err := tls.X509KeyPair(certificateBytes, keyBytes)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "unable to parse certificate/key pair")
	}
	return certificate, nil
}

// LoadTLSConfig builds a *tls.Config for the carrier connection from a
// CarrierConfiguration, handling passphrase-protected keys itself and
// building the CA pool tcptls.LoadTLSConfig would otherwise build from the
// same raw files. serverName is used for client-side hostname verification
// and ignored when configuring a listener. A CarrierConfiguration with no
// certificate path configured returns a nil *tls.Config, meaning the
// carrier should be plain TCP.
func LoadTLSConfig(carrier ssf.CarrierConfiguration, serverName string) (*tls.Config, error) {
	if carrier.CertificatePath == "" {
		return nil, nil
	}

	certificate, err := LoadCertificate(carrier.CertificatePath, carrier.KeyPath)
	if err != nil {
		return nil, err
	}

	caBytes, err := ioutil.ReadFile(carrier.CertificateAuthorityPath)
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
