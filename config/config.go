// Package config holds the fully parsed, immutable settings of an ethsigner process.
//
// A Config is built once at startup, either from command line flags or from a
// YAML file (see LoadFile), validated with Validate, and then only read.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"time"
)

// Endpoint is a host and port pair.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Equal reports whether both endpoints name the same host and port.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.Host == other.Host && e.Port == other.Port
}

// PkcsStoreConfig locates a password protected PKCS#12 container.
type PkcsStoreConfig struct {
	StoreFile    string
	PasswordFile string
}

// ClientAuthConstraints restricts which client certificates the server accepts.
type ClientAuthConstraints struct {
	// KnownClientsFile lists "<name> <sha256 fingerprint>" entries. Optional.
	KnownClientsFile string

	// AllowCAClients also accepts clients whose chain verifies against the system roots.
	AllowCAClients bool
}

// TLSOptions configures the inbound server socket.
type TLSOptions struct {
	KeyStoreFile         string
	KeyStorePasswordFile string

	// ClientAuth is nil when clients are not authenticated.
	ClientAuth *ClientAuthConstraints
}

// Config is the complete set of user supplied settings.
type Config struct {
	ListenEndpoint     Endpoint
	DownstreamEndpoint Endpoint

	// DownstreamRequestTimeout bounds every request forwarded downstream.
	DownstreamRequestTimeout time.Duration

	ChainID *big.Int

	// DataPath is where runtime files (ports file) are written. Optional.
	DataPath string

	// TLS enables TLS on the listening socket when set.
	TLS *TLSOptions

	// Web3TrustStore replaces the system trust anchors for the downstream connection.
	Web3TrustStore *PkcsStoreConfig

	// ClientCertificate is presented to the downstream peer.
	ClientCertificate *PkcsStoreConfig

	Signer SignerConfig
}

// Validate checks that every required field is present. It does not touch the
// filesystem; loadability of referenced files is checked when they are used.
func (c *Config) Validate() error {
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return errors.New("chain-id must be a positive integer")
	}
	if c.ListenEndpoint.Host == "" {
		return errors.New("http-listen-host is required")
	}
	if c.DownstreamEndpoint.Host == "" {
		return errors.New("downstream-http-host is required")
	}
	if c.DownstreamEndpoint.Port == 0 {
		return errors.New("downstream-http-port is required")
	}
	if c.TLS != nil {
		if c.TLS.KeyStoreFile == "" || c.TLS.KeyStorePasswordFile == "" {
			return errors.New("tls-keystore-file and tls-keystore-password-file must both be set")
		}
	}
	if err := validateStore("downstream-http-tls-truststore", c.Web3TrustStore); err != nil {
		return err
	}
	if err := validateStore("downstream-http-tls-keystore", c.ClientCertificate); err != nil {
		return err
	}
	if c.Signer == nil {
		return errors.New("exactly one signer must be configured")
	}
	if err := c.Signer.Validate(); err != nil {
		return fmt.Errorf("invalid %s configuration: %w", c.Signer.Kind(), err)
	}
	return nil
}

func validateStore(name string, store *PkcsStoreConfig) error {
	if store == nil {
		return nil
	}
	if store.StoreFile == "" || store.PasswordFile == "" {
		return fmt.Errorf("%s-file and %s-password-file must both be set", name, name)
	}
	return nil
}
