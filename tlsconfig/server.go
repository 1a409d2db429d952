package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"

	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/interfaces"
	"github.com/ruteri/ethsigner/secrets"
)

// ServerSettings is what the runner needs to bind its listener.
// TLSConfig returns nil for a cleartext listener.
type ServerSettings interface {
	ListenEndpoint() config.Endpoint
	TLSConfig() *tls.Config
}

// ServerOptions is a cleartext listener.
type ServerOptions struct {
	Endpoint config.Endpoint
}

func (o ServerOptions) ListenEndpoint() config.Endpoint { return o.Endpoint }
func (o ServerOptions) TLSConfig() *tls.Config          { return nil }

// ErrNoServerIdentity is returned by WithClientAuth for options that did not
// come from WithIdentity.
var ErrNoServerIdentity = errors.New("no server identity installed")

// SecuredServerOptions is a TLS listener with a server identity installed.
type SecuredServerOptions struct {
	endpoint   config.Endpoint
	tlsConfig  *tls.Config
	clientAuth bool
}

func (o SecuredServerOptions) ListenEndpoint() config.Endpoint { return o.endpoint }

// TLSConfig returns a copy of the listener's TLS configuration.
func (o SecuredServerOptions) TLSConfig() *tls.Config { return o.tlsConfig.Clone() }

// ClientAuthRequired reports whether WithClientAuth has been applied.
func (o SecuredServerOptions) ClientAuthRequired() bool { return o.clientAuth }

// WithIdentity loads the server key store and returns TLS enabled options.
func WithIdentity(opts ServerOptions, tlsOpts config.TLSOptions, load secrets.Loader) (SecuredServerOptions, error) {
	certificate, err := LoadKeyStore(config.PkcsStoreConfig{
		StoreFile:    tlsOpts.KeyStoreFile,
		PasswordFile: tlsOpts.KeyStorePasswordFile,
	}, load)
	if err != nil {
		return SecuredServerOptions{}, identityError(err)
	}

	return SecuredServerOptions{
		endpoint: opts.Endpoint,
		tlsConfig: &tls.Config{
			Certificates: []tls.Certificate{certificate},
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}

// WithClientAuth makes client certificates mandatory. roots are the anchors
// for CA authorised clients; nil selects the system pool. The allow-list is
// parsed here, so a malformed file fails before the server binds.
func WithClientAuth(opts SecuredServerOptions, constraints config.ClientAuthConstraints, roots *x509.CertPool) (SecuredServerOptions, error) {
	if opts.tlsConfig == nil {
		return SecuredServerOptions{}, interfaces.NewInitializationError("client authentication requires a server identity", ErrNoServerIdentity)
	}

	known := KnownClients{}
	if constraints.KnownClientsFile != "" {
		var err error
		known, err = LoadKnownClients(constraints.KnownClientsFile)
		switch {
		case errors.Is(err, ErrMalformedFingerprint):
			return SecuredServerOptions{}, &interfaces.InitializationError{
				Kind:    ErrMalformedFingerprint,
				Message: ErrMalformedFingerprint.Error(),
				Err:     err,
			}
		case err != nil:
			return SecuredServerOptions{}, interfaces.NewInitializationError("failed to load known clients file", err)
		}
	}

	verifier := &clientVerifier{known: known, allowCA: constraints.AllowCAClients, roots: roots}

	tlsConfig := opts.tlsConfig.Clone()
	tlsConfig.ClientAuth = tls.RequireAnyClientCert
	tlsConfig.VerifyPeerCertificate = verifier.verifyPeerCertificate

	return SecuredServerOptions{
		endpoint:   opts.endpoint,
		tlsConfig:  tlsConfig,
		clientAuth: true,
	}, nil
}

// BuildServerOptions runs the inbound pipeline for cfg. TLS is enabled only
// when cfg.TLS is set.
func BuildServerOptions(cfg config.Config, load secrets.Loader) (ServerSettings, error) {
	plain := ServerOptions{Endpoint: cfg.ListenEndpoint}
	if cfg.TLS == nil {
		return plain, nil
	}

	secured, err := WithIdentity(plain, *cfg.TLS, load)
	if err != nil {
		return nil, err
	}
	if cfg.TLS.ClientAuth == nil {
		return secured, nil
	}
	return WithClientAuth(secured, *cfg.TLS.ClientAuth, nil)
}

// identityError keeps missing and unreadable files distinguishable from
// every other key store failure.
func identityError(err error) error {
	var fileErr *secrets.FileError
	if errors.As(err, &fileErr) && fileErr.Kind != secrets.ErrSecretRead {
		return &interfaces.InitializationError{Kind: fileErr.Kind, Message: fileErr.Error(), Err: fileErr.Err}
	}
	return interfaces.NewInitializationError("failed to load TLS files", err)
}
