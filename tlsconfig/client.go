package tlsconfig

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/interfaces"
	"github.com/ruteri/ethsigner/secrets"
)

// ClientOptions describes the connection to the downstream node.
type ClientOptions struct {
	Endpoint config.Endpoint
	Timeout  time.Duration

	tlsConfig *tls.Config
}

// TLSEnabled reports whether the downstream connection uses TLS.
func (o ClientOptions) TLSEnabled() bool { return o.tlsConfig != nil }

// TLSConfig returns a copy of the client TLS configuration, or nil.
func (o ClientOptions) TLSConfig() *tls.Config { return o.tlsConfig.Clone() }

// URL is the downstream base URL.
func (o ClientOptions) URL() string {
	if o.TLSEnabled() {
		return "https://" + o.Endpoint.String()
	}
	return "http://" + o.Endpoint.String()
}

// HTTPClient returns a client bound by Timeout that speaks TLS when enabled.
func (o ClientOptions) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = o.TLSConfig()
	return &http.Client{Transport: transport, Timeout: o.Timeout}
}

// BuildClientOptions enables TLS when a trust store or a client certificate is
// configured. Without a trust store the system roots are used.
func BuildClientOptions(cfg config.Config, load secrets.Loader) (ClientOptions, error) {
	opts := ClientOptions{
		Endpoint: cfg.DownstreamEndpoint,
		Timeout:  cfg.DownstreamRequestTimeout,
	}
	if cfg.Web3TrustStore == nil && cfg.ClientCertificate == nil {
		return opts, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.Web3TrustStore != nil {
		roots, err := LoadTrustStore(*cfg.Web3TrustStore, load)
		if err != nil {
			return ClientOptions{}, interfaces.NewInitializationError("failed to load web3 trust store", err)
		}
		tlsConfig.RootCAs = roots
	}

	if cfg.ClientCertificate != nil {
		certificate, err := LoadKeyStore(*cfg.ClientCertificate, load)
		if err != nil {
			return ClientOptions{}, interfaces.NewInitializationError("failed to load client certificate", err)
		}
		tlsConfig.Certificates = []tls.Certificate{certificate}
	}

	opts.tlsConfig = tlsConfig
	return opts, nil
}
