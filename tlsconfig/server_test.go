package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/cryptoutils"
	"github.com/ruteri/ethsigner/interfaces"
	"github.com/ruteri/ethsigner/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverFixture struct {
	pki      *testPKI
	dir      string
	tls      config.TLSOptions
	identity SecuredServerOptions
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	pki := newTestPKI(t)
	dir := t.TempDir()

	cert, key := pki.issue(t, "localhost", x509.ExtKeyUsageServerAuth)
	store := writeKeyStore(t, dir, "server", key, cert, []*x509.Certificate{pki.caCert}, "server-pass")
	tlsOpts := config.TLSOptions{KeyStoreFile: store.StoreFile, KeyStorePasswordFile: store.PasswordFile}

	identity, err := WithIdentity(ServerOptions{Endpoint: config.Endpoint{Host: "127.0.0.1", Port: 8545}}, tlsOpts, secrets.LoadSecret)
	require.NoError(t, err)

	return &serverFixture{pki: pki, dir: dir, tls: tlsOpts, identity: identity}
}

func (f *serverFixture) clientConfig(certs ...tls.Certificate) *tls.Config {
	return &tls.Config{
		RootCAs:      f.pki.pool(),
		ServerName:   "localhost",
		Certificates: certs,
		MinVersion:   tls.VersionTLS12,
	}
}

func (f *serverFixture) knownClientsFile(t *testing.T, entries map[string]*x509.Certificate) string {
	t.Helper()
	content := "# name fingerprint\n"
	for name, cert := range entries {
		content += fmt.Sprintf("%s %s\n", name, cryptoutils.CertificateFingerprint(cert))
	}
	return writeFile(t, f.dir, "known_clients", []byte(content))
}

func TestWithIdentity(t *testing.T) {
	f := newServerFixture(t)

	assert.Equal(t, config.Endpoint{Host: "127.0.0.1", Port: 8545}, f.identity.ListenEndpoint())
	assert.False(t, f.identity.ClientAuthRequired())
	require.Len(t, f.identity.TLSConfig().Certificates, 1)
	assert.Len(t, f.identity.TLSConfig().Certificates[0].Certificate, 2, "chain should be kept")

	// No client certificate is needed without client auth.
	require.NoError(t, handshake(t, f.identity.TLSConfig(), f.clientConfig()))
}

func TestWithIdentity_Failures(t *testing.T) {
	f := newServerFixture(t)
	missing := filepath.Join(f.dir, "missing.p12")

	t.Run("key store not found", func(t *testing.T) {
		opts := f.tls
		opts.KeyStoreFile = missing
		_, err := WithIdentity(ServerOptions{}, opts, secrets.LoadSecret)

		var initErr *interfaces.InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, fmt.Sprintf("requested file %s does not exist at specified location", missing), initErr.Message)
		assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
	})

	t.Run("password file not found", func(t *testing.T) {
		opts := f.tls
		opts.KeyStorePasswordFile = missing
		_, err := WithIdentity(ServerOptions{}, opts, secrets.LoadSecret)

		var initErr *interfaces.InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, fmt.Sprintf("requested file %s does not exist at specified location", missing), initErr.Message)
	})

	t.Run("access denied", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permission checks do not apply to root")
		}
		locked := writeFile(t, f.dir, "locked.p12", []byte("x"))
		require.NoError(t, os.Chmod(locked, 0o000))

		opts := f.tls
		opts.KeyStoreFile = locked
		_, err := WithIdentity(ServerOptions{}, opts, secrets.LoadSecret)

		var initErr *interfaces.InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, fmt.Sprintf("current user does not have permissions to access %s", locked), initErr.Message)
		assert.ErrorIs(t, err, secrets.ErrSecretAccessDenied)
	})

	t.Run("password file access denied", func(t *testing.T) {
		denied := func(path string) (string, error) {
			return "", &secrets.FileError{Path: path, Kind: secrets.ErrSecretAccessDenied, Err: os.ErrPermission}
		}
		_, err := WithIdentity(ServerOptions{}, f.tls, denied)

		var initErr *interfaces.InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, fmt.Sprintf("current user does not have permissions to access %s", f.tls.KeyStorePasswordFile), initErr.Message)
		assert.ErrorIs(t, err, secrets.ErrSecretAccessDenied)
		assert.NotErrorIs(t, err, secrets.ErrSecretNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		opts := f.tls
		opts.KeyStorePasswordFile = writeFile(t, f.dir, "wrong.pass", []byte("server-pass\n"))
		_, err := WithIdentity(ServerOptions{}, opts, secrets.LoadSecret)

		var initErr *interfaces.InitializationError
		require.True(t, errors.As(err, &initErr))
		assert.Equal(t, "failed to load TLS files", initErr.Message)
	})

	t.Run("corrupt key store", func(t *testing.T) {
		opts := f.tls
		opts.KeyStoreFile = writeFile(t, f.dir, "corrupt.p12", []byte("not pkcs12"))
		_, err := WithIdentity(ServerOptions{}, opts, secrets.LoadSecret)
		assert.ErrorContains(t, err, "failed to load TLS files")
	})
}

func TestWithClientAuth_Policy(t *testing.T) {
	f := newServerFixture(t)

	knownCert, knownKey := selfSigned(t, "node1")
	known := cryptoutils.TLSCertificate(knownCert, knownKey)

	strangerCert, strangerKey := selfSigned(t, "stranger")
	stranger := cryptoutils.TLSCertificate(strangerCert, strangerKey)

	caClientCert, caClientKey := f.pki.issue(t, "ca-client", x509.ExtKeyUsageClientAuth)
	caClient := cryptoutils.TLSCertificate(caClientCert, caClientKey)

	allowList := f.knownClientsFile(t, map[string]*x509.Certificate{"node1": knownCert})
	wrongName := f.knownClientsFile(t, map[string]*x509.Certificate{"other-name": knownCert})

	tests := []struct {
		name        string
		constraints config.ClientAuthConstraints
		client      []tls.Certificate
		accepted    bool
	}{
		{name: "known client", constraints: config.ClientAuthConstraints{KnownClientsFile: allowList}, client: []tls.Certificate{known}, accepted: true},
		{name: "known fingerprint under another name", constraints: config.ClientAuthConstraints{KnownClientsFile: wrongName}, client: []tls.Certificate{known}},
		{name: "unknown client", constraints: config.ClientAuthConstraints{KnownClientsFile: allowList}, client: []tls.Certificate{stranger}},
		{name: "no client certificate", constraints: config.ClientAuthConstraints{KnownClientsFile: allowList}},
		{name: "ca client allowed", constraints: config.ClientAuthConstraints{AllowCAClients: true}, client: []tls.Certificate{caClient}, accepted: true},
		{name: "ca client not allowed", constraints: config.ClientAuthConstraints{KnownClientsFile: allowList}, client: []tls.Certificate{caClient}},
		{name: "self signed with ca allowed", constraints: config.ClientAuthConstraints{AllowCAClients: true}, client: []tls.Certificate{stranger}},
		{name: "no allow-list and no ca", constraints: config.ClientAuthConstraints{}, client: []tls.Certificate{known}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secured, err := WithClientAuth(f.identity, tt.constraints, f.pki.pool())
			require.NoError(t, err)
			assert.True(t, secured.ClientAuthRequired())
			assert.Equal(t, tls.RequireAnyClientCert, secured.TLSConfig().ClientAuth)

			err = handshake(t, secured.TLSConfig(), f.clientConfig(tt.client...))
			if tt.accepted {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestWithClientAuth_RequiresIdentity(t *testing.T) {
	_, err := WithClientAuth(SecuredServerOptions{}, config.ClientAuthConstraints{AllowCAClients: true}, nil)
	require.Error(t, err)
	assert.True(t, interfaces.IsInitializationError(err))
	assert.ErrorIs(t, err, ErrNoServerIdentity)
}

func TestWithClientAuth_MalformedAllowList(t *testing.T) {
	f := newServerFixture(t)
	path := writeFile(t, f.dir, "known_clients", []byte("node1 not-a-fingerprint\n"))

	_, err := WithClientAuth(f.identity, config.ClientAuthConstraints{KnownClientsFile: path}, nil)

	var initErr *interfaces.InitializationError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, "illegally formatted client fingerprint file", initErr.Message)
	assert.ErrorIs(t, err, ErrMalformedFingerprint)
}

func TestWithClientAuth_DoesNotMutateInput(t *testing.T) {
	f := newServerFixture(t)

	_, err := WithClientAuth(f.identity, config.ClientAuthConstraints{AllowCAClients: true}, nil)
	require.NoError(t, err)

	assert.False(t, f.identity.ClientAuthRequired())
	assert.Equal(t, tls.NoClientCert, f.identity.TLSConfig().ClientAuth)
	assert.Nil(t, f.identity.TLSConfig().VerifyPeerCertificate)

	leaked := f.identity.TLSConfig()
	leaked.MinVersion = tls.VersionTLS10
	assert.Equal(t, uint16(tls.VersionTLS12), f.identity.TLSConfig().MinVersion)
}

func TestBuildServerOptions(t *testing.T) {
	f := newServerFixture(t)
	listen := config.Endpoint{Host: "127.0.0.1", Port: 9000}

	t.Run("cleartext without tls settings", func(t *testing.T) {
		opts, err := BuildServerOptions(config.Config{ListenEndpoint: listen}, secrets.LoadSecret)
		require.NoError(t, err)
		assert.Nil(t, opts.TLSConfig())
		assert.Equal(t, listen, opts.ListenEndpoint())
	})

	t.Run("identity only", func(t *testing.T) {
		tlsOpts := f.tls
		opts, err := BuildServerOptions(config.Config{ListenEndpoint: listen, TLS: &tlsOpts}, secrets.LoadSecret)
		require.NoError(t, err)
		secured, ok := opts.(SecuredServerOptions)
		require.True(t, ok)
		assert.False(t, secured.ClientAuthRequired())
	})

	t.Run("identity and client auth", func(t *testing.T) {
		tlsOpts := f.tls
		tlsOpts.ClientAuth = &config.ClientAuthConstraints{}
		opts, err := BuildServerOptions(config.Config{ListenEndpoint: listen, TLS: &tlsOpts}, secrets.LoadSecret)
		require.NoError(t, err)
		assert.Equal(t, tls.RequireAnyClientCert, opts.TLSConfig().ClientAuth)
	})

	t.Run("identity failure stops the pipeline", func(t *testing.T) {
		tlsOpts := f.tls
		tlsOpts.KeyStoreFile = filepath.Join(f.dir, "missing.p12")
		tlsOpts.ClientAuth = &config.ClientAuthConstraints{KnownClientsFile: writeFile(t, f.dir, "bad", []byte("x y"))}
		_, err := BuildServerOptions(config.Config{ListenEndpoint: listen, TLS: &tlsOpts}, secrets.LoadSecret)
		assert.ErrorIs(t, err, secrets.ErrSecretNotFound)
		assert.NotErrorIs(t, err, ErrMalformedFingerprint)
	})
}
