package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/cryptoutils"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

type testPKI struct {
	caCert *x509.Certificate
	caKey  *ecdsa.PrivateKey
}

func newTestPKI(t *testing.T) *testPKI {
	t.Helper()
	cert, key, err := cryptoutils.GenerateCertificate(cryptoutils.CertificateRequest{CommonName: "test-ca", IsCA: true})
	require.NoError(t, err)
	return &testPKI{caCert: cert, caKey: key}
}

func (p *testPKI) pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(p.caCert)
	return pool
}

func (p *testPKI) issue(t *testing.T, commonName string, usage x509.ExtKeyUsage) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	cert, key, err := cryptoutils.GenerateCertificate(cryptoutils.CertificateRequest{
		CommonName:  commonName,
		ExtKeyUsage: []x509.ExtKeyUsage{usage},
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1)},
		Parent:      p.caCert,
		ParentKey:   p.caKey,
	})
	require.NoError(t, err)
	return cert, key
}

func selfSigned(t *testing.T, commonName string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	cert, key, err := cryptoutils.GenerateCertificate(cryptoutils.CertificateRequest{
		CommonName:  commonName,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	require.NoError(t, err)
	return cert, key
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func writeKeyStore(t *testing.T, dir, name string, key *ecdsa.PrivateKey, cert *x509.Certificate, chain []*x509.Certificate, password string) config.PkcsStoreConfig {
	t.Helper()
	data, err := pkcs12.Modern.Encode(key, cert, chain, password)
	require.NoError(t, err)
	return config.PkcsStoreConfig{
		StoreFile:    writeFile(t, dir, name+".p12", data),
		PasswordFile: writeFile(t, dir, name+".pass", []byte(password)),
	}
}

func writeTrustStore(t *testing.T, dir, name string, certs []*x509.Certificate, password string) config.PkcsStoreConfig {
	t.Helper()
	data, err := pkcs12.Modern.EncodeTrustStore(certs, password)
	require.NoError(t, err)
	return config.PkcsStoreConfig{
		StoreFile:    writeFile(t, dir, name+".p12", data),
		PasswordFile: writeFile(t, dir, name+".pass", []byte(password)),
	}
}

// handshake runs a TLS handshake over loopback TCP and returns the server
// side result.
func handshake(t *testing.T, serverConfig, clientConfig *tls.Config) error {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	errc := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			errc <- err
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

		srv := tls.Server(conn, serverConfig)
		err = srv.Handshake()
		if err == nil {
			_, err = srv.Write([]byte("ok"))
		}
		errc <- err
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))

	client := tls.Client(conn, clientConfig)
	if err := client.Handshake(); err == nil {
		_, _ = client.Read(make([]byte, 2))
	}
	_ = client.Close()
	return <-errc
}
