package tlsconfig

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/ruteri/ethsigner/cryptoutils"
)

var (
	errNoClientCertificate = errors.New("client did not present a certificate")
	errClientNotAllowed    = errors.New("client certificate is not in the known clients list")
)

// clientVerifier decides whether a client certificate chain is trusted.
// A chain passes when its leaf is in the allow-list under its own common
// name, or, with allowCA set, when it verifies against roots for client auth.
type clientVerifier struct {
	known   KnownClients
	allowCA bool

	// roots are the CA anchors; nil selects the system pool.
	roots *x509.CertPool
}

func (v *clientVerifier) verifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errNoClientCertificate
	}

	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("invalid client certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	leaf := certs[0]

	if v.known.Allows(cryptoutils.CertificateFingerprint(leaf), leaf.Subject.CommonName) {
		return nil
	}
	if !v.allowCA {
		return errClientNotAllowed
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}
	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}); err != nil {
		return fmt.Errorf("client certificate not trusted: %w", err)
	}
	return nil
}
