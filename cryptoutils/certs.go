package cryptoutils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"time"
)

// CertificateRequest describes a certificate issued by GenerateCertificate.
type CertificateRequest struct {
	CommonName  string
	IsCA        bool
	ExtKeyUsage []x509.ExtKeyUsage
	DNSNames    []string
	IPAddresses []net.IP

	// Parent and ParentKey sign the certificate; it is self-signed when nil.
	Parent    *x509.Certificate
	ParentKey crypto.Signer

	// Validity defaults to 24 hours.
	Validity time.Duration
}

// GenerateCertificate creates a fresh P-256 key and a certificate for it.
// Used to build throwaway PKIs for local TLS endpoints and tests.
func GenerateCertificate(req CertificateRequest) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}

	validity := req.Validity
	if validity == 0 {
		validity = 24 * time.Hour
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: req.CommonName},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           req.ExtKeyUsage,
		BasicConstraintsValid: true,
		IsCA:                  req.IsCA,
		DNSNames:              req.DNSNames,
		IPAddresses:           req.IPAddresses,
	}
	if req.IsCA {
		template.KeyUsage |= x509.KeyUsageCertSign
	}

	parent, parentKey := template, crypto.Signer(privateKey)
	if req.Parent != nil {
		if req.ParentKey == nil {
			return nil, nil, errors.New("parent certificate given without parent key")
		}
		parent, parentKey = req.Parent, req.ParentKey
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, parent, privateKey.Public(), parentKey)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, nil, err
	}
	return cert, privateKey, nil
}

// TLSCertificate assembles a tls.Certificate from a leaf, its key and optional chain.
func TLSCertificate(leaf *x509.Certificate, key crypto.PrivateKey, chain ...*x509.Certificate) tls.Certificate {
	certificate := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, c := range chain {
		certificate.Certificate = append(certificate.Certificate, c.Raw)
	}
	return certificate
}
