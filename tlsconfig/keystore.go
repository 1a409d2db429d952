package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/ruteri/ethsigner/config"
	"github.com/ruteri/ethsigner/cryptoutils"
	"github.com/ruteri/ethsigner/secrets"
	"software.sslmate.com/src/go-pkcs12"
)

// LoadKeyStore decodes a password protected PKCS#12 key store holding a
// private key, its certificate and optionally the issuing chain.
func LoadKeyStore(store config.PkcsStoreConfig, load secrets.Loader) (tls.Certificate, error) {
	data, password, err := readStore(store, load)
	if err != nil {
		return tls.Certificate{}, err
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode key store %s: %w", store.StoreFile, err)
	}
	return cryptoutils.TLSCertificate(leaf, key, chain...), nil
}

// LoadTrustStore decodes a PKCS#12 trust store into a certificate pool. A
// key-store style container is accepted too; its certificates become anchors.
func LoadTrustStore(store config.PkcsStoreConfig, load secrets.Loader) (*x509.CertPool, error) {
	data, password, err := readStore(store, load)
	if err != nil {
		return nil, err
	}

	certs, err := pkcs12.DecodeTrustStore(data, password)
	if err != nil {
		_, leaf, chain, chainErr := pkcs12.DecodeChain(data, password)
		if chainErr != nil {
			return nil, fmt.Errorf("failed to decode trust store %s: %w", store.StoreFile, err)
		}
		certs = append([]*x509.Certificate{leaf}, chain...)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("trust store %s contains no certificates", store.StoreFile)
	}

	pool := x509.NewCertPool()
	for _, cert := range certs {
		pool.AddCert(cert)
	}
	return pool, nil
}

func readStore(store config.PkcsStoreConfig, load secrets.Loader) ([]byte, string, error) {
	if store.StoreFile == "" {
		return nil, "", errors.New("no store file configured")
	}
	data, err := secrets.ReadFile(store.StoreFile)
	if err != nil {
		return nil, "", err
	}
	password, err := load(store.PasswordFile)
	if err != nil {
		return nil, "", err
	}
	return data, password, nil
}
