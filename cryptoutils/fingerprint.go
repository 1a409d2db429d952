package cryptoutils

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// FingerprintSize is the length of a SHA-256 certificate fingerprint.
const FingerprintSize = sha256.Size

// Fingerprint is the SHA-256 digest of a certificate's DER encoding.
type Fingerprint [FingerprintSize]byte

// ErrInvalidFingerprint is returned by ParseFingerprint for malformed input.
var ErrInvalidFingerprint = errors.New("invalid certificate fingerprint")

// CertificateFingerprint computes the fingerprint of cert.
func CertificateFingerprint(cert *x509.Certificate) Fingerprint {
	return sha256.Sum256(cert.Raw)
}

// String formats the fingerprint as colon separated upper case hex, the form
// printed by `openssl x509 -fingerprint -sha256`.
func (f Fingerprint) String() string {
	var sb strings.Builder
	for i, b := range f {
		if i > 0 {
			sb.WriteByte(':')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// ParseFingerprint accepts hex with or without colon separators, in either case.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint

	clean := s
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) != FingerprintSize {
			return f, fmt.Errorf("%w: expected %d colon separated bytes, got %d", ErrInvalidFingerprint, FingerprintSize, len(parts))
		}
		for _, p := range parts {
			if len(p) != 2 {
				return f, fmt.Errorf("%w: malformed byte %q", ErrInvalidFingerprint, p)
			}
		}
		clean = strings.Join(parts, "")
	}

	if len(clean) != 2*FingerprintSize {
		return f, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidFingerprint, 2*FingerprintSize, len(clean))
	}
	if _, err := hex.Decode(f[:], []byte(clean)); err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	return f, nil
}
