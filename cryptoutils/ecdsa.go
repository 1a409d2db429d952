package cryptoutils

import (
	"encoding/asn1"
	"errors"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

var (
	oidPublicKeyECDSA      = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// ParseDERSignature decodes an ASN.1 ECDSA-Sig-Value into r and s.
func ParseDERSignature(der []byte) (r, s *big.Int, err error) {
	r, s = new(big.Int), new(big.Int)

	input := cryptobyte.String(der)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, cryptobyte_asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, errors.New("malformed DER ECDSA signature")
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return nil, nil, errors.New("ECDSA signature values must be positive")
	}
	return r, s, nil
}

// ParseSecp256k1PublicKeyInfo extracts the uncompressed point from a DER
// SubjectPublicKeyInfo carrying a secp256k1 key. crypto/x509 does not know
// this curve, so the structure is walked by hand.
func ParseSecp256k1PublicKeyInfo(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)

	var spki, algorithm cryptobyte.String
	if !input.ReadASN1(&spki, cryptobyte_asn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("malformed subject public key info")
	}
	if !spki.ReadASN1(&algorithm, cryptobyte_asn1.SEQUENCE) {
		return nil, errors.New("malformed public key algorithm identifier")
	}

	var algorithmOID, curveOID asn1.ObjectIdentifier
	if !algorithm.ReadASN1ObjectIdentifier(&algorithmOID) ||
		!algorithm.ReadASN1ObjectIdentifier(&curveOID) {
		return nil, errors.New("malformed public key algorithm parameters")
	}
	if !algorithmOID.Equal(oidPublicKeyECDSA) {
		return nil, errors.New("public key is not an elliptic curve key")
	}
	if !curveOID.Equal(oidNamedCurveSecp256k1) {
		return nil, errors.New("public key curve is not secp256k1")
	}

	var point asn1.BitString
	if !spki.ReadASN1BitString(&point) || !spki.Empty() {
		return nil, errors.New("malformed public key bit string")
	}

	bits := point.RightAlign()
	if len(bits) != 65 || bits[0] != 0x04 {
		return nil, errors.New("public key is not an uncompressed secp256k1 point")
	}
	return bits, nil
}

// MarshalSecp256k1PublicKeyInfo is the inverse of ParseSecp256k1PublicKeyInfo.
func MarshalSecp256k1PublicKeyInfo(point []byte) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(spki *cryptobyte.Builder) {
		spki.AddASN1(cryptobyte_asn1.SEQUENCE, func(algorithm *cryptobyte.Builder) {
			algorithm.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			algorithm.AddASN1ObjectIdentifier(oidNamedCurveSecp256k1)
		})
		spki.AddASN1BitString(point)
	})
	return b.Bytes()
}

// MarshalDERSignature encodes r and s as an ASN.1 ECDSA-Sig-Value.
func MarshalDERSignature(r, s *big.Int) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		seq.AddASN1BigInt(r)
		seq.AddASN1BigInt(s)
	})
	return b.Bytes()
}
