package signer

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/ethsigner/interfaces"
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// recoverableSignature turns a bare (r, s) pair produced by a remote backend
// into the 65-byte [R || S || V] form. s is normalised to the lower half of
// the curve order and V is found by recovering the expected address.
func recoverableSignature(hash common.Hash, r, s *big.Int, expected common.Address) ([]byte, error) {
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("%w: signature values out of range", interfaces.ErrSigningFailed)
	}
	if s.Cmp(secp256k1HalfN) > 0 {
		s = new(big.Int).Sub(secp256k1N, s)
	}

	sig := make([]byte, crypto.SignatureLength)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])

	for v := byte(0); v < 2; v++ {
		sig[crypto.RecoveryIDOffset] = v
		pub, err := crypto.SigToPub(hash[:], sig)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*pub) == expected {
			return sig, nil
		}
	}
	return nil, fmt.Errorf("%w: signature does not recover to %s", interfaces.ErrSigningFailed, expected.Hex())
}
