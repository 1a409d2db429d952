package interfaces

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionSigner produces secp256k1 signatures with a key held by a signing backend.
// Implementations are immutable after construction and safe for concurrent use.
type TransactionSigner interface {
	// Address is the Ethereum account derived from the signing key.
	Address() common.Address

	// SignHash signs a 32-byte digest and returns the 65-byte [R || S || V]
	// signature with V in {0, 1}.
	SignHash(ctx context.Context, hash common.Hash) ([]byte, error)
}

// TransactionSignerProvider resolves the signer responsible for an account.
type TransactionSignerProvider interface {
	// Signer returns the signer for address, or false if none is configured.
	Signer(address common.Address) (TransactionSigner, bool)

	// Addresses lists every account the provider can sign for.
	Addresses() []common.Address
}
