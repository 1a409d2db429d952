// Package interfaces defines the contracts shared between the signing backends,
// the bootstrap stage and the JSON-RPC front end, without implementation details.
//
// # Signing Interfaces
//
// TransactionSigner: Signs transaction hashes with a single secp256k1 key and
// reports the address that key controls.
//
// TransactionSignerProvider: Looks up the signer for a sender address.
//
// # Errors
//
// InitializationError: Reported by every stage that runs before the server
// accepts connections. It carries a Kind so callers can match a failure class
// with errors.Is while keeping the message shown to the operator.
package interfaces
