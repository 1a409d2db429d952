/*
Package httpserver implements the JSON-RPC signing proxy that sits in front of
an Ethereum node.

Clients talk to the proxy exactly as they would talk to the node. The proxy
owns the signing keys: it answers eth_accounts with the addresses it can sign
for, turns eth_sendTransaction into a signed eth_sendRawTransaction, and
relays every other request to the downstream node unchanged.

# Endpoints

  - POST / - JSON-RPC 2.0 endpoint
  - GET /upcheck - plain text liveness probe
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready
  - /debug/pprof/* - profiling, when enabled

# Transactions

eth_sendTransaction takes a single transaction object whose "from" must be an
address served by the configured signer. Missing fields are filled in:

  - nonce: fetched with eth_getTransactionCount(from, "pending")
  - gas: 90000
  - gasPrice and value: zero

Transactions carrying maxFeePerGas and maxPriorityFeePerGas are signed as
EIP-1559 transactions, all others as EIP-155 legacy transactions, both bound
to the configured chain id.

# Downstream failures

A downstream node that does not answer within the request timeout yields HTTP
504; an unreachable node yields HTTP 502. Both carry a JSON-RPC error body.

# Runtime files

When a data path is configured, the bound port is written to
<data-path>/ethsigner.ports as "http-jsonrpc=<port>" once the listener is up,
so callers binding port 0 can discover it.
*/
package httpserver
