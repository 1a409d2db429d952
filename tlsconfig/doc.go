// Package tlsconfig composes the TLS settings of both sides of the proxy.
//
// Outbound, BuildClientOptions decides whether the downstream connection uses
// TLS and which anchors and identity it uses. Inbound, BuildServerOptions runs
// a two step pipeline: WithIdentity installs the server key store, then
// WithClientAuth makes client certificates mandatory and installs the
// allow-list and CA policy. Every step returns a new value; accessors hand out
// clones so a built configuration cannot be changed afterwards.
//
// All failures are *interfaces.InitializationError and happen before any
// socket is bound.
package tlsconfig
