// Package integration holds end-to-end tests that drive the HTTP API over a
// real listener, with Redis on miniredis, in-memory repositories and an
// in-memory chain standing in for the Solana RPC.
package integration
