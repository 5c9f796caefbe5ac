// Package main (cmd/gateway-explorer) serves the read-only HTTP explorer.
//
// The explorer reads networks and tokens straight from the GatewayNetwork and
// GatewayToken contracts and never signs anything, so no private key is needed.
// It exposes health checks for load balancers, Prometheus metrics on a separate
// address and optional pprof endpoints. SIGINT and SIGTERM shut it down
// gracefully.
//
// Example usage:
//
//	gateway-explorer \
//	  --rpc-addr http://127.0.0.1:8545 \
//	  --network-contract 0x... \
//	  --token-contract 0x... \
//	  --listen-addr 127.0.0.1:8080
//
// With --dev the explorer runs against an in-memory ledger holding a single
// "Dev Network".
package main
