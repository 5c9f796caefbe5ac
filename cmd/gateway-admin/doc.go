// Package main (cmd/gateway-admin) administers gatekeeper networks and gateway
// tokens from the command line.
//
// Commands:
//
//	network id|exists|get|gatekeepers|is-gatekeeper|fee-token
//	        - read network records
//	network add-gatekeeper|remove-gatekeeper|propose-authority|claim-authority
//	        - manage gatekeepers and the primary authority
//	network set-pass-expiry|set-description|set-fees|set-features
//	        - update network policy, primary authority only
//	token get|verify
//	        - read a token
//	token issue|refresh|freeze|unfreeze|revoke|expire
//	        - token lifecycle, gatekeepers only
//
// Updates are signed with --privkey (or GATEWAY_PRIVKEY) and the command waits
// for --confirmations before printing the receipt as JSON. When a submission
// times out its outcome is unknown and the ledger must be re-queried before
// retrying.
//
// Example usage:
//
//	gateway-admin --network-contract 0x... --token-contract 0x... \
//	  token issue --network "Test Network" --owner 0x... --expiry 720h
package main
