/*
Package httpserver implements a read-only HTTP explorer for gatekeeper networks
and gateway tokens.

Every request is answered from the ledger through a network.Directory and a
token.Manager. The explorer never holds a credential and never submits
transactions.

# Endpoints

  - GET /api/v1/networks/{name}: network record
  - GET /api/v1/networks/{name}/gatekeepers: gatekeeper list
  - GET /api/v1/networks/{name}/gatekeepers/{address}: gatekeeper membership
  - GET /api/v1/networks/{name}/tokens/{owner}: token of owner with the ledger's verdict
  - GET /livez, /readyz, /drain, /undrain: health and load balancer control

Network names are path-escaped. Unknown networks and tokens answer 404,
malformed names and addresses 400, and ledger transport failures 502.

Metrics are served on a separate address, and pprof is mounted under /debug
when enabled.
*/
package httpserver
