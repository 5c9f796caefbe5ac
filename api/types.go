package api

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/gateway-network-client/interfaces"
)

// ExplorerProvider reads networks and tokens through the explorer API.
type ExplorerProvider interface {
	GetNetwork(ctx context.Context, name interfaces.NetworkName) (*interfaces.GatekeeperNetworkRecord, error)
	ListGatekeepers(ctx context.Context, name interfaces.NetworkName) (*GatekeepersResponse, error)
	IsGatekeeper(ctx context.Context, name interfaces.NetworkName, addr common.Address) (*MembershipResponse, error)
	GetToken(ctx context.Context, name interfaces.NetworkName, owner common.Address) (*TokenResponse, error)
}

// GatekeepersResponse lists the gatekeepers of a network in ledger order.
type GatekeepersResponse struct {
	Network     interfaces.NetworkName `json:"network"`
	Gatekeepers []common.Address       `json:"gatekeepers"`
}

// MembershipResponse reports whether an address is a gatekeeper of a network.
type MembershipResponse struct {
	Network    interfaces.NetworkName `json:"network"`
	Address    common.Address         `json:"address"`
	Gatekeeper bool                   `json:"gatekeeper"`
}

// TokenResponse holds a token together with the ledger's verification verdict.
type TokenResponse struct {
	Token *interfaces.GatewayToken `json:"token"`
	Valid bool                     `json:"valid"`
}

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

var errorKinds = []struct {
	kind string
	err  error
}{
	{"network_not_found", interfaces.ErrNetworkNotFound},
	{"token_not_found", interfaces.ErrTokenNotFound},
	{"invalid_name", interfaces.ErrInvalidName},
	{"invalid_identifier", interfaces.ErrInvalidIdentifier},
	{"transport", interfaces.ErrTransport},
	{"timeout", interfaces.ErrTimeout},
	{"rejected", interfaces.ErrLedgerRejected},
}

// ErrorKind returns the wire kind of err, or "" when it matches no sentinel.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// KindError returns the sentinel error of a wire kind, or nil for unknown kinds.
func KindError(kind string) error {
	for _, k := range errorKinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
