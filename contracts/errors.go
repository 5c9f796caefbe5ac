package contracts

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ruteri/gateway-network-client/interfaces"
)

// Custom error names declared by the contracts.
const (
	ErrNameNetworkDoesNotExist     = "GatewayNetwork__NetworkDoesNotExist"
	ErrNameNotPrimaryAuthority     = "GatewayNetwork__NotPrimaryAuthority"
	ErrNameNoPendingClaim          = "GatewayNetwork__NoPendingClaim"
	ErrNameNotPendingAuthority     = "GatewayNetwork__NotPendingAuthority"
	ErrNameGatekeeperAlreadyExists = "GatewayNetwork__GatekeeperAlreadyExists"
	ErrNameGatekeeperNotFound      = "GatewayNetwork__GatekeeperNotFound"
	ErrNameZeroAddress             = "GatewayNetwork__ZeroAddress"

	ErrNameTokenNetworkDoesNotExist = "GatewayToken__NetworkDoesNotExist"
	ErrNameNotGatekeeper            = "GatewayToken__NotGatekeeper"
	ErrNameTokenAlreadyExists       = "GatewayToken__TokenAlreadyExists"
	ErrNameTokenDoesNotExist        = "GatewayToken__TokenDoesNotExist"
	ErrNameInvalidState             = "GatewayToken__InvalidState"
	ErrNameExpiryInThePast          = "GatewayToken__ExpiryInThePast"
)

var errorKinds = map[string]error{
	ErrNameNetworkDoesNotExist: interfaces.ErrNetworkNotFound,
	ErrNameNotPrimaryAuthority: interfaces.ErrUnauthorized,
	ErrNameNoPendingClaim:      interfaces.ErrNoPendingClaim,
	ErrNameNotPendingAuthority: interfaces.ErrUnauthorized,

	ErrNameTokenNetworkDoesNotExist: interfaces.ErrNetworkNotFound,
	ErrNameNotGatekeeper:            interfaces.ErrUnauthorized,
	ErrNameTokenAlreadyExists:       interfaces.ErrInvalidStateTransition,
	ErrNameTokenDoesNotExist:        interfaces.ErrInvalidStateTransition,
	ErrNameInvalidState:             interfaces.ErrInvalidStateTransition,
}

// KindOf returns the error kind of a contract custom error.
// Unknown names are passed through as ErrLedgerRejected.
func KindOf(name string) error {
	if kind, ok := errorKinds[name]; ok {
		return kind
	}
	return interfaces.ErrLedgerRejected
}

// Revert builds the error a ledger reports when method reverts with the named custom error.
func Revert(method, name string) *interfaces.LedgerError {
	return interfaces.NewLedgerError(KindOf(name), method, name, nil)
}

// Message fragments of Error(string) reverts, for contracts and nodes that do
// not use custom errors.
var reasonKinds = []struct {
	token string
	kind  error
}{
	{"no pending", interfaces.ErrNoPendingClaim},
	{"primary authority", interfaces.ErrUnauthorized},
	{"not gatekeeper", interfaces.ErrUnauthorized},
	{"unauthorized", interfaces.ErrUnauthorized},
	{"not authorized", interfaces.ErrUnauthorized},
	{"network does not exist", interfaces.ErrNetworkNotFound},
	{"invalid state", interfaces.ErrInvalidStateTransition},
	{"token is frozen", interfaces.ErrInvalidStateTransition},
	{"token is revoked", interfaces.ErrInvalidStateTransition},
}

// KindForReason classifies a free-form revert reason.
func KindForReason(reason string) error {
	lower := strings.ToLower(reason)
	for _, rk := range reasonKinds {
		if strings.Contains(lower, rk.token) {
			return rk.kind
		}
	}
	return interfaces.ErrLedgerRejected
}

var revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// DecodeRevert decodes revert data into a reason and its kind.
// It understands Error(string) and the custom errors declared in parsed.
func DecodeRevert(parsed *abi.ABI, data []byte) (reason string, kind error, ok bool) {
	if len(data) < 4 {
		return "", nil, false
	}
	if bytes.Equal(data[:4], revertSelector) {
		msg, err := abi.UnpackRevert(data)
		if err != nil {
			return "", nil, false
		}
		return msg, KindForReason(msg), true
	}
	for name, e := range parsed.Errors {
		if bytes.Equal(e.ID[:4], data[:4]) {
			return name, KindOf(name), true
		}
	}
	return "", nil, false
}
