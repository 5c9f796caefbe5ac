package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
)

// dataError mimics the JSON-RPC error returned by nodes for reverted calls.
type dataError struct {
	msg  string
	data any
}

func (e *dataError) Error() string  { return e.msg }
func (e *dataError) ErrorData() any { return e.data }

func packRevertReason(t *testing.T, reason string) []byte {
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)
	return append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
}

func packCustomError(t *testing.T, parsed *abi.ABI, name string, args ...any) []byte {
	e, ok := parsed.Errors[name]
	require.True(t, ok, name)
	packed, err := e.Inputs.Pack(args...)
	require.NoError(t, err)
	return append(common.CopyBytes(e.ID[:4]), packed...)
}

func TestClassify(t *testing.T) {
	g := &EthGateway{abi: contracts.GatewayNetworkABI}
	tg := &EthGateway{abi: contracts.GatewayTokenABI}
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	tests := []struct {
		name       string
		gateway    *EthGateway
		err        error
		wantKind   error
		wantReason string
	}{
		{
			name:       "custom error not primary authority",
			gateway:    g,
			err:        &dataError{msg: "execution reverted", data: hexutil.Encode(packCustomError(t, contracts.GatewayNetworkABI, contracts.ErrNameNotPrimaryAuthority, caller))},
			wantKind:   interfaces.ErrUnauthorized,
			wantReason: contracts.ErrNameNotPrimaryAuthority,
		},
		{
			name:       "custom error no pending claim",
			gateway:    g,
			err:        &dataError{msg: "execution reverted", data: hexutil.Encode(packCustomError(t, contracts.GatewayNetworkABI, contracts.ErrNameNoPendingClaim, [32]byte{}))},
			wantKind:   interfaces.ErrNoPendingClaim,
			wantReason: contracts.ErrNameNoPendingClaim,
		},
		{
			name:       "custom token error invalid state",
			gateway:    tg,
			err:        &dataError{msg: "execution reverted", data: packCustomError(t, contracts.GatewayTokenABI, contracts.ErrNameInvalidState, caller, common.Big1, uint8(2))},
			wantKind:   interfaces.ErrInvalidStateTransition,
			wantReason: contracts.ErrNameInvalidState,
		},
		{
			name:       "error string",
			gateway:    g,
			err:        &dataError{msg: "execution reverted: caller is not primary authority", data: hexutil.Encode(packRevertReason(t, "caller is not primary authority"))},
			wantKind:   interfaces.ErrUnauthorized,
			wantReason: "caller is not primary authority",
		},
		{
			name:       "unknown revert data",
			gateway:    g,
			err:        &dataError{msg: "execution reverted", data: "0xdeadbeef"},
			wantKind:   interfaces.ErrLedgerRejected,
			wantReason: "execution reverted",
		},
		{
			name:       "reverted message without data",
			gateway:    g,
			err:        errors.New("execution reverted: network does not exist"),
			wantKind:   interfaces.ErrNetworkNotFound,
			wantReason: "network does not exist",
		},
		{
			name:     "no code",
			gateway:  g,
			err:      fmt.Errorf("estimate gas: %w", bind.ErrNoCode),
			wantKind: interfaces.ErrLedgerRejected,
		},
		{
			name:       "insufficient funds",
			gateway:    g,
			err:        errors.New("insufficient funds for gas * price + value"),
			wantKind:   interfaces.ErrLedgerRejected,
			wantReason: "insufficient funds",
		},
		{
			name:     "connection refused",
			gateway:  g,
			err:      errors.New("Post \"http://localhost:8545\": dial tcp: connection refused"),
			wantKind: interfaces.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.gateway.classify("someMethod", tt.err)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.ErrorIs(t, err, tt.err)

			var lerr *interfaces.LedgerError
			require.True(t, errors.As(err, &lerr))
			assert.Equal(t, "someMethod", lerr.Method)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, lerr.Reason)
			}
		})
	}
}

func TestClassify_KeepsLedgerErrors(t *testing.T) {
	g := &EthGateway{abi: contracts.GatewayNetworkABI}
	orig := interfaces.NewLedgerError(interfaces.ErrUnauthorized, "addGatekeeper", "x", nil)
	assert.Same(t, orig, g.classify("other", orig))
	assert.NoError(t, g.classify("other", nil))
}
