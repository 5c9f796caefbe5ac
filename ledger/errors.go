package ledger

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
)

// Node error fragments meaning the request was evaluated and refused.
// Anything not listed is treated as a transport failure.
var rejectionTokens = []string{
	"insufficient funds",
	"nonce too low",
	"intrinsic gas too low",
	"exceeds block gas limit",
	"transaction underpriced",
	"replacement transaction underpriced",
	"max fee per gas less than block base fee",
	"invalid sender",
	"gas required exceeds allowance",
	"out of gas",
}

const revertedToken = "execution reverted"

// classify turns a node error for method into a LedgerError.
func (g *EthGateway) classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var lerr *interfaces.LedgerError
	if errors.As(err, &lerr) {
		return err
	}

	if errors.Is(err, bind.ErrNoCode) {
		return interfaces.NewLedgerError(interfaces.ErrLedgerRejected, method, "no contract code at address", err)
	}

	if data, ok := revertData(err); ok {
		if reason, kind, ok := contracts.DecodeRevert(g.abi, data); ok {
			return interfaces.NewLedgerError(kind, method, reason, err)
		}
		return interfaces.NewLedgerError(interfaces.ErrLedgerRejected, method, revertedToken, err)
	}

	msg := strings.ToLower(err.Error())
	if idx := strings.Index(msg, revertedToken); idx >= 0 {
		reason := strings.TrimSpace(strings.TrimPrefix(err.Error()[idx+len(revertedToken):], ":"))
		if reason == "" {
			return interfaces.NewLedgerError(interfaces.ErrLedgerRejected, method, revertedToken, err)
		}
		return interfaces.NewLedgerError(contracts.KindForReason(reason), method, reason, err)
	}
	for _, token := range rejectionTokens {
		if strings.Contains(msg, token) {
			return interfaces.NewLedgerError(interfaces.ErrLedgerRejected, method, token, err)
		}
	}
	return interfaces.NewLedgerError(interfaces.ErrTransport, method, "", err)
}

// revertData extracts the revert payload a node attaches to a JSON-RPC error.
func revertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		data, err := hexutil.Decode(v)
		if err != nil {
			return nil, false
		}
		return data, true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}
