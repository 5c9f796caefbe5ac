package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/stretchr/testify/mock"

	"github.com/ruteri/gateway-network-client/interfaces"
)

// MockGateway mocks the LedgerGateway interface
type MockGateway struct {
	mock.Mock
}

// Call mocks the Call method
func (m *MockGateway) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	callArgs := m.Called(ctx, method, args)
	out, _ := callArgs.Get(0).([]any)
	return out, callArgs.Error(1)
}

// Submit mocks the Submit method
func (m *MockGateway) Submit(ctx context.Context, auth *bind.TransactOpts, opts interfaces.SubmitOptions, method string, args ...any) (interfaces.SubmissionHandle, error) {
	callArgs := m.Called(ctx, auth, opts, method, args)
	return callArgs.Get(0).(interfaces.SubmissionHandle), callArgs.Error(1)
}

// AwaitConfirmations mocks the AwaitConfirmations method
func (m *MockGateway) AwaitConfirmations(ctx context.Context, handle interfaces.SubmissionHandle, confirmations uint64) (*interfaces.Receipt, error) {
	callArgs := m.Called(ctx, handle, confirmations)
	receipt, _ := callArgs.Get(0).(*interfaces.Receipt)
	return receipt, callArgs.Error(1)
}

var _ interfaces.LedgerGateway = (*MockGateway)(nil)
var _ interfaces.LedgerGateway = (*EthGateway)(nil)
