package interfaces

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultConfirmations is used when a caller waits with a confirmation depth of zero.
const DefaultConfirmations uint64 = 1

// LedgerReader performs read-only contract calls.
type LedgerReader interface {
	// Call invokes a view method and returns its decoded outputs.
	Call(ctx context.Context, method string, args ...any) ([]any, error)
}

// Confirmer waits for submitted transactions to reach a confirmation depth.
type Confirmer interface {
	// AwaitConfirmations blocks until the submission is included with at least
	// the given number of confirmations, or ctx is done.
	AwaitConfirmations(ctx context.Context, handle SubmissionHandle, confirmations uint64) (*Receipt, error)
}

// LedgerGateway is the contract-bound connection to the ledger used by the
// network directory and the token manager.
type LedgerGateway interface {
	LedgerReader
	Confirmer

	// Submit signs and sends a mutating call. It returns once the ledger has
	// accepted the submission, not once it is final. Submissions are never retried.
	Submit(ctx context.Context, auth *bind.TransactOpts, opts SubmitOptions, method string, args ...any) (SubmissionHandle, error)
}

// SubmitOptions are caller-supplied overrides for a single submission.
// The zero value lets the ledger backend pick every parameter.
type SubmitOptions struct {
	// GasLimit overrides gas estimation when non-zero.
	GasLimit uint64
	// GasPrice is the fee per gas unit. Nil lets the backend suggest one.
	GasPrice *big.Int
	// Value is the native currency attached to the call, used to pay network fees.
	Value *big.Int
}

// Validate rejects overrides the ledger can never accept.
func (o SubmitOptions) Validate() error {
	if o.GasPrice != nil && o.GasPrice.Sign() < 0 {
		return fmt.Errorf("%w: negative gas price %s", ErrInvalidOptions, o.GasPrice)
	}
	if o.Value != nil && o.Value.Sign() < 0 {
		return fmt.Errorf("%w: negative value %s", ErrInvalidOptions, o.Value)
	}
	return nil
}

// Apply returns a copy of auth carrying the overrides and ctx.
func (o SubmitOptions) Apply(ctx context.Context, auth *bind.TransactOpts) *bind.TransactOpts {
	opts := *auth
	opts.Context = ctx
	if o.GasLimit != 0 {
		opts.GasLimit = o.GasLimit
	}
	if o.GasPrice != nil {
		opts.GasPrice = new(big.Int).Set(o.GasPrice)
	}
	if o.Value != nil {
		opts.Value = new(big.Int).Set(o.Value)
	}
	return &opts
}

// SubmissionHandle identifies an accepted submission.
type SubmissionHandle struct {
	Hash common.Hash
	// Tx is the signed transaction when the ledger is an EVM node. It is used
	// to replay reverted submissions for their reason and may be nil.
	Tx *types.Transaction
}

func (h SubmissionHandle) String() string {
	return h.Hash.Hex()
}

// Event is a decoded domain event emitted by a confirmed submission.
type Event struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Receipt is the finalized result of a submission.
type Receipt struct {
	Handle      SubmissionHandle `json:"-"`
	TxHash      common.Hash      `json:"txHash"`
	Success     bool             `json:"success"`
	BlockNumber uint64           `json:"blockNumber"`
	BlockHash   common.Hash      `json:"blockHash"`
	GasUsed     uint64           `json:"gasUsed"`
	Events      []Event          `json:"events"`
}

// Event returns the first event with the given name.
func (r *Receipt) Event(name string) (Event, bool) {
	for _, ev := range r.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}
