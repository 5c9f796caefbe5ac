// Package pending tracks submissions accepted by the ledger until they are
// confirmed at a caller-chosen depth.
package pending

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ruteri/gateway-network-client/interfaces"
)

// Operation is an in-flight submission. It is returned by every mutating call
// as soon as the ledger accepts the submission. Abandoning a Wait does not
// affect the submission, which the ledger processes regardless.
type Operation struct {
	confirmer interfaces.Confirmer
	handle    interfaces.SubmissionHandle
	method    string
	log       *slog.Logger

	mutex    sync.Mutex
	receipt  *interfaces.Receipt
	depth    uint64
	rejected error
}

// New creates an Operation for a submission of method identified by handle.
func New(confirmer interfaces.Confirmer, handle interfaces.SubmissionHandle, method string, log *slog.Logger) *Operation {
	if log == nil {
		log = slog.Default()
	}
	return &Operation{
		confirmer: confirmer,
		handle:    handle,
		method:    method,
		log:       log,
	}
}

// Handle returns the submission handle.
func (op *Operation) Handle() interfaces.SubmissionHandle {
	return op.handle
}

// Method returns the ledger method that was submitted.
func (op *Operation) Method() string {
	return op.method
}

// Receipt returns the last resolved receipt, or nil if no Wait has resolved yet.
func (op *Operation) Receipt() *interfaces.Receipt {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.receipt
}

// Done reports whether the operation has resolved, successfully or not.
func (op *Operation) Done() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.receipt != nil || op.rejected != nil
}

// Wait blocks until the submission is included with at least confirmations
// confirmations. Zero means one confirmation.
//
// Once resolved, Wait returns the same receipt for any depth already reached
// without contacting the ledger. A rejected submission keeps failing with
// interfaces.ErrSubmissionRejected. A timeout is not remembered, so a later
// Wait polls the ledger again.
func (op *Operation) Wait(ctx context.Context, confirmations uint64) (*interfaces.Receipt, error) {
	if confirmations == 0 {
		confirmations = interfaces.DefaultConfirmations
	}

	op.mutex.Lock()
	if op.rejected != nil {
		receipt, err := op.receipt, op.rejected
		op.mutex.Unlock()
		return receipt, err
	}
	if op.receipt != nil && confirmations <= op.depth {
		receipt := op.receipt
		op.mutex.Unlock()
		return receipt, nil
	}
	op.mutex.Unlock()

	receipt, err := op.confirmer.AwaitConfirmations(ctx, op.handle, confirmations)
	if err != nil {
		if errors.Is(err, interfaces.ErrSubmissionRejected) {
			op.mutex.Lock()
			op.receipt = receipt
			op.rejected = err
			op.mutex.Unlock()
			op.log.Warn("Submission reverted", "method", op.method, "txHash", op.handle.Hash.Hex(), "err", err)
		}
		return receipt, err
	}

	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.receipt != nil && op.receipt.BlockHash == receipt.BlockHash {
		receipt = op.receipt
	} else if op.receipt != nil {
		op.log.Info("Submission moved to another block", "method", op.method, "txHash", op.handle.Hash.Hex(),
			"oldBlock", op.receipt.BlockNumber, "newBlock", receipt.BlockNumber)
	}
	op.receipt = receipt
	if confirmations > op.depth {
		op.depth = confirmations
	}
	op.log.Debug("Submission confirmed", "method", op.method, "txHash", op.handle.Hash.Hex(),
		"block", receipt.BlockNumber, "confirmations", op.depth)
	return receipt, nil
}
