// Package memledger provides an in-memory ledger that executes the
// GatewayNetwork and GatewayToken contract rules without a blockchain.
//
// Submissions are checked when they are submitted, the way gas estimation
// rejects failing calls on a real node, and executed again when a block is
// committed. A submission that became invalid in between is included with a
// failed receipt. Calls and submissions go through the contract ABI, so the
// values returned to callers have the same Go types as those decoded from a
// node.
package memledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
)

// Options configures a Ledger.
type Options struct {
	// AutoMine commits a block after every accepted submission.
	AutoMine bool
	// Now is the ledger clock used for expiries and fee update timestamps.
	Now func() time.Time
	Log *slog.Logger
}

type tokenKey struct {
	owner   common.Address
	network interfaces.NetworkKey
}

type submission struct {
	hash common.Hash
	view *view
	call *call
}

// Ledger holds the state of both contracts.
type Ledger struct {
	mutex    sync.RWMutex
	now      func() time.Time
	autoMine bool
	log      *slog.Logger

	head      uint64
	headHash  common.Hash
	newBlock  chan struct{}
	networks  map[interfaces.NetworkIdentifier]*network
	keys      map[interfaces.NetworkKey]interfaces.NetworkIdentifier
	nextKey   interfaces.NetworkKey
	tokens    map[tokenKey]*token
	queue     []*submission
	receipts  map[common.Hash]*interfaces.Receipt
	rejected  map[common.Hash]error
	faults    map[string][]error
	submitted atomic.Int64

	networkView *view
	tokenView   *view
}

// New creates an empty ledger.
func New(opts Options) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	l := &Ledger{
		now:      opts.Now,
		autoMine: opts.AutoMine,
		log:      opts.Log,
		newBlock: make(chan struct{}),
		networks: make(map[interfaces.NetworkIdentifier]*network),
		keys:     make(map[interfaces.NetworkKey]interfaces.NetworkIdentifier),
		nextKey:  1,
		tokens:   make(map[tokenKey]*token),
		receipts: make(map[common.Hash]*interfaces.Receipt),
		rejected: make(map[common.Hash]error),
		faults:   make(map[string][]error),
	}
	l.networkView = &view{ledger: l, name: "gateway_network", abi: contracts.GatewayNetworkABI, read: l.readNetwork, prepare: l.prepareNetwork}
	l.tokenView = &view{ledger: l, name: "gateway_token", abi: contracts.GatewayTokenABI, read: l.readToken, prepare: l.prepareToken}
	return l
}

// Network returns a gateway bound to the GatewayNetwork contract.
func (l *Ledger) Network() interfaces.LedgerGateway {
	return l.networkView
}

// Token returns a gateway bound to the GatewayToken contract.
func (l *Ledger) Token() interfaces.LedgerGateway {
	return l.tokenView
}

// Commit includes every queued submission in a new block and returns its number.
func (l *Ledger) Commit() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.commitLocked()
}

func (l *Ledger) commitLocked() uint64 {
	l.head++
	l.headHash = crypto.Keccak256Hash(l.headHash.Bytes(), new(big.Int).SetUint64(l.head).Bytes())

	for _, sub := range l.queue {
		receipt := &interfaces.Receipt{
			Handle:      interfaces.SubmissionHandle{Hash: sub.hash},
			TxHash:      sub.hash,
			BlockNumber: l.head,
			BlockHash:   l.headHash,
		}
		apply, err := sub.view.prepare(sub.call)
		if err != nil {
			l.rejected[sub.hash] = err
			l.log.Debug("Submission reverted", "method", sub.call.method, "txHash", sub.hash.Hex(), "err", err)
		} else {
			receipt.Success = true
			receipt.Events = apply()
		}
		l.receipts[sub.hash] = receipt
	}
	l.queue = nil

	close(l.newBlock)
	l.newBlock = make(chan struct{})
	return l.head
}

// Head returns the number of the latest block.
func (l *Ledger) Head() uint64 {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.head
}

// Submissions returns the number of submissions accepted so far.
func (l *Ledger) Submissions() int64 {
	return l.submitted.Load()
}

// Queued returns the number of accepted submissions not yet included in a block.
func (l *Ledger) Queued() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.queue)
}

// FailNext makes the next call or submission of method fail with err before
// it reaches the ledger state.
func (l *Ledger) FailNext(method string, err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.faults[method] = append(l.faults[method], err)
}

func (l *Ledger) fault(method string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	errs := l.faults[method]
	if len(errs) == 0 {
		return nil
	}
	l.faults[method] = errs[1:]
	return errs[0]
}

// AwaitConfirmations blocks until the submission has the requested number of
// confirmations. The returned receipt must not be modified.
func (l *Ledger) AwaitConfirmations(ctx context.Context, handle interfaces.SubmissionHandle, confirmations uint64) (*interfaces.Receipt, error) {
	if confirmations == 0 {
		confirmations = interfaces.DefaultConfirmations
	}

	for {
		l.mutex.RLock()
		receipt, included := l.receipts[handle.Hash]
		rejection := l.rejected[handle.Hash]
		head := l.head
		newBlock := l.newBlock
		l.mutex.RUnlock()

		if included && head-receipt.BlockNumber+1 >= confirmations {
			if !receipt.Success {
				var lerr *interfaces.LedgerError
				reason := ""
				if errors.As(rejection, &lerr) {
					reason = lerr.Reason
				}
				return receipt, interfaces.NewLedgerError(interfaces.ErrSubmissionRejected, "", reason, rejection)
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, interfaces.NewLedgerError(interfaces.ErrTimeout, "", handle.Hash.Hex(), ctx.Err())
			}
			return nil, fmt.Errorf("stopped waiting for %s: %w", handle.Hash.Hex(), ctx.Err())
		case <-newBlock:
		}
	}
}

// call is a decoded contract invocation.
type call struct {
	method string
	from   common.Address
	value  *big.Int
	in     []any
}

func (c *call) identifier(i int) interfaces.NetworkIdentifier {
	return interfaces.NetworkIdentifier(c.in[i].([32]byte))
}

func (c *call) address(i int) common.Address {
	return c.in[i].(common.Address)
}

func (c *call) uint(i int) *big.Int {
	return c.in[i].(*big.Int)
}

// mutation applies a checked call and returns the events it emits.
type mutation func() []interfaces.Event

// view exposes one contract of the ledger as a LedgerGateway.
type view struct {
	ledger  *Ledger
	name    string
	abi     *abi.ABI
	read    func(c *call) ([]any, error)
	prepare func(c *call) (mutation, error)
}

func (v *view) decode(method string, args []any) (abi.Method, []any, error) {
	m, ok := v.abi.Methods[method]
	if !ok {
		return abi.Method{}, nil, fmt.Errorf("method %q not found in %s ABI", method, v.name)
	}
	packed, err := m.Inputs.Pack(args...)
	if err != nil {
		return abi.Method{}, nil, fmt.Errorf("could not pack %s call: %w", method, err)
	}
	in, err := m.Inputs.Unpack(packed)
	if err != nil {
		return abi.Method{}, nil, fmt.Errorf("could not unpack %s call: %w", method, err)
	}
	return m, in, nil
}

func (v *view) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	m, in, err := v.decode(method, args)
	if err != nil {
		return nil, err
	}
	if !m.IsConstant() {
		return nil, fmt.Errorf("%s is not a view method", method)
	}
	if err := v.ledger.fault(method); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, interfaces.NewLedgerError(interfaces.ErrTransport, method, "", err)
	}

	v.ledger.mutex.RLock()
	out, err := v.read(&call{method: method, in: in})
	v.ledger.mutex.RUnlock()
	if err != nil {
		return nil, err
	}

	packed, err := m.Outputs.Pack(out...)
	if err != nil {
		return nil, fmt.Errorf("could not pack %s outputs: %w", method, err)
	}
	return m.Outputs.Unpack(packed)
}

func (v *view) Submit(ctx context.Context, auth *bind.TransactOpts, opts interfaces.SubmitOptions, method string, args ...any) (interfaces.SubmissionHandle, error) {
	if auth == nil {
		return interfaces.SubmissionHandle{}, interfaces.ErrNoTransactOpts
	}
	if err := opts.Validate(); err != nil {
		return interfaces.SubmissionHandle{}, err
	}
	m, in, err := v.decode(method, args)
	if err != nil {
		return interfaces.SubmissionHandle{}, err
	}
	if m.IsConstant() {
		return interfaces.SubmissionHandle{}, fmt.Errorf("%s is a view method", method)
	}
	if err := v.ledger.fault(method); err != nil {
		return interfaces.SubmissionHandle{}, err
	}
	if err := ctx.Err(); err != nil {
		return interfaces.SubmissionHandle{}, interfaces.NewLedgerError(interfaces.ErrTransport, method, "", err)
	}

	tx := opts.Apply(ctx, auth)
	if !m.IsPayable() && tx.Value != nil && tx.Value.Sign() > 0 {
		return interfaces.SubmissionHandle{}, interfaces.NewLedgerError(interfaces.ErrLedgerRejected, method, "non-payable method", nil)
	}
	c := &call{method: method, from: tx.From, value: tx.Value, in: in}

	l := v.ledger
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, err := v.prepare(c); err != nil {
		l.log.Debug("Submission rejected", "contract", v.name, "method", method, "from", c.from.Hex(), "err", err)
		return interfaces.SubmissionHandle{}, err
	}

	hash := crypto.Keccak256Hash([]byte(uuid.NewString()))
	l.queue = append(l.queue, &submission{hash: hash, view: v, call: c})
	l.submitted.Inc()
	if l.autoMine {
		l.commitLocked()
	}
	return interfaces.SubmissionHandle{Hash: hash}, nil
}

func (v *view) AwaitConfirmations(ctx context.Context, handle interfaces.SubmissionHandle, confirmations uint64) (*interfaces.Receipt, error) {
	return v.ledger.AwaitConfirmations(ctx, handle, confirmations)
}
