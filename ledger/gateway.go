// Package ledger implements interfaces.LedgerGateway over a go-ethereum backend.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
	"github.com/ruteri/gateway-network-client/metrics"
)

// Backend is the node connection used by EthGateway. Both *ethclient.Client
// and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Config tunes an EthGateway. Zero values are replaced by defaults.
type Config struct {
	// Name labels logs and metrics, e.g. "gateway_network".
	Name string
	Log  *slog.Logger

	// ReadRetries bounds retries of view calls failing with transport errors.
	ReadRetries          uint64
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// RateLimit is the maximum number of RPC round trips per second, 0 disables limiting.
	RateLimit float64
	RateBurst int

	// PollInterval is how often receipts and the chain head are polled while waiting.
	PollInterval time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Name == "" {
		cfg.Name = "contract"
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.ReadRetries == 0 {
		cfg.ReadRetries = 3
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 200 * time.Millisecond
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = 2 * time.Second
	}
	if cfg.RateLimit > 0 && cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return cfg
}

// EthGateway binds one contract on an EVM ledger.
type EthGateway struct {
	contract *bind.BoundContract
	backend  Backend
	address  common.Address
	abi      *abi.ABI
	cfg      Config
	log      *slog.Logger
	limiter  *rate.Limiter
}

// NewEthGateway creates a gateway for the contract at address described by parsed.
func NewEthGateway(backend Backend, address common.Address, parsed *abi.ABI, cfg Config) (*EthGateway, error) {
	if backend == nil {
		return nil, errors.New("ledger backend is required")
	}
	if parsed == nil {
		return nil, errors.New("contract ABI is required")
	}
	cfg = cfg.withDefaults()

	g := &EthGateway{
		contract: bind.NewBoundContract(address, *parsed, backend, backend, backend),
		backend:  backend,
		address:  address,
		abi:      parsed,
		cfg:      cfg,
		log:      cfg.Log.With("contract", cfg.Name, "address", address.Hex()),
	}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return g, nil
}

// NewGatewayNetworkGateway binds the GatewayNetwork contract.
func NewGatewayNetworkGateway(backend Backend, address common.Address, cfg Config) (*EthGateway, error) {
	if cfg.Name == "" {
		cfg.Name = "gateway_network"
	}
	return NewEthGateway(backend, address, contracts.GatewayNetworkABI, cfg)
}

// NewGatewayTokenGateway binds the GatewayToken contract.
func NewGatewayTokenGateway(backend Backend, address common.Address, cfg Config) (*EthGateway, error) {
	if cfg.Name == "" {
		cfg.Name = "gateway_token"
	}
	return NewEthGateway(backend, address, contracts.GatewayTokenABI, cfg)
}

// Address returns the bound contract address.
func (g *EthGateway) Address() common.Address {
	return g.address
}

// Call invokes a view method. Transport failures are retried with exponential
// backoff. Reverts and other ledger rejections are returned immediately.
func (g *EthGateway) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	if _, err := g.abi.Pack(method, args...); err != nil {
		return nil, fmt.Errorf("could not pack %s call: %w", method, err)
	}

	var out []any
	op := func() error {
		if err := g.throttle(ctx); err != nil {
			return backoff.Permanent(interfaces.NewLedgerError(interfaces.ErrTransport, method, "", err))
		}
		var res []any
		if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &res, method, args...); err != nil {
			lerr := g.classify(method, err)
			if interfaces.IsRetryableRead(lerr) {
				return lerr
			}
			return backoff.Permanent(lerr)
		}
		out = res
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.cfg.RetryInitialInterval
	bo.MaxInterval = g.cfg.RetryMaxInterval
	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(bo, g.cfg.ReadRetries), ctx), func(err error, next time.Duration) {
		metrics.LedgerCallRetries.WithLabelValues(g.cfg.Name, method).Inc()
		g.log.Debug("Retrying ledger call", "method", method, "err", err, "backoff", next)
	})
	if err != nil {
		var lerr *interfaces.LedgerError
		if !errors.As(err, &lerr) {
			err = interfaces.NewLedgerError(interfaces.ErrTransport, method, "", err)
		}
	}

	metrics.LedgerCallsTotal.WithLabelValues(g.cfg.Name, method, metrics.StatusLabel(err)).Inc()
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Submit signs and sends a mutating call. Gas estimation runs the call against
// the latest state, so most authorization and state failures are reported here
// before anything is broadcast. The submission is never retried.
func (g *EthGateway) Submit(ctx context.Context, auth *bind.TransactOpts, opts interfaces.SubmitOptions, method string, args ...any) (interfaces.SubmissionHandle, error) {
	if auth == nil {
		return interfaces.SubmissionHandle{}, interfaces.ErrNoTransactOpts
	}
	if err := opts.Validate(); err != nil {
		return interfaces.SubmissionHandle{}, err
	}
	if _, err := g.abi.Pack(method, args...); err != nil {
		return interfaces.SubmissionHandle{}, fmt.Errorf("could not pack %s call: %w", method, err)
	}
	if err := g.throttle(ctx); err != nil {
		return interfaces.SubmissionHandle{}, interfaces.NewLedgerError(interfaces.ErrTransport, method, "", err)
	}

	tx, err := g.contract.Transact(opts.Apply(ctx, auth), method, args...)
	if err != nil {
		err = g.classify(method, err)
		metrics.LedgerSubmissionsTotal.WithLabelValues(g.cfg.Name, method, metrics.StatusLabel(err)).Inc()
		g.log.Debug("Submission failed", "method", method, "from", auth.From.Hex(), "err", err)
		return interfaces.SubmissionHandle{}, err
	}

	metrics.LedgerSubmissionsTotal.WithLabelValues(g.cfg.Name, method, "ok").Inc()
	g.log.Debug("Submitted transaction", "method", method, "from", auth.From.Hex(), "txHash", tx.Hash().Hex())
	return interfaces.SubmissionHandle{Hash: tx.Hash(), Tx: tx}, nil
}

// AwaitConfirmations polls until the submission is included with the requested
// number of confirmations. A receipt that disappears after a reorganization is
// simply polled for again.
func (g *EthGateway) AwaitConfirmations(ctx context.Context, handle interfaces.SubmissionHandle, confirmations uint64) (*interfaces.Receipt, error) {
	if confirmations == 0 {
		confirmations = interfaces.DefaultConfirmations
	}
	start := time.Now()
	receipt, err := g.awaitConfirmations(ctx, handle, confirmations)
	metrics.ConfirmationWaitSeconds.WithLabelValues(g.cfg.Name, metrics.StatusLabel(err)).Observe(time.Since(start).Seconds())
	return receipt, err
}

func (g *EthGateway) awaitConfirmations(ctx context.Context, handle interfaces.SubmissionHandle, confirmations uint64) (*interfaces.Receipt, error) {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, handle.Hash)
		switch {
		case err == nil && receipt != nil:
			head, herr := g.backend.HeaderByNumber(ctx, nil)
			if herr != nil {
				g.log.Debug("Failed to read chain head", "txHash", handle.Hash.Hex(), "err", herr)
				break
			}
			if depth(head.Number, receipt.BlockNumber) >= confirmations {
				return g.finalize(ctx, handle, receipt)
			}
		case err != nil && !errors.Is(err, ethereum.NotFound):
			g.log.Debug("Receipt retrieval failed", "txHash", handle.Hash.Hex(), "err", err)
		}

		select {
		case <-ctx.Done():
			return nil, waitError(handle, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (g *EthGateway) finalize(ctx context.Context, handle interfaces.SubmissionHandle, receipt *types.Receipt) (*interfaces.Receipt, error) {
	res := &interfaces.Receipt{
		Handle:      handle,
		TxHash:      receipt.TxHash,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber.Uint64(),
		BlockHash:   receipt.BlockHash,
		GasUsed:     receipt.GasUsed,
		Events:      g.decodeEvents(receipt.Logs),
	}
	if res.Success {
		return res, nil
	}
	return res, g.revertError(ctx, handle, receipt)
}

// revertError replays a reverted transaction on the parent block to recover
// its reason. The replay ignores transactions earlier in the same block, so
// the reason is best effort. The error kind is always ErrSubmissionRejected.
func (g *EthGateway) revertError(ctx context.Context, handle interfaces.SubmissionHandle, receipt *types.Receipt) error {
	tx := handle.Tx
	method := g.methodOf(tx)
	rejected := interfaces.NewLedgerError(interfaces.ErrSubmissionRejected, method, "", nil)
	if tx == nil || tx.To() == nil || receipt.BlockNumber == nil || receipt.BlockNumber.Sign() == 0 {
		return rejected
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return rejected
	}
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	parent := new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	if _, callErr := g.backend.CallContract(ctx, msg, parent); callErr != nil {
		cause := g.classify(method, callErr)
		var lerr *interfaces.LedgerError
		if errors.As(cause, &lerr) && !errors.Is(lerr.Kind, interfaces.ErrTransport) {
			rejected.Reason = lerr.Reason
			rejected.Err = cause
		}
	}
	return rejected
}

func (g *EthGateway) methodOf(tx *types.Transaction) string {
	if tx == nil || len(tx.Data()) < 4 {
		return ""
	}
	m, err := g.abi.MethodById(tx.Data()[:4])
	if err != nil {
		return ""
	}
	return m.Name
}

func waitError(handle interfaces.SubmissionHandle, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return interfaces.NewLedgerError(interfaces.ErrTimeout, "", handle.Hash.Hex(), err)
	}
	return fmt.Errorf("stopped waiting for %s: %w", handle.Hash.Hex(), err)
}

// depth returns the number of confirmations of a block at height included
// when the chain head is at height head.
func depth(head, included *big.Int) uint64 {
	if head == nil || included == nil || head.Cmp(included) < 0 {
		return 0
	}
	d := new(big.Int).Sub(head, included)
	return d.Uint64() + 1
}
