// Package token manages the lifecycle of gateway tokens bound to an
// (owner, network) pair.
//
// State transitions are validated by the ledger only: the local view of a
// token may be stale, so Manager never rejects a transition itself. Invalid
// transitions surface as interfaces.ErrInvalidStateTransition and missing
// gatekeeper rights as interfaces.ErrUnauthorized.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
	"github.com/ruteri/gateway-network-client/pending"
)

// NetworkResolver turns network names into ledger keys.
type NetworkResolver interface {
	GetNetworkID(ctx context.Context, name interfaces.NetworkName) (interfaces.NetworkKey, error)
}

// Manager issues and administers gateway tokens through a gateway bound to the
// GatewayToken contract.
type Manager struct {
	gateway  interfaces.LedgerGateway
	resolver NetworkResolver
	auth     *bind.TransactOpts
	log      *slog.Logger
	now      func() time.Time
}

// NewManager creates a read-only manager. Use WithTransactOpts to submit changes.
func NewManager(gateway interfaces.LedgerGateway, resolver NetworkResolver, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		gateway:  gateway,
		resolver: resolver,
		log:      log,
		now:      time.Now,
	}
}

// WithTransactOpts returns a copy of the manager that signs changes with auth.
func (m *Manager) WithTransactOpts(auth *bind.TransactOpts) *Manager {
	c := *m
	c.auth = auth
	return &c
}

// WithClock returns a copy of the manager using now to derive expiries and the Expired state.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	c := *m
	c.now = now
	return &c
}

// Issue creates an active token for owner on the named network. An expiry of
// zero applies the network's default pass duration.
func (m *Manager) Issue(ctx context.Context, owner common.Address, name interfaces.NetworkName, expiry time.Duration, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return m.submit(ctx, owner, name, opts, contracts.MethodIssue, func() []any {
		return []any{m.expiration(expiry), new(big.Int)}
	})
}

// Freeze suspends an active token.
func (m *Manager) Freeze(ctx context.Context, owner common.Address, name interfaces.NetworkName, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return m.submit(ctx, owner, name, opts, contracts.MethodFreeze, nil)
}

// Unfreeze reactivates a frozen token.
func (m *Manager) Unfreeze(ctx context.Context, owner common.Address, name interfaces.NetworkName, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return m.submit(ctx, owner, name, opts, contracts.MethodUnfreeze, nil)
}

// Revoke permanently invalidates a token. Revoked is terminal.
func (m *Manager) Revoke(ctx context.Context, owner common.Address, name interfaces.NetworkName, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return m.submit(ctx, owner, name, opts, contracts.MethodRevoke, nil)
}

// Expire expires an active token immediately.
func (m *Manager) Expire(ctx context.Context, owner common.Address, name interfaces.NetworkName, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return m.submit(ctx, owner, name, opts, contracts.MethodExpireToken, nil)
}

// Refresh extends an active or expired token and makes it active. An expiry
// of zero applies the network's default pass duration.
func (m *Manager) Refresh(ctx context.Context, owner common.Address, name interfaces.NetworkName, expiry time.Duration, opts *interfaces.SubmitOptions) (*pending.Operation, error) {
	return m.submit(ctx, owner, name, opts, contracts.MethodRefreshToken, func() []any {
		return []any{m.expiration(expiry)}
	})
}

// GetToken reads the token of owner on the named network.
func (m *Manager) GetToken(ctx context.Context, owner common.Address, name interfaces.NetworkName) (*interfaces.GatewayToken, error) {
	key, err := m.resolver.GetNetworkID(ctx, name)
	if err != nil {
		return nil, err
	}

	out, err := m.gateway.Call(ctx, contracts.MethodGetToken, owner, key.Big())
	if err != nil {
		return nil, err
	}
	exists, err := contracts.Output[bool](out, 0)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: owner %s on network %q", interfaces.ErrTokenNotFound, owner.Hex(), name)
	}
	state, err := contracts.Output[uint8](out, 1)
	if err != nil {
		return nil, err
	}
	expiration, err := contracts.Output[*big.Int](out, 2)
	if err != nil {
		return nil, err
	}

	expiresAt := interfaces.ExpiryFromUnix(expiration)
	return &interfaces.GatewayToken{
		Owner:     owner,
		Network:   key,
		State:     interfaces.EffectiveTokenState(interfaces.TokenState(state), expiresAt, m.now()),
		ExpiresAt: expiresAt,
	}, nil
}

// Verify reports whether owner holds a valid token on the named network, as
// judged by the ledger.
func (m *Manager) Verify(ctx context.Context, owner common.Address, name interfaces.NetworkName) (bool, error) {
	key, err := m.resolver.GetNetworkID(ctx, name)
	if err != nil {
		return false, err
	}
	out, err := m.gateway.Call(ctx, contracts.MethodVerifyToken, owner, key.Big())
	if err != nil {
		return false, err
	}
	return contracts.Output[bool](out, 0)
}

func (m *Manager) expiration(expiry time.Duration) *big.Int {
	if expiry <= 0 {
		return new(big.Int)
	}
	return interfaces.ExpiryToUnix(m.now().Add(expiry))
}

// submit resolves the network and submits method with (owner, key) followed by
// the arguments returned by extra.
func (m *Manager) submit(ctx context.Context, owner common.Address, name interfaces.NetworkName, opts *interfaces.SubmitOptions, method string, extra func() []any) (*pending.Operation, error) {
	if m.auth == nil {
		return nil, interfaces.ErrNoTransactOpts
	}
	key, err := m.resolver.GetNetworkID(ctx, name)
	if err != nil {
		return nil, err
	}

	args := []any{owner, key.Big()}
	if extra != nil {
		args = append(args, extra()...)
	}
	var submitOpts interfaces.SubmitOptions
	if opts != nil {
		submitOpts = *opts
	}

	handle, err := m.gateway.Submit(ctx, m.auth, submitOpts, method, args...)
	if err != nil {
		m.log.Debug("Token change not submitted", "method", method, "owner", owner.Hex(), "network", name, "err", err)
		return nil, err
	}

	m.log.Info("Token change submitted", "method", method, "owner", owner.Hex(), "network", name, "networkKey", key, "txHash", handle.Hash.Hex())
	return pending.New(m.gateway, handle, method, m.log), nil
}
