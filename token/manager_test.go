package token

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
	"github.com/ruteri/gateway-network-client/memledger"
	"github.com/ruteri/gateway-network-client/network"
	"github.com/ruteri/gateway-network-client/pending"
)

const testNetwork interfaces.NetworkName = "Test Network"

var (
	authority  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	gatekeeper = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

type testEnv struct {
	ledger  *memledger.Ledger
	manager *Manager
	clock   *time.Time
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func newTestEnv(t *testing.T, passExpire time.Duration) *testEnv {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := time.Unix(1_700_000_000, 0).UTC()
	now := func() time.Time { return clock }

	l := memledger.New(memledger.Options{AutoMine: true, Now: now, Log: log})
	_, err := l.CreateNetwork(testNetwork, authority, memledger.NetworkParams{
		PassExpireDuration: passExpire,
		Gatekeepers:        []common.Address{gatekeeper},
	})
	require.NoError(t, err)

	dir := network.NewDirectory(l.Network(), log)
	m := NewManager(l.Token(), dir, log).WithClock(now).WithTransactOpts(&bind.TransactOpts{From: gatekeeper})
	return &testEnv{ledger: l, manager: m, clock: &clock}
}

// confirm waits for a submitted operation and requires it to succeed.
func confirm(t *testing.T) func(*pending.Operation, error) *interfaces.Receipt {
	return func(op *pending.Operation, err error) *interfaces.Receipt {
		t.Helper()
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		receipt, err := op.Wait(ctx, 1)
		require.NoError(t, err)
		require.True(t, receipt.Success)
		return receipt
	}
}

func (e *testEnv) state(t *testing.T) interfaces.TokenState {
	tok, err := e.manager.GetToken(context.Background(), owner, testNetwork)
	require.NoError(t, err)
	return tok.State
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	m := env.manager

	_, err := m.GetToken(ctx, owner, testNetwork)
	assert.ErrorIs(t, err, interfaces.ErrTokenNotFound)

	receipt := confirm(t)(m.Issue(ctx, owner, testNetwork, 0, nil))
	_, ok := receipt.Event(contracts.EventTokenIssued)
	assert.True(t, ok)

	tok, err := m.GetToken(ctx, owner, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, owner, tok.Owner)
	assert.Equal(t, interfaces.NetworkKey(1), tok.Network)
	assert.Equal(t, interfaces.TokenStateActive, tok.State)
	assert.False(t, tok.HasExpiry())

	valid, err := m.Verify(ctx, owner, testNetwork)
	require.NoError(t, err)
	assert.True(t, valid)

	confirm(t)(m.Freeze(ctx, owner, testNetwork, nil))
	assert.Equal(t, interfaces.TokenStateFrozen, env.state(t))
	valid, err = m.Verify(ctx, owner, testNetwork)
	require.NoError(t, err)
	assert.False(t, valid)

	confirm(t)(m.Unfreeze(ctx, owner, testNetwork, nil))
	assert.Equal(t, interfaces.TokenStateActive, env.state(t))

	confirm(t)(m.Revoke(ctx, owner, testNetwork, nil))
	assert.Equal(t, interfaces.TokenStateRevoked, env.state(t))

	_, err = m.Unfreeze(ctx, owner, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)

	_, err = m.Refresh(ctx, owner, testNetwork, time.Hour, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)

	_, err = m.Issue(ctx, owner, testNetwork, 0, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)

	assert.Equal(t, interfaces.TokenStateRevoked, env.state(t))
	assert.Equal(t, int64(4), env.ledger.Submissions())
}

func TestManager_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	m := env.manager

	_, err := m.Freeze(ctx, owner, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)

	confirm(t)(m.Issue(ctx, owner, testNetwork, 0, nil))

	_, err = m.Unfreeze(ctx, owner, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)

	confirm(t)(m.Freeze(ctx, owner, testNetwork, nil))
	_, err = m.Freeze(ctx, owner, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)
	_, err = m.Expire(ctx, owner, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)
	_, err = m.Refresh(ctx, owner, testNetwork, 0, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)

	// Frozen tokens can be revoked.
	confirm(t)(m.Revoke(ctx, owner, testNetwork, nil))
	_, err = m.Revoke(ctx, owner, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)
}

func TestManager_Expiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 24*time.Hour)
	m := env.manager

	confirm(t)(m.Issue(ctx, owner, testNetwork, time.Hour, nil))
	tok, err := m.GetToken(ctx, owner, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Add(time.Hour), tok.ExpiresAt)
	assert.Equal(t, interfaces.TokenStateActive, tok.State)

	// Active turns into Expired once the expiry passes, without any submission.
	env.advance(2 * time.Hour)
	assert.Equal(t, interfaces.TokenStateExpired, env.state(t))
	valid, err := m.Verify(ctx, owner, testNetwork)
	require.NoError(t, err)
	assert.False(t, valid)

	// Refresh with the network default duration.
	receipt := confirm(t)(m.Refresh(ctx, owner, testNetwork, 0, nil))
	_, ok := receipt.Event(contracts.EventTokenRefreshed)
	assert.True(t, ok)
	tok, err = m.GetToken(ctx, owner, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, interfaces.TokenStateActive, tok.State)
	assert.Equal(t, env.clock.Add(24*time.Hour), tok.ExpiresAt)

	confirm(t)(m.Expire(ctx, owner, testNetwork, nil))
	assert.Equal(t, interfaces.TokenStateExpired, env.state(t))

	// Expired tokens can be revoked but not frozen.
	_, err = m.Freeze(ctx, owner, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidStateTransition)
	confirm(t)(m.Revoke(ctx, owner, testNetwork, nil))
	assert.Equal(t, interfaces.TokenStateRevoked, env.state(t))
}

func TestManager_PaysNetworkFee(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)
	m := env.manager
	fee := &interfaces.SubmitOptions{Value: big.NewInt(5)}

	confirm(t)(m.Issue(ctx, owner, testNetwork, 0, fee))
	confirm(t)(m.Freeze(ctx, owner, testNetwork, fee))
	assert.Equal(t, interfaces.TokenStateFrozen, env.state(t))

	// Unfreeze is not payable.
	_, err := m.Unfreeze(ctx, owner, testNetwork, fee)
	assert.ErrorIs(t, err, interfaces.ErrLedgerRejected)
}

func TestManager_Authorization(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	// The primary authority holds no gatekeeper rights.
	asAuthority := env.manager.WithTransactOpts(&bind.TransactOpts{From: authority})
	_, err := asAuthority.Issue(ctx, owner, testNetwork, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	readOnly := NewManager(env.ledger.Token(), network.NewDirectory(env.ledger.Network(), nil), nil)
	_, err = readOnly.Issue(ctx, owner, testNetwork, 0, nil)
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)

	_, err = env.manager.Issue(ctx, owner, "Unknown Network", 0, nil)
	assert.ErrorIs(t, err, interfaces.ErrNetworkNotFound)
	_, err = env.manager.GetToken(ctx, owner, "Unknown Network")
	assert.ErrorIs(t, err, interfaces.ErrNetworkNotFound)

	_, err = env.manager.Issue(ctx, owner, "a network name longer than 32 bytes", 0, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidName)

	assert.Equal(t, int64(0), env.ledger.Submissions())
}

func TestManager_WaitTwiceSubmitsOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, 0)

	op, err := env.manager.Issue(ctx, owner, testNetwork, 0, nil)
	require.NoError(t, err)

	first, err := op.Wait(ctx, 1)
	require.NoError(t, err)
	second, err := op.Wait(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), env.ledger.Submissions())
}
