package network

import (
	"context"
	"errors"
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
	"github.com/ruteri/gateway-network-client/ledger"
	"github.com/ruteri/gateway-network-client/memledger"
	"github.com/ruteri/gateway-network-client/pending"
)

const testNetwork interfaces.NetworkName = "Test Network"

var (
	authorityA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	authorityB = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	authorityC = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	gatekeeper = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signer(addr common.Address) *bind.TransactOpts {
	return &bind.TransactOpts{From: addr}
}

func setup(t *testing.T, params memledger.NetworkParams) (*memledger.Ledger, *Directory, interfaces.NetworkKey) {
	l := memledger.New(memledger.Options{AutoMine: true, Log: testLogger()})
	key, err := l.CreateNetwork(testNetwork, authorityA, params)
	require.NoError(t, err)
	return l, NewDirectory(l.Network(), testLogger()), key
}

func wait(t *testing.T, op *pending.Operation) *interfaces.Receipt {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	receipt, err := op.Wait(ctx, 1)
	require.NoError(t, err)
	require.True(t, receipt.Success)
	return receipt
}

func must(op *pending.Operation, err error) *pending.Operation {
	if err != nil {
		panic(err)
	}
	return op
}

func bigNeg() *big.Int {
	return big.NewInt(-1)
}

func TestDirectory_EndToEnd(t *testing.T) {
	ctx := context.Background()
	l := memledger.New(memledger.Options{AutoMine: true, Log: testLogger()})
	dir := NewDirectory(l.Network(), testLogger())

	_, err := dir.GetNetworkID(ctx, testNetwork)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrNetworkNotFound)

	_, err = dir.GetNetworkByName(ctx, testNetwork)
	assert.ErrorIs(t, err, interfaces.ErrNetworkNotFound)

	_, err = l.CreateNetwork(testNetwork, authorityA, memledger.NetworkParams{
		PassExpireDuration: 24 * time.Hour,
		Description:        "A test network",
		Fees:               interfaces.FeeSchedule{IssueFee: 1, ExpireFee: 1, RefreshFee: 1, FreezeFee: 1},
	})
	require.NoError(t, err)

	key, err := dir.GetNetworkID(ctx, testNetwork)
	require.NoError(t, err)
	assert.False(t, key.IsZero())

	exists, err := dir.DoesNetworkExist(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = dir.DoesNetworkExist(ctx, key+100)
	require.NoError(t, err)
	assert.False(t, exists)

	gatekeepers, err := dir.GetGatekeepersOnNetwork(ctx, testNetwork)
	require.NoError(t, err)
	assert.NotNil(t, gatekeepers)
	assert.Empty(t, gatekeepers)

	record, err := dir.GetNetwork(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, record.Key)
	assert.Equal(t, testNetwork, record.Name)
	assert.Equal(t, authorityA, record.PrimaryAuthority)
	assert.Equal(t, uint64(86400), record.PassExpireDurationInSeconds)
	assert.Equal(t, 24*time.Hour, record.PassExpireDuration())
	assert.Equal(t, "A test network", record.Description)
	assert.True(t, record.UsesNativeFees())
	assert.False(t, record.LastFeeUpdate.IsZero())

	byName, err := dir.GetNetworkByName(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, record, byName)

	_, err = dir.GetNetwork(ctx, key+100)
	assert.ErrorIs(t, err, interfaces.ErrNetworkNotFound)

	feeToken, err := dir.GetSupportedFeeTokenAddress(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, feeToken)
}

func TestDirectory_InvalidNameNeverReachesLedger(t *testing.T) {
	gw := new(ledger.MockGateway)
	dir := NewDirectory(gw, testLogger()).WithTransactOpts(signer(authorityA))
	tooLong := interfaces.NetworkName("a network name longer than 32 bytes")

	_, err := dir.GetNetworkID(context.Background(), tooLong)
	assert.ErrorIs(t, err, interfaces.ErrInvalidName)
	_, err = dir.IsGatekeeper(context.Background(), tooLong, gatekeeper)
	assert.ErrorIs(t, err, interfaces.ErrInvalidName)
	_, err = dir.AddGatekeeper(context.Background(), tooLong, gatekeeper, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidName)

	// Any call would fail the test as no expectations are set.
	gw.AssertExpectations(t)
}

func TestDirectory_RequiresCredential(t *testing.T) {
	l, dir, _ := setup(t, memledger.NetworkParams{})

	_, err := dir.AddGatekeeper(context.Background(), testNetwork, gatekeeper, nil)
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
	assert.Equal(t, int64(0), l.Submissions())

	// Binding a credential does not change the original directory.
	_ = dir.WithTransactOpts(signer(authorityA))
	_, err = dir.ClaimPrimaryAuthority(context.Background(), testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrNoTransactOpts)
}

func TestDirectory_GatekeeperManagement(t *testing.T) {
	ctx := context.Background()
	l, dir, _ := setup(t, memledger.NetworkParams{})
	admin := dir.WithTransactOpts(signer(authorityA))

	op, err := admin.AddGatekeeper(ctx, testNetwork, gatekeeper, nil)
	require.NoError(t, err)
	receipt := wait(t, op)
	ev, ok := receipt.Event(contracts.EventGatekeeperAdded)
	require.True(t, ok)
	assert.Equal(t, gatekeeper, ev.Args["gatekeeper"])

	isGk, err := dir.IsGatekeeper(ctx, testNetwork, gatekeeper)
	require.NoError(t, err)
	assert.True(t, isGk)

	// The primary authority is not a gatekeeper by virtue of its role.
	isGk, err = dir.IsGatekeeper(ctx, testNetwork, authorityA)
	require.NoError(t, err)
	assert.False(t, isGk)

	// Only the primary authority may manage gatekeepers.
	_, err = dir.WithTransactOpts(signer(gatekeeper)).AddGatekeeper(ctx, testNetwork, authorityB, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
	assert.Equal(t, interfaces.OutcomeNotApplied, interfaces.ClassifyOutcome(err))

	// Adding an existing gatekeeper is passed through from the ledger and leaves state intact.
	_, err = admin.AddGatekeeper(ctx, testNetwork, gatekeeper, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrLedgerRejected)
	var lerr *interfaces.LedgerError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, contracts.ErrNameGatekeeperAlreadyExists, lerr.Reason)

	wait(t, must(admin.AddGatekeeper(ctx, testNetwork, authorityB, nil)))
	gatekeepers, err := dir.GetGatekeepersOnNetwork(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{gatekeeper, authorityB}, gatekeepers)

	wait(t, must(admin.RemoveGatekeeper(ctx, testNetwork, gatekeeper, nil)))
	gatekeepers, err = dir.GetGatekeepersOnNetwork(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{authorityB}, gatekeepers)

	_, err = admin.RemoveGatekeeper(ctx, testNetwork, gatekeeper, nil)
	assert.ErrorIs(t, err, interfaces.ErrLedgerRejected)

	_, err = admin.AddGatekeeper(ctx, "Unknown Network", gatekeeper, nil)
	assert.ErrorIs(t, err, interfaces.ErrNetworkNotFound)

	assert.Equal(t, int64(3), l.Submissions())
}

func TestDirectory_PrimaryAuthorityHandover(t *testing.T) {
	ctx := context.Background()
	_, dir, key := setup(t, memledger.NetworkParams{})
	asA := dir.WithTransactOpts(signer(authorityA))
	asB := dir.WithTransactOpts(signer(authorityB))
	asC := dir.WithTransactOpts(signer(authorityC))

	_, err := asB.ClaimPrimaryAuthority(ctx, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrNoPendingClaim)

	receipt := wait(t, must(asA.UpdatePrimaryAuthority(ctx, testNetwork, authorityB, nil)))
	_, ok := receipt.Event(contracts.EventPrimaryAuthorityProposed)
	assert.True(t, ok)

	// A keeps full rights until B claims.
	record, err := dir.GetNetwork(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, authorityA, record.PrimaryAuthority)
	wait(t, must(asA.UpdateDescription(ctx, "still A", testNetwork, nil)))

	_, err = asC.ClaimPrimaryAuthority(ctx, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	// Re-proposing overwrites the pending claim.
	wait(t, must(asA.UpdatePrimaryAuthority(ctx, testNetwork, authorityC, nil)))
	_, err = asB.ClaimPrimaryAuthority(ctx, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	receipt = wait(t, must(asC.ClaimPrimaryAuthority(ctx, testNetwork, nil)))
	ev, ok := receipt.Event(contracts.EventAuthorityClaimed)
	require.True(t, ok)
	assert.Equal(t, authorityC, ev.Args["newPrimaryAuthority"])

	record, err = dir.GetNetwork(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, authorityC, record.PrimaryAuthority)

	_, err = asC.ClaimPrimaryAuthority(ctx, testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrNoPendingClaim)

	_, err = asA.AddGatekeeper(ctx, testNetwork, gatekeeper, nil)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	_, err = asC.UpdatePrimaryAuthority(ctx, testNetwork, common.Address{}, nil)
	assert.ErrorIs(t, err, interfaces.ErrLedgerRejected)
}

func TestDirectory_UpdateFeesReplacesAllFields(t *testing.T) {
	ctx := context.Background()
	initial := interfaces.FeeSchedule{IssueFee: 1, ExpireFee: 1, RefreshFee: 1, FreezeFee: 1}
	_, dir, key := setup(t, memledger.NetworkParams{Fees: initial})
	admin := dir.WithTransactOpts(signer(authorityA))

	record, err := dir.GetNetwork(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, initial, record.NetworkFee)

	update := interfaces.FeeSchedule{IssueFee: 5, ExpireFee: 1, RefreshFee: 1, FreezeFee: 1}
	receipt := wait(t, must(admin.UpdateFees(ctx, testNetwork, update, nil)))
	ev, ok := receipt.Event(contracts.EventFeesUpdated)
	require.True(t, ok)
	assert.Equal(t, uint16(5), ev.Args["issueFee"])

	record, err = dir.GetNetwork(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, update, record.NetworkFee)

	zero := interfaces.FeeSchedule{}
	wait(t, must(admin.UpdateFees(ctx, testNetwork, zero, nil)))
	record, err = dir.GetNetwork(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, zero, record.NetworkFee)
}

func TestDirectory_PolicyUpdates(t *testing.T) {
	ctx := context.Background()
	_, dir, key := setup(t, memledger.NetworkParams{FeatureMask: 0b0001})
	admin := dir.WithTransactOpts(signer(authorityA))

	record, err := dir.GetNetwork(ctx, key)
	require.NoError(t, err)
	assert.True(t, record.HasFeature(0))

	// The mask is replaced, not merged.
	wait(t, must(admin.UpdateNetworkFeatures(ctx, testNetwork, 0b0100, nil)))
	wait(t, must(admin.UpdatePassExpirationTimeConfig(ctx, testNetwork, 3600, nil)))
	wait(t, must(admin.UpdateDescription(ctx, "updated description", testNetwork, nil)))

	record, err = dir.GetNetwork(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(0b0100), record.NetworkFeatureMask)
	assert.False(t, record.HasFeature(0))
	assert.True(t, record.HasFeature(2))
	assert.Equal(t, uint64(3600), record.PassExpireDurationInSeconds)
	assert.Equal(t, "updated description", record.Description)

	_, err = dir.WithTransactOpts(signer(gatekeeper)).UpdateDescription(ctx, "nope", testNetwork, nil)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	_, err = admin.UpdateDescription(ctx, "bad opts", testNetwork, &interfaces.SubmitOptions{GasPrice: bigNeg()})
	assert.ErrorIs(t, err, interfaces.ErrInvalidOptions)
}

func TestDirectory_WaitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := memledger.New(memledger.Options{Log: testLogger()})
	_, err := l.CreateNetwork(testNetwork, authorityA, memledger.NetworkParams{})
	require.NoError(t, err)
	admin := NewDirectory(l.Network(), testLogger()).WithTransactOpts(signer(authorityA))

	op, err := admin.AddGatekeeper(ctx, testNetwork, gatekeeper, nil)
	require.NoError(t, err)
	assert.Equal(t, contracts.MethodAddGatekeeper, op.Method())

	l.Commit()
	first, err := op.Wait(ctx, 1)
	require.NoError(t, err)
	second, err := op.Wait(ctx, 1)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), l.Submissions())
}

func TestDirectory_TransportFailure(t *testing.T) {
	ctx := context.Background()
	l, dir, _ := setup(t, memledger.NetworkParams{})
	l.FailNext(contracts.MethodGetGatekeepersOnNetwork,
		interfaces.NewLedgerError(interfaces.ErrTransport, contracts.MethodGetGatekeepersOnNetwork, "", errors.New("connection reset")))

	_, err := dir.GetGatekeepersOnNetwork(ctx, testNetwork)
	require.Error(t, err)
	assert.True(t, interfaces.IsRetryableRead(err))

	_, err = dir.GetGatekeepersOnNetwork(ctx, testNetwork)
	assert.NoError(t, err)
}
