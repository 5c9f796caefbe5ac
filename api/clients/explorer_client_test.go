package clients

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/gateway-network-client/api"
	"github.com/ruteri/gateway-network-client/httpserver"
	"github.com/ruteri/gateway-network-client/interfaces"
	"github.com/ruteri/gateway-network-client/memledger"
	"github.com/ruteri/gateway-network-client/network"
	"github.com/ruteri/gateway-network-client/token"
)

const testNetwork interfaces.NetworkName = "Test Network"

var (
	authority  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	gatekeeper = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func setupExplorer(t *testing.T) (*ExplorerClient, *token.Manager) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := memledger.New(memledger.Options{AutoMine: true, Log: log})
	_, err := l.CreateNetwork(testNetwork, authority, memledger.NetworkParams{
		PassExpireDuration: time.Hour,
		Gatekeepers:        []common.Address{gatekeeper},
	})
	require.NoError(t, err)

	dir := network.NewDirectory(l.Network(), log)
	tokens := token.NewManager(l.Token(), dir, log)
	srv, err := httpserver.New(&httpserver.HTTPServerConfig{Log: log}, httpserver.NewHandler(dir, tokens, log))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &ExplorerClient{ServerAddr: ts.URL, HTTPClient: ts.Client()}, tokens.WithTransactOpts(&bind.TransactOpts{From: gatekeeper})
}

func TestExplorerClient_Network(t *testing.T) {
	ctx := context.Background()
	c, _ := setupExplorer(t)

	record, err := c.GetNetwork(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, testNetwork, record.Name)
	assert.Equal(t, interfaces.NetworkKey(1), record.Key)
	assert.Equal(t, authority, record.PrimaryAuthority)
	assert.Equal(t, time.Hour, record.PassExpireDuration())

	gatekeepers, err := c.ListGatekeepers(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{gatekeeper}, gatekeepers.Gatekeepers)

	membership, err := c.IsGatekeeper(ctx, testNetwork, gatekeeper)
	require.NoError(t, err)
	assert.True(t, membership.Gatekeeper)
	membership, err = c.IsGatekeeper(ctx, testNetwork, owner)
	require.NoError(t, err)
	assert.False(t, membership.Gatekeeper)

	_, err = c.GetNetwork(ctx, "Unknown")
	assert.ErrorIs(t, err, interfaces.ErrNetworkNotFound)

	_, err = c.GetNetwork(ctx, "a network name longer than 32 bytes")
	assert.ErrorIs(t, err, interfaces.ErrInvalidName)
}

func TestExplorerClient_Token(t *testing.T) {
	ctx := context.Background()
	c, tokens := setupExplorer(t)

	_, err := c.GetToken(ctx, testNetwork, owner)
	assert.ErrorIs(t, err, interfaces.ErrTokenNotFound)

	op, err := tokens.Issue(ctx, owner, testNetwork, 0, nil)
	require.NoError(t, err)
	_, err = op.Wait(ctx, 1)
	require.NoError(t, err)

	resp, err := c.GetToken(ctx, testNetwork, owner)
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, owner, resp.Token.Owner)
	assert.Equal(t, interfaces.TokenStateActive, resp.Token.State)
	assert.True(t, resp.Token.HasExpiry())
}

func TestExplorerClient_UnstructuredError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := &ExplorerClient{ServerAddr: ts.URL}
	_, err := c.GetNetwork(context.Background(), testNetwork)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestMockExplorerProvider(t *testing.T) {
	var provider api.ExplorerProvider = new(MockExplorerProvider)
	m := provider.(*MockExplorerProvider)
	m.On("GetToken", mock.Anything, testNetwork, owner).Return(nil, interfaces.ErrTokenNotFound)

	resp, err := provider.GetToken(context.Background(), testNetwork, owner)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, interfaces.ErrTokenNotFound)
	m.AssertExpectations(t)
}
