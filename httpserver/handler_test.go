package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
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
	"github.com/ruteri/gateway-network-client/token"
)

var (
	authority  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	gatekeeper = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	owner      = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func newTestServer(t *testing.T) (*memledger.Ledger, http.Handler) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := memledger.New(memledger.Options{AutoMine: true, Log: log})
	_, err := l.CreateNetwork("Test Network", authority, memledger.NetworkParams{
		Description: "explorer test",
		Gatekeepers: []common.Address{gatekeeper},
	})
	require.NoError(t, err)

	dir := network.NewDirectory(l.Network(), log)
	tokens := token.NewManager(l.Token(), dir, log)

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      log,
		GracefulShutdownDuration: time.Second,
	}, NewHandler(dir, tokens, log))
	require.NoError(t, err)
	return l, srv.Handler()
}

func hexAddr(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()
	body := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHandleGetNetwork(t *testing.T) {
	_, h := newTestServer(t)

	status, body := get(t, h, "/api/v1/networks/Test%20Network")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Test Network", body["name"])
	assert.Equal(t, "explorer test", body["description"])
	assert.EqualValues(t, 1, body["networkKey"])
	assert.Equal(t, []any{hexAddr(gatekeeper)}, body["gatekeepers"])

	status, body = get(t, h, "/api/v1/networks/Unknown")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "network_not_found", body["kind"])

	status, _ = get(t, h, "/api/v1/networks/a%20network%20name%20longer%20than%2032%20bytes")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandleGatekeepers(t *testing.T) {
	_, h := newTestServer(t)

	status, body := get(t, h, "/api/v1/networks/Test%20Network/gatekeepers")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{hexAddr(gatekeeper)}, body["gatekeepers"])

	status, body = get(t, h, "/api/v1/networks/Test%20Network/gatekeepers/"+gatekeeper.Hex())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["gatekeeper"])

	status, body = get(t, h, "/api/v1/networks/Test%20Network/gatekeepers/"+authority.Hex())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["gatekeeper"])

	status, _ = get(t, h, "/api/v1/networks/Test%20Network/gatekeepers/0x1234")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = get(t, h, "/api/v1/networks/Unknown/gatekeepers")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandleGetToken(t *testing.T) {
	l, h := newTestServer(t)

	status, _ := get(t, h, "/api/v1/networks/Test%20Network/tokens/"+owner.Hex())
	assert.Equal(t, http.StatusNotFound, status)

	dir := network.NewDirectory(l.Network(), nil)
	m := token.NewManager(l.Token(), dir, nil).WithTransactOpts(&bind.TransactOpts{From: gatekeeper})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	op, err := m.Issue(ctx, owner, "Test Network", 0, nil)
	require.NoError(t, err)
	_, err = op.Wait(ctx, 1)
	require.NoError(t, err)

	status, body := get(t, h, "/api/v1/networks/Test%20Network/tokens/"+owner.Hex())
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	tok, ok := body["token"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "active", tok["state"])
	assert.Equal(t, hexAddr(owner), tok["owner"])
}

func TestHandleTransportFailure(t *testing.T) {
	l, h := newTestServer(t)

	l.FailNext(contracts.MethodGetNetworkID, interfaces.NewLedgerError(interfaces.ErrTransport, contracts.MethodGetNetworkID, "", errors.New("connection refused")))
	status, body := get(t, h, "/api/v1/networks/Test%20Network")
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body["error"], "connection refused")
	assert.Equal(t, "transport", body["kind"])
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{interfaces.ErrNetworkNotFound, http.StatusNotFound},
		{interfaces.ErrTokenNotFound, http.StatusNotFound},
		{interfaces.ErrInvalidName, http.StatusBadRequest},
		{&RequestError{StatusCode: http.StatusTeapot, Err: errors.New("x")}, http.StatusTeapot},
		{interfaces.NewLedgerError(interfaces.ErrTransport, "getNetwork", "", nil), http.StatusBadGateway},
		{interfaces.NewLedgerError(interfaces.ErrUnauthorized, "getNetwork", "", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.err), tt.err.Error())
	}
}

func TestDrainUndrain(t *testing.T) {
	_, h := newTestServer(t)

	status, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = get(t, h, "/drain")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "draining", body["status"])

	status, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	_, body = get(t, h, "/drain")
	assert.Equal(t, "already draining", body["status"])

	_, body = get(t, h, "/undrain")
	assert.Equal(t, "ready", body["status"])
	_, body = get(t, h, "/undrain")
	assert.Equal(t, "already ready", body["status"])
	_, body = get(t, h, "/livez")
	assert.Equal(t, "alive", body["status"])
}

func TestShutdownDrains(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := memledger.New(memledger.Options{AutoMine: true, Log: log})
	dir := network.NewDirectory(l.Network(), log)

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      log,
		DrainDuration:            10 * time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, NewHandler(dir, token.NewManager(l.Token(), dir, log), log))
	require.NoError(t, err)

	srv.Shutdown()
	status, body := get(t, srv.Handler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not ready", body["status"])

	_, err = New(&HTTPServerConfig{Log: log}, nil)
	assert.Error(t, err)
}
