package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/ruteri/gateway-network-client/api"
	"github.com/ruteri/gateway-network-client/interfaces"
)

// ExplorerClient implements api.ExplorerProvider over HTTP.
type ExplorerClient struct {
	// ServerAddr is the base URL of the explorer, e.g. http://127.0.0.1:8080
	ServerAddr string

	// HTTPClient is used for requests, http.DefaultClient when nil.
	HTTPClient *http.Client
}

// GetNetwork fetches the record of the named network.
func (c *ExplorerClient) GetNetwork(ctx context.Context, name interfaces.NetworkName) (*interfaces.GatekeeperNetworkRecord, error) {
	var record interfaces.GatekeeperNetworkRecord
	if err := c.get(ctx, networkPath(name), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListGatekeepers fetches the gatekeepers of the named network.
func (c *ExplorerClient) ListGatekeepers(ctx context.Context, name interfaces.NetworkName) (*api.GatekeepersResponse, error) {
	var resp api.GatekeepersResponse
	if err := c.get(ctx, networkPath(name)+"/gatekeepers", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsGatekeeper checks whether addr is a gatekeeper of the named network.
func (c *ExplorerClient) IsGatekeeper(ctx context.Context, name interfaces.NetworkName, addr common.Address) (*api.MembershipResponse, error) {
	var resp api.MembershipResponse
	if err := c.get(ctx, networkPath(name)+"/gatekeepers/"+addr.Hex(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetToken fetches the token of owner on the named network.
func (c *ExplorerClient) GetToken(ctx context.Context, name interfaces.NetworkName, owner common.Address) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.get(ctx, networkPath(name)+"/tokens/"+owner.Hex(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func networkPath(name interfaces.NetworkName) string {
	return "/api/v1/networks/" + url.PathEscape(string(name))
}

func (c *ExplorerClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerAddr+path, nil)
	if err != nil {
		return err
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response of %s: %w", path, err)
	}
	return nil
}

func responseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("explorer returned non-200 response: %d", resp.StatusCode)
	}

	var parsed api.ErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error == "" {
		return fmt.Errorf("explorer returned error %d: %s", resp.StatusCode, string(body))
	}
	if kind := api.KindError(parsed.Kind); kind != nil {
		return fmt.Errorf("%w: explorer returned %d: %s", kind, resp.StatusCode, parsed.Error)
	}
	return fmt.Errorf("explorer returned error %d: %s", resp.StatusCode, parsed.Error)
}

// MockExplorerProvider implements api.ExplorerProvider for testing.
type MockExplorerProvider struct {
	mock.Mock
}

func (m *MockExplorerProvider) GetNetwork(ctx context.Context, name interfaces.NetworkName) (*interfaces.GatekeeperNetworkRecord, error) {
	args := m.Called(ctx, name)
	record, _ := args.Get(0).(*interfaces.GatekeeperNetworkRecord)
	return record, args.Error(1)
}

func (m *MockExplorerProvider) ListGatekeepers(ctx context.Context, name interfaces.NetworkName) (*api.GatekeepersResponse, error) {
	args := m.Called(ctx, name)
	resp, _ := args.Get(0).(*api.GatekeepersResponse)
	return resp, args.Error(1)
}

func (m *MockExplorerProvider) IsGatekeeper(ctx context.Context, name interfaces.NetworkName, addr common.Address) (*api.MembershipResponse, error) {
	args := m.Called(ctx, name, addr)
	resp, _ := args.Get(0).(*api.MembershipResponse)
	return resp, args.Error(1)
}

func (m *MockExplorerProvider) GetToken(ctx context.Context, name interfaces.NetworkName, owner common.Address) (*api.TokenResponse, error) {
	args := m.Called(ctx, name, owner)
	resp, _ := args.Get(0).(*api.TokenResponse)
	return resp, args.Error(1)
}

var (
	_ api.ExplorerProvider = (*ExplorerClient)(nil)
	_ api.ExplorerProvider = (*MockExplorerProvider)(nil)
)
