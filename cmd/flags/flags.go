// Package flags holds the command line flags and client wiring shared by the
// gateway binaries.
package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	gwcommon "github.com/ruteri/gateway-network-client/common"
	"github.com/ruteri/gateway-network-client/httpserver"
	"github.com/ruteri/gateway-network-client/interfaces"
	"github.com/ruteri/gateway-network-client/ledger"
	"github.com/ruteri/gateway-network-client/memledger"
	"github.com/ruteri/gateway-network-client/network"
	"github.com/ruteri/gateway-network-client/token"
)

// DevNetwork is the network registered by the in-memory ledger in dev mode.
const DevNetwork interfaces.NetworkName = "Dev Network"

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logger := gwcommon.SetupLogger(&gwcommon.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: gwcommon.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// Clients are the network directory and token manager bound to the configured ledger.
type Clients struct {
	Directory *network.Directory
	Tokens    *token.Manager
	// Dev is the in-memory ledger backing the clients in dev mode, nil otherwise.
	Dev *memledger.Ledger

	closeFn func()
}

func (c *Clients) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// NewClients connects to the ledger selected by the flags. When a private key
// is configured, the returned clients sign submissions with it.
func NewClients(cCtx *cli.Context, logger *slog.Logger) (*Clients, error) {
	if cCtx.Bool(DevFlag.Name) {
		return newDevClients(cCtx, logger)
	}

	networkAddr, err := contractAddress(cCtx, NetworkContractFlag)
	if err != nil {
		return nil, err
	}
	tokenAddr, err := contractAddress(cCtx, TokenContractFlag)
	if err != nil {
		return nil, err
	}

	rpcAddress := cCtx.String(RpcAddrFlag.Name)
	logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
	client, err := ethclient.DialContext(cCtx.Context, rpcAddress)
	if err != nil {
		return nil, fmt.Errorf("could not dial RPC: %w", err)
	}

	cfg := ledger.Config{
		Log:         logger,
		ReadRetries: cCtx.Uint64(ReadRetriesFlag.Name),
		RateLimit:   cCtx.Float64(RateLimitFlag.Name),
		RateBurst:   cCtx.Int(RateBurstFlag.Name),
	}
	networkGateway, err := ledger.NewGatewayNetworkGateway(client, networkAddr, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	tokenGateway, err := ledger.NewGatewayTokenGateway(client, tokenAddr, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("Bound ledger contracts", "gatewayNetwork", networkGateway.Address().Hex(), "gatewayToken", tokenGateway.Address().Hex())

	dir := network.NewDirectory(networkGateway, logger)
	tokens := token.NewManager(tokenGateway, dir, logger)

	if cCtx.IsSet(PrivateKeyFlag.Name) {
		chainID, err := chainID(cCtx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		auth, err := TransactOpts(cCtx, chainID)
		if err != nil {
			client.Close()
			return nil, err
		}
		logger.Info("Signing submissions", "from", auth.From.Hex(), "chainID", chainID)
		dir = dir.WithTransactOpts(auth)
		tokens = tokens.WithTransactOpts(auth)
	}

	return &Clients{Directory: dir, Tokens: tokens, closeFn: client.Close}, nil
}

// newDevClients backs the clients with an in-memory ledger holding DevNetwork.
// The configured key, or a random one, is both primary authority and gatekeeper.
func newDevClients(cCtx *cli.Context, logger *slog.Logger) (*Clients, error) {
	var auth *bind.TransactOpts
	var err error
	if cCtx.IsSet(PrivateKeyFlag.Name) {
		auth, err = TransactOpts(cCtx, big.NewInt(1337))
	} else {
		key, genErr := crypto.GenerateKey()
		if genErr != nil {
			return nil, genErr
		}
		auth, err = bind.NewKeyedTransactorWithChainID(key, big.NewInt(1337))
	}
	if err != nil {
		return nil, err
	}

	dev := memledger.New(memledger.Options{AutoMine: true, Log: logger})
	key, err := dev.CreateNetwork(DevNetwork, auth.From, memledger.NetworkParams{
		Description: "in-memory development network",
		Gatekeepers: []common.Address{auth.From},
	})
	if err != nil {
		return nil, err
	}
	logger.Warn("Using in-memory ledger, state is lost on exit", "network", DevNetwork, "networkKey", key, "authority", auth.From.Hex())

	dir := network.NewDirectory(dev.Network(), logger).WithTransactOpts(auth)
	tokens := token.NewManager(dev.Token(), dir, logger).WithTransactOpts(auth)
	return &Clients{Directory: dir, Tokens: tokens, Dev: dev}, nil
}

// TransactOpts builds a keyed transactor from the private key flag.
func TransactOpts(cCtx *cli.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(cCtx.String(PrivateKeyFlag.Name)), "0x")
	if raw == "" {
		return nil, interfaces.ErrNoTransactOpts
	}
	privateKey, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return bind.NewKeyedTransactorWithChainID(privateKey, chainID)
}

// SubmitOptions reads the gas and value overrides.
func SubmitOptions(cCtx *cli.Context) (*interfaces.SubmitOptions, error) {
	opts := &interfaces.SubmitOptions{GasLimit: cCtx.Uint64(GasLimitFlag.Name)}

	var err error
	if opts.GasPrice, err = bigFlag(cCtx, GasPriceFlag); err != nil {
		return nil, err
	}
	if opts.Value, err = bigFlag(cCtx, ValueFlag); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func bigFlag(cCtx *cli.Context, flag *cli.StringFlag) (*big.Int, error) {
	if !cCtx.IsSet(flag.Name) {
		return nil, nil
	}
	v, ok := math.ParseBig256(cCtx.String(flag.Name))
	if !ok {
		return nil, fmt.Errorf("invalid --%s: %q", flag.Name, cCtx.String(flag.Name))
	}
	return v, nil
}

func contractAddress(cCtx *cli.Context, flag *cli.StringFlag) (common.Address, error) {
	if !cCtx.IsSet(flag.Name) {
		return common.Address{}, fmt.Errorf("--%s is required unless --%s is set", flag.Name, DevFlag.Name)
	}
	addr, err := interfaces.ParseAddress(cCtx.String(flag.Name))
	if err != nil {
		return common.Address{}, fmt.Errorf("could not parse --%s: %w", flag.Name, err)
	}
	return addr, nil
}

func chainID(cCtx *cli.Context, client *ethclient.Client) (*big.Int, error) {
	if id := cCtx.Uint64(ChainIDFlag.Name); id != 0 {
		return new(big.Int).SetUint64(id), nil
	}
	ctx, cancel := context.WithTimeout(cCtx.Context, 10*time.Second)
	defer cancel()
	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, errors.Join(interfaces.ErrTransport, fmt.Errorf("could not query chain id: %w", err))
	}
	return id, nil
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	EnvVars: []string{"GATEWAY_RPC_ADDR"},
	Usage:   "address to connect to RPC",
}
var NetworkContractFlag = &cli.StringFlag{
	Name:    "network-contract",
	EnvVars: []string{"GATEWAY_NETWORK_CONTRACT"},
	Usage:   "GatewayNetwork contract address",
}
var TokenContractFlag = &cli.StringFlag{
	Name:    "token-contract",
	EnvVars: []string{"GATEWAY_TOKEN_CONTRACT"},
	Usage:   "GatewayToken contract address",
}
var PrivateKeyFlag = &cli.StringFlag{
	Name:    "privkey",
	EnvVars: []string{"GATEWAY_PRIVKEY"},
	Usage:   "hex private key used to sign submissions",
}
var ChainIDFlag = &cli.Uint64Flag{
	Name:    "chain-id",
	EnvVars: []string{"GATEWAY_CHAIN_ID"},
	Usage:   "chain id used for signing, queried from the RPC when 0",
}
var DevFlag = &cli.BoolFlag{
	Name:  "dev",
	Value: false,
	Usage: "use an in-memory ledger holding a single development network",
}

var ReadRetriesFlag = &cli.Uint64Flag{
	Name:  "read-retries",
	Value: 3,
	Usage: "retries of view calls failing with transport errors",
}
var RateLimitFlag = &cli.Float64Flag{
	Name:    "rpc-rate-limit",
	EnvVars: []string{"GATEWAY_RPC_RATE_LIMIT"},
	Usage:   "maximum RPC requests per second, 0 disables limiting",
}
var RateBurstFlag = &cli.IntFlag{
	Name:  "rpc-rate-burst",
	Value: 1,
	Usage: "RPC rate limiter burst",
}

var ConfirmationsFlag = &cli.Uint64Flag{
	Name:  "confirmations",
	Value: interfaces.DefaultConfirmations,
	Usage: "number of confirmations to wait for",
}
var TimeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Value: 2 * time.Minute,
	Usage: "maximum time to wait for confirmations",
}
var GasLimitFlag = &cli.Uint64Flag{
	Name:  "gas-limit",
	Usage: "gas limit override, estimated when 0",
}
var GasPriceFlag = &cli.StringFlag{
	Name:  "gas-price",
	Usage: "gas price override in wei",
}
var ValueFlag = &cli.StringFlag{
	Name:  "value",
	Usage: "native currency in wei attached to the submission",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	EnvVars: []string{"GATEWAY_LISTEN_ADDR"},
	Usage:   "address to listen on for API",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: gwcommon.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var LedgerFlags = []cli.Flag{
	RpcAddrFlag,
	NetworkContractFlag,
	TokenContractFlag,
	PrivateKeyFlag,
	ChainIDFlag,
	DevFlag,
	ReadRetriesFlag,
	RateLimitFlag,
	RateBurstFlag,
}

var SubmitFlags = []cli.Flag{
	ConfirmationsFlag,
	TimeoutFlag,
	GasLimitFlag,
	GasPriceFlag,
	ValueFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
