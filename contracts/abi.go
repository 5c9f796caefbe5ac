// Package contracts holds the ABI of the GatewayNetwork and GatewayToken
// contracts and the Go types mirroring their tuple arguments.
package contracts

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Method names of the GatewayNetwork contract.
const (
	MethodGetNetworkID                = "getNetworkId"
	MethodDoesNetworkExist            = "doesNetworkExist"
	MethodGetNetwork                  = "getNetwork"
	MethodIsGatekeeper                = "isGateKeeper"
	MethodGetGatekeepersOnNetwork     = "getGatekeepersOnNetwork"
	MethodGetSupportedFeeTokenAddress = "getSupportedFeeTokenAddress"
	MethodAddGatekeeper               = "addGatekeeper"
	MethodRemoveGatekeeper            = "removeGatekeeper"
	MethodUpdatePrimaryAuthority      = "updatePrimaryAuthority"
	MethodClaimPrimaryAuthority       = "claimPrimaryAuthority"
	MethodUpdatePassExpireTime        = "updatePassExpireTime"
	MethodUpdateDescription           = "updateDescription"
	MethodUpdateFees                  = "updateFees"
	MethodUpdateNetworkFeatures       = "updateNetworkFeatures"
)

// Method names of the GatewayToken contract.
const (
	MethodIssue        = "issue"
	MethodFreeze       = "freeze"
	MethodUnfreeze     = "unfreeze"
	MethodRevoke       = "revoke"
	MethodExpireToken  = "expireToken"
	MethodRefreshToken = "refreshToken"
	MethodGetToken     = "getToken"
	MethodVerifyToken  = "verifyToken"
)

// Event names emitted by the contracts.
const (
	EventGatekeeperAdded          = "GatekeeperAdded"
	EventGatekeeperRemoved        = "GatekeeperRemoved"
	EventPrimaryAuthorityProposed = "PrimaryAuthorityProposed"
	EventAuthorityClaimed         = "AuthorityClaimed"
	EventPassExpireTimeUpdated    = "PassExpireTimeUpdated"
	EventDescriptionUpdated       = "DescriptionUpdated"
	EventFeesUpdated              = "FeesUpdated"
	EventNetworkFeaturesUpdated   = "NetworkFeaturesUpdated"

	EventTokenIssued    = "GatewayTokenIssued"
	EventTokenFrozen    = "GatewayTokenFrozen"
	EventTokenUnfrozen  = "GatewayTokenUnfrozen"
	EventTokenRevoked   = "GatewayTokenRevoked"
	EventTokenExpired   = "GatewayTokenExpired"
	EventTokenRefreshed = "GatewayTokenRefreshed"
)

// NetworkFeesBps mirrors the fee tuple of the GatewayNetwork contract.
type NetworkFeesBps struct {
	IssueFee   uint16
	RefreshFee uint16
	ExpireFee  uint16
	FreezeFee  uint16
}

// GatekeeperNetworkData mirrors the network record returned by getNetwork.
type GatekeeperNetworkData struct {
	PrimaryAuthority            common.Address
	Name                        [32]byte
	Gatekeepers                 []common.Address
	PassExpireDurationInSeconds *big.Int
	NetworkFeatureMask          *big.Int
	NetworkFee                  NetworkFeesBps
	SupportedToken              common.Address
	Description                 string
	LastFeeUpdateTimestamp      *big.Int
}

const feesTuple = `{"name":"%s","type":"tuple","internalType":"struct IGatewayNetwork.NetworkFeesBps","components":[
	{"name":"issueFee","type":"uint16"},
	{"name":"refreshFee","type":"uint16"},
	{"name":"expireFee","type":"uint16"},
	{"name":"freezeFee","type":"uint16"}]}`

// GatewayNetworkABIJSON is the ABI of the GatewayNetwork contract used by the client.
var GatewayNetworkABIJSON = `[
{"type":"function","name":"getNetworkId","stateMutability":"view",
 "inputs":[{"name":"networkName","type":"bytes32"}],
 "outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"doesNetworkExist","stateMutability":"view",
 "inputs":[{"name":"networkId","type":"uint256"}],
 "outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getNetwork","stateMutability":"view",
 "inputs":[{"name":"networkId","type":"uint256"}],
 "outputs":[{"name":"","type":"tuple","internalType":"struct IGatewayNetwork.GatekeeperNetworkData","components":[
	{"name":"primaryAuthority","type":"address"},
	{"name":"name","type":"bytes32"},
	{"name":"gatekeepers","type":"address[]"},
	{"name":"passExpireDurationInSeconds","type":"uint256"},
	{"name":"networkFeatureMask","type":"uint256"},
	` + fees("networkFee") + `,
	{"name":"supportedToken","type":"address"},
	{"name":"description","type":"string"},
	{"name":"lastFeeUpdateTimestamp","type":"uint256"}]}]},
{"type":"function","name":"isGateKeeper","stateMutability":"view",
 "inputs":[{"name":"networkName","type":"bytes32"},{"name":"gatekeeper","type":"address"}],
 "outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getGatekeepersOnNetwork","stateMutability":"view",
 "inputs":[{"name":"networkName","type":"bytes32"}],
 "outputs":[{"name":"","type":"address[]"}]},
{"type":"function","name":"getSupportedFeeTokenAddress","stateMutability":"view",
 "inputs":[{"name":"networkName","type":"bytes32"}],
 "outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"addGatekeeper","stateMutability":"nonpayable",
 "inputs":[{"name":"gatekeeper","type":"address"},{"name":"networkName","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"removeGatekeeper","stateMutability":"nonpayable",
 "inputs":[{"name":"gatekeeper","type":"address"},{"name":"networkName","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"updatePrimaryAuthority","stateMutability":"nonpayable",
 "inputs":[{"name":"newPrimaryAuthority","type":"address"},{"name":"networkName","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"claimPrimaryAuthority","stateMutability":"nonpayable",
 "inputs":[{"name":"networkName","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"updatePassExpireTime","stateMutability":"nonpayable",
 "inputs":[{"name":"newExpireTimeInSeconds","type":"uint256"},{"name":"networkName","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"updateDescription","stateMutability":"nonpayable",
 "inputs":[{"name":"description","type":"string"},{"name":"networkName","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"updateFees","stateMutability":"nonpayable",
 "inputs":[` + fees("fees") + `,{"name":"networkName","type":"bytes32"}],"outputs":[]},
{"type":"function","name":"updateNetworkFeatures","stateMutability":"nonpayable",
 "inputs":[{"name":"networkFeatureMask","type":"uint256"},{"name":"networkName","type":"bytes32"}],"outputs":[]},

{"type":"event","name":"GatekeeperAdded","anonymous":false,"inputs":[
	{"name":"networkName","type":"bytes32","indexed":true},{"name":"gatekeeper","type":"address","indexed":true}]},
{"type":"event","name":"GatekeeperRemoved","anonymous":false,"inputs":[
	{"name":"networkName","type":"bytes32","indexed":true},{"name":"gatekeeper","type":"address","indexed":true}]},
{"type":"event","name":"PrimaryAuthorityProposed","anonymous":false,"inputs":[
	{"name":"networkName","type":"bytes32","indexed":true},{"name":"proposedAuthority","type":"address","indexed":true}]},
{"type":"event","name":"AuthorityClaimed","anonymous":false,"inputs":[
	{"name":"networkName","type":"bytes32","indexed":true},{"name":"newPrimaryAuthority","type":"address","indexed":true}]},
{"type":"event","name":"PassExpireTimeUpdated","anonymous":false,"inputs":[
	{"name":"networkName","type":"bytes32","indexed":true},{"name":"expireTimeInSeconds","type":"uint256","indexed":false}]},
{"type":"event","name":"DescriptionUpdated","anonymous":false,"inputs":[
	{"name":"networkName","type":"bytes32","indexed":true},{"name":"description","type":"string","indexed":false}]},
{"type":"event","name":"FeesUpdated","anonymous":false,"inputs":[
	{"name":"networkName","type":"bytes32","indexed":true},
	{"name":"issueFee","type":"uint16","indexed":false},{"name":"refreshFee","type":"uint16","indexed":false},
	{"name":"expireFee","type":"uint16","indexed":false},{"name":"freezeFee","type":"uint16","indexed":false}]},
{"type":"event","name":"NetworkFeaturesUpdated","anonymous":false,"inputs":[
	{"name":"networkName","type":"bytes32","indexed":true},{"name":"networkFeatureMask","type":"uint256","indexed":false}]},

{"type":"error","name":"GatewayNetwork__NetworkDoesNotExist","inputs":[{"name":"networkName","type":"bytes32"}]},
{"type":"error","name":"GatewayNetwork__NotPrimaryAuthority","inputs":[{"name":"caller","type":"address"}]},
{"type":"error","name":"GatewayNetwork__NoPendingClaim","inputs":[{"name":"networkName","type":"bytes32"}]},
{"type":"error","name":"GatewayNetwork__NotPendingAuthority","inputs":[{"name":"caller","type":"address"}]},
{"type":"error","name":"GatewayNetwork__GatekeeperAlreadyExists","inputs":[{"name":"gatekeeper","type":"address"}]},
{"type":"error","name":"GatewayNetwork__GatekeeperNotFound","inputs":[{"name":"gatekeeper","type":"address"}]},
{"type":"error","name":"GatewayNetwork__ZeroAddress","inputs":[]}
]`

// GatewayTokenABIJSON is the ABI of the GatewayToken contract used by the client.
var GatewayTokenABIJSON = `[
{"type":"function","name":"issue","stateMutability":"payable",
 "inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"},
	{"name":"expiration","type":"uint256"},{"name":"bitmask","type":"uint256"}],"outputs":[]},
{"type":"function","name":"freeze","stateMutability":"payable",
 "inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"}],"outputs":[]},
{"type":"function","name":"unfreeze","stateMutability":"nonpayable",
 "inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"}],"outputs":[]},
{"type":"function","name":"revoke","stateMutability":"nonpayable",
 "inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"}],"outputs":[]},
{"type":"function","name":"expireToken","stateMutability":"payable",
 "inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"}],"outputs":[]},
{"type":"function","name":"refreshToken","stateMutability":"payable",
 "inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"},{"name":"expiration","type":"uint256"}],"outputs":[]},
{"type":"function","name":"getToken","stateMutability":"view",
 "inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"}],
 "outputs":[{"name":"exists","type":"bool"},{"name":"state","type":"uint8"},{"name":"expiration","type":"uint256"}]},
{"type":"function","name":"verifyToken","stateMutability":"view",
 "inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"}],
 "outputs":[{"name":"","type":"bool"}]},

{"type":"event","name":"GatewayTokenIssued","anonymous":false,"inputs":[
	{"name":"owner","type":"address","indexed":true},{"name":"network","type":"uint256","indexed":true},
	{"name":"expiration","type":"uint256","indexed":false}]},
{"type":"event","name":"GatewayTokenFrozen","anonymous":false,"inputs":[
	{"name":"owner","type":"address","indexed":true},{"name":"network","type":"uint256","indexed":true}]},
{"type":"event","name":"GatewayTokenUnfrozen","anonymous":false,"inputs":[
	{"name":"owner","type":"address","indexed":true},{"name":"network","type":"uint256","indexed":true}]},
{"type":"event","name":"GatewayTokenRevoked","anonymous":false,"inputs":[
	{"name":"owner","type":"address","indexed":true},{"name":"network","type":"uint256","indexed":true}]},
{"type":"event","name":"GatewayTokenExpired","anonymous":false,"inputs":[
	{"name":"owner","type":"address","indexed":true},{"name":"network","type":"uint256","indexed":true},
	{"name":"expiration","type":"uint256","indexed":false}]},
{"type":"event","name":"GatewayTokenRefreshed","anonymous":false,"inputs":[
	{"name":"owner","type":"address","indexed":true},{"name":"network","type":"uint256","indexed":true},
	{"name":"expiration","type":"uint256","indexed":false}]},

{"type":"error","name":"GatewayToken__NetworkDoesNotExist","inputs":[{"name":"network","type":"uint256"}]},
{"type":"error","name":"GatewayToken__NotGatekeeper","inputs":[{"name":"caller","type":"address"},{"name":"network","type":"uint256"}]},
{"type":"error","name":"GatewayToken__TokenAlreadyExists","inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"}]},
{"type":"error","name":"GatewayToken__TokenDoesNotExist","inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"}]},
{"type":"error","name":"GatewayToken__InvalidState","inputs":[{"name":"owner","type":"address"},{"name":"network","type":"uint256"},{"name":"state","type":"uint8"}]},
{"type":"error","name":"GatewayToken__ExpiryInThePast","inputs":[{"name":"expiration","type":"uint256"}]}
]`

func fees(name string) string {
	return strings.Replace(feesTuple, "%s", name, 1)
}

var (
	// GatewayNetworkABI is the parsed GatewayNetwork ABI.
	GatewayNetworkABI = mustParse(GatewayNetworkABIJSON)
	// GatewayTokenABI is the parsed GatewayToken ABI.
	GatewayTokenABI = mustParse(GatewayTokenABIJSON)
)

func mustParse(def string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return &parsed
}
