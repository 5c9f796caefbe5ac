package memledger

import (
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
)

type network struct {
	key               interfaces.NetworkKey
	id                interfaces.NetworkIdentifier
	primaryAuthority  common.Address
	pendingAuthority  common.Address
	gatekeepers       []common.Address
	passExpireSeconds *big.Int
	featureMask       *big.Int
	fees              contracts.NetworkFeesBps
	supportedToken    common.Address
	description       string
	lastFeeUpdate     int64
}

func (n *network) isGatekeeper(addr common.Address) bool {
	return slices.Contains(n.gatekeepers, addr)
}

func (n *network) data() contracts.GatekeeperNetworkData {
	return contracts.GatekeeperNetworkData{
		PrimaryAuthority:            n.primaryAuthority,
		Name:                        [32]byte(n.id),
		Gatekeepers:                 slices.Clone(n.gatekeepers),
		PassExpireDurationInSeconds: new(big.Int).Set(n.passExpireSeconds),
		NetworkFeatureMask:          new(big.Int).Set(n.featureMask),
		NetworkFee:                  n.fees,
		SupportedToken:              n.supportedToken,
		Description:                 n.description,
		LastFeeUpdateTimestamp:      big.NewInt(n.lastFeeUpdate),
	}
}

// NetworkParams are the initial settings of a network registered with CreateNetwork.
type NetworkParams struct {
	PassExpireDuration time.Duration
	Description        string
	Fees               interfaces.FeeSchedule
	SupportedToken     common.Address
	FeatureMask        uint64
	Gatekeepers        []common.Address
}

// CreateNetwork registers a network with the given primary authority and
// returns its key. Registration is immediate and not part of any block.
func (l *Ledger) CreateNetwork(name interfaces.NetworkName, primaryAuthority common.Address, params NetworkParams) (interfaces.NetworkKey, error) {
	id, err := interfaces.EncodeNetworkName(name)
	if err != nil {
		return 0, err
	}
	if id.IsZero() {
		return 0, fmt.Errorf("%w: empty network name", interfaces.ErrInvalidName)
	}
	if primaryAuthority == (common.Address{}) {
		return 0, fmt.Errorf("primary authority of %q must not be the zero address", name)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, exists := l.networks[id]; exists {
		return 0, fmt.Errorf("network %q already exists", name)
	}

	n := &network{
		key:               l.nextKey,
		id:                id,
		primaryAuthority:  primaryAuthority,
		gatekeepers:       slices.Clone(params.Gatekeepers),
		passExpireSeconds: new(big.Int).SetUint64(uint64(params.PassExpireDuration / time.Second)),
		featureMask:       new(big.Int).SetUint64(params.FeatureMask),
		fees: contracts.NetworkFeesBps{
			IssueFee:   params.Fees.IssueFee,
			RefreshFee: params.Fees.RefreshFee,
			ExpireFee:  params.Fees.ExpireFee,
			FreezeFee:  params.Fees.FreezeFee,
		},
		supportedToken: params.SupportedToken,
		description:    params.Description,
		lastFeeUpdate:  l.now().Unix(),
	}
	l.networks[id] = n
	l.keys[n.key] = id
	l.nextKey++

	l.log.Debug("Network created", "name", name, "networkKey", n.key, "primaryAuthority", primaryAuthority.Hex())
	return n.key, nil
}

func (l *Ledger) networkByKey(key *big.Int) (*network, bool) {
	k, err := interfaces.NetworkKeyFromBig(key)
	if err != nil {
		return nil, false
	}
	id, ok := l.keys[k]
	if !ok {
		return nil, false
	}
	return l.networks[id], true
}

func (l *Ledger) readNetwork(c *call) ([]any, error) {
	switch c.method {
	case contracts.MethodGetNetworkID:
		if n, ok := l.networks[c.identifier(0)]; ok {
			return []any{n.key.Big()}, nil
		}
		return []any{new(big.Int)}, nil

	case contracts.MethodDoesNetworkExist:
		_, ok := l.networkByKey(c.uint(0))
		return []any{ok}, nil

	case contracts.MethodGetNetwork:
		n, ok := l.networkByKey(c.uint(0))
		if !ok {
			return nil, contracts.Revert(c.method, contracts.ErrNameNetworkDoesNotExist)
		}
		return []any{n.data()}, nil

	case contracts.MethodIsGatekeeper:
		n, ok := l.networks[c.identifier(0)]
		if !ok {
			return nil, contracts.Revert(c.method, contracts.ErrNameNetworkDoesNotExist)
		}
		return []any{n.isGatekeeper(c.address(1))}, nil

	case contracts.MethodGetGatekeepersOnNetwork:
		n, ok := l.networks[c.identifier(0)]
		if !ok {
			return nil, contracts.Revert(c.method, contracts.ErrNameNetworkDoesNotExist)
		}
		return []any{slices.Clone(n.gatekeepers)}, nil

	case contracts.MethodGetSupportedFeeTokenAddress:
		n, ok := l.networks[c.identifier(0)]
		if !ok {
			return nil, contracts.Revert(c.method, contracts.ErrNameNetworkDoesNotExist)
		}
		return []any{n.supportedToken}, nil
	}
	return nil, fmt.Errorf("unsupported view method %s", c.method)
}

// prepareNetwork checks a GatewayNetwork write. The last argument of every
// write is the network name.
func (l *Ledger) prepareNetwork(c *call) (mutation, error) {
	n, ok := l.networks[c.identifier(len(c.in)-1)]
	if !ok {
		return nil, contracts.Revert(c.method, contracts.ErrNameNetworkDoesNotExist)
	}

	if c.method == contracts.MethodClaimPrimaryAuthority {
		if n.pendingAuthority == (common.Address{}) {
			return nil, contracts.Revert(c.method, contracts.ErrNameNoPendingClaim)
		}
		if c.from != n.pendingAuthority {
			return nil, contracts.Revert(c.method, contracts.ErrNameNotPendingAuthority)
		}
		return func() []interfaces.Event {
			n.primaryAuthority = n.pendingAuthority
			n.pendingAuthority = common.Address{}
			return []interfaces.Event{networkEvent(contracts.EventAuthorityClaimed, n, "newPrimaryAuthority", n.primaryAuthority)}
		}, nil
	}

	if c.from != n.primaryAuthority {
		return nil, contracts.Revert(c.method, contracts.ErrNameNotPrimaryAuthority)
	}

	switch c.method {
	case contracts.MethodAddGatekeeper:
		gk := c.address(0)
		if gk == (common.Address{}) {
			return nil, contracts.Revert(c.method, contracts.ErrNameZeroAddress)
		}
		if n.isGatekeeper(gk) {
			return nil, contracts.Revert(c.method, contracts.ErrNameGatekeeperAlreadyExists)
		}
		return func() []interfaces.Event {
			n.gatekeepers = append(n.gatekeepers, gk)
			return []interfaces.Event{networkEvent(contracts.EventGatekeeperAdded, n, "gatekeeper", gk)}
		}, nil

	case contracts.MethodRemoveGatekeeper:
		gk := c.address(0)
		idx := slices.Index(n.gatekeepers, gk)
		if idx < 0 {
			return nil, contracts.Revert(c.method, contracts.ErrNameGatekeeperNotFound)
		}
		return func() []interfaces.Event {
			n.gatekeepers = slices.Delete(n.gatekeepers, idx, idx+1)
			return []interfaces.Event{networkEvent(contracts.EventGatekeeperRemoved, n, "gatekeeper", gk)}
		}, nil

	case contracts.MethodUpdatePrimaryAuthority:
		proposed := c.address(0)
		if proposed == (common.Address{}) {
			return nil, contracts.Revert(c.method, contracts.ErrNameZeroAddress)
		}
		return func() []interfaces.Event {
			n.pendingAuthority = proposed
			return []interfaces.Event{networkEvent(contracts.EventPrimaryAuthorityProposed, n, "proposedAuthority", proposed)}
		}, nil

	case contracts.MethodUpdatePassExpireTime:
		seconds := new(big.Int).Set(c.uint(0))
		return func() []interfaces.Event {
			n.passExpireSeconds = seconds
			return []interfaces.Event{networkEvent(contracts.EventPassExpireTimeUpdated, n, "expireTimeInSeconds", new(big.Int).Set(seconds))}
		}, nil

	case contracts.MethodUpdateDescription:
		description := c.in[0].(string)
		return func() []interfaces.Event {
			n.description = description
			return []interfaces.Event{networkEvent(contracts.EventDescriptionUpdated, n, "description", description)}
		}, nil

	case contracts.MethodUpdateFees:
		fees, err := contracts.Output[contracts.NetworkFeesBps](c.in, 0)
		if err != nil {
			return nil, err
		}
		return func() []interfaces.Event {
			n.fees = fees
			n.lastFeeUpdate = l.now().Unix()
			return []interfaces.Event{{
				Name: contracts.EventFeesUpdated,
				Args: map[string]any{
					"networkName": [32]byte(n.id),
					"issueFee":    fees.IssueFee,
					"refreshFee":  fees.RefreshFee,
					"expireFee":   fees.ExpireFee,
					"freezeFee":   fees.FreezeFee,
				},
			}}
		}, nil

	case contracts.MethodUpdateNetworkFeatures:
		mask := new(big.Int).Set(c.uint(0))
		return func() []interfaces.Event {
			n.featureMask = mask
			return []interfaces.Event{networkEvent(contracts.EventNetworkFeaturesUpdated, n, "networkFeatureMask", new(big.Int).Set(mask))}
		}, nil
	}
	return nil, fmt.Errorf("unsupported method %s", c.method)
}

func networkEvent(name string, n *network, arg string, value any) interfaces.Event {
	return interfaces.Event{
		Name: name,
		Args: map[string]any{
			"networkName": [32]byte(n.id),
			arg:           value,
		},
	}
}
