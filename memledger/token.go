package memledger

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ruteri/gateway-network-client/contracts"
	"github.com/ruteri/gateway-network-client/interfaces"
)

type token struct {
	state interfaces.TokenState
	// expiration is a unix timestamp, zero meaning the token never expires.
	expiration int64
	bitmask    *big.Int
}

func (t *token) effectiveState(now time.Time) interfaces.TokenState {
	return interfaces.EffectiveTokenState(t.state, interfaces.ExpiryFromUnix(big.NewInt(t.expiration)), now)
}

func (l *Ledger) readToken(c *call) ([]any, error) {
	key := tokenKey{owner: c.address(0)}
	if n, ok := l.networkByKey(c.uint(1)); ok {
		key.network = n.key
	}
	t, exists := l.tokens[key]

	switch c.method {
	case contracts.MethodGetToken:
		if !exists {
			return []any{false, uint8(0), new(big.Int)}, nil
		}
		return []any{true, uint8(t.state), big.NewInt(t.expiration)}, nil

	case contracts.MethodVerifyToken:
		return []any{exists && t.effectiveState(l.now()) == interfaces.TokenStateActive}, nil
	}
	return nil, fmt.Errorf("unsupported view method %s", c.method)
}

// prepareToken checks a GatewayToken write in contract order: network,
// caller, token existence and finally token state.
func (l *Ledger) prepareToken(c *call) (mutation, error) {
	owner := c.address(0)
	n, ok := l.networkByKey(c.uint(1))
	if !ok {
		return nil, contracts.Revert(c.method, contracts.ErrNameTokenNetworkDoesNotExist)
	}
	if !n.isGatekeeper(c.from) {
		return nil, contracts.Revert(c.method, contracts.ErrNameNotGatekeeper)
	}

	now := l.now()
	key := tokenKey{owner: owner, network: n.key}
	t, exists := l.tokens[key]

	if c.method == contracts.MethodIssue {
		if exists {
			return nil, contracts.Revert(c.method, contracts.ErrNameTokenAlreadyExists)
		}
		expiration, err := l.expiration(c.method, n, c.uint(2), now)
		if err != nil {
			return nil, err
		}
		bitmask := new(big.Int).Set(c.uint(3))
		return func() []interfaces.Event {
			l.tokens[key] = &token{state: interfaces.TokenStateActive, expiration: expiration, bitmask: bitmask}
			return []interfaces.Event{tokenEvent(contracts.EventTokenIssued, key, big.NewInt(expiration))}
		}, nil
	}

	if !exists {
		return nil, contracts.Revert(c.method, contracts.ErrNameTokenDoesNotExist)
	}
	state := t.effectiveState(now)

	switch c.method {
	case contracts.MethodFreeze:
		if state != interfaces.TokenStateActive {
			return nil, contracts.Revert(c.method, contracts.ErrNameInvalidState)
		}
		return func() []interfaces.Event {
			t.state = interfaces.TokenStateFrozen
			return []interfaces.Event{tokenEvent(contracts.EventTokenFrozen, key, nil)}
		}, nil

	case contracts.MethodUnfreeze:
		if state != interfaces.TokenStateFrozen {
			return nil, contracts.Revert(c.method, contracts.ErrNameInvalidState)
		}
		return func() []interfaces.Event {
			t.state = interfaces.TokenStateActive
			return []interfaces.Event{tokenEvent(contracts.EventTokenUnfrozen, key, nil)}
		}, nil

	case contracts.MethodRevoke:
		if state == interfaces.TokenStateRevoked {
			return nil, contracts.Revert(c.method, contracts.ErrNameInvalidState)
		}
		return func() []interfaces.Event {
			t.state = interfaces.TokenStateRevoked
			return []interfaces.Event{tokenEvent(contracts.EventTokenRevoked, key, nil)}
		}, nil

	case contracts.MethodExpireToken:
		if state != interfaces.TokenStateActive {
			return nil, contracts.Revert(c.method, contracts.ErrNameInvalidState)
		}
		return func() []interfaces.Event {
			t.expiration = now.Unix()
			return []interfaces.Event{tokenEvent(contracts.EventTokenExpired, key, big.NewInt(t.expiration))}
		}, nil

	case contracts.MethodRefreshToken:
		if state != interfaces.TokenStateActive && state != interfaces.TokenStateExpired {
			return nil, contracts.Revert(c.method, contracts.ErrNameInvalidState)
		}
		expiration, err := l.expiration(c.method, n, c.uint(2), now)
		if err != nil {
			return nil, err
		}
		return func() []interfaces.Event {
			t.state = interfaces.TokenStateActive
			t.expiration = expiration
			return []interfaces.Event{tokenEvent(contracts.EventTokenRefreshed, key, big.NewInt(expiration))}
		}, nil
	}
	return nil, fmt.Errorf("unsupported method %s", c.method)
}

// expiration resolves a requested expiry. Zero selects the network default,
// which itself may be zero for passes that never expire.
func (l *Ledger) expiration(method string, n *network, requested *big.Int, now time.Time) (int64, error) {
	if requested.Sign() == 0 {
		if n.passExpireSeconds.Sign() == 0 {
			return 0, nil
		}
		// Durations are uint256 on the ledger; saturate instead of wrapping.
		sum := new(big.Int).Add(big.NewInt(now.Unix()), n.passExpireSeconds)
		if !sum.IsInt64() {
			return math.MaxInt64, nil
		}
		return sum.Int64(), nil
	}
	if !requested.IsInt64() || requested.Int64() <= now.Unix() {
		return 0, contracts.Revert(method, contracts.ErrNameExpiryInThePast)
	}
	return requested.Int64(), nil
}

func tokenEvent(name string, key tokenKey, expiration *big.Int) interfaces.Event {
	args := map[string]any{
		"owner":   key.owner,
		"network": key.network.Big(),
	}
	if expiration != nil {
		args["expiration"] = expiration
	}
	return interfaces.Event{Name: name, Args: args}
}
