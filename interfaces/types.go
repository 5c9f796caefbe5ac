// Package interfaces defines the core interfaces and types for the gatekeeper network client.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress parses a 20-byte account address from hex, with or without the 0x prefix.
func ParseAddress(addr string) (common.Address, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("invalid address %q: expected 40 hex characters", addr)
	}
	return common.HexToAddress(addr), nil
}

// FeeSchedule holds the per-operation network fees in basis points.
// The ledger only accepts the four values together.
type FeeSchedule struct {
	IssueFee   uint16 `json:"issueFee"`
	ExpireFee  uint16 `json:"expireFee"`
	RefreshFee uint16 `json:"refreshFee"`
	FreezeFee  uint16 `json:"freezeFee"`
}

// GatekeeperNetworkRecord is a snapshot of a gatekeeper network as read from the ledger.
type GatekeeperNetworkRecord struct {
	Key                         NetworkKey       `json:"networkKey"`
	Name                        NetworkName      `json:"name"`
	PrimaryAuthority            common.Address   `json:"primaryAuthority"`
	Gatekeepers                 []common.Address `json:"gatekeepers"`
	PassExpireDurationInSeconds uint64           `json:"passExpireDurationInSeconds"`
	Description                 string           `json:"description"`
	NetworkFee                  FeeSchedule      `json:"networkFee"`
	SupportedFeeTokenAddress    common.Address   `json:"supportedFeeTokenAddress"`
	NetworkFeatureMask          uint64           `json:"networkFeatureMask"`
	LastFeeUpdate               time.Time        `json:"lastFeeUpdate"`
}

// IsGatekeeper reports whether addr was in the gatekeeper set when the record was read.
func (r *GatekeeperNetworkRecord) IsGatekeeper(addr common.Address) bool {
	for _, g := range r.Gatekeepers {
		if g == addr {
			return true
		}
	}
	return false
}

// UsesNativeFees reports whether fees are charged in the chain's native currency.
func (r *GatekeeperNetworkRecord) UsesNativeFees() bool {
	return r.SupportedFeeTokenAddress == (common.Address{})
}

// PassExpireDuration returns the default pass lifetime, zero meaning passes never expire.
func (r *GatekeeperNetworkRecord) PassExpireDuration() time.Duration {
	return time.Duration(r.PassExpireDurationInSeconds) * time.Second
}

// HasFeature reports whether the given feature bit is set in the network mask.
func (r *GatekeeperNetworkRecord) HasFeature(bit uint) bool {
	return bit < 64 && r.NetworkFeatureMask&(1<<bit) != 0
}

// TokenState is the lifecycle state of a gateway token.
type TokenState uint8

const (
	TokenStateActive TokenState = iota
	TokenStateFrozen
	TokenStateRevoked
	// TokenStateExpired is never stored by the ledger. It is derived from an
	// active token whose expiry has passed.
	TokenStateExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenStateActive:
		return "active"
	case TokenStateFrozen:
		return "frozen"
	case TokenStateRevoked:
		return "revoked"
	case TokenStateExpired:
		return "expired"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TokenState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TokenState) UnmarshalText(text []byte) error {
	for _, state := range []TokenState{TokenStateActive, TokenStateFrozen, TokenStateRevoked, TokenStateExpired} {
		if string(text) == state.String() {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown token state %q", text)
}

// GatewayToken is a token bound to an (owner, network) pair.
type GatewayToken struct {
	Owner     common.Address `json:"owner"`
	Network   NetworkKey     `json:"networkKey"`
	State     TokenState     `json:"state"`
	ExpiresAt time.Time      `json:"expiresAt,omitempty"`
}

// HasExpiry reports whether the token carries an expiry timestamp.
func (t *GatewayToken) HasExpiry() bool {
	return !t.ExpiresAt.IsZero()
}

// EffectiveTokenState derives the observable token state from the stored state
// and expiry. A stored active token whose expiry is not after now is expired.
func EffectiveTokenState(stored TokenState, expiresAt time.Time, now time.Time) TokenState {
	if stored == TokenStateActive && !expiresAt.IsZero() && !now.Before(expiresAt) {
		return TokenStateExpired
	}
	return stored
}

// maxExpiryUnix is the last second of year 9999, the latest time that
// marshals to RFC 3339.
const maxExpiryUnix = 253402300799

// ExpiryFromUnix converts a ledger timestamp into a time, zero meaning no expiry.
// Timestamps past maxExpiryUnix are treated as no expiry.
func ExpiryFromUnix(ts *big.Int) time.Time {
	if ts == nil || ts.Sign() <= 0 || ts.Cmp(big.NewInt(maxExpiryUnix)) > 0 {
		return time.Time{}
	}
	return time.Unix(ts.Int64(), 0).UTC()
}

// ExpiryToUnix converts an expiry time into a ledger timestamp.
func ExpiryToUnix(t time.Time) *big.Int {
	if t.IsZero() {
		return new(big.Int)
	}
	return big.NewInt(t.Unix())
}
