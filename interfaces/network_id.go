package interfaces

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NetworkIdentifierLength is the fixed width of a canonical network identifier.
const NetworkIdentifierLength = 32

// NetworkName is the human-readable name of a gatekeeper network.
type NetworkName string

// NetworkIdentifier is the canonical fixed-width encoding of a NetworkName,
// right-padded with zero bytes. The ledger resolves it into a NetworkKey.
type NetworkIdentifier [NetworkIdentifierLength]byte

// NetworkKey is the numeric identifier assigned to a network by the ledger.
// Zero is the ledger's sentinel for an unregistered network.
type NetworkKey uint64

// EncodeNetworkName converts a name into its canonical identifier.
// Names longer than 32 bytes, names that are not valid UTF-8 and names
// containing NUL bytes cannot be decoded back losslessly and are rejected.
func EncodeNetworkName(name NetworkName) (NetworkIdentifier, error) {
	if len(name) > NetworkIdentifierLength {
		return NetworkIdentifier{}, fmt.Errorf("%w: %q is %d bytes, maximum is %d", ErrInvalidName, name, len(name), NetworkIdentifierLength)
	}
	if !utf8.ValidString(string(name)) {
		return NetworkIdentifier{}, fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidName, name)
	}
	if strings.IndexByte(string(name), 0) >= 0 {
		return NetworkIdentifier{}, fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidName, name)
	}

	var id NetworkIdentifier
	copy(id[:], name)
	return id, nil
}

// DecodeNetworkIdentifier converts a raw 32-byte identifier back into a name.
func DecodeNetworkIdentifier(raw []byte) (NetworkName, error) {
	id, err := NewNetworkIdentifierFromBytes(raw)
	if err != nil {
		return "", err
	}
	return id.Name(), nil
}

// NewNetworkIdentifierFromBytes creates an identifier from exactly 32 bytes.
func NewNetworkIdentifierFromBytes(raw []byte) (NetworkIdentifier, error) {
	if len(raw) != NetworkIdentifierLength {
		return NetworkIdentifier{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidIdentifier, len(raw), NetworkIdentifierLength)
	}
	var id NetworkIdentifier
	copy(id[:], raw)
	return id, nil
}

// Identifier returns the canonical identifier of the name.
func (n NetworkName) Identifier() (NetworkIdentifier, error) {
	return EncodeNetworkName(n)
}

func (n NetworkName) String() string {
	return string(n)
}

// Name strips the trailing padding and returns the human-readable name.
func (id NetworkIdentifier) Name() NetworkName {
	return NetworkName(bytes.TrimRight(id[:], "\x00"))
}

// IsZero reports whether the identifier is all zero bytes.
func (id NetworkIdentifier) IsZero() bool {
	return id == NetworkIdentifier{}
}

// String returns the 0x-prefixed hex encoding of the identifier.
func (id NetworkIdentifier) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// NetworkKeyFromBig converts a ledger uint256 into a NetworkKey.
func NetworkKeyFromBig(v *big.Int) (NetworkKey, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: missing network key", ErrInvalidIdentifier)
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w: network key %s out of range", ErrInvalidIdentifier, v)
	}
	return NetworkKey(v.Uint64()), nil
}

// ParseNetworkKey parses a decimal network key.
func ParseNetworkKey(s string) (NetworkKey, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	return NetworkKey(v), nil
}

// Big returns the key as the ledger's uint256 argument.
func (k NetworkKey) Big() *big.Int {
	return new(big.Int).SetUint64(uint64(k))
}

// IsZero reports whether the key is the unregistered sentinel.
func (k NetworkKey) IsZero() bool {
	return k == 0
}

func (k NetworkKey) String() string {
	return strconv.FormatUint(uint64(k), 10)
}
