// Package asset models on-chain coins and tokens and exact amounts of them.
// Amounts are big.Int in the smallest unit; decimal.Decimal appears only
// when parsing input or rendering output.
package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Chain IDs of the networks shipped in the default configuration.
const (
	ChainIDDFK    = 53935
	ChainIDKlaytn = 8217
)

// maxDecimals bounds token-list decimals. ERC20 allows up to 255 but no
// routable token uses more than 18 in practice.
const maxDecimals = 36

var (
	ErrEmptySymbol        = errors.New("asset: empty symbol")
	ErrZeroAddress        = errors.New("asset: zero token address")
	ErrDecimalsOutOfRange = errors.New("asset: decimals out of range")
)

// AssetID identifies an asset by chain and contract. Native coins have the
// zero address.
type AssetID struct {
	chainID uint64
	address common.Address
}

func nativeID(chainID uint64) AssetID {
	return AssetID{chainID: chainID}
}

func tokenID(chainID uint64, addr common.Address) AssetID {
	return AssetID{chainID: chainID, address: addr}
}

func (id AssetID) ChainID() uint64         { return id.chainID }
func (id AssetID) Address() common.Address { return id.address }
func (id AssetID) IsNative() bool          { return id.address == (common.Address{}) }

func (id AssetID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

func (id AssetID) Equals(other AssetID) bool {
	return id == other
}

// Asset is a coin or ERC20 token known to a connector. Identity is the ID;
// symbol and name are display metadata.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
	wrapped  common.Address // ERC20 wrapper of a native coin, used in router paths
}

func newAsset(id AssetID, symbol, name string, decimals uint8) (*Asset, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	if decimals > maxDecimals {
		return nil, fmt.Errorf("%w: %s has %d", ErrDecimalsOutOfRange, symbol, decimals)
	}
	if name == "" {
		name = symbol
	}
	return &Asset{id: id, symbol: symbol, name: name, decimals: decimals}, nil
}

// NewToken validates a token-list entry and returns its asset.
func NewToken(chainID uint64, address common.Address, symbol, name string, decimals uint8) (*Asset, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrZeroAddress, symbol)
	}
	return newAsset(tokenID(chainID, address), symbol, name, decimals)
}

// NewNative returns the native coin of a chain. wrapped is the ERC20 that
// routers use in its place, zero when the chain has none configured.
func NewNative(chainID uint64, symbol string, decimals uint8, wrapped common.Address) (*Asset, error) {
	a, err := newAsset(nativeID(chainID), symbol, symbol, decimals)
	if err != nil {
		return nil, err
	}
	a.wrapped = wrapped
	return a, nil
}

// MustNewToken is NewToken for literals known to be valid.
func MustNewToken(chainID uint64, address common.Address, symbol, name string, decimals uint8) *Asset {
	a, err := NewToken(chainID, address, symbol, name, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// MustNewNative is NewNative for literals known to be valid.
func MustNewNative(chainID uint64, symbol string, decimals uint8, wrapped common.Address) *Asset {
	a, err := NewNative(chainID, symbol, decimals, wrapped)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Asset) ID() AssetID             { return a.id }
func (a *Asset) Symbol() string          { return a.symbol }
func (a *Asset) Name() string            { return a.name }
func (a *Asset) Decimals() uint8         { return a.decimals }
func (a *Asset) ChainID() uint64         { return a.id.chainID }
func (a *Asset) IsNative() bool          { return a.id.IsNative() }
func (a *Asset) Address() common.Address { return a.id.address }
func (a *Asset) String() string          { return a.symbol }

// PathAddress returns the address used for this asset in a router path:
// the contract for tokens, the wrapper for native coins.
func (a *Asset) PathAddress() common.Address {
	if a.IsNative() {
		return a.wrapped
	}
	return a.id.address
}

// Routable reports whether the asset can appear in a router path.
func (a *Asset) Routable() bool {
	return a.PathAddress() != (common.Address{})
}

func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}

// SortsBefore reports whether a's path address is lower than other's,
// the ordering pair contracts use for token0/token1.
func (a *Asset) SortsBefore(other *Asset) bool {
	return a.PathAddress().Cmp(other.PathAddress()) < 0
}
