package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/amm-connector/internal/asset"
)

// PoolSnapshot is the state of one pair contract read at a single point in
// time. Token0 sorts before Token1.
type PoolSnapshot struct {
	Address  common.Address
	Token0   *asset.Asset
	Token1   *asset.Asset
	Reserve0 *big.Int
	Reserve1 *big.Int
	FeeBps   int64
}

// SortTokens orders two assets the way pair contracts do.
func SortTokens(a, b *asset.Asset) (token0, token1 *asset.Asset) {
	if a.SortsBefore(b) {
		return a, b
	}
	return b, a
}

// PairAddress derives the CREATE2 address of the pair for (a, b):
// keccak256(0xff ++ factory ++ keccak256(token0 ++ token1) ++ initCodeHash)[12:].
func PairAddress(factory common.Address, initCodeHash common.Hash, a, b *asset.Asset) common.Address {
	token0, token1 := SortTokens(a, b)
	salt := crypto.Keccak256Hash(token0.PathAddress().Bytes(), token1.PathAddress().Bytes())
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}

// Involves reports whether a is one of the pool's tokens.
func (p PoolSnapshot) Involves(a *asset.Asset) bool {
	addr := a.PathAddress()
	return addr == p.Token0.PathAddress() || addr == p.Token1.PathAddress()
}

// Reserves returns the reserves ordered for a swap from in to out.
func (p PoolSnapshot) Reserves(in, out *asset.Asset) (reserveIn, reserveOut *big.Int, err error) {
	if !p.Involves(in) || !p.Involves(out) || in.PathAddress() == out.PathAddress() {
		return nil, nil, noRoute("pool " + p.Address.Hex() + " does not trade " + in.Symbol() + "/" + out.Symbol())
	}
	if in.PathAddress() == p.Token0.PathAddress() {
		return p.Reserve0, p.Reserve1, nil
	}
	return p.Reserve1, p.Reserve0, nil
}
