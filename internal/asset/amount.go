package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNilRaw          = errors.New("asset: nil raw value")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrAssetMismatch   = errors.New("asset: cannot operate on different assets")
	ErrTooManyDecimals = errors.New("asset: too many decimal places for asset")
)

// Amount is an immutable, non-negative quantity of an asset in its smallest unit.
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount copies raw. It panics on a nil asset or a nil or negative raw
// value; use ParseString for untrusted input.
func NewAmount(asset *Asset, raw *big.Int) Amount {
	switch {
	case asset == nil:
		panic(ErrNilAsset)
	case raw == nil:
		panic(ErrNilRaw)
	case raw.Sign() < 0:
		panic(ErrNegativeAmount)
	}
	return Amount{raw: new(big.Int).Set(raw), asset: asset}
}

func Zero(asset *Asset) Amount {
	return NewAmount(asset, new(big.Int))
}

func NewAmountFromInt64(asset *Asset, raw int64) Amount {
	return NewAmount(asset, big.NewInt(raw))
}

// Raw returns a copy of the value in the smallest unit.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a Amount) Asset() *Asset    { return a.asset }
func (a Amount) IsZero() bool     { return a.raw == nil || a.raw.Sign() == 0 }
func (a Amount) IsPositive() bool { return a.raw != nil && a.raw.Sign() > 0 }

// Cmp compares two amounts of the same asset.
func (a Amount) Cmp(b Amount) (int, error) {
	if err := a.checkSameAsset(b); err != nil {
		return 0, err
	}
	return a.raw.Cmp(b.raw), nil
}

// ToDecimal converts to whole units for display. Never use the result in
// on-chain math.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.Decimals()))
}

// ParseDecimal converts whole units to an Amount, rejecting values finer
// than the asset's decimals.
func ParseDecimal(asset *Asset, d decimal.Decimal) (Amount, error) {
	if asset == nil {
		return Amount{}, ErrNilAsset
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}

	scaled := d.Shift(int32(asset.Decimals()))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, fmt.Errorf("%w: %s allows %d", ErrTooManyDecimals, asset.Symbol(), asset.Decimals())
	}
	return NewAmount(asset, scaled.BigInt()), nil
}

// ParseString parses a decimal string in whole units, e.g. "1.5".
func ParseString(asset *Asset, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("asset: invalid decimal string: %w", err)
	}
	return ParseDecimal(asset, d)
}

// String renders "1.5 JEWEL".
func (a Amount) String() string {
	if a.asset == nil {
		return "0 ???"
	}
	return a.ToDecimal().String() + " " + a.asset.Symbol()
}

func (a Amount) StringFixed(places int32) string {
	if a.asset == nil {
		return "0 ???"
	}
	return a.ToDecimal().StringFixed(places) + " " + a.asset.Symbol()
}

func (a Amount) checkSameAsset(b Amount) error {
	if a.asset == nil || b.asset == nil {
		return ErrNilAsset
	}
	if a.asset.ID() != b.asset.ID() {
		return fmt.Errorf("%w: %s vs %s", ErrAssetMismatch, a.asset.Symbol(), b.asset.Symbol())
	}
	return nil
}
