// Package domain contains the core domain types for the chain context.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// GasPrice represents a legacy gas price.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	return &GasPrice{
		Wei:       wei,
		Timestamp: time.Now(),
	}
}

// NewGasPriceFromGwei creates a GasPrice from a gwei amount, rounded to whole wei.
func NewGasPriceFromGwei(gwei decimal.Decimal) *GasPrice {
	return NewGasPrice(GweiToWei(gwei))
}

// GweiToWei converts gwei to wei, rounding to the nearest integer.
func GweiToWei(gwei decimal.Decimal) *big.Int {
	return gwei.Shift(9).Round(0).BigInt()
}

// Gwei returns the price in gwei.
func (g *GasPrice) Gwei() decimal.Decimal {
	if g == nil || g.Wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(g.Wei, -9)
}

// Usable reports whether the price can be used to price a transaction.
func (g *GasPrice) Usable() bool {
	return g != nil && g.Wei != nil && g.Wei.Sign() >= 0
}

// Mul returns the price multiplied by factor.
func (g *GasPrice) Mul(factor int64) *GasPrice {
	return NewGasPrice(new(big.Int).Mul(g.Wei, big.NewInt(factor)))
}

// GasEstimate represents estimated gas costs for an operation.
type GasEstimate struct {
	GasLimit uint64
	GasPrice *GasPrice
	TotalWei *big.Int
}

// CalculateGasEstimate computes the total gas cost.
func CalculateGasEstimate(gasLimit uint64, gasPrice *GasPrice) *GasEstimate {
	totalWei := new(big.Int).Mul(gasPrice.Wei, new(big.Int).SetUint64(gasLimit))

	return &GasEstimate{
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		TotalWei: totalWei,
	}
}

// Native returns the total cost in native units (18 decimals).
func (e *GasEstimate) Native() decimal.Decimal {
	return decimal.NewFromBigInt(e.TotalWei, -18)
}
