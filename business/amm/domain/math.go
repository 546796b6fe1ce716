// Package domain contains the constant-product pool math and trade types of
// the amm context.
package domain

import (
	"math/big"

	"github.com/fd1az/amm-connector/internal/apperror"
)

// Fees are expressed in basis points of the input amount.
const (
	FeeDenominator = 10000
	DefaultFeeBps  = 30
)

// ErrNoRoute matches every error reporting that no viable trade exists.
var ErrNoRoute = apperror.Sentinel(apperror.CodeNoRoute)

var (
	feeDen = big.NewInt(FeeDenominator)
	one    = big.NewInt(1)
)

func feeMul(feeBps int64) *big.Int {
	return big.NewInt(FeeDenominator - feeBps)
}

func noRoute(context string) error {
	return apperror.New(apperror.CodeNoRoute, apperror.WithContext(context))
}

// GetAmountOut returns the output of swapping amountIn against the reserves:
//
//	out = in*feeMul*rOut / (rIn*feeDen + in*feeMul)
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps int64) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, noRoute("input amount must be positive")
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, noRoute("pool has no liquidity")
	}

	// t1 = amountIn * feeMul
	t1 := new(big.Int).Mul(amountIn, feeMul(feeBps))
	// t2 = reserveIn * feeDen + t1
	t2 := new(big.Int).Mul(reserveIn, feeDen)
	t2.Add(t2, t1)
	// out = t1 * reserveOut / t2
	out := new(big.Int).Mul(t1, reserveOut)
	out.Div(out, t2)

	if out.Sign() == 0 {
		return nil, noRoute("output rounds to zero")
	}
	return out, nil
}

// GetAmountIn returns the input needed to receive amountOut:
//
//	in = rIn*out*feeDen / ((rOut-out)*feeMul) + 1
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int, feeBps int64) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, noRoute("output amount must be positive")
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, noRoute("pool has no liquidity")
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, noRoute("insufficient liquidity for requested output")
	}

	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, feeDen)

	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, feeMul(feeBps))

	in := num.Div(num, den)
	return in.Add(in, one), nil
}
