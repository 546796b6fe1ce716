package domain

import (
	"math/big"
	"regexp"

	"github.com/shopspring/decimal"
)

var fractionPattern = regexp.MustCompile(`^(\d+)/(\d+)$`)

// Fraction is a non-negative ratio, used for slippage tolerances.
type Fraction struct {
	Numerator   *big.Int
	Denominator *big.Int
}

// ParseFraction parses "<int>/<int>". ok is false for any other shape and
// for a zero denominator.
func ParseFraction(s string) (Fraction, bool) {
	m := fractionPattern.FindStringSubmatch(s)
	if m == nil {
		return Fraction{}, false
	}

	num, _ := new(big.Int).SetString(m[1], 10)
	den, _ := new(big.Int).SetString(m[2], 10)
	if den.Sign() == 0 {
		return Fraction{}, false
	}
	return Fraction{Numerator: num, Denominator: den}, true
}

// String returns "<num>/<den>".
func (f Fraction) String() string {
	return f.Numerator.String() + "/" + f.Denominator.String()
}

// Percent returns the fraction as a percentage.
func (f Fraction) Percent() decimal.Decimal {
	return decimal.NewFromBigInt(f.Numerator, 2).Div(decimal.NewFromBigInt(f.Denominator, 0))
}

// MinimumAmountOut is floor(out * den / (den + num)).
func MinimumAmountOut(out *big.Int, slippage Fraction) *big.Int {
	total := new(big.Int).Add(slippage.Denominator, slippage.Numerator)
	res := new(big.Int).Mul(out, slippage.Denominator)
	return res.Quo(res, total)
}

// MaximumAmountIn is floor(in * (den + num) / den).
func MaximumAmountIn(in *big.Int, slippage Fraction) *big.Int {
	total := new(big.Int).Add(slippage.Denominator, slippage.Numerator)
	res := new(big.Int).Mul(in, total)
	return res.Quo(res, slippage.Denominator)
}
