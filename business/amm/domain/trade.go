package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/amm-connector/internal/asset"
)

// TradeType is the side of a trade that is fixed.
type TradeType int

const (
	ExactInput TradeType = iota
	ExactOutput
)

func (t TradeType) String() string {
	switch t {
	case ExactInput:
		return "exact_input"
	case ExactOutput:
		return "exact_output"
	default:
		return "unknown"
	}
}

// Trade is a single-hop swap through one pool.
type Trade struct {
	Type         TradeType
	InputAmount  asset.Amount
	OutputAmount asset.Amount

	// ExecutionPrice is output per input in display units.
	ExecutionPrice decimal.Decimal

	Pool PoolSnapshot
	Path []common.Address
}

// ExpectedTrade pairs a trade with its slippage-adjusted bound: the minimum
// output of a sell or the maximum input of a buy.
type ExpectedTrade struct {
	Trade          *Trade
	ExpectedAmount asset.Amount
}

// BestTradeExactIn quotes selling amountIn for out through pool.
func BestTradeExactIn(pool PoolSnapshot, amountIn asset.Amount, out *asset.Asset) (*Trade, error) {
	in := amountIn.Asset()
	reserveIn, reserveOut, err := pool.Reserves(in, out)
	if err != nil {
		return nil, err
	}

	raw, err := GetAmountOut(amountIn.Raw(), reserveIn, reserveOut, pool.FeeBps)
	if err != nil {
		return nil, err
	}

	return newTrade(ExactInput, pool, amountIn, asset.NewAmount(out, raw)), nil
}

// BestTradeExactOut quotes buying amountOut with in through pool.
func BestTradeExactOut(pool PoolSnapshot, in *asset.Asset, amountOut asset.Amount) (*Trade, error) {
	out := amountOut.Asset()
	reserveIn, reserveOut, err := pool.Reserves(in, out)
	if err != nil {
		return nil, err
	}

	raw, err := GetAmountIn(amountOut.Raw(), reserveIn, reserveOut, pool.FeeBps)
	if err != nil {
		return nil, err
	}

	return newTrade(ExactOutput, pool, asset.NewAmount(in, raw), amountOut), nil
}

func newTrade(kind TradeType, pool PoolSnapshot, input, output asset.Amount) *Trade {
	price := decimal.Zero
	if !input.IsZero() {
		price = output.ToDecimal().Div(input.ToDecimal())
	}

	return &Trade{
		Type:           kind,
		InputAmount:    input,
		OutputAmount:   output,
		ExecutionPrice: price,
		Pool:           pool,
		Path:           []common.Address{input.Asset().PathAddress(), output.Asset().PathAddress()},
	}
}

// MinimumAmountOut is the least output accepted under slippage. Exact-output
// trades return their fixed output.
func (t *Trade) MinimumAmountOut(slippage Fraction) asset.Amount {
	if t.Type == ExactOutput {
		return t.OutputAmount
	}
	return asset.NewAmount(t.OutputAmount.Asset(), MinimumAmountOut(t.OutputAmount.Raw(), slippage))
}

// MaximumAmountIn is the most input spent under slippage. Exact-input trades
// return their fixed input.
func (t *Trade) MaximumAmountIn(slippage Fraction) asset.Amount {
	if t.Type == ExactInput {
		return t.InputAmount
	}
	return asset.NewAmount(t.InputAmount.Asset(), MaximumAmountIn(t.InputAmount.Raw(), slippage))
}
