package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/amm-connector/internal/apperror"
)

// Router method names of a Uniswap-V2 style router.
const (
	MethodSwapExactTokensForTokens = "swapExactTokensForTokens"
	MethodSwapExactETHForTokens    = "swapExactETHForTokens"
	MethodSwapExactTokensForETH    = "swapExactTokensForETH"
	MethodSwapTokensForExactTokens = "swapTokensForExactTokens"
	MethodSwapETHForExactTokens    = "swapETHForExactTokens"
	MethodSwapTokensForExactETH    = "swapTokensForExactETH"
)

// SwapOptions configures SwapCallParameters.
type SwapOptions struct {
	TTL             time.Duration
	Recipient       common.Address
	AllowedSlippage Fraction

	// Now is the deadline reference; zero means time.Now().
	Now time.Time
}

// SwapParameters is a router call: method, ABI arguments and the native value
// to attach.
type SwapParameters struct {
	MethodName string
	Args       []any
	Value      *big.Int
}

// SwapCallParameters builds the router call executing trade.
func SwapCallParameters(trade *Trade, opts SwapOptions) (SwapParameters, error) {
	if trade == nil {
		return SwapParameters{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("nil trade"))
	}
	if opts.Recipient == (common.Address{}) {
		return SwapParameters{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("recipient required"))
	}

	nativeIn := trade.InputAmount.Asset().IsNative()
	nativeOut := trade.OutputAmount.Asset().IsNative()
	if nativeIn && nativeOut {
		return SwapParameters{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("native coin on both sides"))
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	deadline := big.NewInt(now.Add(opts.TTL).Unix())

	amountIn := trade.MaximumAmountIn(opts.AllowedSlippage).Raw()
	amountOut := trade.MinimumAmountOut(opts.AllowedSlippage).Raw()
	path := append([]common.Address(nil), trade.Path...)
	to := opts.Recipient

	params := SwapParameters{Value: big.NewInt(0)}

	switch trade.Type {
	case ExactInput:
		switch {
		case nativeIn:
			params.MethodName = MethodSwapExactETHForTokens
			params.Args = []any{amountOut, path, to, deadline}
			params.Value = amountIn
		case nativeOut:
			params.MethodName = MethodSwapExactTokensForETH
			params.Args = []any{amountIn, amountOut, path, to, deadline}
		default:
			params.MethodName = MethodSwapExactTokensForTokens
			params.Args = []any{amountIn, amountOut, path, to, deadline}
		}
	case ExactOutput:
		switch {
		case nativeIn:
			params.MethodName = MethodSwapETHForExactTokens
			params.Args = []any{amountOut, path, to, deadline}
			params.Value = amountIn
		case nativeOut:
			params.MethodName = MethodSwapTokensForExactETH
			params.Args = []any{amountOut, amountIn, path, to, deadline}
		default:
			params.MethodName = MethodSwapTokensForExactTokens
			params.Args = []any{amountOut, amountIn, path, to, deadline}
		}
	default:
		return SwapParameters{}, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("unknown trade type"))
	}

	return params, nil
}
