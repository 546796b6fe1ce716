package router

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/amm-connector/business/amm/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/asset"
	"github.com/fd1az/amm-connector/internal/logger"
)

var (
	factory  = common.HexToAddress("0x794C07912474351b3134E6D6B3B7b3b4A07cbAAa")
	initCode = common.HexToHash("0x4abbeda7e0705baf5222faead952156d4eb4113795d3dd837895a00ff89f5717")

	tokenA = asset.MustNewToken(asset.ChainIDDFK, common.HexToAddress("0xCCb93dABD71c8Dad03Fc4CE5559dC3D89F67a260"), "WJEWEL", "Wrapped JEWEL", 18)
	tokenB = asset.MustNewToken(asset.ChainIDDFK, common.HexToAddress("0x3AD9DFE640E1A9Cc1D9B0948620820D975c3803a"), "USDC", "USD Coin", 18)
)

type fakeCaller struct {
	result []byte
	err    error
	to     common.Address
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.to = *msg.To
	return f.result, f.err
}

func packReserves(t *testing.T, r0, r1 int64) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(PairABI))
	require.NoError(t, err)
	out, err := parsed.Methods["getReserves"].Outputs.Pack(big.NewInt(r0), big.NewInt(r1), uint32(1700000000))
	require.NoError(t, err)
	return out
}

func TestPairFetcher_FetchPair(t *testing.T) {
	token0, token1 := domain.SortTokens(tokenA, tokenB)
	caller := &fakeCaller{result: packReserves(t, 100000, 50000)}

	f, err := NewPairFetcher(caller, factory, initCode, 30, logger.Nop())
	require.NoError(t, err)

	// Argument order does not matter.
	pool, err := f.FetchPair(context.Background(), tokenB, tokenA)
	require.NoError(t, err)

	assert.Equal(t, domain.PairAddress(factory, initCode, tokenA, tokenB), caller.to)
	assert.Equal(t, caller.to, pool.Address)
	assert.True(t, pool.Token0.Equals(token0))
	assert.True(t, pool.Token1.Equals(token1))
	assert.Equal(t, int64(100000), pool.Reserve0.Int64())
	assert.Equal(t, int64(50000), pool.Reserve1.Int64())
	assert.Equal(t, int64(30), pool.FeeBps)
}

func TestPairFetcher_Errors(t *testing.T) {
	tests := []struct {
		name     string
		caller   *fakeCaller
		wantCode apperror.Code
	}{
		{"pair_not_deployed", &fakeCaller{result: nil}, apperror.CodeNoRoute},
		{"rpc_failure", &fakeCaller{err: errors.New("connection reset")}, apperror.CodeReserveFetchFailed},
		{"garbage_result", &fakeCaller{result: []byte{0x01, 0x02}}, apperror.CodeReserveFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewPairFetcher(tt.caller, factory, initCode, 30, logger.Nop())
			require.NoError(t, err)

			_, err = f.FetchPair(context.Background(), tokenA, tokenB)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperror.GetCode(err))
		})
	}
}

func TestParseRouterABI(t *testing.T) {
	parsed, err := ParseRouterABI()
	require.NoError(t, err)

	for _, method := range []string{
		domain.MethodSwapExactTokensForTokens,
		domain.MethodSwapExactETHForTokens,
		domain.MethodSwapExactTokensForETH,
		domain.MethodSwapTokensForExactTokens,
		domain.MethodSwapETHForExactTokens,
		domain.MethodSwapTokensForExactETH,
	} {
		_, ok := parsed.Methods[method]
		assert.True(t, ok, method)
	}
}
