package app_test

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/amm-connector/business/amm/app"
	"github.com/fd1az/amm-connector/business/amm/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
)

func scenarioPairs() *fakePairs {
	return &fakePairs{reserveJewel: e18(100000), reserveUSDC: e18(50000)}
}

func TestConnector_GetAllowedSlippage(t *testing.T) {
	c := newTestConnector(t, newFakeChain(t), scenarioPairs())

	tests := []struct {
		input string
		want  string
	}{
		{"1/10", "1/10"},
		{"3/1000", "3/1000"},
		{"", "1/100"},
		{"ten percent", "1/100"},
		{"1/0", "1/100"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := c.GetAllowedSlippage(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}

	f, _ := c.GetAllowedSlippage("1/10")
	assert.Equal(t, "10", f.Percent().String())
}

func TestConnector_MalformedDefaultSlippage(t *testing.T) {
	c := newTestConnector(t, newFakeChain(t), scenarioPairs(), func(cfg *app.ConnectorConfig) {
		cfg.AllowedSlippage = "1%"
	})

	_, err := c.GetAllowedSlippage("")
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))

	// A valid caller value never consults the default.
	f, err := c.GetAllowedSlippage("2/100")
	require.NoError(t, err)
	assert.Equal(t, "2/100", f.String())

	_, err = c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(1), "")
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))
}

func TestConnector_EstimateSellTrade(t *testing.T) {
	c := newTestConnector(t, newFakeChain(t), scenarioPairs())

	expected, err := c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(1000), "")
	require.NoError(t, err)

	out := expected.Trade.OutputAmount.ToDecimal()
	minOut := expected.ExpectedAmount.ToDecimal()
	assert.True(t, out.Sub(decimal.NewFromFloat(493.6)).Abs().LessThan(decimal.NewFromFloat(0.1)), "out = %s", out)
	assert.True(t, minOut.Sub(decimal.NewFromFloat(488.7)).Abs().LessThan(decimal.NewFromFloat(0.1)), "min = %s", minOut)
	assert.Equal(t, domain.ExactInput, expected.Trade.Type)
	assert.True(t, expected.ExpectedAmount.Asset().Equals(usdc))
}

func TestConnector_EstimateBuyTrade(t *testing.T) {
	c := newTestConnector(t, newFakeChain(t), scenarioPairs())

	expected, err := c.EstimateBuyTrade(context.Background(), wjewel, usdc, e18(100), "1/10")
	require.NoError(t, err)

	assert.Equal(t, domain.ExactOutput, expected.Trade.Type)
	assert.Equal(t, 0, expected.Trade.OutputAmount.Raw().Cmp(e18(100)))
	assert.True(t, expected.ExpectedAmount.Asset().Equals(wjewel))

	// max in = in * 11/10
	in := expected.Trade.InputAmount.Raw()
	want := new(big.Int).Div(new(big.Int).Mul(in, big.NewInt(11)), big.NewInt(10))
	assert.Equal(t, 0, want.Cmp(expected.ExpectedAmount.Raw()))
}

func TestConnector_EstimateNoRoute(t *testing.T) {
	tests := []struct {
		name     string
		pairs    *fakePairs
		wantCode apperror.Code
	}{
		{"zero_reserves", &fakePairs{reserveJewel: big.NewInt(0), reserveUSDC: big.NewInt(0)}, apperror.CodeNoRoute},
		{"pair_missing", &fakePairs{err: apperror.New(apperror.CodeNoRoute)}, apperror.CodeNoRoute},
		{"rpc_failure", &fakePairs{err: apperror.New(apperror.CodeReserveFetchFailed, apperror.WithCause(errors.New("timeout")))}, apperror.CodeReserveFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConnector(t, newFakeChain(t), tt.pairs)

			_, err := c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(1), "")
			assert.Equal(t, tt.wantCode, apperror.GetCode(err))

			_, err = c.EstimateBuyTrade(context.Background(), wjewel, usdc, e18(1), "")
			assert.Equal(t, tt.wantCode, apperror.GetCode(err))
		})
	}

	c := newTestConnector(t, newFakeChain(t), &fakePairs{reserveJewel: big.NewInt(0), reserveUSDC: big.NewInt(0)})
	_, err := c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(1), "")
	assert.True(t, errors.Is(err, domain.ErrNoRoute))
}

func TestConnector_InitLoadsTokensOnce(t *testing.T) {
	chain := newFakeChain(t)
	c := newTestConnector(t, chain, scenarioPairs())
	assert.False(t, c.Ready())

	require.NoError(t, c.Init(context.Background()))
	require.NoError(t, c.Init(context.Background()))
	assert.True(t, c.Ready())
	assert.Equal(t, 1, chain.initCalls)

	// Native coin plus two tokens; the duplicate USDC entry is skipped.
	assert.Len(t, c.Tokens(), 3)

	tok, err := c.GetTokenByAddress(usdcAddr)
	require.NoError(t, err)
	assert.Equal(t, "USDC", tok.Symbol())
	assert.Equal(t, uint8(18), tok.Decimals())

	native, err := c.GetTokenByAddress(common.Address{})
	require.NoError(t, err)
	assert.True(t, native.IsNative())
	assert.Equal(t, wjewelAddr, native.PathAddress())

	_, err = c.GetTokenByAddress(common.HexToAddress("0xdead"))
	assert.Equal(t, apperror.CodeTokenNotFound, apperror.GetCode(err))

	bySymbol, err := c.GetTokenBySymbol("WJEWEL")
	require.NoError(t, err)
	assert.Equal(t, wjewelAddr, bySymbol.Address())

	_, err = c.GetTokenBySymbol("USDC.dup")
	assert.Equal(t, apperror.CodeTokenNotFound, apperror.GetCode(err))
}

func TestConnector_ExecuteTradeConcurrentNonces(t *testing.T) {
	chain := newFakeChain(t)
	chain.pending = 7
	c := newTestConnector(t, chain, scenarioPairs())
	wallet := newWallet(t)

	expected, err := c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(10), "")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	nonces := make([]uint64, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := c.ExecuteTrade(context.Background(), wallet, expected.Trade, decimal.NewFromInt(30),
				c.Router(), c.TTL(), c.RouterABI(), c.GasLimitEstimate(), nil, "")
			errs[i] = err
			if err == nil {
				nonces[i] = tx.Nonce()
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	for i, nonce := range nonces {
		assert.Equal(t, uint64(7+i), nonce, "nonces must be distinct and consecutive")
	}
	assert.Len(t, chain.Sent(), n)
}

func TestConnector_ExecuteTradeTransaction(t *testing.T) {
	chain := newFakeChain(t)
	c := newTestConnector(t, chain, scenarioPairs())
	wallet := newWallet(t)

	expected, err := c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(1000), "")
	require.NoError(t, err)

	tx, err := c.ExecuteTrade(context.Background(), wallet, expected.Trade, decimal.RequireFromString("30.5"),
		c.Router(), c.TTL(), c.RouterABI(), 150688, nil, "")
	require.NoError(t, err)

	assert.Equal(t, routerAddr, *tx.To())
	assert.Equal(t, "30500000000", tx.GasPrice().String())
	assert.Equal(t, uint64(150688), tx.Gas())
	assert.Equal(t, int64(0), tx.Value().Int64())

	routerABI := c.RouterABI()
	method, err := routerABI.MethodById(tx.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, domain.MethodSwapExactTokensForTokens, method.Name)

	args, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, 0, args[0].(*big.Int).Cmp(e18(1000)))
	assert.Equal(t, 0, args[1].(*big.Int).Cmp(expected.ExpectedAmount.Raw()))
	assert.Equal(t, wallet.Address(), args[3].(common.Address))
}

func TestConnector_FailedSendDoesNotConsumeNonce(t *testing.T) {
	chain := newFakeChain(t)
	chain.pending = 3
	chain.sendErrs = []error{errors.New("nonce too low")}
	c := newTestConnector(t, chain, scenarioPairs())
	wallet := newWallet(t)

	expected, err := c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(1), "")
	require.NoError(t, err)

	execute := func(nonce *uint64) (uint64, error) {
		tx, err := c.ExecuteTrade(context.Background(), wallet, expected.Trade, decimal.NewFromInt(30),
			c.Router(), c.TTL(), c.RouterABI(), c.GasLimitEstimate(), nonce, "")
		if err != nil {
			return 0, err
		}
		return tx.Nonce(), nil
	}

	_, err = execute(nil)
	assert.Equal(t, apperror.CodeSubmissionFailed, apperror.GetCode(err))

	got, err := execute(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got)

	explicit := uint64(42)
	got, err = execute(&explicit)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)

	got, err = execute(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(43), got)
}

// lockedWallet is a wallet whose signer is unavailable.
type lockedWallet struct{ addr common.Address }

func (w lockedWallet) Address() common.Address { return w.addr }

func (w lockedWallet) SignTx(*types.Transaction, *big.Int) (*types.Transaction, error) {
	return nil, errors.New("keystore locked")
}

func TestConnector_SigningFailureIsTypedAndKeepsNonce(t *testing.T) {
	chain := newFakeChain(t)
	chain.pending = 9
	c := newTestConnector(t, chain, scenarioPairs())

	expected, err := c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(1), "")
	require.NoError(t, err)

	_, err = c.ExecuteTrade(context.Background(), lockedWallet{addr: newWallet(t).Address()}, expected.Trade,
		decimal.NewFromInt(30), c.Router(), c.TTL(), c.RouterABI(), c.GasLimitEstimate(), nil, "")
	assert.Equal(t, apperror.CodeSigningFailed, apperror.GetCode(err))
	assert.Empty(t, chain.Sent())

	tx, err := c.ExecuteTrade(context.Background(), newWallet(t), expected.Trade,
		decimal.NewFromInt(30), c.Router(), c.TTL(), c.RouterABI(), c.GasLimitEstimate(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), tx.Nonce())
}

func TestConnector_CancelTxDoublesGasPrice(t *testing.T) {
	chain := newFakeChain(t)
	c := newTestConnector(t, chain, scenarioPairs())

	_, err := c.CancelTx(context.Background(), newWallet(t), 5)
	require.NoError(t, err)

	require.Len(t, chain.cancels, 1)
	assert.Equal(t, uint64(5), chain.cancels[0].nonce)
	assert.Equal(t, "60000000000", chain.cancels[0].gasPrice.String())
}

func TestConnector_ClosedRejectsOperations(t *testing.T) {
	c := newTestConnector(t, newFakeChain(t), scenarioPairs())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.False(t, c.Ready())

	err := c.Init(context.Background())
	assert.Equal(t, apperror.CodeConnectorClosed, apperror.GetCode(err))

	_, err = c.EstimateSellTrade(context.Background(), wjewel, usdc, e18(1), "")
	assert.Equal(t, apperror.CodeConnectorClosed, apperror.GetCode(err))

	_, err = c.CancelTx(context.Background(), newWallet(t), 0)
	assert.Equal(t, apperror.CodeConnectorClosed, apperror.GetCode(err))
}

func TestConnector_GasPriceWithoutRefreshStaysManual(t *testing.T) {
	c := newTestConnector(t, newFakeChain(t), scenarioPairs())
	c.Start(context.Background())

	assert.Equal(t, "30000000000", c.GasPrice().Wei.String())

	est := c.EstimateGasCost()
	assert.Equal(t, uint64(150688), est.GasLimit)
	assert.Equal(t, "0.00452064", est.Native().String())
}
