package app_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/amm-connector/business/amm/app"
	"github.com/fd1az/amm-connector/business/amm/domain"
	"github.com/fd1az/amm-connector/business/amm/infra/router"
	chainapp "github.com/fd1az/amm-connector/business/chain/app"
	chaindomain "github.com/fd1az/amm-connector/business/chain/domain"
	chaineth "github.com/fd1az/amm-connector/business/chain/infra/ethereum"
	"github.com/fd1az/amm-connector/business/chain/infra/store"
	"github.com/fd1az/amm-connector/internal/asset"
	"github.com/fd1az/amm-connector/internal/logger"
)

const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	wjewelAddr = common.HexToAddress("0xCCb93dABD71c8Dad03Fc4CE5559dC3D89F67a260")
	usdcAddr   = common.HexToAddress("0x3AD9DFE640E1A9Cc1D9B0948620820D975c3803a")
	routerAddr = common.HexToAddress("0x3C351E1afdd1b1BC44e931E12D4E05D6125eaeCa")

	wjewel = asset.MustNewToken(asset.ChainIDDFK, wjewelAddr, "WJEWEL", "Wrapped JEWEL", 18)
	usdc   = asset.MustNewToken(asset.ChainIDDFK, usdcAddr, "USDC", "USD Coin", 18)
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// fakeChain is an in-memory ChainGateway backed by a real nonce manager.
type fakeChain struct {
	chainID   int64
	tokenList []chaindomain.TokenInfo
	gasWei    *big.Int
	gasCalls  atomic.Int64

	mu        sync.Mutex
	ready     bool
	initCalls int
	pending   uint64
	sent      []*types.Transaction
	sendErrs  []error // consumed one per send
	cancels   []cancelCall

	nonces *chainapp.NonceManager
}

type cancelCall struct {
	nonce    uint64
	gasPrice *big.Int
}

func newFakeChain(t *testing.T) *fakeChain {
	t.Helper()
	c := &fakeChain{
		chainID: asset.ChainIDDFK,
		gasWei:  big.NewInt(2e9),
		tokenList: []chaindomain.TokenInfo{
			{ChainID: asset.ChainIDDFK, Address: wjewelAddr.Hex(), Decimals: 18, Symbol: "WJEWEL", Name: "Wrapped JEWEL"},
			{ChainID: asset.ChainIDDFK, Address: usdcAddr.Hex(), Decimals: 18, Symbol: "USDC", Name: "USD Coin"},
			{ChainID: asset.ChainIDDFK, Address: usdcAddr.Hex(), Decimals: 6, Symbol: "USDC.dup", Name: "Duplicate"},
		},
	}
	nonces, err := chainapp.NewNonceManager(uint64(c.chainID), c, store.NewMemoryNonceStore(), logger.Nop())
	require.NoError(t, err)
	c.nonces = nonces
	return c
}

func (c *fakeChain) Init(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initCalls++
	c.ready = true
	return nil
}

func (c *fakeChain) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *fakeChain) Key() string                   { return "dfkchain:mainnet" }
func (c *fakeChain) ChainID() *big.Int             { return big.NewInt(c.chainID) }
func (c *fakeChain) NativeCurrencySymbol() string  { return "JEWEL" }
func (c *fakeChain) WrappedNative() common.Address { return wjewelAddr }

func (c *fakeChain) ManualGasPrice() *chaindomain.GasPrice {
	return chaindomain.NewGasPriceFromGwei(decimal.NewFromInt(30))
}

func (c *fakeChain) StoredTokenList() []chaindomain.TokenInfo {
	return append([]chaindomain.TokenInfo(nil), c.tokenList...)
}

func (c *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	c.gasCalls.Add(1)
	return c.gasWei, nil
}

func (c *fakeChain) CallContract(context.Context, ethereum.CallMsg) ([]byte, error) {
	return nil, errors.New("not used")
}

func (c *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, nil
}

func (c *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	// Widen the critical section so overlapping submissions would show.
	time.Sleep(time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sendErrs) > 0 {
		err := c.sendErrs[0]
		c.sendErrs = c.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	c.sent = append(c.sent, tx)
	return nil
}

func (c *fakeChain) ProvideNonce(ctx context.Context, explicit *uint64, addr common.Address, fn chainapp.SubmitFunc) (*types.Transaction, error) {
	return c.nonces.ProvideNonce(ctx, explicit, addr, fn)
}

func (c *fakeChain) CancelTxWithGasPrice(_ context.Context, wallet chainapp.Wallet, nonce uint64, gasPrice *chaindomain.GasPrice) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels = append(c.cancels, cancelCall{nonce: nonce, gasPrice: gasPrice.Wei})
	to := wallet.Address()
	return types.NewTx(&types.LegacyTx{Nonce: nonce, To: &to, GasPrice: gasPrice.Wei, Gas: 21000, Value: big.NewInt(0)}), nil
}

func (c *fakeChain) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

// fakePairs serves fixed reserves for the WJEWEL/USDC pool.
type fakePairs struct {
	reserveJewel *big.Int
	reserveUSDC  *big.Int
	err          error
}

func (p *fakePairs) FetchPair(_ context.Context, a, b *asset.Asset) (domain.PoolSnapshot, error) {
	if p.err != nil {
		return domain.PoolSnapshot{}, p.err
	}
	pool := domain.PoolSnapshot{
		Address:  common.HexToAddress("0xfee"),
		Token0:   wjewel,
		Token1:   usdc,
		Reserve0: p.reserveJewel,
		Reserve1: p.reserveUSDC,
		FeeBps:   domain.DefaultFeeBps,
	}
	if !wjewel.SortsBefore(usdc) {
		pool.Token0, pool.Token1 = usdc, wjewel
		pool.Reserve0, pool.Reserve1 = p.reserveUSDC, p.reserveJewel
	}
	return pool, nil
}

func testConfig(t *testing.T) app.ConnectorConfig {
	t.Helper()
	routerABI, err := router.ParseRouterABI()
	require.NoError(t, err)
	return app.ConnectorConfig{
		Name:             "dfk_crystalvale",
		Chain:            "dfkchain",
		Network:          "mainnet",
		Router:           routerAddr,
		RouterABI:        routerABI,
		GasLimitEstimate: 150688,
		TTL:              300 * time.Second,
		AllowedSlippage:  "1/100",
	}
}

func newTestConnector(t *testing.T, chain *fakeChain, pairs app.PairReader, mutate ...func(*app.ConnectorConfig)) *app.Connector {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := app.NewConnector(cfg, chain, pairs, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newWallet(t *testing.T) *chaineth.KeyWallet {
	t.Helper()
	w, err := chaineth.NewKeyWallet(devKey)
	require.NoError(t, err)
	return w
}
