package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/amm-connector/business/amm/domain"
	chainapp "github.com/fd1az/amm-connector/business/chain/app"
	chaindomain "github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/asset"
	"github.com/fd1az/amm-connector/internal/logger"
)

const (
	tracerName = "github.com/fd1az/amm-connector/business/amm/app"
	meterName  = "github.com/fd1az/amm-connector/business/amm/app"
)

// nativeDecimals is the precision of every EVM native coin.
const nativeDecimals = 18

// ConnectorConfig holds the settings of one connector instance.
type ConnectorConfig struct {
	Name    string
	Chain   string
	Network string

	Router           common.Address
	RouterABI        abi.ABI
	GasLimitEstimate uint64
	TTL              time.Duration
	AllowedSlippage  string // default "<num>/<den>", validated on use

	GasPriceRefreshInterval time.Duration
	MaxGasPrice             *big.Int
}

// connectorMetrics holds OTEL metric instruments.
type connectorMetrics struct {
	quotes           metric.Int64Counter
	noRoute          metric.Int64Counter
	quoteLatency     metric.Float64Histogram
	submissions      metric.Int64Counter
	submissionErrors metric.Int64Counter
}

// Connector quotes and submits swaps against one Uniswap-V2 style router on
// one (chain, network).
type Connector struct {
	cfg       ConnectorConfig
	chain     ChainGateway
	pairs     PairReader
	refresher *chainapp.GasPriceRefresher
	logger    logger.LoggerInterface

	initMu sync.Mutex
	mu     sync.RWMutex
	tokens *asset.Registry
	ready  bool
	closed atomic.Bool

	onClose func(*Connector)

	tracer  trace.Tracer
	metrics *connectorMetrics
}

// NewConnector creates a connector. The gas price starts at the chain's
// manual price until Start launches the refresher.
func NewConnector(cfg ConnectorConfig, chain ChainGateway, pairs PairReader, log logger.LoggerInterface) (*Connector, error) {
	c := &Connector{
		cfg:    cfg,
		chain:  chain,
		pairs:  pairs,
		logger: log,
		tokens: asset.NewRegistry(),
		tracer: otel.Tracer(tracerName),
	}

	refresher, err := chainapp.NewGasPriceRefresher(chain, chain.ManualGasPrice(), cfg.GasPriceRefreshInterval, log,
		chainapp.WithMaxGasPrice(cfg.MaxGasPrice),
		chainapp.WithLabel(c.Key()),
	)
	if err != nil {
		return nil, err
	}
	c.refresher = refresher

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return c, nil
}

func (c *Connector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &connectorMetrics{}

	c.metrics.quotes, err = meter.Int64Counter(
		"amm_quotes_total",
		metric.WithDescription("Total trade estimates"),
	)
	if err != nil {
		return err
	}

	c.metrics.noRoute, err = meter.Int64Counter(
		"amm_no_route_total",
		metric.WithDescription("Estimates that found no viable trade"),
	)
	if err != nil {
		return err
	}

	c.metrics.quoteLatency, err = meter.Float64Histogram(
		"amm_quote_latency_ms",
		metric.WithDescription("Trade estimate latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	c.metrics.submissions, err = meter.Int64Counter(
		"amm_submissions_total",
		metric.WithDescription("Swap transactions accepted by the node"),
	)
	if err != nil {
		return err
	}

	c.metrics.submissionErrors, err = meter.Int64Counter(
		"amm_submission_errors_total",
		metric.WithDescription("Swap transactions that failed to submit"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Start launches the gas price refresher.
func (c *Connector) Start(ctx context.Context) {
	if c.closed.Load() {
		return
	}
	c.refresher.Start(ctx)
}

// Init initializes the chain if needed and loads the token registry once.
func (c *Connector) Init(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.Ready() {
		return nil
	}

	if !c.chain.Ready() {
		if err := c.chain.Init(ctx); err != nil {
			return err
		}
	}

	tokens := asset.NewRegistry()
	chainID := c.chain.ChainID().Uint64()

	if wrapped := c.chain.WrappedNative(); wrapped != (common.Address{}) {
		symbol := c.chain.NativeCurrencySymbol()
		native, err := asset.NewNative(chainID, symbol, nativeDecimals, wrapped)
		if err == nil {
			err = tokens.Register(native)
		}
		if err != nil {
			c.logger.Warn(ctx, "skipping native coin", "symbol", symbol, "error", err)
		}
	}

	for _, info := range c.chain.StoredTokenList() {
		tok, err := asset.NewToken(chainID, info.HexAddress(), info.Symbol, info.Name, info.Decimals)
		if err == nil {
			err = tokens.Register(tok)
		}
		if err != nil {
			c.logger.Warn(ctx, "skipping token",
				"connector", c.Key(),
				"address", info.Address,
				"symbol", info.Symbol,
				"error", err,
			)
		}
	}

	c.mu.Lock()
	c.tokens = tokens
	c.ready = true
	c.mu.Unlock()

	c.logger.Info(ctx, "connector initialized",
		"connector", c.Key(),
		"router", c.cfg.Router.Hex(),
		"tokens", tokens.Count(),
	)

	return nil
}

// Ready reports whether Init completed and the connector is open.
func (c *Connector) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready && !c.closed.Load()
}

// Close stops the gas price refresher and unregisters the connector.
// Closing twice is a no-op.
func (c *Connector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.refresher.Stop()

	c.mu.Lock()
	c.ready = false
	onClose := c.onClose
	c.mu.Unlock()

	if onClose != nil {
		onClose(c)
	}

	c.logger.Info(context.Background(), "connector closed", "connector", c.Key())
	return nil
}

func (c *Connector) checkOpen() error {
	if c.closed.Load() {
		return apperror.New(apperror.CodeConnectorClosed, apperror.WithContext(c.Key()))
	}
	return nil
}

// Key returns "<name>:<chain>:<network>".
func (c *Connector) Key() string {
	return c.cfg.Name + ":" + c.cfg.Chain + ":" + c.cfg.Network
}

// Name returns the connector name.
func (c *Connector) Name() string { return c.cfg.Name }

// Chain returns the chain gateway.
func (c *Connector) Chain() ChainGateway { return c.chain }

// Router returns the router contract address.
func (c *Connector) Router() common.Address { return c.cfg.Router }

// RouterABI returns the router contract ABI.
func (c *Connector) RouterABI() abi.ABI { return c.cfg.RouterABI }

// GasLimitEstimate returns the default gas limit of a swap.
func (c *Connector) GasLimitEstimate() uint64 { return c.cfg.GasLimitEstimate }

// TTL returns how long a submitted swap stays valid.
func (c *Connector) TTL() time.Duration { return c.cfg.TTL }

// GasPrice returns the current gas price.
func (c *Connector) GasPrice() *chaindomain.GasPrice {
	return c.refresher.GasPrice()
}

// EstimateGasCost prices a swap at the default gas limit and current gas price.
func (c *Connector) EstimateGasCost() *chaindomain.GasEstimate {
	return chaindomain.CalculateGasEstimate(c.cfg.GasLimitEstimate, c.GasPrice())
}

// GetTokenByAddress returns the registered token at address. The zero
// address resolves to the native coin.
func (c *Connector) GetTokenByAddress(address common.Address) (*asset.Asset, error) {
	c.mu.RLock()
	tokens := c.tokens
	c.mu.RUnlock()

	tok, ok := tokens.GetToken(c.chain.ChainID().Uint64(), address)
	if !ok {
		return nil, apperror.New(apperror.CodeTokenNotFound,
			apperror.WithContext(address.Hex()+" on "+c.Key()))
	}
	return tok, nil
}

// GetTokenBySymbol returns the registered token with symbol.
func (c *Connector) GetTokenBySymbol(symbol string) (*asset.Asset, error) {
	c.mu.RLock()
	tokens := c.tokens
	c.mu.RUnlock()

	tok, ok := tokens.GetBySymbolAndChain(symbol, c.chain.ChainID().Uint64())
	if !ok {
		return nil, apperror.New(apperror.CodeTokenNotFound,
			apperror.WithContext(symbol+" on "+c.Key()))
	}
	return tok, nil
}

// Tokens returns every registered token.
func (c *Connector) Tokens() []*asset.Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.All()
}

// GetAllowedSlippage returns s when it is "<int>/<int>" with a non-zero
// denominator, otherwise the configured default.
func (c *Connector) GetAllowedSlippage(s string) (domain.Fraction, error) {
	if f, ok := domain.ParseFraction(s); ok {
		return f, nil
	}

	if f, ok := domain.ParseFraction(c.cfg.AllowedSlippage); ok {
		return f, nil
	}

	return domain.Fraction{}, apperror.New(apperror.CodeConfigurationError,
		apperror.WithContext(fmt.Sprintf("malformed allowed_slippage %q for %s", c.cfg.AllowedSlippage, c.cfg.Name)))
}

// CancelTx replaces whatever is pending at nonce with an empty self-transfer
// priced at twice the current gas price.
func (c *Connector) CancelTx(ctx context.Context, wallet Wallet, nonce uint64) (*types.Transaction, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "canceling pending transaction", "connector", c.Key(), "nonce", nonce)
	return c.chain.CancelTxWithGasPrice(ctx, wallet, nonce, c.GasPrice().Mul(2))
}
