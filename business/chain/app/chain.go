package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/logger"
)

// cancelGasLimit is the gas of a plain value transfer.
const cancelGasLimit = 21000

// ChainConfig describes one (chain, network) gateway.
type ChainConfig struct {
	Chain                string
	Network              string
	ChainID              uint64
	GasLimitTransaction  uint64
	NativeCurrencySymbol string
	ManualGasPriceGwei   decimal.Decimal
	WrappedNative        common.Address
}

// Chain is the gateway to one EVM network: node access, the stored token
// list and per-wallet nonce coordination.
type Chain struct {
	cfg    ChainConfig
	rpc    RPCClient
	tokens TokenListSource
	nonces *NonceManager
	logger logger.LoggerInterface

	mu        sync.RWMutex
	state     domain.ConnectionState
	tokenList []domain.TokenInfo
	initMu    sync.Mutex

	tracer trace.Tracer
}

// NewChain creates a chain gateway. It does not touch the node until Init.
func NewChain(cfg ChainConfig, rpc RPCClient, tokens TokenListSource, store NonceStore, log logger.LoggerInterface) (*Chain, error) {
	nonces, err := NewNonceManager(cfg.ChainID, rpc, store, log)
	if err != nil {
		return nil, err
	}

	return &Chain{
		cfg:    cfg,
		rpc:    rpc,
		tokens: tokens,
		nonces: nonces,
		logger: log,
		state:  domain.StateDisconnected,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// Init verifies the node serves the configured chain and loads the token
// list. Calling Init on a ready chain is a no-op.
func (c *Chain) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	switch c.State() {
	case domain.StateReady:
		return nil
	case domain.StateClosed:
		return apperror.New(apperror.CodeChainNotReady,
			apperror.WithContext(c.Key()+" is closed"))
	}

	ctx, span := c.tracer.Start(ctx, "chain.init",
		trace.WithAttributes(
			attribute.String("chain", c.cfg.Chain),
			attribute.String("network", c.cfg.Network),
		),
	)
	defer span.End()

	c.setState(domain.StateConnecting)

	id, err := c.rpc.ChainID(ctx)
	if err != nil {
		c.setState(domain.StateDisconnected)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain id failed")
		return apperror.Wrap(err, apperror.CodeEthereumConnectionFailed, "chain id for "+c.Key())
	}
	if id.Uint64() != c.cfg.ChainID {
		c.setState(domain.StateDisconnected)
		err := apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("%s: node reports chain id %s, configured %d", c.Key(), id, c.cfg.ChainID)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain id mismatch")
		return err
	}

	list, err := c.tokens.Load(ctx)
	if err != nil {
		c.setState(domain.StateDisconnected)
		span.RecordError(err)
		span.SetStatus(codes.Error, "token list failed")
		return apperror.Wrap(err, apperror.CodeTokenListFailed, c.Key())
	}

	filtered := make([]domain.TokenInfo, 0, len(list))
	for _, t := range list {
		if t.ChainID == c.cfg.ChainID {
			filtered = append(filtered, t)
		}
	}

	c.mu.Lock()
	c.tokenList = filtered
	c.state = domain.StateReady
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("tokens", len(filtered)))
	span.SetStatus(codes.Ok, "ready")
	c.logger.Info(ctx, "chain ready",
		"chain", c.cfg.Chain,
		"network", c.cfg.Network,
		"chain_id", c.cfg.ChainID,
		"tokens", len(filtered),
	)

	return nil
}

// Ready reports whether Init completed.
func (c *Chain) Ready() bool {
	return c.State() == domain.StateReady
}

// OpenBreakers returns the node client's open circuit breakers, if any.
func (c *Chain) OpenBreakers() []string {
	if r, ok := c.rpc.(BreakerReporter); ok {
		return r.OpenBreakers()
	}
	return nil
}

// State returns the gateway's lifecycle state.
func (c *Chain) State() domain.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Chain) setState(s domain.ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Close releases the node connection.
func (c *Chain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == domain.StateClosed {
		return nil
	}
	c.state = domain.StateClosed
	c.rpc.Close()
	return nil
}

// Key returns "<chain>:<network>".
func (c *Chain) Key() string {
	return c.cfg.Chain + ":" + c.cfg.Network
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.cfg.Chain }

// Network returns the network name.
func (c *Chain) Network() string { return c.cfg.Network }

// ChainID returns the configured chain ID.
func (c *Chain) ChainID() *big.Int {
	return new(big.Int).SetUint64(c.cfg.ChainID)
}

// NativeCurrencySymbol returns the symbol of the chain's native coin.
func (c *Chain) NativeCurrencySymbol() string { return c.cfg.NativeCurrencySymbol }

// WrappedNative returns the ERC20 wrapper of the native coin, zero if unknown.
func (c *Chain) WrappedNative() common.Address { return c.cfg.WrappedNative }

// GasLimitTransaction returns the chain's default gas limit.
func (c *Chain) GasLimitTransaction() uint64 { return c.cfg.GasLimitTransaction }

// ManualGasPrice returns the configured fallback gas price.
func (c *Chain) ManualGasPrice() *domain.GasPrice {
	return domain.NewGasPriceFromGwei(c.cfg.ManualGasPriceGwei)
}

// StoredTokenList returns a copy of the token list loaded by Init.
func (c *Chain) StoredTokenList() []domain.TokenInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.TokenInfo, len(c.tokenList))
	copy(out, c.tokenList)
	return out
}

// ProvideNonce runs fn in addr's nonce critical section.
func (c *Chain) ProvideNonce(ctx context.Context, explicit *uint64, addr common.Address, fn SubmitFunc) (*types.Transaction, error) {
	return c.nonces.ProvideNonce(ctx, explicit, addr, fn)
}

// Nonces exposes the chain's nonce manager.
func (c *Chain) Nonces() *NonceManager {
	return c.nonces
}

// SendTransaction broadcasts a signed transaction.
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.rpc.SendTransaction(ctx, tx)
}

// CallContract executes a read-only call at the latest block.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return c.rpc.CallContract(ctx, msg, nil)
}

// SuggestGasPrice asks the node for a gas price.
func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.rpc.SuggestGasPrice(ctx)
}

// CancelTxWithGasPrice replaces the pending transaction at nonce with a
// zero-value transfer to the wallet itself.
func (c *Chain) CancelTxWithGasPrice(ctx context.Context, wallet Wallet, nonce uint64, gasPrice *domain.GasPrice) (*types.Transaction, error) {
	ctx, span := c.tracer.Start(ctx, "chain.cancel_tx",
		trace.WithAttributes(
			attribute.String("wallet", wallet.Address().Hex()),
			attribute.Int64("nonce", int64(nonce)),
		),
	)
	defer span.End()

	if !gasPrice.Usable() {
		return nil, apperror.New(apperror.CodeGasPriceUnavailable,
			apperror.WithContext("cancel at nonce "+fmt.Sprint(nonce)))
	}

	to := wallet.Address()
	tx, err := c.ProvideNonce(ctx, &nonce, to, func(ctx context.Context, n uint64) (*types.Transaction, error) {
		unsigned := types.NewTx(&types.LegacyTx{
			Nonce:    n,
			To:       &to,
			Value:    big.NewInt(0),
			Gas:      cancelGasLimit,
			GasPrice: gasPrice.Wei,
		})

		signed, err := wallet.SignTx(unsigned, c.ChainID())
		if err != nil {
			return nil, apperror.New(apperror.CodeSigningFailed, apperror.WithCause(err))
		}
		if err := c.SendTransaction(ctx, signed); err != nil {
			return nil, apperror.New(apperror.CodeSubmissionFailed,
				apperror.WithCause(err),
				apperror.WithContext("cancel transaction"))
		}
		return signed, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "sent")
	c.logger.Info(ctx, "cancel transaction sent",
		"chain", c.Key(),
		"wallet", to.Hex(),
		"nonce", nonce,
		"hash", tx.Hash().Hex(),
		"gas_price_gwei", gasPrice.Gwei().String(),
	)

	return tx, nil
}
