// Package chain implements the chain bounded context: EVM node access, token
// lists and nonce coordination.
package chain

import (
	"context"
	"io"

	"github.com/fd1az/amm-connector/business/chain/app"
	chainDI "github.com/fd1az/amm-connector/business/chain/di"
	"github.com/fd1az/amm-connector/business/chain/infra/ethereum"
	"github.com/fd1az/amm-connector/business/chain/infra/store"
	"github.com/fd1az/amm-connector/business/chain/infra/tokenlist"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/config"
	"github.com/fd1az/amm-connector/internal/di"
	"github.com/fd1az/amm-connector/internal/logger"
	"github.com/fd1az/amm-connector/internal/monolith"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register NonceStore (private - internal dependency)
	di.RegisterToken(c, chainDI.NonceStore, func(sr di.ServiceRegistry) app.NonceStore {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Server.NonceDBPath == "" {
			return store.NewMemoryNonceStore()
		}
		s, err := store.NewSQLiteNonceStore(cfg.Server.NonceDBPath)
		if err != nil {
			panic("failed to open nonce store: " + err.Error())
		}
		return s
	})

	// Register Gateways (public - exposed to other modules)
	di.RegisterToken(c, chainDI.Gateways, func(sr di.ServiceRegistry) *app.Gateways {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		nonces := chainDI.GetNonceStore(sr)

		return app.NewGateways(NewChainFactory(cfg, nonces, log), log)
	})

	return nil
}

// Startup initializes the chain module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	nonces := chainDI.GetNonceStore(mono.Services())
	gateways := chainDI.GetGateways(mono.Services())

	// Closers run newest first: gateways before the store they write to.
	if closer, ok := nonces.(io.Closer); ok {
		mono.OnClose(closer.Close)
	}
	mono.OnClose(gateways.Close)

	if h := mono.Health(); h != nil {
		h.RegisterCheck("chains", gateways.Check)
	}

	log.Info(ctx, "chain module started", "persistent_nonces", mono.Config().Server.NonceDBPath != "")
	return nil
}

// NewChainFactory builds gateways from configuration.
func NewChainFactory(cfg *config.Config, nonces app.NonceStore, log logger.LoggerInterface) app.ChainFactory {
	return func(ctx context.Context, chain, network string) (*app.Chain, error) {
		chainCfg, netCfg, ok := cfg.Network(chain, network)
		if !ok {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext("no configuration for "+chain+":"+network))
		}

		clientCfg := ethereum.DefaultClientConfig(chain+":"+network, netCfg.NodeURL)
		if netCfg.RequestsPerSecond > 0 {
			clientCfg.RequestsPerSecond = netCfg.RequestsPerSecond
		}
		if netCfg.RequestBurst > 0 {
			clientCfg.Burst = netCfg.RequestBurst
		}

		client, err := ethereum.NewClient(clientCfg, log)
		if err != nil {
			return nil, err
		}
		if err := client.Dial(ctx); err != nil {
			return nil, err
		}

		tokens, err := tokenlist.New(netCfg.TokenListType, netCfg.TokenListSource)
		if err != nil {
			client.Close()
			return nil, err
		}

		return app.NewChain(app.ChainConfig{
			Chain:                chain,
			Network:              network,
			ChainID:              netCfg.ChainID,
			GasLimitTransaction:  chainCfg.GasLimitTransaction,
			NativeCurrencySymbol: chainCfg.NativeCurrencySymbol,
			ManualGasPriceGwei:   chainCfg.ManualGasPrice(),
			WrappedNative:        chainCfg.WrappedNative(),
		}, client, tokens, nonces, log)
	}
}
