// Package amm implements the amm bounded context: constant-product connectors
// that quote and submit swaps through Uniswap-V2 style routers.
package amm

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fd1az/amm-connector/business/amm/app"
	ammDI "github.com/fd1az/amm-connector/business/amm/di"
	"github.com/fd1az/amm-connector/business/amm/infra/router"
	chainapp "github.com/fd1az/amm-connector/business/chain/app"
	chainDI "github.com/fd1az/amm-connector/business/chain/di"
	chaindomain "github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/config"
	"github.com/fd1az/amm-connector/internal/di"
	"github.com/fd1az/amm-connector/internal/logger"
	"github.com/fd1az/amm-connector/internal/monolith"
)

// initTimeout bounds connector initialization during startup.
const initTimeout = 30 * time.Second

// Module implements the amm bounded context.
type Module struct{}

// RegisterServices registers all amm services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register one Registry per configured connector (public)
	di.RegisterToken(c, ammDI.Registries, func(sr di.ServiceRegistry) map[string]*app.Registry {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		gateways := chainDI.GetGateways(sr)

		registries := make(map[string]*app.Registry, len(cfg.Connectors))
		for name := range cfg.Connectors {
			registries[name] = app.NewRegistry(name, NewConnectorFactory(cfg, name, gateways, log), log)
		}
		return registries
	})

	// Register SpenderDirectory (public)
	di.RegisterToken(c, ammDI.Spenders, func(sr di.ServiceRegistry) *app.SpenderDirectory {
		spenders := app.NewSpenderDirectory()
		for _, r := range ammDI.GetRegistries(sr) {
			spenders.RegisterRegistry(r)
		}
		return spenders
	})

	return nil
}

// Startup instantiates and initializes every configured connector.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	registries := ammDI.GetRegistries(mono.Services())
	spenders := ammDI.GetSpenders(mono.Services())

	mono.OnClose(func() error {
		var errs []error
		for _, r := range registries {
			errs = append(errs, r.Close())
		}
		return errors.Join(errs...)
	})

	initCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	// Failures are logged; an unreachable node must not block the others.
	g, gctx := errgroup.WithContext(initCtx)
	for _, name := range sortedNames(cfg.Connectors) {
		r := registries[name]
		for chain, networks := range cfg.Connectors[name].ContractAddresses {
			for network := range networks {
				g.Go(func() error {
					conn, err := r.GetInstance(gctx, chain, network)
					if err != nil {
						log.Warn(ctx, "connector unavailable", "connector", name, "chain", chain, "network", network, "error", err)
						return nil
					}
					if err := conn.Init(gctx); err != nil {
						log.Warn(ctx, "connector init failed", "connector", conn.Key(), "error", err)
						return nil
					}
					spender, err := spenders.Resolve(gctx, chain, network, name)
					if err != nil {
						log.Warn(ctx, "spender unresolved", "connector", conn.Key(), "error", err)
						return nil
					}
					log.Info(ctx, "connector ready", "connector", conn.Key(), "spender", spender.Hex())
					return nil
				})
			}
		}
	}
	_ = g.Wait()

	if h := mono.Health(); h != nil {
		for name, r := range registries {
			h.RegisterCheck("connector:"+name, func(context.Context) (bool, string) {
				for key, conn := range r.Instances() {
					if !conn.Ready() {
						return false, key + " not ready"
					}
				}
				return true, ""
			})
		}
	}

	log.Info(ctx, "amm module started", "connectors", len(registries))
	return nil
}

// NewConnectorFactory builds connectors named name from configuration.
func NewConnectorFactory(cfg *config.Config, name string, gateways *chainapp.Gateways, log logger.LoggerInterface) app.Factory {
	return func(ctx context.Context, chain, network string) (*app.Connector, error) {
		connCfg, ok := cfg.Connectors[name]
		if !ok {
			return nil, apperror.New(apperror.CodeConnectorNotDefined, apperror.WithContext(name))
		}

		routerAddr, ok := connCfg.RouterAddress(chain, network)
		if !ok {
			return nil, apperror.New(apperror.CodeConnectorNotDefined,
				apperror.WithContext(name+" has no router on "+chain+":"+network))
		}

		_, netCfg, ok := cfg.Network(chain, network)
		if !ok {
			return nil, apperror.New(apperror.CodeConfigurationError,
				apperror.WithContext("no configuration for "+chain+":"+network))
		}

		gw, err := gateways.Get(ctx, chain, network)
		if err != nil {
			return nil, err
		}

		pairs, err := router.NewPairFetcher(gw, connCfg.FactoryAddressHex(), connCfg.InitCodeHashHex(), connCfg.FeeBps, log)
		if err != nil {
			return nil, err
		}

		routerABI, err := router.ParseRouterABI()
		if err != nil {
			return nil, err
		}

		return app.NewConnector(app.ConnectorConfig{
			Name:                    name,
			Chain:                   chain,
			Network:                 network,
			Router:                  routerAddr,
			RouterABI:               routerABI,
			GasLimitEstimate:        connCfg.GasLimitEstimate,
			TTL:                     connCfg.TTL,
			AllowedSlippage:         connCfg.AllowedSlippage,
			GasPriceRefreshInterval: netCfg.GasPriceRefreshInterval,
			MaxGasPrice:             chaindomain.GweiToWei(netCfg.MaxGasPrice()),
		}, gw, pairs, log)
	}
}

func sortedNames(m map[string]config.ConnectorConfig) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
