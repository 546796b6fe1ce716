package app

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/logger"
)

// ChainFactory builds the gateway for (chain, network).
type ChainFactory func(ctx context.Context, chain, network string) (*Chain, error)

// Gateways memoizes one Chain per (chain, network). Connectors on the same
// network share a gateway and therefore its nonce manager.
type Gateways struct {
	factory ChainFactory
	logger  logger.LoggerInterface
	group   singleflight.Group

	mu     sync.Mutex
	chains map[string]*Chain
}

// NewGateways creates an empty gateway registry.
func NewGateways(factory ChainFactory, log logger.LoggerInterface) *Gateways {
	return &Gateways{
		factory: factory,
		logger:  log,
		chains:  make(map[string]*Chain),
	}
}

// Get returns the gateway for (chain, network), building it on first use.
// A closed gateway is replaced. Concurrent first calls share one build, which
// outlives the caller's cancellation.
func (g *Gateways) Get(ctx context.Context, chain, network string) (*Chain, error) {
	key := chain + ":" + network

	if c := g.live(key); c != nil {
		return c, nil
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		if c := g.live(key); c != nil {
			return c, nil
		}

		c, err := g.factory(context.WithoutCancel(ctx), chain, network)
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.chains[key] = c
		g.mu.Unlock()

		g.logger.Debug(ctx, "chain gateway created", "chain", chain, "network", network)
		return c, nil
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeChainNotReady, key)
	}
	return v.(*Chain), nil
}

// live returns the memoized gateway for key unless it is missing or closed.
func (g *Gateways) live(key string) *Chain {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.chains[key]; ok && c.State() != domain.StateClosed {
		return c
	}
	return nil
}

// All returns every gateway built so far.
func (g *Gateways) All() []*Chain {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Chain, 0, len(g.chains))
	for _, c := range g.chains {
		out = append(out, c)
	}
	return out
}

// Check reports whether every gateway is ready and reachable. It fails on the
// first gateway, in key order, that is not initialized or whose node client
// has an open circuit breaker.
func (g *Gateways) Check(context.Context) (bool, string) {
	chains := g.All()
	sort.Slice(chains, func(i, j int) bool { return chains[i].Key() < chains[j].Key() })

	for _, c := range chains {
		if !c.Ready() {
			return false, c.Key() + " " + string(c.State())
		}
		if open := c.OpenBreakers(); len(open) > 0 {
			return false, c.Key() + " circuit open: " + strings.Join(open, ",")
		}
	}
	return true, ""
}

// Close closes every gateway.
func (g *Gateways) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, c := range g.chains {
		if err := c.Close(); err != nil {
			g.logger.Warn(context.Background(), "failed to close chain", "chain", key, "error", err)
		}
		delete(g.chains, key)
	}
	return nil
}
