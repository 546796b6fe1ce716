package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/amm-connector/internal/apperror"
)

// RouterProvider returns the router a named connector uses on (chain, network).
type RouterProvider func(ctx context.Context, chain, network string) (common.Address, error)

// SpenderDirectory resolves the spender a wallet approves: a connector name
// maps to that connector's router, a hex address is used as is.
type SpenderDirectory struct {
	mu        sync.RWMutex
	providers map[string]RouterProvider
}

// NewSpenderDirectory creates an empty directory.
func NewSpenderDirectory() *SpenderDirectory {
	return &SpenderDirectory{providers: make(map[string]RouterProvider)}
}

// Register maps a connector name to its router lookup.
func (d *SpenderDirectory) Register(name string, provider RouterProvider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.providers[name] = provider
}

// RegisterRegistry maps the registry's connector name to its connectors' routers.
func (d *SpenderDirectory) RegisterRegistry(r *Registry) {
	d.Register(r.Name(), func(ctx context.Context, chain, network string) (common.Address, error) {
		c, err := r.GetInstance(ctx, chain, network)
		if err != nil {
			return common.Address{}, err
		}
		return c.Router(), nil
	})
}

// Resolve returns the spender address for spender on (chain, network).
func (d *SpenderDirectory) Resolve(ctx context.Context, chain, network, spender string) (common.Address, error) {
	d.mu.RLock()
	provider, ok := d.providers[spender]
	d.mu.RUnlock()

	if ok {
		return provider(ctx, chain, network)
	}

	if common.IsHexAddress(spender) {
		return common.HexToAddress(spender), nil
	}

	return common.Address{}, apperror.New(apperror.CodeUnknownSpender,
		apperror.WithContext(spender+" on "+chain+":"+network))
}
