package app

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fd1az/amm-connector/internal/logger"
)

// Factory builds a connector for (chain, network).
type Factory func(ctx context.Context, chain, network string) (*Connector, error)

// Registry holds at most one live connector per (chain, network) for one
// connector name.
type Registry struct {
	name    string
	factory Factory
	logger  logger.LoggerInterface

	mu        sync.Mutex
	instances map[string]*Connector
	group     singleflight.Group
}

// NewRegistry creates an empty registry.
func NewRegistry(name string, factory Factory, log logger.LoggerInterface) *Registry {
	return &Registry{
		name:      name,
		factory:   factory,
		logger:    log,
		instances: make(map[string]*Connector),
	}
}

// Name returns the connector name served by the registry.
func (r *Registry) Name() string { return r.name }

func registryKey(chain, network string) string {
	return chain + ":" + network
}

// GetInstance returns the connector for (chain, network), building and
// starting it on first use. Concurrent first calls build once, and the build
// is not cancelled when the caller that triggered it gives up.
func (r *Registry) GetInstance(ctx context.Context, chain, network string) (*Connector, error) {
	key := registryKey(chain, network)

	if c, ok := r.lookup(key); ok {
		return c, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if c, ok := r.lookup(key); ok {
			return c, nil
		}

		ctx := context.WithoutCancel(ctx)
		c, err := r.factory(ctx, chain, network)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.onClose = func(closed *Connector) { r.remove(key, closed) }
		c.mu.Unlock()

		r.mu.Lock()
		r.instances[key] = c
		r.mu.Unlock()

		c.Start(ctx)

		r.logger.Info(ctx, "connector instantiated", "connector", c.Key())
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Connector), nil
}

func (r *Registry) lookup(key string) (*Connector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.instances[key]
	return c, ok
}

// remove drops c only if it is still the registered instance for key.
func (r *Registry) remove(key string, c *Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instances[key] == c {
		delete(r.instances, key)
	}
}

// Instances returns the live connectors keyed by "<chain>:<network>".
func (r *Registry) Instances() map[string]*Connector {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*Connector, len(r.instances))
	for k, c := range r.instances {
		out[k] = c
	}
	return out
}

// Keys returns the sorted keys of the live connectors.
func (r *Registry) Keys() []string {
	instances := r.Instances()
	keys := make([]string, 0, len(instances))
	for k := range instances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close closes every live connector.
func (r *Registry) Close() error {
	for _, c := range r.Instances() {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}
