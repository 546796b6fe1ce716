package asset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrAlreadyRegistered = errors.New("asset: already registered")

type symbolKey struct {
	chainID uint64
	symbol  string
}

// Registry indexes the assets a connector can trade. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[symbolKey]*Asset
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[symbolKey]*Asset),
	}
}

// Register adds a. The first asset registered under an ID wins; the first
// under a symbol keeps the symbol lookup.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("%w: %s as %s", ErrAlreadyRegistered, a.ID(), prev.Symbol())
	}
	r.byID[a.ID()] = a

	key := symbolKey{a.ChainID(), strings.ToUpper(a.Symbol())}
	if _, taken := r.bySymbol[key]; !taken {
		r.bySymbol[key] = a
	}
	return nil
}

func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	return a, ok
}

// GetBySymbolAndChain looks a symbol up case-insensitively.
func (r *Registry) GetBySymbolAndChain(symbol string, chainID uint64) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.bySymbol[symbolKey{chainID, strings.ToUpper(strings.TrimSpace(symbol))}]
	return a, ok
}

func (r *Registry) GetNative(chainID uint64) (*Asset, bool) {
	return r.Get(nativeID(chainID))
}

// GetToken retrieves a token by chain and address. The zero address
// resolves to the chain's native coin.
func (r *Registry) GetToken(chainID uint64, address common.Address) (*Asset, bool) {
	if address == (common.Address{}) {
		return r.GetNative(chainID)
	}
	return r.Get(tokenID(chainID, address))
}

// All returns every asset ordered by symbol, then address.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	result := make([]*Asset, 0, len(r.byID))
	for _, a := range r.byID {
		result = append(result, a)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol() != result[j].Symbol() {
			return result[i].Symbol() < result[j].Symbol()
		}
		return result[i].Address().Cmp(result[j].Address()) < 0
	})
	return result
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
