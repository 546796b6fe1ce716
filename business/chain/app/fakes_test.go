package app

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/amm-connector/business/chain/domain"
)

// fakeNode is an in-memory RPCClient.
type fakeNode struct {
	mu       sync.Mutex
	chainID  *big.Int
	pending  map[common.Address]uint64
	sent     []*types.Transaction
	sendErr  error
	nonceErr error
	gasPrice *big.Int
	closed   bool
}

func newFakeNode(chainID int64) *fakeNode {
	return &fakeNode{
		chainID:  big.NewInt(chainID),
		pending:  make(map[common.Address]uint64),
		gasPrice: big.NewInt(1e9),
	}
}

func (f *fakeNode) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeNode) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gasPrice, nil
}

func (f *fakeNode) PendingNonceAt(_ context.Context, addr common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.pending[addr], nil
}

func (f *fakeNode) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeNode) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeNode) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeNode) setPending(addr common.Address, n uint64) {
	f.mu.Lock()
	f.pending[addr] = n
	f.mu.Unlock()
}

// memStore is an in-memory NonceStore.
type memStore struct {
	mu     sync.Mutex
	nonces map[common.Address]uint64
}

func newMemStore() *memStore {
	return &memStore{nonces: make(map[common.Address]uint64)}
}

func (s *memStore) Load(_ context.Context, _ uint64, addr common.Address) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nonces[addr]
	return n, ok, nil
}

func (s *memStore) Save(_ context.Context, _ uint64, addr common.Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[addr] = nonce
	return nil
}

// fakeTokens is a static TokenListSource.
type fakeTokens []domain.TokenInfo

func (f fakeTokens) Load(context.Context) ([]domain.TokenInfo, error) { return f, nil }

// keyWallet signs with an in-memory key.
type keyWallet struct {
	key *ecdsa.PrivateKey
}

func newKeyWallet() *keyWallet {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return &keyWallet{key: key}
}

func (w *keyWallet) Address() common.Address { return crypto.PubkeyToAddress(w.key.PublicKey) }

func (w *keyWallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
}
