// Package app contains application services and port definitions for the chain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/amm-connector/business/chain/domain"
)

// RPCClient is the subset of node RPC the chain gateway needs.
type RPCClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// BreakerReporter is implemented by RPC clients that guard calls with
// circuit breakers.
type BreakerReporter interface {
	OpenBreakers() []string
}

// NonceStore persists the last committed nonce per (chain, wallet).
type NonceStore interface {
	// Load returns the last committed nonce and whether one was recorded.
	Load(ctx context.Context, chainID uint64, addr common.Address) (uint64, bool, error)

	// Save records nonce as the last committed one.
	Save(ctx context.Context, chainID uint64, addr common.Address, nonce uint64) error
}

// TokenListSource loads a chain's token list.
type TokenListSource interface {
	Load(ctx context.Context) ([]domain.TokenInfo, error)
}

// GasPriceSource fetches the current gas price.
type GasPriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Wallet signs transactions for one account.
type Wallet interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// SubmitFunc builds, signs and sends a transaction at the given nonce.
type SubmitFunc func(ctx context.Context, nonce uint64) (*types.Transaction, error)
