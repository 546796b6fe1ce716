// Package app contains the connector, its registry and the port definitions
// of the amm context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/amm-connector/business/amm/domain"
	chainapp "github.com/fd1az/amm-connector/business/chain/app"
	chaindomain "github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/asset"
)

// ChainGateway is the chain a connector trades on.
type ChainGateway interface {
	Init(ctx context.Context) error
	Ready() bool
	Key() string

	ChainID() *big.Int
	NativeCurrencySymbol() string
	WrappedNative() common.Address
	ManualGasPrice() *chaindomain.GasPrice
	StoredTokenList() []chaindomain.TokenInfo

	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	ProvideNonce(ctx context.Context, explicit *uint64, addr common.Address, fn chainapp.SubmitFunc) (*types.Transaction, error)
	CancelTxWithGasPrice(ctx context.Context, wallet chainapp.Wallet, nonce uint64, gasPrice *chaindomain.GasPrice) (*types.Transaction, error)
}

// Ensure the chain gateway satisfies ChainGateway.
var _ ChainGateway = (*chainapp.Chain)(nil)

// PairReader reads the live state of the pool trading a against b.
type PairReader interface {
	FetchPair(ctx context.Context, a, b *asset.Asset) (domain.PoolSnapshot, error)
}

// Wallet signs transactions for one account.
type Wallet = chainapp.Wallet
