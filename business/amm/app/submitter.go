package app

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/amm-connector/business/amm/domain"
	chaindomain "github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
)

// ExecuteTrade submits trade through router, signed by wallet. The nonce is
// taken from the chain's nonce coordinator unless one is given, and is only
// consumed when the node accepts the transaction.
func (c *Connector) ExecuteTrade(
	ctx context.Context,
	wallet Wallet,
	trade *domain.Trade,
	gasPriceGwei decimal.Decimal,
	router common.Address,
	ttl time.Duration,
	routerABI abi.ABI,
	gasLimit uint64,
	nonce *uint64,
	allowedSlippage string,
) (*types.Transaction, error) {
	ctx, span := c.tracer.Start(ctx, "amm.execute_trade",
		trace.WithAttributes(
			attribute.String("connector", c.Key()),
			attribute.String("wallet", wallet.Address().Hex()),
			attribute.String("router", router.Hex()),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("connector", c.Key()))

	fail := func(err error) (*types.Transaction, error) {
		c.metrics.submissionErrors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		return nil, err
	}

	if err := c.checkOpen(); err != nil {
		return fail(err)
	}

	slippage, err := c.GetAllowedSlippage(allowedSlippage)
	if err != nil {
		return fail(err)
	}

	params, err := domain.SwapCallParameters(trade, domain.SwapOptions{
		TTL:             ttl,
		Recipient:       wallet.Address(),
		AllowedSlippage: slippage,
	})
	if err != nil {
		return fail(err)
	}

	data, err := routerABI.Pack(params.MethodName, params.Args...)
	if err != nil {
		return fail(apperror.New(apperror.CodeSubmissionFailed,
			apperror.WithCause(err),
			apperror.WithContext("encode "+params.MethodName)))
	}

	gasPrice := chaindomain.GweiToWei(gasPriceGwei)
	chainID := c.chain.ChainID()

	submit := func(ctx context.Context, next uint64) (*types.Transaction, error) {
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    next,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &router,
			Value:    params.Value,
			Data:     data,
		})

		signed, err := wallet.SignTx(tx, chainID)
		if err != nil {
			return nil, apperror.New(apperror.CodeSigningFailed,
				apperror.WithCause(err),
				apperror.WithContext(params.MethodName+" at nonce "+strconv.FormatUint(next, 10)))
		}

		if err := c.chain.SendTransaction(ctx, signed); err != nil {
			return nil, apperror.New(apperror.CodeSubmissionFailed,
				apperror.WithCause(err),
				apperror.WithContext(params.MethodName+" at nonce "+strconv.FormatUint(next, 10)))
		}
		return signed, nil
	}

	tx, err := c.chain.ProvideNonce(ctx, nonce, wallet.Address(), submit)
	if err != nil {
		return fail(err)
	}

	c.metrics.submissions.Add(ctx, 1, attrs)
	span.SetAttributes(
		attribute.String("tx_hash", tx.Hash().Hex()),
		attribute.Int64("nonce", int64(tx.Nonce())),
		attribute.String("method", params.MethodName),
	)
	span.SetStatus(codes.Ok, "submitted")

	c.logger.Info(ctx, "swap submitted",
		"connector", c.Key(),
		"hash", tx.Hash().Hex(),
		"nonce", tx.Nonce(),
		"method", params.MethodName,
		"gas_price_gwei", gasPriceGwei.String(),
		"gas_limit", gasLimit,
		"value", params.Value.String(),
	)

	return tx, nil
}
