package app

import (
	"context"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/amm-connector/business/amm/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/asset"
)

// EstimateSellTrade quotes selling amount of base for quote. The expected
// amount is the minimum output under the allowed slippage.
func (c *Connector) EstimateSellTrade(ctx context.Context, base, quote *asset.Asset, amount *big.Int, allowedSlippage string) (*domain.ExpectedTrade, error) {
	return c.estimate(ctx, domain.ExactInput, base, quote, amount, allowedSlippage)
}

// EstimateBuyTrade quotes buying amount of base with quote. The expected
// amount is the maximum input under the allowed slippage.
func (c *Connector) EstimateBuyTrade(ctx context.Context, quote, base *asset.Asset, amount *big.Int, allowedSlippage string) (*domain.ExpectedTrade, error) {
	return c.estimate(ctx, domain.ExactOutput, quote, base, amount, allowedSlippage)
}

// estimate quotes a single-hop trade from in to out. amount is the input for
// exact-input trades and the output for exact-output ones.
func (c *Connector) estimate(ctx context.Context, kind domain.TradeType, in, out *asset.Asset, amount *big.Int, allowedSlippage string) (*domain.ExpectedTrade, error) {
	ctx, span := c.tracer.Start(ctx, "amm.estimate",
		trace.WithAttributes(
			attribute.String("connector", c.Key()),
			attribute.String("type", kind.String()),
			attribute.String("token_in", in.PathAddress().Hex()),
			attribute.String("token_out", out.PathAddress().Hex()),
		),
	)
	defer span.End()

	start := time.Now()
	attrs := metric.WithAttributes(
		attribute.String("connector", c.Key()),
		attribute.String("type", kind.String()),
	)
	c.metrics.quotes.Add(ctx, 1, attrs)
	defer func() {
		c.metrics.quoteLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	}()

	fail := func(err error) (*domain.ExpectedTrade, error) {
		if apperror.GetCode(err) == apperror.CodeNoRoute {
			c.metrics.noRoute.Add(ctx, 1, attrs)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return nil, err
	}

	if err := c.checkOpen(); err != nil {
		return fail(err)
	}
	if amount == nil || amount.Sign() < 0 {
		return fail(apperror.New(apperror.CodeInvalidInput, apperror.WithContext("amount must be non-negative")))
	}

	slippage, err := c.GetAllowedSlippage(allowedSlippage)
	if err != nil {
		return fail(err)
	}
	if !in.Routable() || !out.Routable() {
		return fail(apperror.New(apperror.CodeNoRoute,
			apperror.WithContext("native coin has no wrapped token on "+c.Key())))
	}

	c.logger.Info(ctx, "fetching pair data",
		"connector", c.Key(),
		"token_in", in.PathAddress().Hex(),
		"token_out", out.PathAddress().Hex(),
	)

	pool, err := c.pairs.FetchPair(ctx, in, out)
	if err != nil {
		return fail(err)
	}

	var trade *domain.Trade
	if kind == domain.ExactInput {
		trade, err = domain.BestTradeExactIn(pool, asset.NewAmount(in, amount), out)
	} else {
		trade, err = domain.BestTradeExactOut(pool, in, asset.NewAmount(out, amount))
	}
	if err != nil {
		return fail(err)
	}

	expected := &domain.ExpectedTrade{Trade: trade}
	price := trade.ExecutionPrice
	if kind == domain.ExactInput {
		expected.ExpectedAmount = trade.MinimumAmountOut(slippage)
	} else {
		expected.ExpectedAmount = trade.MaximumAmountIn(slippage)
		if !price.IsZero() {
			price = decimal.NewFromInt(1).Div(price)
		}
	}

	c.logger.Info(ctx, "best trade",
		"connector", c.Key(),
		"pair", pool.Address.Hex(),
		"type", kind.String(),
		"execution_price", price.StringFixed(6),
		"expected_amount", expected.ExpectedAmount.String(),
		"slippage", slippage.String(),
	)

	span.SetAttributes(
		attribute.String("amount_in", trade.InputAmount.Raw().String()),
		attribute.String("amount_out", trade.OutputAmount.Raw().String()),
		attribute.String("expected_amount", expected.ExpectedAmount.Raw().String()),
	)
	span.SetStatus(codes.Ok, "estimated")

	return expected, nil
}
