// Package router reads Uniswap-V2 style pair contracts and carries the router
// ABI used to build swaps.
package router

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/amm-connector/business/amm/app"
	"github.com/fd1az/amm-connector/business/amm/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/asset"
	"github.com/fd1az/amm-connector/internal/logger"
)

const (
	tracerName = "github.com/fd1az/amm-connector/business/amm/infra/router"
	meterName  = "github.com/fd1az/amm-connector/business/amm/infra/router"
)

// Ensure PairFetcher implements app.PairReader.
var _ app.PairReader = (*PairFetcher)(nil)

// ContractCaller executes read-only calls against the chain.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// fetcherMetrics holds OTEL metric instruments.
type fetcherMetrics struct {
	fetches      metric.Int64Counter
	fetchErrors  metric.Int64Counter
	fetchLatency metric.Float64Histogram
}

// PairFetcher reads live reserves of pairs created by one factory.
type PairFetcher struct {
	caller       ContractCaller
	factory      common.Address
	initCodeHash common.Hash
	feeBps       int64
	pairABI      abi.ABI

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *fetcherMetrics
}

// NewPairFetcher creates a fetcher for pairs of factory. feeBps is the swap
// fee the pairs charge.
func NewPairFetcher(caller ContractCaller, factory common.Address, initCodeHash common.Hash, feeBps int64, log logger.LoggerInterface) (*PairFetcher, error) {
	parsed, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}

	f := &PairFetcher{
		caller:       caller,
		factory:      factory,
		initCodeHash: initCodeHash,
		feeBps:       feeBps,
		pairABI:      parsed,
		logger:       log,
		tracer:       otel.Tracer(tracerName),
	}

	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return f, nil
}

// ParseRouterABI parses RouterABI.
func ParseRouterABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(RouterABI))
}

func (f *PairFetcher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &fetcherMetrics{}

	f.metrics.fetches, err = meter.Int64Counter(
		"amm_pair_fetches_total",
		metric.WithDescription("Total pair reserve reads"),
	)
	if err != nil {
		return err
	}

	f.metrics.fetchErrors, err = meter.Int64Counter(
		"amm_pair_fetch_errors_total",
		metric.WithDescription("Failed pair reserve reads"),
	)
	if err != nil {
		return err
	}

	f.metrics.fetchLatency, err = meter.Float64Histogram(
		"amm_pair_fetch_latency_ms",
		metric.WithDescription("Pair reserve read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// FetchPair reads the current reserves of the (a, b) pair.
func (f *PairFetcher) FetchPair(ctx context.Context, a, b *asset.Asset) (domain.PoolSnapshot, error) {
	token0, token1 := domain.SortTokens(a, b)
	pair := domain.PairAddress(f.factory, f.initCodeHash, token0, token1)

	ctx, span := f.tracer.Start(ctx, "amm.fetch_pair",
		trace.WithAttributes(
			attribute.String("pair", pair.Hex()),
			attribute.String("token0", token0.PathAddress().Hex()),
			attribute.String("token1", token1.PathAddress().Hex()),
		),
	)
	defer span.End()

	start := time.Now()
	f.metrics.fetches.Add(ctx, 1)
	defer func() {
		f.metrics.fetchLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	fail := func(err error, msg string) (domain.PoolSnapshot, error) {
		f.metrics.fetchErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		return domain.PoolSnapshot{}, err
	}

	callData, err := f.pairABI.Pack("getReserves")
	if err != nil {
		return fail(fmt.Errorf("failed to encode call: %w", err), "encode failed")
	}

	result, err := f.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &pair,
		Data: callData,
	})
	if err != nil {
		return fail(apperror.New(apperror.CodeReserveFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("getReserves on "+pair.Hex())), "call failed")
	}

	// No code at the derived address: the pair was never created.
	if len(result) == 0 {
		return fail(apperror.New(apperror.CodeNoRoute,
			apperror.WithContext("no pair for "+token0.Symbol()+"/"+token1.Symbol()+" at "+pair.Hex())), "pair not deployed")
	}

	reserves, err := f.decodeReserves(result)
	if err != nil {
		return fail(apperror.New(apperror.CodeReserveFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("decode getReserves from "+pair.Hex())), "decode failed")
	}

	span.SetAttributes(
		attribute.String("reserve0", reserves.Reserve0.String()),
		attribute.String("reserve1", reserves.Reserve1.String()),
	)
	span.SetStatus(codes.Ok, "reserves read")

	f.logger.Debug(ctx, "pair reserves",
		"pair", pair.Hex(),
		"reserve0", reserves.Reserve0.String(),
		"reserve1", reserves.Reserve1.String(),
	)

	return domain.PoolSnapshot{
		Address:  pair,
		Token0:   token0,
		Token1:   token1,
		Reserve0: reserves.Reserve0,
		Reserve1: reserves.Reserve1,
		FeeBps:   f.feeBps,
	}, nil
}

func (f *PairFetcher) decodeReserves(data []byte) (Reserves, error) {
	outputs, err := f.pairABI.Unpack("getReserves", data)
	if err != nil {
		return Reserves{}, err
	}
	if len(outputs) < 3 {
		return Reserves{}, fmt.Errorf("unexpected output length: %d", len(outputs))
	}

	r0, ok0 := outputs[0].(*big.Int)
	r1, ok1 := outputs[1].(*big.Int)
	ts, _ := outputs[2].(uint32)
	if !ok0 || !ok1 {
		return Reserves{}, fmt.Errorf("unexpected reserve types %T, %T", outputs[0], outputs[1])
	}

	return Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: ts}, nil
}
