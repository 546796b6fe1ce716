package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/logger"
)

const (
	tracerName = "github.com/fd1az/amm-connector/business/chain/app"
	meterName  = "github.com/fd1az/amm-connector/business/chain/app"
)

// PendingNonceReader reads the node's view of an account's next nonce.
type PendingNonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// nonceMetrics holds OTEL metric instruments.
type nonceMetrics struct {
	provided    metric.Int64Counter
	committed   metric.Int64Counter
	waitLatency metric.Float64Histogram
}

// walletNonce is the per-account critical section and its committed state.
type walletNonce struct {
	sem    chan struct{} // capacity 1, acquired with ctx
	loaded bool
	has    bool
	last   uint64
}

// NonceManager hands out nonces per wallet. Submissions for the same wallet
// are serialized; different wallets never block each other.
type NonceManager struct {
	chainID uint64
	node    PendingNonceReader
	store   NonceStore
	logger  logger.LoggerInterface

	mu      sync.Mutex
	wallets map[common.Address]*walletNonce

	tracer  trace.Tracer
	metrics *nonceMetrics
}

// NewNonceManager creates a nonce manager for one chain.
func NewNonceManager(chainID uint64, node PendingNonceReader, store NonceStore, log logger.LoggerInterface) (*NonceManager, error) {
	m := &NonceManager{
		chainID: chainID,
		node:    node,
		store:   store,
		logger:  log,
		wallets: make(map[common.Address]*walletNonce),
		tracer:  otel.Tracer(tracerName),
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return m, nil
}

// initMetrics initializes OTEL metric instruments.
func (m *NonceManager) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	m.metrics = &nonceMetrics{}

	m.metrics.provided, err = meter.Int64Counter(
		"nonce_provided_total",
		metric.WithDescription("Nonces handed to a submission"),
		metric.WithUnit("{nonce}"),
	)
	if err != nil {
		return err
	}

	m.metrics.committed, err = meter.Int64Counter(
		"nonce_committed_total",
		metric.WithDescription("Nonces committed after node acceptance"),
		metric.WithUnit("{nonce}"),
	)
	if err != nil {
		return err
	}

	m.metrics.waitLatency, err = meter.Float64Histogram(
		"nonce_wait_seconds",
		metric.WithDescription("Time spent waiting for the wallet lock"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	return nil
}

func (m *NonceManager) wallet(addr common.Address) *walletNonce {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[addr]
	if !ok {
		w = &walletNonce{sem: make(chan struct{}, 1)}
		m.wallets[addr] = w
	}
	return w
}

// ProvideNonce runs fn inside addr's critical section with the nonce to use.
// An explicit nonce is used verbatim. The nonce is committed only when fn
// returns without error; the lock is always released.
func (m *NonceManager) ProvideNonce(ctx context.Context, explicit *uint64, addr common.Address, fn SubmitFunc) (*types.Transaction, error) {
	ctx, span := m.tracer.Start(ctx, "nonce.provide",
		trace.WithAttributes(attribute.String("wallet", addr.Hex())),
	)
	defer span.End()

	w := m.wallet(addr)

	start := time.Now()
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, "lock wait cancelled")
		return nil, apperror.New(apperror.CodeNonceUnavailable,
			apperror.WithCause(ctx.Err()),
			apperror.WithContext("waiting for wallet "+addr.Hex()))
	}
	defer func() { <-w.sem }()

	m.metrics.waitLatency.Record(ctx, time.Since(start).Seconds())

	var nonce uint64
	if explicit != nil {
		nonce = *explicit
	} else {
		next, err := m.next(ctx, addr, w)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "nonce lookup failed")
			return nil, err
		}
		nonce = next
	}

	span.SetAttributes(
		attribute.Int64("nonce", int64(nonce)),
		attribute.Bool("explicit", explicit != nil),
	)
	m.metrics.provided.Add(ctx, 1)

	tx, err := fn(ctx, nonce)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		return nil, err
	}

	m.commit(ctx, addr, w, nonce)
	span.SetStatus(codes.Ok, "committed")

	return tx, nil
}

// next returns max(lastCommitted+1, pending). Caller holds w.sem.
func (m *NonceManager) next(ctx context.Context, addr common.Address, w *walletNonce) (uint64, error) {
	if !w.loaded {
		last, ok, err := m.store.Load(ctx, m.chainID, addr)
		if err != nil {
			m.logger.Warn(ctx, "failed to load stored nonce", "wallet", addr.Hex(), "error", err)
		} else if ok && (!w.has || last > w.last) {
			w.last, w.has = last, true
		}
		w.loaded = true
	}

	pending, err := m.node.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, apperror.New(apperror.CodeNonceUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("pending nonce for "+addr.Hex()))
	}

	next := pending
	if w.has && w.last+1 > next {
		next = w.last + 1
	}
	return next, nil
}

// commit raises the committed nonce. Caller holds w.sem.
func (m *NonceManager) commit(ctx context.Context, addr common.Address, w *walletNonce, nonce uint64) {
	if w.has && nonce <= w.last {
		return
	}
	w.last, w.has = nonce, true
	m.metrics.committed.Add(ctx, 1)

	if err := m.store.Save(ctx, m.chainID, addr, nonce); err != nil {
		m.logger.Warn(ctx, "failed to persist nonce",
			"wallet", addr.Hex(),
			"nonce", nonce,
			"error", err,
		)
	}
}

// LastCommitted returns the last committed nonce for addr.
func (m *NonceManager) LastCommitted(addr common.Address) (uint64, bool) {
	w := m.wallet(addr)
	w.sem <- struct{}{}
	defer func() { <-w.sem }()
	return w.last, w.has
}
