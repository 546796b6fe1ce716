package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/logger"
)

// refresherMetrics holds OTEL metric instruments.
type refresherMetrics struct {
	refreshes    metric.Int64Counter
	gasPriceGwei metric.Float64Gauge
}

// GasPriceRefresher keeps a gas price current by polling a source on a
// fixed interval. Readers never block.
type GasPriceRefresher struct {
	source   GasPriceSource
	interval time.Duration
	maxWei   *big.Int // nil disables the cap
	logger   logger.LoggerInterface
	label    string

	price     atomic.Pointer[domain.GasPrice]
	refreshes atomic.Uint64
	running   atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	stop    chan struct{}
	done    chan struct{}

	metrics *refresherMetrics
}

// RefresherOption configures a GasPriceRefresher.
type RefresherOption func(*GasPriceRefresher)

// WithMaxGasPrice clamps fetched prices to maxWei.
func WithMaxGasPrice(maxWei *big.Int) RefresherOption {
	return func(r *GasPriceRefresher) {
		if maxWei != nil && maxWei.Sign() > 0 {
			r.maxWei = maxWei
		}
	}
}

// WithLabel tags log lines and metrics with the owning connector.
func WithLabel(label string) RefresherOption {
	return func(r *GasPriceRefresher) {
		r.label = label
	}
}

// NewGasPriceRefresher creates a refresher seeded with manual. An interval of
// zero keeps the manual price forever.
func NewGasPriceRefresher(source GasPriceSource, manual *domain.GasPrice, interval time.Duration, log logger.LoggerInterface, opts ...RefresherOption) (*GasPriceRefresher, error) {
	r := &GasPriceRefresher{
		source:   source,
		interval: interval,
		logger:   log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.price.Store(manual)

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return r, nil
}

// initMetrics initializes OTEL metric instruments.
func (r *GasPriceRefresher) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &refresherMetrics{}

	r.metrics.refreshes, err = meter.Int64Counter(
		"gas_price_refreshes_total",
		metric.WithDescription("Completed gas price fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	r.metrics.gasPriceGwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	return nil
}

// GasPrice returns the latest usable price.
func (r *GasPriceRefresher) GasPrice() *domain.GasPrice {
	return r.price.Load()
}

// Running reports whether the refresh loop is active.
func (r *GasPriceRefresher) Running() bool {
	return r.running.Load()
}

// Refreshes returns the number of completed fetch attempts.
func (r *GasPriceRefresher) Refreshes() uint64 {
	return r.refreshes.Load()
}

// Start launches the refresh loop. It does nothing when the interval is zero
// and only the first call has an effect. The loop outlives ctx and ends on Stop.
func (r *GasPriceRefresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Debug(ctx, "gas price refresh disabled", "connector", r.label)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.stopped {
		return
	}
	r.started = true

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.running.Store(true)
	go r.loop(loopCtx)
}

// Stop ends the refresh loop and waits for it to exit. An in-flight fetch is
// cancelled. Safe to call more than once and before Start.
func (r *GasPriceRefresher) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.stop)
		if r.cancel != nil {
			r.cancel()
		}
	}
	started := r.started
	r.mu.Unlock()

	if started {
		<-r.done
	}
}

func (r *GasPriceRefresher) loop(ctx context.Context) {
	defer func() {
		r.running.Store(false)
		close(r.done)
	}()

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		r.refresh(ctx)

		// The next fetch is scheduled from completion, not from start.
		timer := time.NewTimer(r.interval)
		select {
		case <-r.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *GasPriceRefresher) refresh(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error(ctx, "gas price refresh panicked", "connector", r.label, "panic", p)
		}
		r.refreshes.Add(1)
		r.metrics.refreshes.Add(ctx, 1)
	}()

	wei, err := r.source.SuggestGasPrice(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn(ctx, "gas price fetch failed", "connector", r.label, "error", err)
		return
	}

	if wei == nil || wei.Sign() < 0 {
		r.logger.Info(ctx, "unusable gas price, keeping previous value",
			"connector", r.label,
			"value", fmt.Sprint(wei),
		)
		return
	}

	if r.maxWei != nil && wei.Cmp(r.maxWei) > 0 {
		r.logger.Warn(ctx, "gas price exceeds max", "connector", r.label, "wei", wei.String())
		wei = new(big.Int).Set(r.maxWei)
	}

	price := domain.NewGasPrice(wei)
	r.price.Store(price)

	gwei, _ := price.Gwei().Float64()
	r.metrics.gasPriceGwei.Record(ctx, gwei)
	r.logger.Debug(ctx, "gas price updated", "connector", r.label, "gwei", price.Gwei().String())
}
