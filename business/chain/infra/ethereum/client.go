// Package ethereum provides EVM node infrastructure adapters.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/circuitbreaker"
	"github.com/fd1az/amm-connector/internal/logger"
	"github.com/fd1az/amm-connector/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/amm-connector/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/amm-connector/business/chain/infra/ethereum"
)

// ClientConfig holds configuration for the RPC client.
type ClientConfig struct {
	Name              string  // "<chain>:<network>", used in logs and metrics
	NodeURL           string  // http(s) or ws(s) endpoint
	RequestsPerSecond float64 // zero disables limiting
	Burst             int
	CallTimeout       time.Duration // per-call deadline
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(name, nodeURL string) ClientConfig {
	return ClientConfig{
		Name:              name,
		NodeURL:           nodeURL,
		RequestsPerSecond: 10,
		Burst:             5,
		CallTimeout:       15 * time.Second,
	}
}

// backend is the ethclient surface the client uses.
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	calls       metric.Int64Counter
	callErrors  metric.Int64Counter
	callLatency metric.Float64Histogram
}

// Client is a rate-limited, circuit-broken JSON-RPC client.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface

	backend   backend
	backendMu sync.RWMutex

	limiter *ratelimit.Limiter
	readCB  *circuitbreaker.CircuitBreaker[any]
	sendCB  *circuitbreaker.CircuitBreaker[any]

	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a client. Dial connects it to the node.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	c := &Client{
		config:  cfg,
		logger:  log,
		limiter: ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
		tracer:  otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	c.initCircuitBreakers()

	return c, nil
}

// newClientWithBackend is used by tests to inject a backend.
func newClientWithBackend(cfg ClientConfig, b backend, log logger.LoggerInterface) (*Client, error) {
	c, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	c.backend = b
	return c, nil
}

// initMetrics initializes OTEL metric instruments.
func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.calls, err = meter.Int64Counter(
		"rpc_calls_total",
		metric.WithDescription("Total node RPC calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.callErrors, err = meter.Int64Counter(
		"rpc_call_errors_total",
		metric.WithDescription("Failed node RPC calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.callLatency, err = meter.Float64Histogram(
		"rpc_call_duration_seconds",
		metric.WithDescription("Node RPC call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	return nil
}

// initCircuitBreakers creates separate breakers for reads and broadcasts so a
// burst of rejected sends cannot block quoting or gas price refreshes.
func (c *Client) initCircuitBreakers() {
	c.readCB = circuitbreaker.New[any](c.breakerConfig("rpc-read-" + c.config.Name))
	c.sendCB = circuitbreaker.New[any](c.breakerConfig("rpc-send-" + c.config.Name))
}

func (c *Client) breakerConfig(name string) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig(name)
	cfg.IsSuccessful = nodeResponded
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn(context.Background(), "rpc circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	}
	return cfg
}

// nodeResponded reports whether err leaves the node's availability in doubt.
// A JSON-RPC error object (revert, insufficient funds, nonce too low) means
// the node answered, and a caller cancellation says nothing about the node.
func nodeResponded(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return true
	}
	var dataErr rpc.DataError
	return errors.As(err, &dataErr)
}

// Dial establishes the connection to the node.
func (c *Client) Dial(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "rpc.dial",
		trace.WithAttributes(attribute.String("chain", c.config.Name)),
	)
	defer span.End()

	client, err := ethclient.DialContext(ctx, c.config.NodeURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to "+c.config.Name))
	}

	c.backendMu.Lock()
	c.backend = client
	c.backendMu.Unlock()

	span.SetStatus(codes.Ok, "connected")
	c.logger.Info(ctx, "rpc client connected", "chain", c.config.Name)

	return nil
}

// call runs fn with rate limiting, a deadline, the circuit breaker cb and a span.
func call[T any](ctx context.Context, c *Client, cb *circuitbreaker.CircuitBreaker[any], method string, fn func(ctx context.Context, b backend) (T, error)) (T, error) {
	var zero T

	ctx, span := c.tracer.Start(ctx, "rpc."+method,
		trace.WithAttributes(attribute.String("chain", c.config.Name)),
	)
	defer span.End()

	attrs := metric.WithAttributes(
		attribute.String("chain", c.config.Name),
		attribute.String("method", method),
	)
	c.metrics.calls.Add(ctx, 1, attrs)

	c.backendMu.RLock()
	b := c.backend
	c.backendMu.RUnlock()

	if b == nil {
		err := apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext(c.config.Name+" not connected"))
		span.RecordError(err)
		return zero, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limited")
		c.metrics.callErrors.Add(ctx, 1, attrs)
		return zero, err
	}

	if c.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := cb.Execute(func() (any, error) {
		return fn(ctx, b)
	})
	c.metrics.callLatency.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, method+" failed")
		c.metrics.callErrors.Add(ctx, 1, attrs)
		return zero, apperror.Wrap(err, apperror.CodeEthereumRPCError, method+" on "+c.config.Name)
	}

	span.SetStatus(codes.Ok, "ok")
	out, _ := res.(T)
	return out, nil
}

// ChainID returns the node's chain ID.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, c.readCB, "chain_id", func(ctx context.Context, b backend) (*big.Int, error) {
		return b.ChainID(ctx)
	})
}

// SuggestGasPrice returns the node's legacy gas price suggestion.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, c, c.readCB, "gas_price", func(ctx context.Context, b backend) (*big.Int, error) {
		return b.SuggestGasPrice(ctx)
	})
}

// PendingNonceAt returns the account's next nonce including pending transactions.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, c, c.readCB, "pending_nonce", func(ctx context.Context, b backend) (uint64, error) {
		return b.PendingNonceAt(ctx, account)
	})
}

// SendTransaction broadcasts a signed transaction.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := call(ctx, c, c.sendCB, "send_transaction", func(ctx context.Context, b backend) (struct{}, error) {
		return struct{}{}, b.SendTransaction(ctx, tx)
	})
	return err
}

// CallContract executes a read-only contract call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, c, c.readCB, "call", func(ctx context.Context, b backend) ([]byte, error) {
		return b.CallContract(ctx, msg, blockNumber)
	})
}

// OpenBreakers returns the names of breakers currently rejecting calls.
func (c *Client) OpenBreakers() []string {
	var open []string
	for _, cb := range []*circuitbreaker.CircuitBreaker[any]{c.readCB, c.sendCB} {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, cb.Name())
		}
	}
	sort.Strings(open)
	return open
}

// Close closes the node connection.
func (c *Client) Close() {
	c.backendMu.Lock()
	defer c.backendMu.Unlock()

	if c.backend != nil {
		c.backend.Close()
		c.backend = nil
	}
}
