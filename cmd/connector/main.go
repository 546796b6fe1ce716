// Package main is the entry point for the AMM connector service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fd1az/amm-connector/business/amm"
	ammDI "github.com/fd1az/amm-connector/business/amm/di"
	ammDomain "github.com/fd1az/amm-connector/business/amm/domain"
	"github.com/fd1az/amm-connector/business/chain"
	"github.com/fd1az/amm-connector/internal/apm"
	"github.com/fd1az/amm-connector/internal/asset"
	"github.com/fd1az/amm-connector/internal/config"
	"github.com/fd1az/amm-connector/internal/health"
	"github.com/fd1az/amm-connector/internal/logger"
	"github.com/fd1az/amm-connector/internal/metrics"
	"github.com/fd1az/amm-connector/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// quoteRequest is a one-shot estimate requested from the command line.
type quoteRequest struct {
	connector string
	chain     string
	network   string
	pair      string // BASE/QUOTE
	side      string // sell or buy
	amount    string // in base units
	slippage  string
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")

	var q quoteRequest
	flag.StringVar(&q.pair, "quote", "", "Print one estimate for BASE/QUOTE and exit")
	flag.StringVar(&q.connector, "connector", "dfk_crystalvale", "Connector used by -quote")
	flag.StringVar(&q.chain, "chain", "dfkchain", "Chain used by -quote")
	flag.StringVar(&q.network, "network", "mainnet", "Network used by -quote")
	flag.StringVar(&q.side, "side", "sell", "Trade side for -quote: sell or buy")
	flag.StringVar(&q.amount, "amount", "1", "Base amount for -quote")
	flag.StringVar(&q.slippage, "slippage", "", "Allowed slippage for -quote, <num>/<den>")
	flag.Parse()

	if *showVersion {
		fmt.Printf("amm-connector %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, q); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, q quoteRequest) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := logger.NewRotatingWriter(os.Stderr, logger.FileConfig{
		Path:       cfg.App.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 14,
	})
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, logger.OtelTraceID)
	log.Info(ctx, "starting AMM connector",
		"version", version,
		"environment", cfg.App.Environment,
	)

	if cfg.Telemetry.Enabled {
		stop, err := startTelemetry(ctx, cfg.Telemetry, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	healthServer := health.NewServer(cfg.Server.HealthPort, version, log)
	if q.pair == "" {
		if err := healthServer.Start(); err != nil {
			log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			log.Info(ctx, "health server started", "port", cfg.Server.HealthPort)
		}
		defer healthServer.Stop(context.Background())
	}

	mono := monolith.New(cfg, log, healthServer)
	defer func() {
		if err := mono.Close(); err != nil {
			log.Error(context.Background(), "error during shutdown", "error", err)
		}
	}()

	// Chain gateways must be registered before the connectors that use them.
	modules := []monolith.Module{
		&chain.Module{},
		&amm.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	if q.pair != "" {
		return runQuote(ctx, mono, q)
	}

	log.Info(ctx, "all modules started")
	<-ctx.Done()
	log.Info(context.Background(), "shutting down")

	return nil
}

func startTelemetry(ctx context.Context, cfg config.TelemetryConfig, log logger.LoggerInterface) (func(), error) {
	traceProvider, err := apm.NewTraceProvider(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	meterProvider, err := metrics.NewMetricProvider(ctx, metrics.FromTelemetry(cfg)...)
	if err != nil {
		_ = traceProvider.Stop()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	metricsServer := metrics.NewServer(cfg.PrometheusPort, log)
	metricsServer.Start()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "metrics server shutdown", "error", err)
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "meter provider shutdown", "error", err)
		}
		if err := traceProvider.Stop(); err != nil {
			log.Warn(shutdownCtx, "trace provider shutdown", "error", err)
		}
	}, nil
}

func runQuote(ctx context.Context, mono monolith.Monolith, q quoteRequest) error {
	registry, ok := ammDI.GetRegistries(mono.Services())[q.connector]
	if !ok {
		return fmt.Errorf("connector %q is not configured", q.connector)
	}

	c, err := registry.GetInstance(ctx, q.chain, q.network)
	if err != nil {
		return err
	}
	if err := c.Init(ctx); err != nil {
		return err
	}

	baseSym, quoteSym, ok := strings.Cut(q.pair, "/")
	if !ok {
		return fmt.Errorf("quote %q must be BASE/QUOTE", q.pair)
	}
	base, err := c.GetTokenBySymbol(baseSym)
	if err != nil {
		return err
	}
	quote, err := c.GetTokenBySymbol(quoteSym)
	if err != nil {
		return err
	}

	amount, err := asset.ParseString(base, q.amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	var trade *ammDomain.ExpectedTrade
	switch q.side {
	case "sell":
		trade, err = c.EstimateSellTrade(ctx, base, quote, amount.Raw(), q.slippage)
	case "buy":
		trade, err = c.EstimateBuyTrade(ctx, quote, base, amount.Raw(), q.slippage)
	default:
		return fmt.Errorf("side must be sell or buy, got %q", q.side)
	}
	if err != nil {
		return err
	}

	fmt.Println(describe(trade))
	return nil
}

func describe(trade *ammDomain.ExpectedTrade) string {
	return fmt.Sprintf("%s %s -> %s, price %s, expected %s",
		trade.Trade.Type,
		trade.Trade.InputAmount.StringFixed(6),
		trade.Trade.OutputAmount.StringFixed(6),
		trade.Trade.ExecutionPrice.StringFixed(6),
		trade.ExpectedAmount.StringFixed(6),
	)
}
