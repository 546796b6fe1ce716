package metrics

import (
	"github.com/fd1az/amm-connector/internal/config"
)

type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "otlp-grpc"
)

type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// NewOtelCollectorConfig pushes metrics to an OTLP gRPC collector.
func NewOtelCollectorConfig(url string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OtelCollector,
		Endpoint: url,
		Headers:  headers,
		Insecure: insecure,
	}
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)
		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

// FromTelemetry builds the options for a telemetry config: a Prometheus
// reader always, plus an OTLP collector when metrics_endpoint is set.
func FromTelemetry(cfg config.TelemetryConfig) []OptionFn {
	opts := []OptionFn{
		WithServiceName(cfg.ServiceName),
		WithProviderConfig(ProviderCfg{Provider: PrometheusProvider}),
	}
	if cfg.MetricsEndpoint != "" {
		opts = append(opts, WithProviderConfig(
			NewOtelCollectorConfig(cfg.MetricsEndpoint, nil, cfg.MetricsInsecure),
		))
	}
	return opts
}
