package apm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/amm-connector/internal/config"
	"github.com/fd1az/amm-connector/internal/logger"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want Provider
	}{
		{"zipkin", ZipkinProvider},
		{" OTLP-GRPC ", OTLPGRPCProvider},
		{"otlp-http", OTLPHTTPProvider},
		{"console", ConsoleProvider},
		{"none", EmptyProvider},
		{"", EmptyProvider},
		{"jaeger", EmptyProvider},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProvider(tt.in))
		})
	}
}

func TestNewTraceProvider_None(t *testing.T) {
	tp, err := NewTraceProvider(context.Background(), config.TelemetryConfig{TraceProvider: "none"}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, emptyTraceProvider{}, tp)
	assert.NoError(t, tp.Stop())
}

func TestNewTraceProvider_Zipkin(t *testing.T) {
	tp, err := NewTraceProvider(context.Background(), config.TelemetryConfig{
		ServiceName:   "amm-connector-test",
		TraceProvider: "zipkin",
		OTLPEndpoint:  "http://127.0.0.1:1/api/v2/spans",
	}, logger.Nop())
	require.NoError(t, err)
	assert.NoError(t, tp.Stop())
}
