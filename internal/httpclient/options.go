// Package httpclient provides an instrumented HTTP client with OTEL tracing and metrics.
package httpclient

import "net/http"

// ClientOptions holds configuration for the instrumented HTTP client.
type ClientOptions struct {
	client       *http.Client
	providerName string
	headers      map[string]string
	maxBodyBytes int64
	errorHandler ResponseErrorHandler
}

// ClientOption is a function that configures ClientOptions.
type ClientOption func(*ClientOptions)

// NewClientOptions creates ClientOptions from variadic options.
func NewClientOptions(opts ...ClientOption) *ClientOptions {
	options := &ClientOptions{}
	for _, o := range opts {
		o(options)
	}
	return options
}

// WithHTTPClient uses c instead of a pooled default client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *ClientOptions) {
		o.client = c
	}
}

// WithProviderName sets the provider name for metrics and traces.
func WithProviderName(name string) ClientOption {
	return func(o *ClientOptions) {
		o.providerName = name
	}
}

// WithHeaders sets headers sent with every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		o.headers = headers
	}
}

// WithMaxBodyBytes bounds how much of a response body is read.
func WithMaxBodyBytes(n int64) ClientOption {
	return func(o *ClientOptions) {
		o.maxBodyBytes = n
	}
}

// ResponseErrorHandler decides whether a response is an error.
type ResponseErrorHandler func(statusCode int, body []byte) error

// WithResponseErrorHandler replaces the default non-2xx check.
func WithResponseErrorHandler(handler ResponseErrorHandler) ClientOption {
	return func(o *ClientOptions) {
		o.errorHandler = handler
	}
}
