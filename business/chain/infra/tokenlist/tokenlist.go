// Package tokenlist loads chain token lists from files or URLs.
package tokenlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fd1az/amm-connector/business/chain/domain"
	"github.com/fd1az/amm-connector/internal/apperror"
	"github.com/fd1az/amm-connector/internal/httpclient"
)

// Source types.
const (
	TypeFile = "FILE"
	TypeURL  = "URL"
)

// maxListBytes bounds a downloaded token list.
const maxListBytes = 4 << 20

// document is the Uniswap token-list shape.
type document struct {
	Tokens []domain.TokenInfo `json:"tokens"`
}

// Source loads a token list from a file or URL.
type Source struct {
	kind     string
	location string
	client   httpclient.Client
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c httpclient.Client) Option {
	return func(s *Source) { s.client = c }
}

// New creates a Source. kind is FILE or URL.
func New(kind, location string, opts ...Option) (*Source, error) {
	kind = strings.ToUpper(kind)
	if kind != TypeFile && kind != TypeURL {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("unknown token list type "+kind))
	}

	s := &Source{kind: kind, location: location}
	for _, opt := range opts {
		opt(s)
	}

	if s.kind == TypeURL && s.client == nil {
		client, err := httpclient.NewInstrumentedClient(
			httpclient.WithProviderName("tokenlist"),
			httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
			httpclient.WithMaxBodyBytes(maxListBytes),
		)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeConfigurationError, "token list client")
		}
		s.client = client
	}
	return s, nil
}

// Load reads and parses the list. Invalid entries are dropped.
func (s *Source) Load(ctx context.Context) ([]domain.TokenInfo, error) {
	var (
		raw []byte
		err error
	)
	switch s.kind {
	case TypeFile:
		raw, err = os.ReadFile(s.location)
	default:
		raw, err = s.client.Get(ctx, s.location)
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTokenListFailed, s.location)
	}

	tokens, err := Parse(raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTokenListFailed, s.location)
	}
	return tokens, nil
}

// Parse accepts either {"tokens":[...]} or a bare array.
func Parse(raw []byte) ([]domain.TokenInfo, error) {
	raw = bytes.TrimSpace(raw)

	var tokens []domain.TokenInfo
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &tokens); err != nil {
			return nil, fmt.Errorf("decode token array: %w", err)
		}
	} else {
		var doc document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode token list: %w", err)
		}
		tokens = doc.Tokens
	}

	valid := tokens[:0]
	for _, t := range tokens {
		if t.Valid() {
			valid = append(valid, t)
		}
	}
	return valid, nil
}
