package asset_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fd1az/amm-connector/internal/asset"
	"github.com/shopspring/decimal"
)

var (
	jewel = asset.MustNewNative(asset.ChainIDDFK, "JEWEL", 18,
		common.HexToAddress("0x00000000000000000000000000000000000000aa"))
	usdc = asset.MustNewToken(asset.ChainIDDFK,
		common.HexToAddress("0x3AD9DFE640E1A9Cc1D9B0948620820D975c3803a"), "USDC", "USD Coin", 6)
)

func TestAmount_Basic(t *testing.T) {
	// 1 JEWEL = 1e18 wei
	one := asset.NewAmount(jewel, big.NewInt(1e18))

	if one.IsZero() {
		t.Error("expected non-zero amount")
	}

	d := one.ToDecimal()
	if !d.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected 1, got %s", d.String())
	}

	if one.String() != "1 JEWEL" {
		t.Errorf("expected '1 JEWEL', got '%s'", one.String())
	}
}

func TestAmount_RawIsCopied(t *testing.T) {
	raw := big.NewInt(42)
	a := asset.NewAmount(usdc, raw)
	raw.SetInt64(7)

	if a.Raw().Int64() != 42 {
		t.Errorf("expected 42, got %s", a.Raw())
	}

	got := a.Raw()
	got.SetInt64(1)
	if a.Raw().Int64() != 42 {
		t.Error("Raw must return a copy")
	}
}

func TestAmount_CmpDifferentAssets(t *testing.T) {
	a := asset.NewAmount(jewel, big.NewInt(1))
	b := asset.NewAmount(usdc, big.NewInt(1))

	if _, err := a.Cmp(b); err == nil {
		t.Error("expected error comparing different assets")
	}

	c := asset.NewAmountFromInt64(jewel, 2)
	cmp, err := a.Cmp(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmp != -1 {
		t.Errorf("expected -1, got %d", cmp)
	}
}

func TestAmount_NegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for negative amount")
		}
	}()
	asset.NewAmount(usdc, big.NewInt(-1))
}

func TestParseString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "whole", input: "1", want: "1000000"},
		{name: "fraction", input: "1.5", want: "1500000"},
		{name: "smallest unit", input: "0.000001", want: "1"},
		{name: "too many decimals", input: "0.0000001", wantErr: true},
		{name: "negative", input: "-1", wantErr: true},
		{name: "garbage", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asset.ParseString(usdc, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Raw().String() != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Raw())
			}
		})
	}
}

func TestAmount_StringFixed(t *testing.T) {
	a := asset.NewAmount(usdc, big.NewInt(1234567))
	if got := a.StringFixed(2); got != "1.23 USDC" {
		t.Errorf("expected '1.23 USDC', got '%s'", got)
	}
}
