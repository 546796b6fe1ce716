package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TokenInfo is one entry of a chain's token list.
type TokenInfo struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// Valid reports whether the entry carries a usable address and symbol.
func (t TokenInfo) Valid() bool {
	return common.IsHexAddress(t.Address) && strings.TrimSpace(t.Symbol) != ""
}

// HexAddress returns the parsed contract address.
func (t TokenInfo) HexAddress() common.Address {
	return common.HexToAddress(t.Address)
}
