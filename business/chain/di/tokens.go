// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/amm-connector/business/chain/app"
	"github.com/fd1az/amm-connector/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateways = di.NewToken[*app.Gateways]("chain.Gateways")
)

// Private dependency tokens - internal to chain module
var (
	NonceStore = di.NewToken[app.NonceStore]("chain:nonceStore")
)

// Helper functions for type-safe access
func GetGateways(c di.ServiceRegistry) *app.Gateways {
	return di.GetToken(c, Gateways)
}

func GetNonceStore(c di.ServiceRegistry) app.NonceStore {
	return di.GetToken(c, NonceStore)
}
