// Package di contains dependency injection tokens for the amm context.
package di

import (
	"github.com/fd1az/amm-connector/business/amm/app"
	"github.com/fd1az/amm-connector/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Registries = di.NewToken[map[string]*app.Registry]("amm.Registries")
	Spenders   = di.NewToken[*app.SpenderDirectory]("amm.Spenders")
)

// Helper functions for type-safe access
func GetRegistries(c di.ServiceRegistry) map[string]*app.Registry {
	return di.GetToken(c, Registries)
}

func GetSpenders(c di.ServiceRegistry) *app.SpenderDirectory {
	return di.GetToken(c, Spenders)
}
