package app

import (
	"context"

	"github.com/google/wire"

	"augur/internal/config"
)

var providerSet = wire.NewSet(provideAppBuilder, provideAppFromBuilder)

func provideAppBuilder(cfg *config.Config) *AppBuilder {
	return NewAppBuilder(cfg)
}

func provideAppFromBuilder(ctx context.Context, b *AppBuilder) (*App, error) {
	return b.Build(ctx)
}
