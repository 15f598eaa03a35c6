//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
)

// BuildApp wires the server components using Google Wire.
func BuildApp() (*App, func(), error) {
	wire.Build(
		provideConfig,
		provideLogger,
		provideRegistry,
		provideMetrics,
		provideHub,
		provideRedisClient,
		provideSnapshotStore,
		provideQueue,
		provideHandler,
		provideServer,
		provideMetricsServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
