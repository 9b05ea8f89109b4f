//go:build wireinject

package bootstrap

import (
	"github.com/google/wire"
)

// InitializeDaemon is the injector Wire generates code for. It is never
// compiled directly (the wireinject tag excludes it); wire_gen.go is the
// hand-authored stand-in for what `wire` would emit from this graph.
func InitializeDaemon(dataDir string) (*Daemon, func(), error) {
	wire.Build(
		ProvideStore,
		ProvideSampler,
		ProvideSupervisor,
		ProvideHistory,
		ProvideServer,
		NewDaemon,
	)
	return nil, nil, nil
}
