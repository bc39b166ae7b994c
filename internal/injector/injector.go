//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/docsync/internal/config"
	"github.com/zeusync/docsync/internal/server"
	"github.com/zeusync/docsync/sdk/go/client"
)

func InitializeClient(cfg config.Config) (*client.Client, error) {
	wire.Build(ClientSet)
	return nil, nil
}

func InitializeServer(cfg config.Config) *server.Server {
	wire.Build(ServerSet)
	return nil
}
