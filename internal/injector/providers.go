package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/docsync/internal/config"
	"github.com/zeusync/docsync/internal/core/observability/log"
	"github.com/zeusync/docsync/internal/core/protocol"
	"github.com/zeusync/docsync/internal/server"
	"github.com/zeusync/docsync/pkg/concurrent"
	"github.com/zeusync/docsync/pkg/record"
	"github.com/zeusync/docsync/sdk/go/client"
)

var LoggerSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
)

var ClientSet = wire.NewSet(
	LoggerSet,
	ProvideTransportConfig,
	ProvideRunner,
	protocol.NewHTTPTransport,
	wire.Bind(new(record.Transport), new(*protocol.HTTPTransport)),
	client.New,
)

var ServerSet = wire.NewSet(
	LoggerSet,
	ProvideServerConfig,
	server.NewServer,
)

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.NewFromOptions(cfg.Logger())
}

func ProvideTransportConfig(cfg config.Config) protocol.Config {
	return cfg.Transport()
}

func ProvideServerConfig(cfg config.Config) server.Config {
	return cfg.ServerSettings()
}

func ProvideRunner(cfg config.Config, logger log.Log) *concurrent.Runner {
	return concurrent.NewRunner(cfg.Client.MaxBackground, logger)
}
