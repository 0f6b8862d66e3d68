//go:build wireinject
// +build wireinject

package main

import (
	"chatassistant/cmd/conversation-service/internal/biz"
	"chatassistant/cmd/conversation-service/internal/conf"
	"chatassistant/cmd/conversation-service/internal/data"
	"chatassistant/cmd/conversation-service/internal/infra"
	"chatassistant/cmd/conversation-service/internal/server"
	"chatassistant/cmd/conversation-service/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// initApp 初始化应用
func initApp(config *conf.Config, logger log.Logger) (*App, func(), error) {
	panic(wire.Build(
		configSet,
		data.ProviderSet,
		infra.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,

		wire.Bind(new(biz.ChatCompleter), new(*infra.ResilientGateway)),
		wire.Bind(new(biz.SummaryCacheInvalidator), new(*data.SummaryCache)),

		wire.Struct(new(App), "*"),
	))
}
