//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/bio-generator/internal/bootstrap"
	"github.com/yanqian/bio-generator/internal/domain/generator"
	"github.com/yanqian/bio-generator/internal/infra/config"
	"github.com/yanqian/bio-generator/internal/infra/llm/chatgpt"
	httpiface "github.com/yanqian/bio-generator/internal/interface/http"
	"github.com/yanqian/bio-generator/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideGeneratorConfig,
		provideChatGPTClient,
		provideTokenCounter,
		provideResultCache,
		provideHistoryRepository,
		generator.NewService,
		wire.Bind(new(generator.ChatClient), new(*chatgpt.Client)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
