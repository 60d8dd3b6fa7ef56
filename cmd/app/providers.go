package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/bio-generator/internal/domain/generator"
	"github.com/yanqian/bio-generator/internal/infra/config"
	"github.com/yanqian/bio-generator/internal/infra/historyrepo"
	"github.com/yanqian/bio-generator/internal/infra/llm/chatgpt"
	"github.com/yanqian/bio-generator/internal/infra/resultcache"
	"github.com/yanqian/bio-generator/internal/infra/tokenizer"
)

func provideGeneratorConfig(cfg *config.Config) generator.Config {
	return generator.Config{
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		SystemPrompt:    cfg.Generate.SystemPrompt,
		MaxPromptTokens: cfg.Generate.MaxPromptTokens,
		CacheEnabled:    cfg.Cache.Enabled,
		CacheTTL:        cfg.Cache.TTL,
		HistoryLimit:    cfg.History.Limit,
	}
}

func provideChatGPTClient(cfg *config.Config) (*chatgpt.Client, error) {
	return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

func provideTokenCounter(cfg *config.Config, logger *slog.Logger) generator.TokenCounter {
	counter, err := tokenizer.New(cfg.LLM.Model)
	if err != nil {
		logger.Warn("tiktoken unavailable, using approximate token counts", "error", err)
		return tokenizer.Approximate{}
	}
	return counter
}

func provideResultCache(cfg *config.Config, logger *slog.Logger) (generator.ResultCache, func()) {
	noop := func() {}
	addr := strings.TrimSpace(cfg.Cache.Valkey.Addr)
	if !cfg.Cache.Enabled || addr == "" {
		return resultcache.NewMemoryStore(), noop
	}
	opt, err := buildValkeyOptions(addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
		return resultcache.NewMemoryStore(), noop
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
		return resultcache.NewMemoryStore(), noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory cache", "error", err)
		client.Close()
		return resultcache.NewMemoryStore(), noop
	}
	logger.Info("valkey result cache enabled", "addr", addr)
	return resultcache.NewValkeyStore(client, cfg.Cache.Valkey.Prefix), client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideHistoryRepository(cfg *config.Config, logger *slog.Logger) (generator.HistoryRepository, func()) {
	noop := func() {}
	fallback := func() (generator.HistoryRepository, func()) {
		return historyrepo.NewMemoryRepository(cfg.History.Limit), noop
	}
	dsn := strings.TrimSpace(cfg.History.Postgres.DSN)
	if dsn == "" {
		logger.Info("history postgres dsn not set, using memory repository")
		return fallback()
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback()
	}
	if cfg.History.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.History.Postgres.MaxConns
	}
	if cfg.History.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.History.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback()
	}
	repo := historyrepo.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("history migration failed, using memory repository", "error", err)
		pool.Close()
		return fallback()
	}
	logger.Info("history postgres repository enabled")
	return repo, pool.Close
}
